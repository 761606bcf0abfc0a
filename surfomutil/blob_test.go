/*
Copyright © 2026 the SurfOM authors.
This file is part of SurfOM.

SurfOM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SurfOM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SurfOM.  If not, see <http://www.gnu.org/licenses/>.
*/

package surfomutil

import (
	"context"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func TestSplitBlobURL(t *testing.T) {
	for _, test := range []struct {
		in, bucket, key string
		err             bool
	}{
		{in: "gs://bucket/dir/file.met", bucket: "gs://bucket", key: "dir/file.met"},
		{in: "s3://bucket/out.csv?region=us-west-2", bucket: "s3://bucket?region=us-west-2", key: "out.csv"},
		{in: "file:///tmp/dir/file.met", bucket: "file:///tmp/dir", key: "file.met"},
		{in: "gs://bucket", err: true},
		{in: "file:///tmp/dir/", err: true},
	} {
		t.Run(test.in, func(t *testing.T) {
			u, err := url.Parse(test.in)
			if err != nil {
				t.Fatal(err)
			}
			bucket, key, err := splitBlobURL(u)
			if test.err {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if bucket != test.bucket || key != test.key {
				t.Errorf("have (%s, %s), want (%s, %s)", bucket, key, test.bucket, test.key)
			}
		})
	}
}

func TestIsBlob(t *testing.T) {
	for path, want := range map[string]bool{
		"gs://b/f":     true,
		"s3://b/f":     true,
		"file:///a/b":  true,
		"/a/b":         false,
		"weather.met":  false,
		"http://x/y.z": false,
	} {
		if IsBlob(path) != want {
			t.Errorf("IsBlob(%s) != %v", path, want)
		}
	}
}

func TestBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir, err := ioutil.TempDir("", "surfom_blob")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	dst := "file://" + filepath.ToSlash(dir) + "/weather.met"

	var u uploader
	local := u.maybeUpload(dst)
	if local == dst || local == "" {
		t.Fatalf("blob path should be replaced by a local path, have %s", local)
	}
	if p := u.maybeUpload("local.csv"); p != "local.csv" {
		t.Errorf("local paths should not change: %s", p)
	}
	if err := ioutil.WriteFile(local, []byte("year day radn maxt mint rain\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := u.upload(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(u.dir); !os.IsNotExist(err) {
		t.Errorf("temporary directory should be removed: %v", err)
	}

	r, err := openInput(ctx, dst)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if string(b) != "year day radn maxt mint rain\n" {
		t.Errorf("read %q", b)
	}

	if _, err := openInput(ctx, "file://"+filepath.ToSlash(dir)+"/missing.met"); err == nil {
		t.Error("expected an error for a missing blob")
	}
}
