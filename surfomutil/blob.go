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
	"fmt"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"

	// Storage providers for OpenBucket.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// OpenBucket returns the blob storage bucket specified by bucketURL,
// for example "gs://my-bucket", "s3://my-bucket?region=us-west-2", or
// "file:///path/to/dir". The accepted storage providers are "file" for
// the local filesystem (e.g., for testing), "gs" for Google Cloud
// Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("surfomutil.OpenBucket: %v", err)
	}
	return b, nil
}

// splitBlobURL splits a blob URL into the URL of its bucket and its
// key within the bucket. For local files the bucket is the directory
// holding the file.
func splitBlobURL(u *url.URL) (bucket, key string, err error) {
	if u.Scheme == "file" {
		if u.Path == "" || strings.HasSuffix(u.Path, "/") {
			return "", "", fmt.Errorf("surfom: blob URL '%s' does not name a file", u)
		}
		return "file://" + path.Dir(u.Path), path.Base(u.Path), nil
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("surfom: blob URL '%s' does not name a file", u)
	}
	bucket = u.Scheme + "://" + u.Host
	if u.RawQuery != "" {
		bucket += "?" + u.RawQuery
	}
	return bucket, key, nil
}

type blobReader struct {
	*blob.Reader
	bucket *blob.Bucket
}

func (r blobReader) Close() error {
	err := r.Reader.Close()
	if err2 := r.bucket.Close(); err == nil {
		err = err2
	}
	return err
}

// openInput opens the file at p, which can be either a local path or
// a blob storage URL.
func openInput(ctx context.Context, p string) (io.ReadCloser, error) {
	if !IsBlob(p) {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("surfom: opening input file: %v", err)
		}
		return f, nil
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("surfom: parsing url '%s': %v", p, err)
	}
	bucketURL, key, err := splitBlobURL(u)
	if err != nil {
		return nil, err
	}
	bucket, err := OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("surfom: opening bucket to read '%s': %v", p, err)
	}
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		bucket.Close()
		return nil, fmt.Errorf("surfom: reading blob '%s': %v", p, err)
	}
	return blobReader{Reader: r, bucket: bucket}, nil
}

type uploader struct {
	// files is a set of file path pairs. The first of each pair
	// is a local file path and the second is a blob storage
	// path where it should be uploaded to.
	files [][2]string
	err   error
	dir   string
}

// maybeUpload checks whether the given output file path refers to
// a blob storage location. If it does, then a temporary file location
// is returned. The file will then be uploaded to blob storage when
// the upload method is run.
func (u *uploader) maybeUpload(p string) string {
	if u.err != nil {
		return ""
	}
	if !IsBlob(p) {
		return p
	}
	if u.dir == "" {
		u.dir, u.err = ioutil.TempDir("", "surfom")
		if u.err != nil {
			return ""
		}
	}
	local := filepath.Join(u.dir, path.Base(p))
	u.files = append(u.files, [2]string{local, p})
	return local
}

// upload copies the local files to their blob storage locations and
// removes the temporary directory.
func (u *uploader) upload(ctx context.Context) error {
	if u.err != nil {
		return u.err
	}
	for _, files := range u.files {
		if err := uploadFile(ctx, files[0], files[1]); err != nil {
			return err
		}
	}
	if u.dir != "" {
		return os.RemoveAll(u.dir)
	}
	return nil
}

func uploadFile(ctx context.Context, local, dst string) error {
	r, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("surfom: opening file '%s' for upload: %v", local, err)
	}
	defer r.Close()
	u, err := url.Parse(dst)
	if err != nil {
		return fmt.Errorf("surfom: parsing url '%s' for upload: %v", dst, err)
	}
	bucketURL, key, err := splitBlobURL(u)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketURL)
	if err != nil {
		return fmt.Errorf("surfom: opening bucket to upload file '%s': %v", dst, err)
	}
	defer bucket.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("surfom: opening writer to upload file '%s': %v", dst, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("surfom: uploading file '%s' to '%s': %v", local, dst, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("surfom: uploading file '%s' to '%s': %v", local, dst, err)
	}
	return nil
}
