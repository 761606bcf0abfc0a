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
	"bytes"
	"encoding/csv"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// setupRun points the test configuration at the test data and a
// temporary output directory.
func setupRun(t *testing.T) (outDir string, cleanup func()) {
	testdata, err := filepath.Abs("testdata")
	if err != nil {
		t.Fatal(err)
	}
	outDir, err = ioutil.TempDir("", "surfom_run")
	if err != nil {
		t.Fatal(err)
	}
	os.Setenv("SURFOM_TESTDATA", testdata)
	os.Setenv("SURFOM_TESTOUT", outDir)
	Cfg.Set("config", "testdata/config.toml")
	return outDir, func() {
		os.RemoveAll(outDir)
		os.Unsetenv("SURFOM_TESTDATA")
		os.Unsetenv("SURFOM_TESTOUT")
	}
}

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(b.String(), "SurfOM v") {
		t.Errorf("version output: %q", b.String())
	}
}

func TestTypes(t *testing.T) {
	_, cleanup := setupRun(t)
	defer cleanup()
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"types"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"oats", "wheat", "manure"} {
		if !strings.Contains(b.String(), name) {
			t.Errorf("types output is missing %s:\n%s", name, b.String())
		}
	}
}

func TestVariables(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"variables"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "SurfaceOMWt") {
		t.Errorf("variables output:\n%s", b.String())
	}
}

func TestRun(t *testing.T) {
	outDir, cleanup := setupRun(t)
	defer cleanup()
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(outDir, "surfom_output.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	wantHeader := []string{"Date", "CN", "Cover", "ResidueC", "ResidueN", "ResidueWt"}
	if strings.Join(recs[0], ",") != strings.Join(wantHeader, ",") {
		t.Errorf("header = %v, want %v", recs[0], wantHeader)
	}
	if len(recs) != 11 {
		t.Fatalf("have %d rows, want 11", len(recs))
	}
	if recs[1][0] != "2000-01-01" || recs[10][0] != "2000-01-10" {
		t.Errorf("dates = %s ... %s", recs[1][0], recs[10][0])
	}
	wt := make([]float64, len(recs)-1)
	for i, r := range recs[1:] {
		if wt[i], err = strconv.ParseFloat(r[5], 64); err != nil {
			t.Fatal(err)
		}
		if i > 0 && wt[i] > wt[i-1] {
			t.Errorf("residue increased on day %d: %g > %g", i+1, wt[i], wt[i-1])
		}
	}
	if wt[0] >= 2500 || wt[0] < 2000 {
		t.Errorf("day 1 residue = %g", wt[0])
	}
	// Disc tillage on day 5 incorporates half of the residue.
	if wt[4] > 0.5*wt[3] {
		t.Errorf("residue after tillage = %g, before = %g", wt[4], wt[3])
	}

	log, err := ioutil.ReadFile(filepath.Join(outDir, "surfom.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(log), "simulation finished") {
		t.Errorf("log file is missing the final message:\n%s", log)
	}
	if !strings.Contains(b.String(), "Day 10") {
		t.Errorf("status messages are missing:\n%s", b.String())
	}

	t.Run("checkpoint", func(t *testing.T) {
		var b bytes.Buffer
		Root.SetOutput(&b)
		Root.SetArgs([]string{"checkpoint", filepath.Join(outDir, "surfom.gob")})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(b.String(), "day 10") {
			t.Errorf("checkpoint output:\n%s", b.String())
		}
		if !strings.Contains(b.String(), "oats") || !strings.Contains(b.String(), "manure") {
			t.Errorf("checkpoint output is missing pools:\n%s", b.String())
		}
	})

	t.Run("restart", func(t *testing.T) {
		Cfg.Set("InitialCheckpoint", filepath.Join(outDir, "surfom.gob"))
		Cfg.Set("MetFile", filepath.Join("testdata", "restart.met"))
		Cfg.Set("NumDays", 12)
		Cfg.Set("CheckpointFile", "")
		defer func() {
			Cfg.Set("InitialCheckpoint", "")
			Cfg.Set("MetFile", filepath.Join("testdata", "test.met"))
			Cfg.Set("NumDays", 0)
		}()
		Root.SetArgs([]string{"run"})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
		f, err := os.Open(filepath.Join(outDir, "surfom_output.csv"))
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		recs, err := csv.NewReader(f).ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		// The restarted simulation skips the weather it has already
		// simulated, starts on day 11 and stops after day 12.
		if len(recs) != 3 {
			t.Fatalf("have %d rows, want 3", len(recs))
		}
		if recs[1][0] != "2000-01-11" || recs[2][0] != "2000-01-12" {
			t.Errorf("dates = %s, %s", recs[1][0], recs[2][0])
		}
		first, err := strconv.ParseFloat(recs[1][5], 64)
		if err != nil {
			t.Fatal(err)
		}
		if first > wt[9] {
			t.Errorf("restart should continue from the saved residue %g, have %g", wt[9], first)
		}
	})
}

// TestRun_dailyOrder checks that scheduled tillage happens after the
// day's decomposition.
func TestRun_dailyOrder(t *testing.T) {
	outDir, cleanup := setupRun(t)
	defer cleanup()
	Cfg.Set("loglevel", "debug")
	defer Cfg.Set("loglevel", "info")
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	log, err := ioutil.ReadFile(filepath.Join(outDir, "surfom.log"))
	if err != nil {
		t.Fatal(err)
	}
	decomposed, tilled := -1, -1
	for i, line := range strings.Split(string(log), "\n") {
		if strings.Contains(line, "applied actual decomposition") && strings.Contains(line, "day=5 ") {
			decomposed = i
		}
		if strings.Contains(line, "residue incorporated") {
			tilled = i
		}
	}
	if decomposed < 0 || tilled < 0 {
		t.Fatalf("missing log messages:\n%s", log)
	}
	if tilled < decomposed {
		t.Errorf("tillage (line %d) happened before decomposition (line %d)", tilled, decomposed)
	}
}
