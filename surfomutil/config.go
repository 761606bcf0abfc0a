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
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/surfom"
	"github.com/spf13/cast"
)

// RunConfig holds the information needed to run a simulation.
type RunConfig struct {
	ResidueTypes    string
	MetFile         string
	NumDays         int
	OutputFile      string
	OutputVariables map[string]string
	LogFile         string
	LogLevel        logrus.Level

	InitialResidues []surfom.InitialResidue
	Tillage         map[string]surfom.TillageRequest

	SoilLayers []float64 // [mm]
	Params     *surfom.Params

	InitialCheckpoint, CheckpointFile string
}

// ReadConfig reads a simulation configuration from cfg.
func ReadConfig(cfg *viper.Viper) (*RunConfig, error) {
	c := &RunConfig{
		ResidueTypes:      os.ExpandEnv(cfg.GetString("ResidueTypes")),
		MetFile:           os.ExpandEnv(cfg.GetString("MetFile")),
		NumDays:           cfg.GetInt("NumDays"),
		InitialCheckpoint: os.ExpandEnv(cfg.GetString("InitialCheckpoint")),
		CheckpointFile:    os.ExpandEnv(cfg.GetString("CheckpointFile")),
	}
	if c.MetFile == "" {
		return nil, fmt.Errorf("surfom: you need to specify a weather file in the MetFile configuration variable")
	}
	var err error
	if c.LogLevel, err = logrus.ParseLevel(cfg.GetString("loglevel")); err != nil {
		return nil, fmt.Errorf("surfom: reading 'loglevel': %v", err)
	}
	if c.OutputFile, err = checkOutputFile(cfg.GetString("OutputFile")); err != nil {
		return nil, err
	}
	c.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), c.OutputFile)

	vars, err := GetStringMapString("OutputVariables", cfg)
	if err != nil {
		return nil, err
	}
	if c.OutputVariables, err = checkOutputVars(vars); err != nil {
		return nil, err
	}
	if c.InitialResidues, err = getInitialResidues("InitialResidues", cfg); err != nil {
		return nil, err
	}
	tillage, err := GetStringMapString("Tillage", cfg)
	if err != nil {
		return nil, err
	}
	c.Tillage = make(map[string]surfom.TillageRequest)
	for date, typ := range tillage {
		if _, err := time.Parse(surfom.DateFormat, date); err != nil {
			return nil, fmt.Errorf("surfom: invalid Tillage date '%s': %v", date, err)
		}
		c.Tillage[date] = surfom.TillageRequest{Type: typ}
	}
	if c.SoilLayers, err = getFloat64Slice("SoilLayers", cfg); err != nil {
		return nil, err
	}
	if c.Params, err = getParams(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again.")
	}
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory or bucket exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.csv")`)
	}
	f = os.ExpandEnv(f)
	if IsBlob(f) {
		u, err := url.Parse(f)
		if err != nil {
			return f, err
		}
		bucket, _, err := splitBlobURL(u)
		if err != nil {
			return f, err
		}
		b, err := OpenBucket(context.TODO(), bucket)
		if err != nil {
			return f, fmt.Errorf("surfom: error when checking OutputFile location: %v", err)
		}
		b.Close()
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("surfom: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	switch v := cfg.Get(varName).(type) {
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		if v == "" {
			return make(map[string]string), nil
		}
		o := make(map[string]string)
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("surfom: parsing %s: %v", varName, err)
		}
		return o, nil
	case nil:
		return make(map[string]string), nil
	default:
		return nil, fmt.Errorf("surfom: invalid type for %s: %#v", varName, v)
	}
}

// getFloat64Slice returns a []float64 from a viper configuration. The
// value can be a list of numbers from a configuration file, a list of
// strings from a command line flag, or a comma-separated string from
// an environment variable.
func getFloat64Slice(varName string, cfg *viper.Viper) ([]float64, error) {
	var items []interface{}
	switch v := cfg.Get(varName).(type) {
	case []float64:
		return v, nil
	case []interface{}:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, strings.TrimSpace(s))
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
	case nil:
	default:
		return nil, fmt.Errorf("surfom: invalid type for %s: %#v", varName, v)
	}
	o := make([]float64, len(items))
	for i, item := range items {
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return nil, fmt.Errorf("surfom: reading %s item %d: %v", varName, i, err)
		}
		o[i] = f
	}
	return o, nil
}

// getInitialResidues returns the initial residues from a viper
// configuration, where they may be a list of tables from a
// configuration file or a JSON array from a command line argument.
func getInitialResidues(varName string, cfg *viper.Viper) ([]surfom.InitialResidue, error) {
	switch v := cfg.Get(varName).(type) {
	case []surfom.InitialResidue:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		var o []surfom.InitialResidue
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("surfom: parsing %s: %v", varName, err)
		}
		return o, nil
	case nil:
		return nil, nil
	default:
		items, err := cast.ToSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("surfom: invalid type for %s: %#v", varName, v)
		}
		o := make([]surfom.InitialResidue, len(items))
		for i, item := range items {
			fields, err := cast.ToStringMapE(item)
			if err != nil {
				return nil, fmt.Errorf("surfom: reading %s item %d: %v", varName, i, err)
			}
			if o[i], err = initialResidue(fields); err != nil {
				return nil, fmt.Errorf("surfom: reading %s item %d: %v", varName, i, err)
			}
		}
		return o, nil
	}
}

// initialResidue converts a configuration table to an initial residue.
// Keys are matched without regard to case.
func initialResidue(fields map[string]interface{}) (surfom.InitialResidue, error) {
	var r surfom.InitialResidue
	rv := reflect.ValueOf(&r).Elem()
	for k, v := range fields {
		f := rv.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, k) })
		if !f.IsValid() {
			return r, fmt.Errorf("unknown field '%s'", k)
		}
		switch f.Kind() {
		case reflect.String:
			s, err := cast.ToStringE(v)
			if err != nil {
				return r, fmt.Errorf("field '%s': %v", k, err)
			}
			f.SetString(s)
		case reflect.Float64:
			x, err := cast.ToFloat64E(v)
			if err != nil {
				return r, fmt.Errorf("field '%s': %v", k, err)
			}
			f.SetFloat(x)
		}
	}
	return r, nil
}

// getParams returns the default model parameters overridden by any
// "Params.<field>" values in cfg.
func getParams(cfg *viper.Viper) (*surfom.Params, error) {
	p := surfom.DefaultParams()
	pv := reflect.ValueOf(p).Elem()
	t := pv.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Type.Kind() != reflect.Float64 {
			continue
		}
		key := "Params." + t.Field(i).Name
		if !cfg.IsSet(key) {
			continue
		}
		v, err := cast.ToFloat64E(cfg.Get(key))
		if err != nil {
			return nil, fmt.Errorf("surfom: reading %s: %v", key, err)
		}
		pv.Field(i).SetFloat(v)
	}
	return p, nil
}

// loadRegistry returns the built-in residue types plus any in the
// TOML file at path, which may be a blob storage URL.
func loadRegistry(path string) (*surfom.Registry, error) {
	path = os.ExpandEnv(path)
	if path == "" {
		return surfom.NewRegistry(surfom.DefaultResidueTypes()...)
	}
	r, err := openInput(context.TODO(), path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return surfom.LoadRegistryTOML(r, true)
}
