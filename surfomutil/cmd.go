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
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/surfom"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	// Options are the configuration options available to SurfOM.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel specifies the level of log messages to print. It can be
              one of panic, fatal, error, warning, info, or debug.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "ResidueTypes",
			usage: `
              ResidueTypes is the path to a TOML file of residue type definitions,
              each in a [[ResidueType]] table. Types in the file are added to the
              built-in types and replace built-in types with the same name. If
              ResidueTypes is empty, only the built-in types are available.
              The path can include environment variables and can be a blob
              storage URL.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), typesCmd.Flags(), checkpointCmd.Flags()},
		},
		{
			name: "MetFile",
			usage: `
              MetFile is the path to the weather file that drives the simulation.
              The simulation runs for each day in the file. The path can include
              environment variables and can be a blob storage URL.`,
			defaultVal: "weather.met",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NumDays",
			usage: `
              NumDays is the maximum number of days to simulate. If it is less
              than 1, all days in MetFile are simulated.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output file location. Files
              ending in '.xlsx' are written as spreadsheets and other files are
              written as CSV. It can include environment variables and can be a
              blob storage URL.`,
			defaultVal: "surfom_output.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which model variables should be included
              in the output file. Each key is the output name and each value is an
              expression of model variables, other output variables, and the
              functions exp, log, min, max, and ratio. Run 'surfom variables' for
              the list of model variables.`,
			defaultVal: map[string]string{
				"ResidueWt": "SurfaceOMWt",
				"ResidueC":  "SurfaceOMC",
				"ResidueN":  "SurfaceOMN",
				"ResidueCN": "ratio(ResidueC, ResidueN)",
				"Cover":     "CoverTotal",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be saved in
              the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "InitialResidues",
			usage: `
              InitialResidues is the list of residue pools present at the start
              of the simulation. Each has a Name, a Type, a Mass in kg/ha, a
              CNRatio, and optionally a CPRatio and a StandingFraction. On the
              command line it is given as a JSON array.`,
			defaultVal: `[{"Name":"wheat","Type":"wheat","Mass":1000,"CNRatio":80,"CPRatio":0,"StandingFraction":0}]`,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Tillage",
			usage: `
              Tillage maps dates in YYYY-MM-DD format to the names of tillage types
              to carry out on those dates.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SoilLayers",
			usage: `
              SoilLayers is the list of soil layer thicknesses in mm, starting at
              the surface.`,
			defaultVal: []string{"150", "150", "300", "300", "300"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "InitialCheckpoint",
			usage: `
              InitialCheckpoint is the path to a checkpoint file written by a
              previous simulation. If it is specified, the simulation starts from
              the saved state instead of from InitialResidues.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CheckpointFile",
			usage: `
              CheckpointFile is the path where the state of the model should be
              saved at the end of the simulation. No checkpoint is saved if it
              is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}
	options = append(options, paramOptions()...)

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SURFOM")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				set.StringP(option.name, option.shorthand, strings.TrimSpace(b.String()), option.usage)
			default:
				panic(fmt.Errorf("invalid default type %T for option %s", v, option.name))
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

// paramOptions returns an option for each numeric field of
// surfom.Params, named "Params.<field>", using the field's desc and
// units tags as the usage message.
func paramOptions() []option {
	def := reflect.ValueOf(surfom.DefaultParams()).Elem()
	t := def.Type()
	var o []option
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() != reflect.Float64 {
			continue
		}
		o = append(o, option{
			name: "Params." + f.Name,
			usage: fmt.Sprintf(`
              Params.%s: %s [%s].`, f.Name, f.Tag.Get("desc"), f.Tag.Get("units")),
			defaultVal: def.Field(i).Float(),
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		})
	}
	return o
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(typesCmd)
	Root.AddCommand(variablesCmd)
	Root.AddCommand(checkpointCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("surfom: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "surfom",
	Short: "A surface organic matter model.",
	Long: `SurfOM simulates the decomposition of crop residue and manure lying
on or standing above the soil surface, and the exchange of carbon, nitrogen,
and phosphorus between the residue and the soil.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SURFOM_var' where 'var' is the
name of the variable to be set, with any '.' replaced by '_'. Many configuration
variables are additionally allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of SurfOM.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("SurfOM v%s\n", surfom.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run runs a daily simulation of surface residue driven by the weather
in MetFile, starting from InitialResidues (or InitialCheckpoint) and carrying out
the operations in Tillage on their scheduled dates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ReadConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(cmd, c)
	},
	DisableAutoGenTag: true,
}

// typesCmd is a command that lists the available residue types.
var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List residue types.",
	Long: `types lists the built-in residue types along with any defined in the
ResidueTypes file, with their decomposition parameters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadRegistry(Cfg.GetString("ResidueTypes"))
		if err != nil {
			return err
		}
		return printTypes(cmd, r)
	},
	DisableAutoGenTag: true,
}

// variablesCmd is a command that lists the model variables available
// for output.
var variablesCmd = &cobra.Command{
	Use:   "variables",
	Short: "List output variables.",
	Long: `variables lists the model variables that can be used in
OutputVariables expressions.`,
	Run: func(cmd *cobra.Command, args []string) {
		names, descs, units := surfom.OutputOptions()
		for i, n := range names {
			cmd.Printf("%-18s %-10s %s\n", n, units[i], descs[i])
		}
	},
	DisableAutoGenTag: true,
}

// checkpointCmd is a command that prints the contents of a checkpoint.
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint file",
	Short: "Print a checkpoint.",
	Long: `checkpoint prints the residue pools saved in a checkpoint file. The
ResidueTypes configuration must match the one used to create the checkpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadRegistry(Cfg.GetString("ResidueTypes"))
		if err != nil {
			return err
		}
		m, err := surfom.NewModel(r, nil)
		if err != nil {
			return err
		}
		f, err := openInput(context.TODO(), os.ExpandEnv(args[0]))
		if err != nil {
			return err
		}
		defer f.Close()
		if err := surfom.Load(f)(m); err != nil {
			return err
		}
		cmd.Printf("day %d\n", m.Day())
		for _, p := range m.Report() {
			cmd.Println(p)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// printTypes prints the residue types in r.
func printTypes(cmd *cobra.Command, r *surfom.Registry) error {
	names := r.Names()
	sort.Strings(names)
	cmd.Printf("%-12s %6s %10s %8s %s\n", "name", "fracC", "area", "rate", "FrPoolC")
	for _, n := range names {
		t, err := r.Resolve(n)
		if err != nil {
			return err
		}
		cmd.Printf("%-12s %6.3g %10.4g %8.3g %v\n", t.Name, t.FractionC, t.SpecificArea, t.PotDecompRate, t.FrPoolC)
	}
	return nil
}
