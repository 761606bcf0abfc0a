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
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/surfom"
	"github.com/spatialmodel/surfom/met"
	"github.com/spatialmodel/surfom/science/soiln/simplesoiln"
	"github.com/spf13/cobra"
)

// Run runs a simulation as specified by c. Status messages are
// written to the standard output of cmd and to c.LogFile. The
// simulation runs until the end of the weather file or for c.NumDays
// days, whichever is first. Any of c.OutputFile, c.LogFile, and
// c.CheckpointFile that are blob storage URLs are uploaded after the
// simulation finishes.
func Run(cmd *cobra.Command, c *RunConfig) error {
	startTime := time.Now()
	ctx := context.TODO()

	var upload uploader

	logfile, err := os.Create(upload.maybeUpload(c.LogFile))
	if err != nil {
		return fmt.Errorf("surfom: problem creating log file: %v", err)
	}
	defer logfile.Close()
	mw := io.MultiWriter(cmd.OutOrStdout(), logfile)

	log := logrus.New()
	log.Out = mw
	log.Formatter = &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}
	log.SetLevel(c.LogLevel)

	types, err := loadRegistry(c.ResidueTypes)
	if err != nil {
		return err
	}

	log.WithField("file", c.MetFile).Info("reading weather")
	weather, err := readMet(ctx, c.MetFile)
	if err != nil {
		return err
	}

	soil := simplesoiln.New(len(c.SoilLayers))
	soil.Log = log
	m, err := surfom.NewModel(types, c.Params,
		surfom.WithLogger(log),
		surfom.WithSoil(c.SoilLayers, soil),
	)
	if err != nil {
		return err
	}

	o, err := surfom.NewOutputter(upload.maybeUpload(c.OutputFile), c.OutputVariables, nil)
	if err != nil {
		return err
	}
	checkpointFile := upload.maybeUpload(c.CheckpointFile)
	if upload.err != nil {
		return upload.err
	}

	if c.InitialCheckpoint != "" {
		f, err := openInput(ctx, c.InitialCheckpoint)
		if err != nil {
			return err
		}
		defer f.Close()
		m.InitFuncs = append(m.InitFuncs, surfom.Load(f))
	} else {
		m.InitFuncs = append(m.InitFuncs, surfom.InitialResidues(c.InitialResidues...))
	}
	m.InitFuncs = append(m.InitFuncs, o.CheckOutputVars())

	m.DailyFuncs = []surfom.Manipulator{
		surfom.ReadWeather(weather.Source()),
		surfom.StartOfDay(),
		surfom.LeachStep(),
		surfom.DecomposeStep(),
		surfom.ScheduledTillage(c.Tillage),
		surfom.EndOfDay(),
		o.Output(),
		surfom.Log(mw),
	}
	if c.NumDays > 0 {
		m.DailyFuncs = append(m.DailyFuncs, surfom.NumDays(c.NumDays))
	}

	m.CleanupFuncs = append(m.CleanupFuncs, o.Write())
	if checkpointFile != "" {
		m.CleanupFuncs = append(m.CleanupFuncs, saveTo(checkpointFile))
	}

	log.Info("initializing model")
	if err := m.Init(); err != nil {
		return fmt.Errorf("surfom: problem initializing model: %v", err)
	}
	log.Info("running simulation")
	if err := m.Run(); err != nil {
		return fmt.Errorf("surfom: problem running simulation: %v", err)
	}
	log.WithFields(logrus.Fields{
		"days":     m.Day(),
		"walltime": time.Since(startTime).String(),
	}).Info("simulation finished")

	logfile.Sync()
	return upload.upload(ctx)
}

// readMet reads the weather file at path, which may be a blob
// storage URL.
func readMet(ctx context.Context, path string) (*met.File, error) {
	r, err := openInput(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	f, err := met.ReadMet(r)
	if err != nil {
		return nil, fmt.Errorf("surfom: reading weather file '%s': %v", path, err)
	}
	return f, nil
}

// saveTo returns a function that saves the model state to the file at
// path.
func saveTo(path string) surfom.Manipulator {
	return func(m *surfom.Model) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("surfom: creating checkpoint file: %v", err)
		}
		if err := surfom.Save(f)(m); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}
