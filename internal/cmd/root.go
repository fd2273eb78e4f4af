// Package cmd implements the swmlgen command line.
package cmd

import (
	"fmt"
	"io"

	"github.com/dgallion1/swmlgen/internal/config"
	"github.com/dgallion1/swmlgen/internal/logger"
	"github.com/spf13/cobra"
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfgFile string
	verbose bool

	cfg config.Config
	log *logger.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "swmlgen",
		Short: "Assemble, render and validate SWML documents",
		Long: `swmlgen builds SWML documents from declarative manifests.

A manifest lists application sections, AI settings and prompt content. The
build command renders it as JSON or YAML, optionally in the SWML wire layout,
and validates the result against a JSON Schema when one is available.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (optional; environment variables always apply)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	root.AddCommand(
		newBuildCmd(a),
		newValidateCmd(a),
		newImportCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	log, err := logger.New(cfg.LogMode, level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// writeOutput writes data to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	return writeFile(path, data)
}
