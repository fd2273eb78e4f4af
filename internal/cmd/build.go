package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/swmlgen/internal/parser"
	"github.com/dgallion1/swmlgen/internal/pipeline"
	"github.com/dgallion1/swmlgen/internal/render"
	"github.com/dgallion1/swmlgen/internal/schema"
	"github.com/dgallion1/swmlgen/internal/swml"
	"github.com/spf13/cobra"
)

type buildOptions struct {
	format   string
	dialect  string
	pretty   bool
	schema   string
	noSchema bool
	output   string
	strict   bool
}

func newBuildCmd(a *app) *cobra.Command {
	var o buildOptions
	cmd := &cobra.Command{
		Use:   "build MANIFEST",
		Short: "Render a manifest into an SWML document",
		Long: `Render a manifest into an SWML document.

Content files named in the manifest resolve relative to the manifest. The
rendered document is validated against --schema; a missing schema file skips
validation with a warning.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, a, o, args[0])
		},
	}
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "output format: json or yaml (default from DEFAULT_FORMAT)")
	cmd.Flags().StringVar(&o.dialect, "dialect", string(swml.Logical), "output layout: logical or swml")
	cmd.Flags().BoolVar(&o.pretty, "pretty", false, "indent JSON output")
	cmd.Flags().StringVar(&o.schema, "schema", "", "schema file (default from SCHEMA_PATH)")
	cmd.Flags().BoolVar(&o.noSchema, "no-validate", false, "skip schema validation")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&o.strict, "strict", false, "exit non-zero when validation fails")
	return cmd
}

func runBuild(cmd *cobra.Command, a *app, o buildOptions, path string) error {
	format := a.cfg.DefaultFormat
	if o.format != "" {
		f, err := render.ParseFormat(o.format)
		if err != nil {
			return err
		}
		format = f
	}
	dialect, err := swml.ParseDialect(o.dialect)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var src schema.Source
	if !o.noSchema {
		schemaPath := o.schema
		if schemaPath == "" {
			schemaPath = a.cfg.SchemaPath
		}
		if schemaPath != "" {
			src = schema.NewFileSource(schemaPath)
		}
	}

	w := pipeline.NewWorker(schema.NewValidator(a.log), src, nil, a.log,
		parser.Options{PDFFallbackPdftotext: a.cfg.PDFFallbackPdftotext})
	out, err := w.Render(cmd.Context(), pipeline.Request{
		Manifest: data,
		BaseDir:  filepath.Dir(path),
		Format:   format,
		Dialect:  dialect,
		Indent:   o.pretty,
	}, nil)
	if err != nil {
		return err
	}

	if err := writeOutput(cmd.OutOrStdout(), o.output, out.Document); err != nil {
		return err
	}

	res := out.Validation
	a.log.Debug("build complete", "manifest", path, "bytes", len(out.Document), "validation", res.Status)
	if res.Status == schema.StatusFailed {
		fmt.Fprintln(cmd.ErrOrStderr(), "Schema validation: FAILED")
		fmt.Fprintln(cmd.ErrOrStderr(), issueTable(res.Errors))
		if o.strict {
			return &ExitError{Code: 2, Err: fmt.Errorf("%d schema violations", len(res.Errors))}
		}
	}
	return nil
}
