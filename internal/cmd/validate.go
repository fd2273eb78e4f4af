package cmd

import (
	"fmt"
	"os"

	"github.com/dgallion1/swmlgen/internal/schema"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "validate DOCUMENT",
		Short: "Validate a rendered document against a JSON Schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if schemaPath == "" {
				schemaPath = a.cfg.SchemaPath
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}

			res, err := schema.NewValidator(a.log).Validate(data, schema.NewFileSource(schemaPath))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch res.Status {
			case schema.StatusSkipped:
				fmt.Fprintf(out, "Schema file %s not found. Skipping validation.\n", schemaPath)
			case schema.StatusPassed:
				fmt.Fprintln(out, "Schema validation: SUCCESS")
			case schema.StatusFailed:
				fmt.Fprintln(out, "Schema validation: FAILED")
				fmt.Fprintln(out, issueTable(res.Errors))
				return &ExitError{Code: 2, Err: fmt.Errorf("%d schema violations", len(res.Errors))}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (default from SCHEMA_PATH)")
	return cmd
}

func issueTable(issues []schema.Issue) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"#", "Path", "Message"})
	for i, is := range issues {
		t.AppendRow(table.Row{i + 1, is.Path, is.Message})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d issue(s)", len(issues))})
	return t.Render()
}
