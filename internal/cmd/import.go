package cmd

import (
	"fmt"
	"strings"

	"github.com/dgallion1/swmlgen/internal/ordered"
	"github.com/dgallion1/swmlgen/internal/parser"
	"github.com/dgallion1/swmlgen/internal/render"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Convert a document into prompt sections",
		Long: `Convert a Markdown, HTML, text, CSV, DOCX or PDF file into prompt sections.

JSON and YAML output is a mapping with a single "sections" key, ready to paste
into a manifest's prompt block. Markdown output renders the sections back as
headings and bullet lists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := parser.ParseFile(args[0], parser.Options{PDFFallbackPdftotext: a.cfg.PDFFallbackPdftotext})
			if err != nil {
				return err
			}
			a.log.Debug("imported", "file", args[0], "sections", tree.Len(), "tokens", tree.EstimateTokens())

			var data []byte
			switch strings.ToLower(format) {
			case "markdown", "md":
				data = []byte(tree.Markdown())
			default:
				f, err := render.ParseFormat(format)
				if err != nil {
					return fmt.Errorf("unsupported import format %q", format)
				}
				data, err = render.Encode(ordered.Of("sections", tree.ToStructure()), f, render.WithIndent("  "))
				if err != nil {
					return err
				}
			}
			return writeOutput(cmd.OutOrStdout(), output, data)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: json, yaml or markdown")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
