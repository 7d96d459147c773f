package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wudi/boletopdf/stamper"
	"github.com/wudi/boletopdf/templates"
)

type fieldInfo struct {
	Name string     `json:"name"`
	Page int        `json:"page"`
	Rect [4]float64 `json:"rect"`
}

func newFieldsCmd(a *app) *cobra.Command {
	var guarantor, asJSON bool
	cmd := &cobra.Command{
		Use:   "fields [template.pdf]",
		Short: "List the form fields of a template and where they sit",
		Long: "Without a file the built-in layout is listed; --with-guarantor picks\n" +
			"the variant with the guarantor block.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.v.GetString("template")
			if len(args) == 1 {
				path = args[0]
			}
			cfg := stamper.Config{Logger: a.logger}
			var (
				s   *stamper.Stamper
				err error
			)
			if path != "" {
				s, err = stamper.OpenFile(cmd.Context(), path, cfg)
			} else {
				variant := templates.WithoutGuarantorVariant
				if guarantor {
					variant = templates.WithGuarantorVariant
				}
				var data []byte
				if data, err = templates.Bytes(variant); err == nil {
					s, err = stamper.OpenBytes(cmd.Context(), data, cfg)
				}
			}
			if err != nil {
				return fmt.Errorf("open template: %w", err)
			}
			defer s.Close()

			fields := listFields(s)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(fields)
			}
			return printFields(cmd.OutOrStdout(), fields)
		},
	}
	cmd.Flags().BoolVar(&guarantor, "with-guarantor", false, "list the built-in variant with a guarantor block")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// listFields returns one entry per widget in name order. Pages are
// 1-based.
func listFields(s *stamper.Stamper) []fieldInfo {
	var out []fieldInfo
	for _, name := range s.Form().SortedNames() {
		for _, pos := range s.FieldPositions(name) {
			out = append(out, fieldInfo{
				Name: name,
				Page: pos.Page + 1,
				Rect: [4]float64{pos.Rect.LLX, pos.Rect.LLY, pos.Rect.URX, pos.Rect.URY},
			})
		}
	}
	return out
}

func printFields(w io.Writer, fields []fieldInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tPAGE\tLLX\tLLY\tURX\tURY")
	for _, f := range fields {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n", f.Name, f.Page, f.Rect[0], f.Rect[1], f.Rect[2], f.Rect[3])
	}
	return tw.Flush()
}
