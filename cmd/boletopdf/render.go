package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newRenderCmd(a *app) *cobra.Command {
	var out string
	var index int
	cmd := &cobra.Command{
		Use:   "render <slips.yaml>",
		Short: "Render one slip of a slip file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slips, err := loadSlips(args[0])
			if err != nil {
				return err
			}
			if index < 1 || index > len(slips) {
				return fmt.Errorf("--index %d out of range 1..%d", index, len(slips))
			}
			e, opts, err := a.engine(nil)
			if err != nil {
				return err
			}
			v := e.Viewer(slips[index-1], opts...)
			if out == "-" {
				r, err := v.Reader(cmd.Context())
				if err != nil {
					return err
				}
				_, err = io.Copy(cmd.OutOrStdout(), r)
				return err
			}
			if err := v.WriteFile(cmd.Context(), out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "boleto.pdf", `output file, "-" for stdout`)
	cmd.Flags().IntVar(&index, "index", 1, "1-based position of the slip in the file")
	return cmd
}
