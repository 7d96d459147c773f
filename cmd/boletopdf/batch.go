package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	var mergeTo, reportTo string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "batch <slips.yaml>",
		Short: "Render every slip of a slip file, one PDF each or merged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slips, err := loadSlips(args[0])
			if err != nil {
				return err
			}

			var onDone func(int)
			if !quiet {
				bar := progressbar.NewOptions(len(slips),
					progressbar.OptionSetDescription("Rendering slips"),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
					progressbar.OptionSetTheme(progressbar.Theme{
						Saucer:        "=",
						SaucerHead:    ">",
						SaucerPadding: " ",
						BarStart:      "[",
						BarEnd:        "]",
					}),
				)
				onDone = func(int) { _ = bar.Add(1) }
			}
			e, opts, err := a.engine(onDone)
			if err != nil {
				return err
			}

			var outputs []string
			if mergeTo != "" {
				if err := e.GroupInOnePDF(cmd.Context(), slips, mergeTo, opts...); err != nil {
					return err
				}
				outputs = make([]string, len(slips))
				for i := range outputs {
					outputs[i] = mergeTo
				}
			} else {
				outputs, err = e.OnePerPDF(cmd.Context(), slips,
					a.v.GetString("output.dir"),
					a.v.GetString("output.prefix"),
					a.v.GetString("output.suffix"),
					opts...)
				if err != nil {
					return err
				}
			}

			if reportTo != "" {
				if err := writeReport(reportTo, slips, outputs); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d slips rendered\n", len(slips))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("dir", ".", "directory for one-per-file output")
	flags.String("prefix", "boleto-", "file name prefix for one-per-file output")
	flags.String("suffix", "", "file name suffix for one-per-file output")
	_ = a.v.BindPFlag("output.dir", flags.Lookup("dir"))
	_ = a.v.BindPFlag("output.prefix", flags.Lookup("prefix"))
	_ = a.v.BindPFlag("output.suffix", flags.Lookup("suffix"))
	flags.StringVar(&mergeTo, "merge", "", "write all slips into this single PDF")
	flags.StringVar(&reportTo, "report", "", "also write an XLSX summary of the batch")
	flags.BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}
