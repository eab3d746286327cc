package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"roster/ingest"
	"roster/record"
	"roster/sheet"
	"roster/store"
)

func newTemplateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the upload template workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, func(w io.Writer) error {
				return ingest.WriteTemplate(w, cfg.AliasTable())
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "people_template.xlsx", "Output file, - for stdout.")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		out    string
		filter filterFlags
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export matching people to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, _, err := a.people.Search(cmd.Context(), filter.build(cmd, 0))
			if err != nil {
				return err
			}
			recs := make([]record.Record, len(entries))
			for i, e := range entries {
				recs[i] = e.Record
			}
			columns := sheet.Columns(recs, a.cfg.AliasTable().Fields()...)
			return writeOutput(cmd, out, func(w io.Writer) error {
				return sheet.WriteWorkbook(w, sheet.DefaultSheetName, columns, recs)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "people_export.xlsx", "Output file, - for stdout.")
	filter.register(cmd)
	return cmd
}

func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	cmd.PrintErrf("wrote %s\n", path)
	return nil
}

type filterFlags struct {
	query  string
	minAge float64
	maxAge float64
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "search", "s", "", "Case-insensitive text matched against the search fields.")
	cmd.Flags().Float64Var(&f.minAge, "min-age", 0, "Lowest age to include.")
	cmd.Flags().Float64Var(&f.maxAge, "max-age", 0, "Highest age to include.")
}

func (f *filterFlags) build(cmd *cobra.Command, limit int) store.Filter {
	out := store.Filter{Query: f.query, Limit: limit}
	if cmd.Flags().Changed("min-age") {
		v := f.minAge
		out.MinAge = &v
	}
	if cmd.Flags().Changed("max-age") {
		v := f.maxAge
		out.MaxAge = &v
	}
	return out
}
