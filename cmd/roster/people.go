package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"roster/record"
	"roster/store"
)

func newListCmd() *cobra.Command {
	var (
		filter filterFlags
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored people, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			items, total, err := a.people.Search(cmd.Context(), filter.build(cmd, limit))
			if err != nil {
				return err
			}
			return printJSON(cmd, struct {
				People []store.Entry `json:"people"`
				Total  int64         `json:"total"`
			}{items, total})
		},
	}
	filter.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of people to print, 0 for all.")
	return cmd
}

func newAddCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "add [json]",
		Short: "Add one person from a JSON document",
		Long: `Add stores a JSON object as a person. Nested values are flattened into
dotted keys. The document is read from the argument, --file, or stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readRecord(cmd, args, file)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.people.Create(cmd.Context(), r)
			if err != nil {
				return err
			}
			return printJSON(cmd, e)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the JSON document from this file.")
	return cmd
}

func newEditCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "edit <id> [json]",
		Short: "Replace the document of one person",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			r, err := readRecord(cmd, args[1:], file)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.people.Update(cmd.Context(), id, r)
			if err != nil {
				return err
			}
			return printJSON(cmd, e)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the JSON document from this file.")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete people by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(ids) == 1 {
				if err := a.people.Delete(cmd.Context(), ids[0]); err != nil {
					return err
				}
				return printJSON(cmd, map[string]int64{"deleted": 1})
			}
			n, err := a.people.DeleteMany(cmd.Context(), ids)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int64{"deleted": n})
		},
	}
}

func newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored person",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.people.Clear(cmd.Context())
			if err != nil {
				return err
			}
			a.log.WithField("deleted", n).Warn("people cleared")
			return printJSON(cmd, map[string]int64{"deleted": n})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting every person.")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent uploads and imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ups, err := a.uploads.RecentUploads(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, ups)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of uploads to show.")
	return cmd
}

func readRecord(cmd *cobra.Command, args []string, file string) (record.Record, error) {
	var src io.Reader
	switch {
	case len(args) > 0 && file != "":
		return record.Record{}, fmt.Errorf("pass the document as an argument or with --file, not both")
	case len(args) > 0:
		src = strings.NewReader(args[0])
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return record.Record{}, err
		}
		src = bytes.NewReader(b)
	default:
		src = cmd.InOrStdin()
	}
	r, err := record.Decode(src, record.FlattenOptions{})
	if err != nil {
		return record.Record{}, err
	}
	return r, nil
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}
