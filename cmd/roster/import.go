package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"roster/spool"
)

func newImportCmd() *cobra.Command {
	var (
		errorDir          string
		deleteAfterImport bool
		skipSeen          bool
		timeout           time.Duration
	)
	cmd := &cobra.Command{
		Use:   "import [glob...]",
		Short: "Import spreadsheet files matched by globs (** supported)",
		Long: `Import ingests every file matched by the given globs, or by spool.globs
from the config file when none are given. Malformed and empty files are
moved to --error-dir when set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if len(args) > 0 {
				cfg.Spool.Globs = args
			}
			if flags.Changed("error-dir") {
				cfg.Spool.ErrorDir = errorDir
			}
			if flags.Changed("delete-after-import") {
				cfg.Spool.DeleteAfterImport = &deleteAfterImport
			}
			if flags.Changed("skip-seen") {
				cfg.Spool.SkipSeen = &skipSeen
			}
			if flags.Changed("timeout") {
				cfg.Spool.Timeout = timeout
			}
			if len(cfg.Spool.Globs) == 0 {
				return fmt.Errorf("missing inputs (pass globs or set spool.globs in the config file)")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := openAppWith(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			runner, err := spool.NewRunner(spool.Config{
				Globs:             cfg.Spool.Globs,
				ErrorDir:          cfg.Spool.ErrorDir,
				DeleteAfterImport: cfg.Spool.DeleteAfterImportOrDefault(),
				SkipSeen:          cfg.Spool.SkipSeenOrDefault(),
				MaxBytes:          cfg.Server.MaxUploadBytes,
				Timeout:           cfg.Spool.Timeout,
			}, a.ingester, a.uploads, a.log)
			if err != nil {
				return err
			}
			stats, err := runner.RunOnce(cmd.Context())
			if perr := printJSON(cmd, stats); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&errorDir, "error-dir", "", "Directory receiving malformed and empty files.")
	cmd.Flags().BoolVar(&deleteAfterImport, "delete-after-import", false, "Delete files once ingested.")
	cmd.Flags().BoolVar(&skipSeen, "skip-seen", true, "Skip files whose path and content were already ingested.")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall timeout for the run (e.g. 30s, 2m).")
	return cmd
}
