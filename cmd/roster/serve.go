package main

import (
	"github.com/spf13/cobra"

	"roster/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr           string
		maxUploadBytes int64
		origins        []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload, template and export endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Server.Addr = addr
			}
			if flags.Changed("max-upload-bytes") {
				cfg.Server.MaxUploadBytes = maxUploadBytes
			}
			if flags.Changed("allowed-origin") {
				cfg.Server.AllowedOrigins = origins
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := openAppWith(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := server.New(server.Options{
				Ingester:       a.ingester,
				People:         a.people,
				History:        a.uploads,
				Aliases:        cfg.AliasTable(),
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Log:            a.log,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address (overrides server.addr).")
	cmd.Flags().Int64Var(&maxUploadBytes, "max-upload-bytes", 10<<20, "Upload size limit in bytes.")
	cmd.Flags().StringSliceVar(&origins, "allowed-origin", nil, "CORS origin allowed to call the API. Can be repeated.")
	return cmd
}
