package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"roster/config"
	"roster/ingest"
	"roster/store"
)

var (
	configPath string
	dbPath     string
	logLevel   string
	debug      bool
	logJSON    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "roster",
		Short:         "Spreadsheet ingestion and people directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file path.")
	root.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath, "SQLite database path (overrides database.path).")
	root.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level: trace, debug, info, warn, error.")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Shorthand for --log-level=debug.")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs.")

	root.AddCommand(
		newServeCmd(),
		newImportCmd(),
		newTemplateCmd(),
		newExportCmd(),
		newListCmd(),
		newAddCmd(),
		newEditCmd(),
		newDeleteCmd(),
		newClearCmd(),
		newHistoryCmd(),
	)
	return root
}

type app struct {
	cfg      *config.FileConfig
	log      *logrus.Logger
	db       *gorm.DB
	people   *store.People
	uploads  *store.Uploads
	ingester *ingest.Ingester
}

// loadConfig applies flags on top of file and environment settings. A flag
// only wins when it was set explicitly.
func loadConfig(cmd *cobra.Command) (*config.FileConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = dbPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("debug") && debug {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = logJSON
	}
	return cfg, nil
}

func newLogger(cfg *config.FileConfig) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

func openApp(cmd *cobra.Command, readOnly bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return openAppWith(cfg, readOnly)
}

func openAppWith(cfg *config.FileConfig, readOnly bool) (*app, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	open := store.OpenDB
	if readOnly {
		open = store.OpenQueryDB
	}
	db, err := open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	people := store.NewPeople(db, ingest.DuplicateKey, store.PeopleOptions{
		SearchFields: cfg.Search.Fields,
		AgeField:     cfg.Search.AgeField,
	})
	ing, err := ingest.New(people, cfg.AliasTable(), log)
	if err != nil {
		_ = store.Close(db)
		return nil, err
	}
	log.WithField("db", cfg.Database.Path).Debug("database opened")
	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		people:   people,
		uploads:  store.NewUploads(db),
		ingester: ing,
	}, nil
}

func (a *app) Close() error { return store.Close(a.db) }

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
