package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbaille/attrs/internal/attribute"
	"github.com/pbaille/attrs/internal/catalog"
	"github.com/pbaille/attrs/internal/config"
	"github.com/pbaille/attrs/internal/errors"
	"github.com/pbaille/attrs/internal/extractor"
	"github.com/pbaille/attrs/internal/logger"
	"github.com/pbaille/attrs/internal/store"
)

var (
	configPath string
	dbPath     string
	logLevel   string
	logJSON    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "attrs",
		Short:         "Typed attribute store fed by questionnaires and free-text extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./attrs.toml or ~/.attrs/attrs.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(attributesCmd())
	rootCmd.AddCommand(attributeCmd())
	rootCmd.AddCommand(observeCmd())
	rootCmd.AddCommand(setCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(promoteCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		stop()
		os.Exit(1)
	}
}

// app is everything a command needs, opened once per invocation.
type app struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	store *store.Store
	svc   *attribute.Service

	seeded attribute.SeedResult
}

// openApp loads config, opens the database and seeds the canonical catalog.
func openApp(ctx context.Context) (*app, error) {
	v, err := config.New(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		v.Set("database.path", dbPath)
	}
	if logLevel != "" {
		v.Set("log.level", logLevel)
	}
	if logJSON {
		v.Set("log.json", true)
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.JSON, cfg.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "create logger")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create db dir")
	}
	s, err := store.New(cfg.Database.Path, store.Options{
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		s.Close()
		return nil, err
	}

	svc := attribute.NewService(s, cat, log)
	svc.MinTextLength = cfg.Extractor.MinTextLength
	seeded, err := svc.SeedCanonicalAttributes(ctx)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "seed canonical attributes")
	}

	return &app{cfg: cfg, log: log, store: s, svc: svc, seeded: seeded}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warnw("Closing database failed", "error", err)
	}
	a.log.Sync()
}

// newExtractor returns nil with a logged warning when no API key is set.
func (a *app) newExtractor() attribute.Extractor {
	ex, err := extractor.New(a.cfg.Extractor, a.log)
	if err != nil {
		a.log.Warnw("Extraction disabled", "error", err)
		return nil
	}
	return ex
}
