// Command tap-appstore extracts App Store Connect sales and finance reports
// and writes them to stdout as Singer messages.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tap-appstore/internal/appstore"
	"tap-appstore/internal/config"
	"tap-appstore/internal/model"
	"tap-appstore/internal/pipeline"
	"tap-appstore/internal/store"
)

type options struct {
	configPath string
	statePath  string
	catalog    string
	discover   bool
	stateDB    string
	exportDir  string
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to the config file (JSON or YAML)")
	flag.StringVar(&opts.statePath, "state", "", "path to a Singer state file")
	flag.StringVar(&opts.catalog, "catalog", "", "path to a Singer catalog file")
	flag.StringVar(&opts.catalog, "properties", "", "alias of -catalog")
	flag.BoolVar(&opts.discover, "discover", false, "run discovery and print the catalog")
	flag.StringVar(&opts.stateDB, "state-db", "", "path to the SQLite run store")
	flag.StringVar(&opts.exportDir, "export-dir", "", "also write records as CSV files into this directory")
	flag.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       parseLevel(opts.logLevel),
		ReplaceAttr: pipeline.ReplaceLevel,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, logger); err != nil {
		logger.Log(ctx, pipeline.LevelCritical, "tap failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	if opts.configPath == "" {
		return fmt.Errorf("%w: -config is required", config.ErrInvalid)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	start, err := cfg.StartTime()
	if err != nil {
		return err
	}
	key, err := cfg.KeyMaterial()
	if err != nil {
		return err
	}
	client, err := appstore.NewClient(appstore.Config{
		KeyID:      cfg.KeyID,
		IssuerID:   cfg.IssuerID,
		PrivateKey: key,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout(),
		UserAgent:  cfg.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	var db *store.Store
	if opts.stateDB != "" {
		db, err = store.Open(opts.stateDB)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	engine := &pipeline.Engine{
		Registry:     pipeline.DefaultRegistry(),
		Client:       client,
		Logger:       logger,
		Vendor:       string(cfg.Vendor),
		StartDate:    start,
		LookbackDays: cfg.LookbackDays,
		Retry:        cfg.Retry(),
	}

	if opts.discover {
		return discover(ctx, engine, stdout)
	}
	return syncReports(ctx, engine, opts, db, stdout, logger)
}

func discover(ctx context.Context, engine *pipeline.Engine, stdout io.Writer) error {
	catalog, err := engine.Discover(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(catalog)
}

func syncReports(ctx context.Context, engine *pipeline.Engine, opts options, db *store.Store, stdout io.Writer, logger *slog.Logger) error {
	catalog, err := loadCatalog(ctx, engine, opts.catalog)
	if err != nil {
		return err
	}
	state, err := loadState(opts.statePath, db)
	if err != nil {
		return err
	}

	sinks := []pipeline.Sink{pipeline.NewSingerWriter(stdout)}
	if db != nil {
		sinks = append(sinks, pipeline.BookmarkSink{Store: db})
	}
	if opts.exportDir != "" {
		exporter, err := pipeline.NewCSVExporter(opts.exportDir, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, exporter)
	}
	defer func() {
		if err := pipeline.CloseAll(sinks...); err != nil {
			logger.Error("close sinks", "error", err)
		}
	}()
	engine.Sink = pipeline.Tee(sinks...)

	if db == nil {
		engine.Tracker = pipeline.NewTracker("", nil, logger)
		return engine.SyncWithRetry(ctx, catalog, state)
	}

	runID, err := db.StartRun(model.RunModeSync)
	if err != nil {
		return err
	}
	engine.Tracker = pipeline.NewTracker(runID, db, logger)
	logger.Info("run started", "run_id", runID)

	syncErr := engine.SyncWithRetry(ctx, catalog, state)
	status := model.RunStatusCompleted
	if syncErr != nil {
		status = model.RunStatusFailed
		if err := db.SaveRunError(model.RunError{RunID: runID, Message: syncErr.Error()}); err != nil {
			logger.Error("save run error", "run_id", runID, "error", err)
		}
	}
	if err := db.FinishRun(runID, status, engine.Tracker.Attempts(), engine.Tracker.Records()); err != nil {
		return errors.Join(syncErr, err)
	}
	return syncErr
}

// loadCatalog reads the catalog file, or discovers one and selects every
// stream when no file is given.
func loadCatalog(ctx context.Context, engine *pipeline.Engine, path string) (*model.Catalog, error) {
	if path == "" {
		catalog, err := engine.Discover(ctx)
		if err != nil {
			return nil, err
		}
		pipeline.SelectAll(catalog)
		return catalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var catalog model.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &catalog, nil
}

// loadState prefers the state file and falls back to stored bookmarks.
func loadState(path string, db *store.Store) (*model.State, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read state: %w", err)
		}
		state := model.NewState()
		if len(strings.TrimSpace(string(data))) == 0 {
			return state, nil
		}
		if err := json.Unmarshal(data, state); err != nil {
			return nil, fmt.Errorf("parse state %s: %w", path, err)
		}
		return state, nil
	}
	if db != nil {
		return db.LoadState()
	}
	return model.NewState(), nil
}
