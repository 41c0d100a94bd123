// Command tap-appstore-api serves the read-only status API over a run store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tap-appstore/internal/api"
	"tap-appstore/internal/api/handler"
	"tap-appstore/internal/pipeline"
	"tap-appstore/internal/store"
	"tap-appstore/pkg/router"
)

func main() {
	dbPath := flag.String("state-db", "tap-appstore.db", "path to the SQLite run store")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{ReplaceAttr: pipeline.ReplaceLevel}))

	// Init DB
	db, err := store.Open(*dbPath)
	if err != nil {
		logger.Error("open store", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := router.New(logger)
	api.RegisterRoutes(r, &handler.Handler{
		Store:    db,
		Registry: pipeline.DefaultRegistry(),
		Logger:   logger,
	})

	if err := r.Start(ctx, *addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
