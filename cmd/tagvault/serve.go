package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pbaille/tagvault/internal/api"
	"github.com/pbaille/tagvault/internal/audit"
	"github.com/pbaille/tagvault/internal/config"
	"github.com/pbaille/tagvault/internal/fetcher"
	"github.com/pbaille/tagvault/internal/ingest"
	"github.com/pbaille/tagvault/internal/store"
	"github.com/pbaille/tagvault/internal/sweep"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the store, the sweep scheduler and the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	sink, closeSink, err := openSink(cfg, logger.Named("audit"))
	if err != nil {
		return err
	}
	defer closeSink()

	st := store.New(
		store.WithClassifier(cfg.Classifier()),
		store.WithPolicy(policy),
		store.WithSink(sink),
		store.WithLogger(logger.Named("store")),
	)
	pipeline := ingest.New(st, sink,
		ingest.WithFetcher(fetcher.New(nil)),
		ingest.WithMaxPayloadBytes(cfg.Ingest.MaxPayloadBytes),
		ingest.WithLogger(logger.Named("ingest")),
	)
	scheduler, err := sweep.New(st, cfg.SweepInterval(), sweep.WithLogger(logger.Named("sweep")))
	if err != nil {
		return err
	}
	server := api.New(pipeline, st, logger.Named("api"), cfg.Server.Addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })
	return g.Wait()
}

// openSink returns the in-memory log, teed into the SQLite journal when one
// is configured. The in-memory log stays first so Recent never hits disk.
func openSink(cfg *config.Config, logger *zap.Logger) (audit.Sink, func(), error) {
	mem := audit.NewLog()
	if cfg.Audit.DBPath == "" {
		return mem, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Audit.DBPath), 0755); err != nil {
		return nil, nil, err
	}
	j, err := audit.OpenJournal(cfg.Audit.DBPath, audit.WithJournalLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	closeJournal := func() {
		if err := j.Close(); err != nil {
			logger.Error("audit journal close failed", zap.String("path", cfg.Audit.DBPath), zap.Error(err))
		}
	}
	return audit.Multi{mem, j}, closeJournal, nil
}
