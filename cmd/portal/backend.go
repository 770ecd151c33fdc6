package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cooarq/cooarq-portal/internal/app"
	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/backend/gotrue"
	"github.com/cooarq/cooarq-portal/internal/backend/memory"
	"github.com/cooarq/cooarq-portal/internal/backend/pgstore"
	"github.com/cooarq/cooarq-portal/internal/backend/postgrest"
	"github.com/cooarq/cooarq-portal/internal/platform/db"
)

// newBackend builds the backend client for the configured drivers. The
// returned cleanup releases driver resources.
func newBackend(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*backend.Client, func(), error) {
	opts := backend.DefaultOptions()
	opts.JWTSecret = cfg.SupabaseJWTSecret
	if cfg.BackendFlowType != "" {
		opts.FlowType = backend.FlowType(cfg.BackendFlowType)
	}

	if cfg.BackendDriver == "memory" {
		mem := memory.New(memory.Config{
			JWTSecret:   cfg.SupabaseJWTSecret,
			AutoConfirm: cfg.BackendAutoConfirm,
		})
		opts.JWTSecret = mem.JWTSecret()
		client := backend.NewClient(mem, mem, opts)
		mem.OnChange(client.Publish)
		if cfg.BackendSeedFile != "" {
			seeds, err := memory.LoadSeedFile(cfg.BackendSeedFile)
			if err != nil {
				return nil, nil, err
			}
			if _, err := mem.SeedUsers(seeds); err != nil {
				return nil, nil, err
			}
			logger.Info("memory backend seeded", slog.Int("users", len(seeds)))
		}
		logger.Warn("using in-memory backend; accounts are lost on restart")
		return client, func() {}, nil
	}

	authDriver := gotrue.New(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	switch cfg.RecordsDriver {
	case "postgres":
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{
			MaxConns:         cfg.PGMaxConns,
			StatementTimeout: cfg.PGStatementTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("records pool: %w", err)
		}
		return backend.NewClient(authDriver, pgstore.NewRepository(pool), opts), pool.Close, nil
	default:
		records := postgrest.New(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		return backend.NewClient(authDriver, records, opts), func() {}, nil
	}
}
