package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/smpapa/mentalmap-cli/internal/store"
	"github.com/smpapa/mentalmap-cli/pkg/geocode"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "mentalmap.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolSettings{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initGeocoder() geocode.Client {
	return geocode.NewClient(cfg.Kakao.APIKey,
		geocode.WithBaseURL(cfg.Kakao.BaseURL),
		geocode.WithRateLimit(cfg.Kakao.RateRPS),
	)
}
