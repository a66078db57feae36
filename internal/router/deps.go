package router

import (
	"fmt"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/auth/odin"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/push/relay"
	pg "github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/storage/postgres"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/storage/redisstore"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/config"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/httpclient"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/metrics"
)

// OpenOptions abre las dependencias externas que pide cfg. Lo que no esté configurado
// queda en su modo dev (in-memory, dispatcher de log, sin verifier).
// El cleanup devuelto cierra lo abierto, también cuando hay error.
func OpenOptions(cfg *config.Config, log logger.Logger) (Options, func(), error) {
	opts := Options{Config: cfg, Logger: log}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	rec, err := metrics.New()
	if err != nil {
		return opts, cleanup, fmt.Errorf("metrics: %w", err)
	}
	opts.Metrics = rec

	if cfg.DatabaseDSN != "" {
		db, err := pg.Open(cfg.DatabaseDSN)
		if err != nil {
			return opts, cleanup, fmt.Errorf("postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		opts.DB = db
		log.Info("using postgres storage", nil)
	} else {
		log.Warn("DB_DSN not set, using in-memory storage", nil)
	}

	if cfg.Redis != nil {
		client, err := redisstore.Open(cfg.Redis)
		if err != nil {
			return opts, cleanup, err
		}
		closers = append(closers, func() { _ = client.Close() })
		opts.Redis = client
		log.Info("using redis for sent notifications", map[string]any{"addr": cfg.Redis.Addr})
	}

	if cfg.Push.RelayURL != "" {
		hc, err := httpclient.New(httpclient.Options{
			BaseURL:   cfg.Push.RelayURL,
			APIKey:    cfg.Push.RelayAPIKey,
			UserAgent: "hunde-medisin-api",
		})
		if err != nil {
			return opts, cleanup, fmt.Errorf("push relay: %w", err)
		}
		opts.Dispatcher = relay.New(hc)
	} else {
		log.Warn("PUSH_RELAY_URL not set, push messages are only logged", nil)
	}

	if cfg.Odin.BaseURL != "" {
		client, err := odin.NewClient(cfg.Odin.BaseURL, cfg.Odin.APIKey)
		if err != nil {
			return opts, cleanup, fmt.Errorf("odin: %w", err)
		}
		opts.AuthVerifier = odin.NewVerifier(client, cfg.Odin.CacheTTL)
	} else {
		log.Warn("ODIN_BASE_URL not set, accepting X-Debug-User-ID", nil)
	}

	return opts, cleanup, nil
}
