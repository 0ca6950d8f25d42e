// Package bootstrap opens the stores, broker and identity provider selected
// by config. Both binaries build their facade through it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/db"
	"github.com/geocoder89/tutorhub/internal/federated"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/geocoder89/tutorhub/internal/realtime"
	"github.com/geocoder89/tutorhub/internal/repo/memory"
	"github.com/geocoder89/tutorhub/internal/repo/postgres"
)

var ErrUnknownBackend = errors.New("unknown backend")

type RefreshTokenStore interface {
	Create(ctx context.Context, row auth.RefreshToken) error
	Rotate(ctx context.Context, id string, check func(auth.RefreshToken) error, next auth.RefreshToken) error
	Revoke(ctx context.Context, id string) error
}

// Platform is everything the facade runs on. Close releases it in reverse
// order of opening.
type Platform struct {
	Users         backend.ProfileStore
	Credentials   backend.CredentialStore
	Chats         backend.ChatStore
	RefreshTokens RefreshTokenStore
	Broker        realtime.Broker
	Provider      federated.Provider

	// Ready holds one ping per network dependency.
	Ready map[string]func() error

	closers []func()
}

func (p *Platform) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}

// Service builds the facade over the platform.
func (p *Platform) Service(log *slog.Logger, prom *observability.Prom) *backend.Service {
	return backend.NewService(backend.Deps{
		Users:       p.Users,
		Credentials: p.Credentials,
		Chats:       p.Chats,
		Broker:      p.Broker,
		Provider:    p.Provider,
		Prom:        prom,
		Logger:      log,
	})
}

// Open connects every backend named in cfg. prom may be nil.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger, prom *observability.Prom) (*Platform, error) {
	p := &Platform{Ready: map[string]func() error{}}

	if err := p.openStores(ctx, cfg, log, prom); err != nil {
		p.Close()
		return nil, err
	}

	if err := p.openBroker(ctx, cfg, log); err != nil {
		p.Close()
		return nil, err
	}

	if cfg.Casdoor.Enabled() {
		p.Provider = federated.NewBreaker(federated.NewCasdoor(federated.CasdoorConfig{
			Endpoint:     cfg.Casdoor.Endpoint,
			ClientID:     cfg.Casdoor.ClientID,
			ClientSecret: cfg.Casdoor.ClientSecret,
			Certificate:  cfg.Casdoor.Certificate,
			Organization: cfg.Casdoor.Organization,
			Application:  cfg.Casdoor.Application,
		}), federated.BreakerConfig{
			Timeout:          5 * time.Second,
			FailureThreshold: 3,
			Cooldown:         15 * time.Second,
			HalfOpenMaxCalls: 1,
		})
		log.Info("federated sign-in enabled", "provider", p.Provider.Name())
	}

	if err := db.EnsureSeedTeacher(ctx, p.Credentials, p.Users, cfg); err != nil {
		p.Close()
		return nil, fmt.Errorf("seed teacher: %w", err)
	}

	return p, nil
}

func (p *Platform) openStores(ctx context.Context, cfg config.Config, log *slog.Logger, prom *observability.Prom) error {
	switch cfg.Store {
	case "postgres":
		pool, err := db.NewPool(cfg.DBURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		p.closers = append(p.closers, pool.Close)

		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		p.Users = postgres.NewUsersRepo(pool, prom)
		p.Credentials = postgres.NewCredentialsRepo(pool, prom)
		p.Chats = postgres.NewChatRepo(pool, prom)
		p.RefreshTokens = postgres.NewRefreshTokensRepo(pool, prom)
		p.Ready["postgres"] = func() error {
			ctx, cancel := config.WithTimeout(1 * time.Second)
			defer cancel()
			return pool.Ping(ctx)
		}

	case "memory":
		log.Warn("using in-memory stores; data is lost on restart")
		p.Users = memory.NewUsersRepo()
		p.Credentials = memory.NewCredentialsRepo()
		p.Chats = memory.NewChatRepo()
		p.RefreshTokens = memory.NewRefreshTokensRepo()

	default:
		return fmt.Errorf("%w: store %q", ErrUnknownBackend, cfg.Store)
	}

	log.Info("stores ready", "store", cfg.Store)
	return nil
}

func (p *Platform) openBroker(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	switch cfg.Broker {
	case "redis":
		b := realtime.NewRedisBroker(realtime.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		p.closers = append(p.closers, func() { _ = b.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := b.Ping(pingCtx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		p.Broker = b
		p.Ready["redis"] = func() error {
			ctx, cancel := config.WithTimeout(1 * time.Second)
			defer cancel()
			return b.Ping(ctx)
		}

	case "nats":
		b, err := realtime.NewNatsBroker(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		p.closers = append(p.closers, func() { _ = b.Close() })

		p.Broker = b
		p.Ready["nats"] = func() error {
			ctx, cancel := config.WithTimeout(1 * time.Second)
			defer cancel()
			return b.Ping(ctx)
		}

	case "miniredis":
		b, err := realtime.NewEmbeddedRedisBroker()
		if err != nil {
			return fmt.Errorf("start embedded redis: %w", err)
		}
		p.closers = append(p.closers, func() { _ = b.Close() })
		p.Broker = b

	case "local":
		b := realtime.NewLocalBroker(log)
		p.closers = append(p.closers, func() { _ = b.Close() })
		p.Broker = b

	default:
		return fmt.Errorf("%w: broker %q", ErrUnknownBackend, cfg.Broker)
	}

	log.Info("broker ready", "broker", cfg.Broker)
	return nil
}
