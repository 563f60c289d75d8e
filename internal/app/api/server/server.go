package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"crowdfund/internal/app/api/config"
	"crowdfund/internal/app/api/router"
	"crowdfund/internal/chain"
	"crowdfund/internal/db"
	"crowdfund/internal/domain/campaign"
	"crowdfund/internal/kafka"
	"crowdfund/internal/messaging/action"
	"crowdfund/internal/profile"
	redispkg "crowdfund/internal/redis"
	"crowdfund/internal/wallet"
)

// Server wires infrastructure dependencies for the API service.
type Server struct {
	cfg        config.Config
	log        zerolog.Logger
	httpServer *http.Server
	store      *db.Store
	redis      *redispkg.Client
	producer   *kafka.Producer
}

// New constructs the server and underlying dependencies.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	programID, err := cfg.Program()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	provider, err := wallet.LoadKeypairProvider(cfg.Wallet.Path(), cfg.Wallet.Profile())
	if err != nil {
		return nil, err
	}

	store, err := db.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	redisClient, err := redispkg.New(cfg.RedisAddr, programID.String(), cfg.SnapshotTTL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		redisClient.Close()
		store.Close()
		return nil, fmt.Errorf("kafka: %w", err)
	}

	rpcClient := chain.New(endpoint)
	repo := campaign.NewRepository(rpcClient, programID, redisClient, log)
	svc := campaign.NewService(campaign.Dependencies{
		Client:     rpcClient,
		Repository: repo,
		Policy:     policy,
		Events:     action.NewPublisher(producer),
		Logger:     log,
	})
	ginRouter := router.New(router.Dependencies{
		Repository: repo,
		Actions:    svc,
		Sessions:   wallet.NewRegistry(provider),
		Profiles:   profile.NewClient(cfg.ProfileEndpoint, nil),
		Journal:    store,
		Logger:     log,
	})

	log.Info().
		Str("rpc", endpoint).
		Str("program", programID.String()).
		Uint64("min_donation", policy.MinDonation).
		Uint64("min_withdrawal", policy.MinWithdrawal).
		Msg("api configured")

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: ginRouter, ReadHeaderTimeout: 10 * time.Second}
	return &Server{
		cfg:        cfg,
		log:        log,
		httpServer: httpSrv,
		store:      store,
		redis:      redisClient,
		producer:   producer,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is canceled or fatal error occurs.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases infrastructure resources.
func (s *Server) Close() {
	_ = s.httpServer.Close()
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close kafka producer")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}
