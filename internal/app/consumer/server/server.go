package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	consumerconfig "crowdfund/internal/app/consumer/config"
	"crowdfund/internal/db"
	"crowdfund/internal/domain/campaign"
	"crowdfund/internal/messaging/action"
)

// Server hosts the Kafka consumer that fills the action journal.
type Server struct {
	cfg      consumerconfig.Config
	log      zerolog.Logger
	store    *db.Store
	consumer *action.Consumer
	metrics  *http.Server
}

// New builds the consumer server and supporting dependencies.
func New(ctx context.Context, cfg consumerconfig.Config, log zerolog.Logger) (*Server, error) {
	store, err := db.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}

	recorder := campaign.NewActionRecorder(store, log)
	actionConsumer, err := action.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaTopic, recorder, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux, ReadHeaderTimeout: 10 * time.Second}

	return &Server{
		cfg:      cfg,
		log:      log,
		store:    store,
		consumer: actionConsumer,
		metrics:  metricsSrv,
	}, nil
}

// Run starts consuming action events until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if s.metrics != nil {
		go func() {
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error().Err(err).Msg("consumer metrics server stopped")
			}
		}()
		s.log.Info().Str("addr", s.cfg.MetricsAddr).Msg("consumer metrics listening")
	}
	return s.consumer.Start(ctx)
}

// Close releases resources.
func (s *Server) Close() {
	if s.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.Shutdown(shutdownCtx)
	}
	if s.consumer != nil {
		_ = s.consumer.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}
