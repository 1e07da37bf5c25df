package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/x402-gateway/internal/audit"
	"github.com/teresa-solution/x402-gateway/internal/config"
	"github.com/teresa-solution/x402-gateway/internal/crypto"
	"github.com/teresa-solution/x402-gateway/internal/facilitator"
	"github.com/teresa-solution/x402-gateway/internal/httpapi"
	"github.com/teresa-solution/x402-gateway/internal/monitoring"
	"github.com/teresa-solution/x402-gateway/internal/pipeline"
	"github.com/teresa-solution/x402-gateway/internal/ratelimit"
	"github.com/teresa-solution/x402-gateway/internal/secretstore"
	"github.com/teresa-solution/x402-gateway/internal/store"
)

const shutdownGrace = 15 * time.Second

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()
	monitoring.InitMetrics()

	ctx := context.Background()

	var redisClient store.RedisClient
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	db, err := store.Open(ctx, cfg.DatabaseURL, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("proxy: failed to open store")
	}
	defer db.Close()

	encryptionKey, err := cfg.EncryptionKey()
	if err != nil {
		log.Fatal().Err(err).Msg("proxy: invalid encryption key")
	}
	sealer, err := crypto.NewSealer(encryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("proxy: failed to build sealer")
	}

	auditWriter := audit.New(db)
	facilitatorClient := facilitator.New(cfg.FacilitatorBaseURL)

	pipe := pipeline.New(pipeline.Dependencies{
		Limiter:        ratelimit.New(),
		Secrets:        secretstore.New(sealer),
		Facilitator:    facilitatorClient,
		LookupTenant:   db.GetTenantBySlug,
		LookupEndpoint: db.GetEndpointBySlug,
		LookupSecret: func(tenantID uuid.UUID, name string) (*secretstore.EncryptedSecret, bool) {
			enc, err := db.GetSecretByName(ctx, tenantID, name)
			if err != nil || enc == nil {
				return nil, false
			}
			return enc, true
		},
		Audit:          auditWriter,
		UpstreamClient: &http.Client{Timeout: 30 * time.Second},
		Config: pipeline.Config{
			AppBaseURL:   cfg.AppBaseURL,
			Assets:       cfg.Assets(),
			TestnetForce: cfg.TestnetForce,
		},
	})

	router := httpapi.NewRouter(pipe)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	diagnosticsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: httpapi.NewDiagnosticsMux(),
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("proxy: listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("proxy: server error")
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("proxy: health/metrics listening")
		if err := diagnosticsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("proxy: health/metrics server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("proxy: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("proxy: graceful shutdown failed")
	}
	if err := diagnosticsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("proxy: health/metrics graceful shutdown failed")
	}
	log.Info().Msg("proxy: exited")
}
