package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ventia/crm-ingest/cmd/mainconfig"
	"github.com/ventia/crm-ingest/internal/api/router"
	"github.com/ventia/crm-ingest/internal/chatprofile"
	appconfig "github.com/ventia/crm-ingest/internal/config"
	"github.com/ventia/crm-ingest/internal/ingest"
	"github.com/ventia/crm-ingest/internal/leads"
	"github.com/ventia/crm-ingest/internal/media"
	"github.com/ventia/crm-ingest/internal/messaging"
	"github.com/ventia/crm-ingest/internal/notify"
	"github.com/ventia/crm-ingest/internal/observability/metrics"
	"github.com/ventia/crm-ingest/internal/readstate"
	"github.com/ventia/crm-ingest/internal/tenancy"
	"github.com/ventia/crm-ingest/internal/webhook"
	"github.com/ventia/crm-ingest/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting crm-ingest API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// LocalStack needs path-style addressing.
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	sesClient := sesv2.NewFromConfig(awsCfg)

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		cache = redis.NewClient(opts)
		if err := cache.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, dedup cache disabled", "error", err)
			cache = nil
		}
	}

	messageStore := messaging.NewStore(pool)
	dedup := messaging.NewDeduplicator(messageStore, cache, cfg.DedupCacheTTL, logger)
	leadRepo := leads.NewPostgresRepository(pool)
	catalog := leads.NewPostgresCatalog(pool)
	relocator := media.NewRelocator(media.RelocatorConfig{
		S3Client:      s3Client,
		Bucket:        cfg.MediaBucket,
		PublicBaseURL: cfg.MediaPublicBaseURL,
		Logger:        logger,
	})
	profile := chatprofile.New(chatprofile.Config{
		BaseURL:  cfg.ChatAPIBaseURL,
		ClientID: cfg.ChatAPIClientID,
		Token:    cfg.ChatAPIToken,
		Logger:   logger,
	})
	policy := readstate.NewPolicy(pool, messageStore, logger)

	var emailSender notify.EmailSender
	if ses := notify.NewSESSender(sesClient, notify.SESConfig{
		FromEmail: cfg.NotifyFromEmail,
		FromName:  cfg.NotifyFromName,
	}, logger); ses != nil {
		emailSender = ses
	}
	notifier := notify.NewService(pool, emailSender, logger)

	resolver := ingest.NewResolver(ingest.ResolverConfig{
		Leads:    leadRepo,
		Catalog:  catalog,
		Messages: messageStore,
		Media:    relocator,
		Profile:  profile,
		Policy:   policy,
		Notify:   notifier,
		Logger:   logger,
	})
	tenantResolver := tenancy.NewResolver(tenancy.ResolverConfig{
		TenantsJSON:       cfg.TenantsJSON,
		DefaultEmpresaID:  cfg.DefaultEmpresaID,
		DefaultPipelineID: cfg.DefaultPipelineID,
		DefaultEtapaID:    cfg.DefaultEtapaID,
		Companies:         tenancy.NewPgxCompanyStore(pool),
		Logger:            logger,
	})

	ingestMetrics := metrics.NewIngestMetrics(nil)
	verifier := webhook.NewVerifier(cfg.WebhookSecret, cfg.ProductionPhone, logger)
	webhookHandler := webhook.NewHandler(webhook.HandlerConfig{
		Verifier: verifier,
		Dedup:    dedup,
		Tenants:  tenantResolver,
		Resolver: resolver,
		Metrics:  ingestMetrics,
		Logger:   logger,
	})

	r := router.New(&router.Config{
		Logger:         logger,
		WebhookHandler: webhookHandler,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
