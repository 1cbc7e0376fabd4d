package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AanchalYadav15/acciguard/broadcast"
	"github.com/AanchalYadav15/acciguard/config"
	"github.com/AanchalYadav15/acciguard/handlers"
	"github.com/AanchalYadav15/acciguard/ingest"
	"github.com/AanchalYadav15/acciguard/logging"
	"github.com/AanchalYadav15/acciguard/metrics"
	"github.com/AanchalYadav15/acciguard/scoring"
	"github.com/AanchalYadav15/acciguard/services"
	"github.com/AanchalYadav15/acciguard/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.WithError(err).Fatal("acciguard api stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db handle: %w", err)
	}
	defer sqlDB.Close()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	clock := clockwork.NewRealClock()
	predictions := store.NewPredictionStore(db, clock)
	if err := predictions.Migrate(ctx); err != nil {
		return err
	}

	opts := []scoring.Option{scoring.WithClock(clock)}
	if cfg.Scoring.Seed != 0 {
		opts = append(opts, scoring.WithSource(rand.NewPCG(cfg.Scoring.Seed, cfg.Scoring.Seed)))
	}
	scorer, err := scoring.NewScorer(scoring.DefaultProfile(), opts...)
	if err != nil {
		return err
	}
	log.WithField("weights", scorer.Profile().Weights).Info("risk scorer ready")

	m := metrics.New(prometheus.DefaultRegisterer)

	// Live updates go through Redis when configured so every replica sees
	// every prediction; otherwise they stay in this process.
	var (
		broker broadcast.Broker
		cache  *services.CacheService
	)
	if cfg.Redis.Enabled() {
		cache, err = services.NewCacheService(cfg.Redis)
		if err != nil {
			return err
		}
		defer cache.Close()
		broker = broadcast.NewRedisBroker(cache, cfg.Redis.Channel)
		log.WithField("channel", cfg.Redis.Channel).Info("live updates via redis")
	} else {
		hub := broadcast.NewHub(broadcast.DefaultBuffer, broadcast.WithDropHook(m.EventsDropped.Inc))
		metrics.RegisterHubSubscribers(prometheus.DefaultRegisterer, hub.Len)
		broker = hub
	}

	var sinks []broadcast.Publisher
	if cfg.Kafka.Enabled() {
		kafka := broadcast.NewKafkaPublisher(broadcast.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer kafka.Close()
		sinks = append(sinks, kafka)
		log.WithField("topic", cfg.Kafka.Topic).Info("forwarding predictions to kafka")
	}
	events := broadcast.NewFanout(broker, sinks...)

	svc := services.NewPredictionService(scorer, predictions, events, m)
	if cache != nil {
		svc.UseCache(cache, cfg.Server.CacheTTL)
	}

	if cfg.MQTT.Enabled() {
		ingester := ingest.NewMQTTIngester(cfg.MQTT, svc)
		if err := ingester.Start(ctx); err != nil {
			return err
		}
		defer ingester.Stop()
	}

	authService := services.NewAuthService(cfg.JWT, clock)
	authHandler := handlers.NewAuthHandler(db, authService)
	if cfg.Auth.Enabled {
		if err := authHandler.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return err
		}
	}
	router := newRouter(cfg, sqlDB, svc, events, authService, authHandler, m)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
