package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roboshop-devops-v1/cart/internal/cache"
	"github.com/roboshop-devops-v1/cart/internal/catalogue"
	"github.com/roboshop-devops-v1/cart/internal/config"
	carthttp "github.com/roboshop-devops-v1/cart/internal/http"
	"github.com/roboshop-devops-v1/cart/internal/metrics"
	"github.com/roboshop-devops-v1/cart/internal/poller"
	"github.com/roboshop-devops-v1/cart/internal/repository"
	s "github.com/roboshop-devops-v1/cart/internal/service"
	"github.com/roboshop-devops-v1/cart/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr := logger.New(logger.Options{
		Service: "cart",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := cache.NewRedisClient(cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	// A cache outage is not fatal: carts read as empty and /health reports it.
	redisCache := cache.NewRedisCache(redisClient)
	if redisCache.IsConnected(ctx) {
		logr.Info("redis ping succeeded", "addr", cfg.RedisAddr)
	} else {
		logr.Warn("redis not reachable at startup", "addr", cfg.RedisAddr)
	}

	collector := metrics.NewCollector("cart")
	repo := repository.NewCacheRepository(redisCache, logr.With("component", "repository"))
	products := catalogue.NewClient(cfg.CatalogueURL, cfg.CatalogueTimeout, logr.With("component", "catalogue"))
	service := s.NewCartService(repo, products, redisCache, collector, logr.With("component", "service"), cfg.CartTTL)

	handler := carthttp.NewCartHandler(service, logr.With("component", "http"))
	router := carthttp.NewRouter(handler, collector, logr, cfg.RequestTimeout)

	if len(cfg.KafkaBrokers) > 0 {
		reader := poller.NewKafkaReader(cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...)
		checkoutPoller := poller.NewPoller(repo, reader, logr.With("component", "poller"))
		defer checkoutPoller.Close()
		go checkoutPoller.Run(ctx)
		logr.Info("checkout consumer started", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("cart service listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down cart service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", "error", err)
	}

	logr.Info("cart service stopped")
}
