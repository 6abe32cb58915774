package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"exchangelink/config"
	"exchangelink/internal/api"
	"exchangelink/internal/connection"
	"exchangelink/internal/events"
	"exchangelink/internal/exchange"
	"exchangelink/internal/metrics"
	"exchangelink/internal/pool"
	"exchangelink/internal/store"
	"exchangelink/internal/vault"
	"exchangelink/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.SetService(cfg.Service.Name, cfg.Service.Version)
	log.WithFields(logger.Fields{
		"environment": config.AppEnvironment(),
	}).Info("starting exchangelink")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(ctx, logger.CloudWatchOptions{
			Region:          cfg.Metrics.CloudWatch.Region,
			Namespace:       cfg.Metrics.CloudWatch.Namespace,
			AccessKeyID:     cfg.Metrics.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.Metrics.CloudWatch.SecretAccessKey,
		})
	}
	metrics.Init()

	v, err := vault.New(cfg.Vault.Secret, cfg.Vault.Salt, cfg.Vault.Iterations)
	if err != nil {
		log.WithError(err).Error("Failed to initialise credential vault")
		os.Exit(1)
	}

	endpoints := make(map[string]exchange.Endpoint, len(cfg.Exchanges.Endpoints))
	for id, ep := range cfg.Exchanges.Endpoints {
		endpoints[id] = exchange.Endpoint{URL: ep.URL, SandboxURL: ep.SandboxURL}
	}
	registry := exchange.NewRegistry(exchange.Options{
		Transport: exchange.TransportOptions{
			UserAgent:       cfg.Exchanges.UserAgent,
			Timeout:         cfg.Exchanges.RequestTimeout,
			MaxIdleConns:    cfg.Exchanges.MaxIdleConns,
			MaxConnsPerHost: cfg.Exchanges.MaxConnsPerHost,
			IdleConnTimeout: cfg.Exchanges.IdleConnTimeout,
		},
		Endpoints: endpoints,
	})

	clientPool := pool.New(pool.Options{
		AcquireTimeout:         cfg.Pool.AcquireTimeout,
		IdleTimeout:            cfg.Pool.IdleTimeout,
		MaxConsecutiveFailures: cfg.Pool.MaxConsecutiveFailures,
		JanitorInterval:        cfg.Pool.JanitorInterval,
	}, log)

	var configs connection.ConfigurationStore
	var gormStore *store.Gorm
	switch cfg.Store.Driver {
	case "postgres":
		gormStore, err = store.OpenPostgres(cfg.Store.DSN, log)
		if err != nil {
			log.WithError(err).Error("Failed to open configuration store")
			os.Exit(1)
		}
		configs = gormStore
	default:
		log.WithComponent("main").Warn("using in-memory configuration store; connections are lost on restart")
		configs = store.NewMemory()
	}

	var publisher events.Publisher = events.Nop{}
	var kafkaPublisher *events.KafkaPublisher
	if cfg.Events.Enabled {
		kafkaPublisher, err = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		if err != nil {
			log.WithError(err).Error("Failed to create event publisher")
			os.Exit(1)
		}
		if err := kafkaPublisher.Start(ctx); err != nil {
			log.WithError(err).Error("Failed to start event publisher")
			os.Exit(1)
		}
		publisher = kafkaPublisher
	} else {
		log.WithComponent("main").Info("status events disabled")
	}

	svc := connection.NewService(connection.Deps{
		Store:    configs,
		Registry: registry,
		Vault:    v,
		Pool:     clientPool,
		Events:   publisher,
		Log:      log,
	}, connection.Options{
		RequestTimeout:  cfg.Exchanges.RequestTimeout,
		MaxErrorMessage: cfg.Sync.MaxErrorMessage,
	})

	server := api.NewServer(cfg.HTTP, cfg.Service.Version, svc, clientPool.Stats, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			log.WithComponent("main").WithError(err).Error("http server stopped")
			cancel()
		}
	}()

	log.WithFields(logger.Fields{"address": server.Address()}).Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown")
	cancel()
	wg.Wait()

	log.Info("closing connection pool")
	clientPool.Close()

	if kafkaPublisher != nil {
		log.Info("stopping event publisher")
		kafkaPublisher.Stop()
	}
	if gormStore != nil {
		if err := gormStore.Close(); err != nil {
			log.WithError(err).Warn("closing configuration store failed")
		}
	}

	log.Info("shutdown complete")
}
