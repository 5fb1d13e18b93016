package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"julianmorley.ca/pasargad/storefront/internal/router"
	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/global"
	"julianmorley.ca/pasargad/storefront/pkg/mongo"
	"julianmorley.ca/pasargad/storefront/pkg/redis"
	"julianmorley.ca/pasargad/storefront/pkg/store"
)

func main() {
	envErr := godotenv.Load()

	env := global.GetEnvOrDefault("ENV", "development")
	log := global.NewLogger(global.GetEnvOrDefault("LOG_LEVEL", "info"), env)
	if envErr != nil {
		log.WithError(envErr).Warn("no .env file loaded, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := global.GetEnvOrDefault("PERSISTENCE", "memory")
	persister, probe, closePersistence, err := openPersistence(ctx, driver, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open persistence")
	}
	defer closePersistence()

	client := api.NewClient(global.GetAPIBaseURL(), api.WithLogger(log.WithField("component", "api")))
	registry := router.NewRegistry(client, persister, log.WithField("component", "store"))
	go registry.PruneEvery(ctx, time.Hour, 24*time.Hour)

	cfg := router.Config{
		Env:          env,
		AllowOrigins: global.GetEnvList("CORS_ORIGINS", router.DefaultAllowOrigins),
	}
	engine := router.InitEngine(cfg, log.WithField("component", "http"))
	router.InitializeRoutes(engine, router.NewHandler(log, driver, probe), registry, cfg)

	port := global.GetEnvOrDefault("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"port":        port,
		"api":         global.GetAPIBaseURL(),
		"persistence": driver,
	}).Info("storefront shell is running")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("failed to run server")
	}
}

func openPersistence(ctx context.Context, driver string, log *logrus.Logger) (store.Persister, router.Probe, func(), error) {
	switch driver {
	case "memory":
		return store.NewMemoryPersister(), nil, func() {}, nil

	case "redis":
		client, err := redis.Connect(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		probe := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("failed to close Redis client")
			}
		}
		return redis.NewPersister(client, global.GetStateTTL()), probe, closeFn, nil

	case "mongo":
		db, err := mongo.InitMongoDB(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := mongo.EnsureIndexes(ctx, db, global.GetStateTTL(), log); err != nil {
			return nil, nil, nil, err
		}
		probe := func(ctx context.Context) error { return db.Client().Ping(ctx, nil) }
		closeFn := func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.WithError(err).Warn("failed to disconnect MongoDB client")
			}
		}
		return mongo.NewPersister(db), probe, closeFn, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown PERSISTENCE %q (want memory, redis or mongo)", driver)
}
