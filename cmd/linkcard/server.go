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

	"github.com/antonminaichev/linkcard/internal/logger"
	"github.com/antonminaichev/linkcard/internal/notify"
	"github.com/antonminaichev/linkcard/internal/order"
	"github.com/antonminaichev/linkcard/internal/router"
	"github.com/antonminaichev/linkcard/internal/session"
	"github.com/antonminaichev/linkcard/internal/storage"
	postgres "github.com/antonminaichev/linkcard/internal/storage/postgres"
	redisstore "github.com/antonminaichev/linkcard/internal/storage/redis"
	"github.com/antonminaichev/linkcard/internal/storage/sqlite"
	"github.com/antonminaichev/linkcard/internal/verification"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func openOrderStore(cfg *Config) (storage.Storage, error) {
	if cfg.DatabaseConnection != "" {
		return postgres.NewPostgresStorage(cfg.DatabaseConnection)
	}
	logger.Log.Warn("DATABASE_URI not set, using sqlite", zap.String("path", cfg.SQLitePath))
	return sqlite.Open(cfg.SQLitePath)
}

func run() error {
	cfg, err := NewConfig()
	if err != nil {
		return err
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	defer logger.Log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := openOrderStore(cfg)
	if err != nil {
		return err
	}
	if err := store.Ping(ctx); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Log.Warn("failed to close storage", zap.Error(err))
		}
	}()
	health := []router.Pinger{store}

	var (
		verificationRepo verification.Repository
		revocations      session.RevocationStore
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		rs := redisstore.NewStore(client, redisstore.DefaultRetention)
		if err := rs.Ping(ctx); err != nil {
			return err
		}
		verificationRepo, revocations = rs, rs
		health = append(health, rs)
	} else {
		logger.Log.Warn("REDIS_ADDR not set, verification state is kept in memory")
		verificationRepo = verification.NewMemoryRepository()
	}

	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	if cfg.AMQPURL != "" {
		conn, err := notify.Dial(cfg.AMQPURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		dispatcher = notify.NewAMQPDispatcher(conn)
	} else {
		logger.Log.Warn("AMQP_URL not set, notifications are only logged")
	}

	sessionSvc, err := session.NewService(session.Config{
		AdminPIN:     cfg.AdminPIN,
		ModeratorPIN: cfg.ModeratorPIN,
		Secret:       []byte(cfg.SessionSecret),
		TTL:          cfg.SessionTTL,
	}, revocations)
	if err != nil {
		return err
	}

	verificationSvc := verification.NewService(verificationRepo, dispatcher, verification.Config{
		TTL:           cfg.OTPTTL,
		MaxAttempts:   cfg.OTPMaxAttempts,
		CodeLength:    cfg.OTPCodeLength,
		BypassEnabled: cfg.OTPBypassEnabled,
		ExposeCode:    cfg.OTPExposeCode,
	})

	opts := []order.Option{}
	if cfg.StrictTransitions {
		opts = append(opts, order.WithPolicy(order.ForwardOnly))
	}
	if cfg.RequireVerified {
		opts = append(opts, order.WithVerifiedMobiles(verificationSvc))
	}
	orderSvc := order.NewService(store, dispatcher, opts...)

	r := router.NewRouter(
		session.NewHandler(sessionSvc, cfg.CookieSecure),
		order.NewHandler(orderSvc),
		verification.NewHandler(verificationSvc),
		sessionSvc,
		health...,
	)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}
	logger.Log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		return err
	}
	logger.Log.Info("server stopped gracefully")
	return nil
}
