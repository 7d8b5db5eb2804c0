package main

import (
	"context"   // Redis ping and shutdown
	"errors"    // Server close detection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Graceful shutdown
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"inspection_system/internal/api"     // HTTP handlers and router
	"inspection_system/internal/config"  // Configuration
	"inspection_system/internal/db"      // Database connection
	"inspection_system/internal/gateway" // Payment gateway adapter
	"inspection_system/internal/service" // Engine services
	"inspection_system/internal/utils"   // Cache
	"inspection_system/internal/worker"  // Sweeper

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.JWTSecret == "" || cfg.PaystackSecretKey == "" {
		logrus.Fatal("JWT_SECRET and PAYSTACK_SECRET_KEY must be set")
	}

	// Connect to the database
	conn, err := db.Open(cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	// Test Redis connection
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}
	cache := utils.NewCache(redisClient, 60*time.Second)

	gw := gateway.NewPaystack(gateway.PaystackOptions{
		BaseURL:     cfg.PaystackBaseURL,
		SecretKey:   cfg.PaystackSecretKey,
		CallbackURL: cfg.PaystackCallbackURL,
		Timeout:     cfg.GatewayTimeout,
		MaxRetries:  cfg.GatewayMaxRetries,
	})

	revenue := service.NewRevenue(conn, cache, cfg.Currency)
	inspections := service.NewInspections(conn, cfg.Fees, cfg.Currency)
	payments := service.NewPayments(conn, gw, revenue, cache, cfg.WalletPaymentsEnabled)
	withdrawals := service.NewWithdrawals(conn, gw, cache)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(api.Deps{
		DB:          conn,
		Redis:       redisClient,
		JWTSecret:   cfg.JWTSecret,
		Accounts:    service.NewAccounts(conn, cfg.Currency),
		Ledger:      service.NewLedger(conn, cache, cfg.Currency),
		Inspections: inspections,
		Payments:    payments,
		Revenue:     revenue,
		Signatures:  service.NewSignatures(conn),
		Withdrawals: withdrawals,
		Webhooks:    service.NewWebhooks(gw, payments, withdrawals),
	})
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go worker.NewSweeper(inspections, worker.Options{
		Interval:      cfg.SweepInterval,
		PaymentExpiry: cfg.PaymentExpiry,
		ArchiveAfter:  cfg.ArchiveAfter,
	}).Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithField("error", err.Error()).Error("Graceful shutdown failed")
	}
	_ = redisClient.Close()
}
