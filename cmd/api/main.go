package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/renolink/renolink-backend/internal/config"
	"github.com/renolink/renolink-backend/internal/handler"
	"github.com/renolink/renolink-backend/internal/logging"
	"github.com/renolink/renolink-backend/internal/middleware"
	"github.com/renolink/renolink-backend/internal/notify"
	"github.com/renolink/renolink-backend/internal/repository"
	"github.com/renolink/renolink-backend/internal/retry"
	"github.com/renolink/renolink-backend/internal/service/finance"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("renolink-api", cfg.LogLevel, cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var mailer notify.Mailer
	if cfg.SendGridAPIKey != "" {
		mailer = notify.NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailFromName, cfg.EmailFrom)
	} else {
		slog.Warn("no sendgrid api key configured, email notifications disabled")
	}

	notifier := notify.NewNotifier(repository.NewMessageRepository(db), mailer, cfg.AppBaseURL)

	retryCfg := retry.Config{
		MaxAttempts:    cfg.RetryMaxAttempts,
		AttemptTimeout: time.Duration(cfg.RetryAttemptTimeoutS) * time.Second,
		BaseDelay:      time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
	}

	userRepo := repository.NewUserRepository(db)
	financeSvc := finance.NewService(
		repository.NewTransactionRepository(db),
		repository.NewLedgerRepository(db),
		repository.NewProjectRepository(db),
		repository.NewProjectProfessionalRepository(db),
		userRepo,
		notifier,
		db,
		cfg.Currency,
		retryCfg,
	)

	authHandler := handler.NewAuthHandler(userRepo, cfg.JWTSecret, time.Duration(cfg.JWTExpiryH)*time.Hour)
	financeHandler := handler.NewFinanceHandler(financeSvc)
	healthHandler := handler.NewHealthHandler(db)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	authed := middleware.Auth(cfg.JWTSecret)
	mux.Handle("POST /api/v1/projects/{projectID}/award", authed(http.HandlerFunc(financeHandler.AwardProject)))
	mux.Handle("POST /api/v1/projects/{projectID}/transactions", authed(http.HandlerFunc(financeHandler.CreateTransaction)))
	mux.Handle("POST /api/v1/projects/{projectID}/deposit-requests", authed(http.HandlerFunc(financeHandler.CreateDepositRequest)))
	mux.Handle("POST /api/v1/professional-links/{linkID}/advance-requests", authed(http.HandlerFunc(financeHandler.CreateAdvanceRequest)))
	mux.Handle("POST /api/v1/transactions/{txID}/confirm-deposit", authed(http.HandlerFunc(financeHandler.ConfirmDeposit)))
	mux.Handle("POST /api/v1/transactions/{txID}/approve", authed(http.HandlerFunc(financeHandler.ApproveAdvance)))
	mux.Handle("POST /api/v1/transactions/{txID}/reject", authed(http.HandlerFunc(financeHandler.RejectAdvance)))
	mux.Handle("POST /api/v1/transactions/{txID}/release", authed(http.HandlerFunc(financeHandler.Release)))
	mux.Handle("GET /api/v1/projects/{projectID}/transactions", authed(http.HandlerFunc(financeHandler.ListTransactions)))
	mux.Handle("GET /api/v1/projects/{projectID}/financial-summary", authed(http.HandlerFunc(financeHandler.FinancialSummary)))
	mux.Handle("GET /api/v1/projects/{projectID}/escrow-statement", authed(http.HandlerFunc(financeHandler.EscrowStatement)))

	root := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
