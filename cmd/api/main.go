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

	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/config"
	"github.com/MohamedNusaif/Loan-Management/internal/credential"
	"github.com/MohamedNusaif/Loan-Management/internal/dashboard"
	"github.com/MohamedNusaif/Loan-Management/internal/document"
	"github.com/MohamedNusaif/Loan-Management/internal/loan"
	"github.com/MohamedNusaif/Loan-Management/internal/notify"
	"github.com/MohamedNusaif/Loan-Management/internal/outbox"
	"github.com/MohamedNusaif/Loan-Management/internal/router"
	"github.com/MohamedNusaif/Loan-Management/internal/session"
	"github.com/MohamedNusaif/Loan-Management/internal/store"
	"github.com/MohamedNusaif/Loan-Management/internal/user"
	"github.com/MohamedNusaif/Loan-Management/pkg/utilities"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.InitLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting loan-management api", "env", cfg.Env, "store", cfg.Store)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil {
		sugar.Fatalf("api: %v", err)
	}
	sugar.Info("goodbye")
}

func run(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) error {
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	stores, err := store.Open(openCtx, cfg, sugar)
	cancel()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			sugar.Warnw("store close failed", "err", err)
		}
	}()

	sessions, err := session.NewManager(session.Config{
		Secret: cfg.Session.Secret,
		TTL:    cfg.Session.TTL,
		Issuer: cfg.Session.Issuer,
		Secure: cfg.Session.Secure,
	})
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		User:     cfg.Mail.User,
		Password: cfg.Mail.Password,
		FromName: cfg.Mail.FromName,
		BaseURL:  cfg.BaseURL,
	}, sugar)
	if !dispatcher.Configured() {
		sugar.Warn("EMAIL_USER/EMAIL_PASSWORD not set; credential emails will fail until configured")
	}
	if cfg.Mail.NotifyAPIKey == "" {
		sugar.Warn("NOTIFY_API_KEY not set; POST /api/send-email accepts unauthenticated requests")
	}
	// registration goes through the remote endpoint when one is configured
	var notifier notify.Notifier = dispatcher
	if cfg.Mail.NotifyURL != "" {
		notifier = notify.NewClient(cfg.Mail.NotifyURL, cfg.Mail.NotifyAPIKey, nil)
		sugar.Infow("credential notifications via endpoint", "url", cfg.Mail.NotifyURL)
	}

	hasher := credential.BcryptHasher{}
	userSvc := user.NewUserService(stores.Users, stores.Outbox, notifier, hasher, sugar)
	loanSvc := loan.NewService(stores.Loans, sugar)

	docs, err := document.NewService(ctx, document.Config{
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	})
	if err != nil {
		return fmt.Errorf("document storage: %w", err)
	}

	relay := outbox.NewRelay(outbox.Config{
		Schedule:    cfg.Outbox.Schedule,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		BatchSize:   cfg.Outbox.BatchSize,
	}, stores.Outbox, stores.Users, notifier, hasher, sugar)
	if err := relay.Start(); err != nil {
		return err
	}
	defer relay.Stop()

	handler := router.RegisterRoutes(router.Deps{
		Logger:      sugar,
		CORSOrigins: cfg.CORSOrigins,
		Ping:        stores.Ping,
		Sessions:    sessions,
		Users:       user.NewHandler(userSvc, sessions, sugar),
		Session:     session.NewHandler(sessions, sugar),
		Notify:      notify.NewHandler(dispatcher, cfg.Mail.NotifyAPIKey, sugar),
		Loans:       loan.NewHandler(loanSvc, sugar),
		Dashboard:   dashboard.NewHandler(loanSvc, userSvc, sugar),
		Documents:   document.NewHandler(docs, sugar),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	sugar.Info("shutting down")

	// give a short grace period for in-flight requests
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	return nil
}
