// loanctl is the operator tool for the loan service: schema migration,
// one-off outbox drains and agent provisioning.
//
// Usage:
//
//	loanctl migrate
//	loanctl outbox drain
//	loanctl agent create --first Ann --last Lee --email ann@bank.lk --phone 0771234567 --nic 901234567V --address Colombo
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/config"
	"github.com/MohamedNusaif/Loan-Management/internal/notify"
	"github.com/MohamedNusaif/Loan-Management/internal/store"
	"github.com/MohamedNusaif/Loan-Management/pkg/utilities"
)

// env is what every subcommand needs.
type env struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "loanctl",
		Short:         "Operator commands for the loan management service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			lg, err := utilities.InitLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			e.cfg = cfg
			e.logger = lg.Sugar()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	root.AddCommand(newMigrateCmd(e), newOutboxCmd(e), newAgentCmd(e))
	return root
}

// open connects the configured store; Open also applies migrations and indexes.
func (e *env) open(ctx context.Context) (*store.Stores, func(), error) {
	s, err := store.Open(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Close(context.Background()); err != nil {
			e.logger.Warnw("store close failed", "err", err)
		}
	}, nil
}

func (e *env) notifier() notify.Notifier {
	if e.cfg.Mail.NotifyURL != "" {
		return notify.NewClient(e.cfg.Mail.NotifyURL, e.cfg.Mail.NotifyAPIKey, nil)
	}
	return notify.NewDispatcher(notify.Config{
		Host:     e.cfg.Mail.Host,
		Port:     e.cfg.Mail.Port,
		User:     e.cfg.Mail.User,
		Password: e.cfg.Mail.Password,
		FromName: e.cfg.Mail.FromName,
		BaseURL:  e.cfg.BaseURL,
	}, e.logger)
}
