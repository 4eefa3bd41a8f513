package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MohamedNusaif/Loan-Management/internal/credential"
	"github.com/MohamedNusaif/Loan-Management/internal/outbox"
	"github.com/MohamedNusaif/Loan-Management/internal/user"
	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations or create Mongo indexes for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, done, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", e.cfg.Store)
			return nil
		},
	}
}

func newOutboxCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drive the credential email outbox",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Retry every pending credential email once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, done, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			relay := outbox.NewRelay(outbox.Config{
				MaxAttempts: e.cfg.Outbox.MaxAttempts,
				BatchSize:   e.cfg.Outbox.BatchSize,
			}, s.Outbox, s.Users, e.notifier(), credential.BcryptHasher{}, e.logger)
			res, err := relay.Drain(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent=%d retried=%d failed=%d\n", res.Sent, res.Retried, res.Failed)
			return nil
		},
	})
	return cmd
}

func newAgentCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agent accounts",
	}

	var in user.RegisterInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an agent and email the generated credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, done, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			in.UserType = string(entity.RoleAgent)
			svc := user.NewUserService(s.Users, s.Outbox, e.notifier(), credential.BcryptHasher{}, e.logger)
			id, err := svc.Register(cmd.Context(), in)
			var verr *user.ValidationError
			switch {
			case errors.As(err, &verr):
				for field, msg := range verr.Fields {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msg)
				}
				return errors.New("invalid agent details")
			case errors.Is(err, user.ErrNotifyFailed):
				fmt.Fprintf(cmd.OutOrStdout(), "agent %s created; credential email queued for retry\n", id)
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "agent %s created; credentials sent to %s\n", id, in.Email)
			return nil
		},
	}
	f := create.Flags()
	f.StringVar(&in.FirstName, "first", "", "first name")
	f.StringVar(&in.LastName, "last", "", "last name")
	f.StringVar(&in.Email, "email", "", "email address the credential is sent to")
	f.StringVar(&in.Phone, "phone", "", "phone number")
	f.StringVar(&in.Address, "address", "", "postal address")
	f.StringVar(&in.NICNumber, "nic", "", "national identity card number")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}
