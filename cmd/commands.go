package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/senyabanana/engagement-service/internal/auth"
	"github.com/senyabanana/engagement-service/internal/repository"
	"github.com/senyabanana/engagement-service/internal/router/config"
	"github.com/senyabanana/engagement-service/internal/services"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runDBMigration(cfg)
		},
	}
}

func threadCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "thread <requestId>",
		Short: "Show the negotiation thread of a service request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validFormat(format) {
				return fmt.Errorf("unknown format %q, use table, json or yaml", format)
			}
			return withStore(cmd.Context(), func(cfg config.Config, store repository.Store) error {
				svc := services.NewNegotiationService(store, log.New(io.Discard, "", 0))
				thread, err := svc.GetThread(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderThread(cmd.OutOrStdout(), thread, format)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (table, json, yaml)")
	return cmd
}

func providerCmd() *cobra.Command {
	provider := &cobra.Command{Use: "provider", Short: "Manage the provider directory"}
	provider.AddCommand(providerRegisterCmd())
	return provider
}

func providerRegisterCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a provider owned by an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				return errors.New("--actor is required")
			}
			return withStore(cmd.Context(), func(cfg config.Config, store repository.Store) error {
				svc := services.NewRequestService(store, newLogger())
				p, err := svc.RegisterProvider(cmd.Context(), actorID, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "provider %s registered for %s\n", p.ID, p.OwnerActorID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "owner actor id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	var roles []string
	cmd := &cobra.Command{
		Use:   "token <actorId>",
		Short: "Issue a bearer token for an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to issue tokens")
			}
			token, err := auth.IssueToken(args[0], cfg.JWTSecret, ttl, roles...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().StringArrayVar(&roles, "role", nil, "role claim (repeatable)")
	return cmd
}
