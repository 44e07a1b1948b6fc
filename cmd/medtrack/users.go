// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/medtrack/medtrack/internal/auth"
	"github.com/medtrack/medtrack/internal/auth/repository"
	"github.com/medtrack/medtrack/internal/store"
)

// storeOpener is replaced in tests.
var storeOpener = store.Open

// NewUsersCmd creates the users subcommand.
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer user accounts",
	}

	deactivate := &cobra.Command{
		Use:   "deactivate EMAIL",
		Short: "Deactivate a user and revoke their sessions",
		Long: `Deactivate the account registered under EMAIL. The user can no
longer log in and every open session is revoked. Accounts are never deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deactivateUser(cmd.Context(), cmd, args[0]); err != nil {
				return err
			}
			cmd.Printf("Deactivated %s\n", args[0])
			return nil
		},
	}
	addStorageFlags(deactivate)
	cmd.AddCommand(deactivate)

	return cmd
}

func deactivateUser(ctx context.Context, cmd *cobra.Command, email string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := storeOpener(ctx, cfg.Storage.Backend, cfg.Storage.URL)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("backend", cfg.Storage.Backend).Wrap(err)
	}
	defer st.Close()

	users := repository.NewUserRepository(st)
	sessions, err := auth.NewSessionManager(repository.NewSessionRepository(st), users, cfg.Session.TTL)
	if err != nil {
		return err
	}
	limiter := auth.NewLoginLimiter(cfg.Auth.LockoutThreshold, cfg.Auth.LockoutWindow)
	svc, err := auth.NewService(users, auth.NewArgon2idHasher(auth.DefaultArgon2Params), limiter, sessions,
		auth.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	return svc.Deactivate(ctx, email)
}
