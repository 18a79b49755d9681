package main

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/tokenguard"
	"github.com/MrEthical07/tokenguard/password"
	"github.com/MrEthical07/tokenguard/postgres"
	"github.com/MrEthical07/tokenguard/sweeper"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func migrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("postgres dsn is not configured")
			}

			pool, err := postgres.NewPool(cmd.Context(), cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			log.Info("schema up to date")
			return nil
		},
	}
}

func sweepCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired session rows once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := sweeper.New(a.sessions, sweeper.WithLogger(log), sweeper.WithGrace(cfg.SweepGrace())).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired sessions\n", n)
			return nil
		},
	}
}

func unlockCmd(flags *rootFlags) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "unlock <user-id>",
		Short: "Clear the login lockout of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.UnlockAccount(cmd.Context(), args[0], actor); err != nil {
				return err
			}
			log.Info("account unlocked", zap.String("user_id", args[0]), zap.String("actor", actor))
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "Actor recorded in the audit event")
	return cmd
}

func userCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users in the postgres user store",
	}

	var (
		email    string
		role     string
		pass     string
		inactive bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("postgres dsn is not configured")
			}
			if email == "" || pass == "" {
				return errors.New("--email and --password are required")
			}

			hasher, err := password.NewAuto(password.DefaultConfig(), 0)
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(pass)
			if err != nil {
				return err
			}

			pool, err := postgres.NewPool(cmd.Context(), cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			id := uuid.NewString()
			err = postgres.NewUserStore(pool).Upsert(cmd.Context(), tokenguard.UserRecord{
				ID:           id,
				Email:        email,
				Role:         role,
				PasswordHash: hash,
				Active:       !inactive,
			})
			if err != nil {
				return err
			}
			log.Info("user saved", zap.String("user_id", id), zap.String("email", email))
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "Login email")
	add.Flags().StringVar(&role, "role", "member", "Role claim")
	add.Flags().StringVar(&pass, "password", "", "Plaintext password, hashed with Argon2id")
	add.Flags().BoolVar(&inactive, "inactive", false, "Create the account disabled")

	cmd.AddCommand(add)
	return cmd
}

func reportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the security posture of the loaded configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(flags)
			if err != nil {
				return err
			}
			engineCfg := cfg.EngineConfig()
			if err := engineCfg.Validate(); err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(tokenguard.SecurityReportFor(engineCfg))
		},
	}
}
