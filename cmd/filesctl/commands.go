package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"jobboard/internal/app"
	"jobboard/internal/config"
	"jobboard/internal/domain/account"
	jwtsvc "jobboard/internal/pkg/jwt"
	"jobboard/internal/pkg/logger"
)

func openApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = "text"
	if err := logger.Init(logCfg); err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func newSeedCmd() *cobra.Command {
	var email, password, role string

	cmd := &cobra.Command{
		Use:   "seed <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if email == "" {
				email = args[0] + "@example.com"
			}
			u, err := a.Accounts.Create(cmd.Context(), args[0], email, password, account.Role(role))
			if errors.Is(err, account.ErrUsernameTaken) {
				u, err = a.Accounts.GetByUsername(cmd.Context(), args[0])
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "account %s already exists (id %d)\n", u.Username, u.ID)
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (id %d, role %s)\n", u.Username, u.ID, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (default <username>@example.com)")
	cmd.Flags().StringVar(&password, "password", "changeme", "account password")
	cmd.Flags().StringVar(&role, "role", string(account.RoleUser), "user, business or admin")
	return cmd
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <username>",
		Short: "Print a bearer token for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.Accounts.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			token, err := jwtsvc.New(a.Config.JWTSecret, a.Config.JWTTTL).GenerateToken(u.ID, string(u.Role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newPurgeOwnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-owner <user-id>",
		Short: "Delete every file and blob of an owner, keeping the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Uploads.PurgeOwner(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d files\n", n)
			return nil
		},
	}
}

func newSweepOrphansCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep-orphans",
		Short: "Delete blobs that no file record points at",
		Long: "Delete blobs that no file record points at.\n\n" +
			"An upload that is still streaming has a blob but no record yet, so run\n" +
			"this while the API is idle or use --dry-run first.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			orphans, err := a.Uploads.SweepOrphans(cmd.Context(), dryRun)
			for _, key := range orphans {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			if err != nil {
				return err
			}
			verb := "removed"
			if dryRun {
				verb = "found"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d orphaned blobs\n", verb, len(orphans))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list orphans without deleting them")
	return cmd
}
