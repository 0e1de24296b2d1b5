package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newLedgerCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or provision a user's progression ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the zero ledger for the user (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rt.requireUser()
			if err != nil {
				return err
			}
			return rt.withApp(cmd, func(ctx context.Context, app *App) error {
				ledger, err := app.Engine.ProvisionLedger(ctx, user)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ledger)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the ledger and level progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rt.requireUser()
			if err != nil {
				return err
			}
			return rt.withApp(cmd, func(ctx context.Context, app *App) error {
				view, err := app.Engine.Ledger(ctx, user)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view)
			})
		},
	})

	return cmd
}

func newAchievementsCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "Evaluate the achievement rules for the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rt.requireUser()
			if err != nil {
				return err
			}
			return rt.withApp(cmd, func(ctx context.Context, app *App) error {
				report, err := app.Engine.Achievements(ctx, user, time.Now())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newResetCommand(rt *runtime) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all of the user's tasks and zero the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rt.requireUser()
			if err != nil {
				return err
			}
			if !confirm {
				return errConfirmRequired
			}
			return rt.withApp(cmd, func(ctx context.Context, app *App) error {
				ledger, err := app.Engine.ResetProgress(ctx, user)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ledger)
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the reset")
	return cmd
}

func newLeaderboardCommand(rt *runtime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "List the ledgers with the most XP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, app *App) error {
				ledgers, err := app.Engine.Leaderboard(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ledgers)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries")
	return cmd
}
