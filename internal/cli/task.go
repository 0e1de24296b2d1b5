package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fastygo/questlog/repository"
	"github.com/fastygo/questlog/usecase/progression"
)

var errConfirmRequired = errors.New("refusing to continue without --yes")

func newTaskCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  `Create, list, toggle and delete the user's tasks.`,
	}
	cmd.AddCommand(
		newTaskAddCommand(rt),
		newTaskListCommand(rt),
		newTaskToggleCommand(rt),
		newTaskDeleteCommand(rt),
	)
	return cmd
}

func newTaskAddCommand(rt *runtime) *cobra.Command {
	var (
		priority    string
		description string
		due         string
	)
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task",
		Long: `Create a task. The XP reward is fixed by the priority at creation.

Examples:
  questlog task add "Write report" --priority high
  questlog task add "Water plants" --due 2026-10-20T09:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rt.requireUser()
			if err != nil {
				return err
			}
			input := progression.NewTaskInput{
				Title:       args[0],
				Description: description,
				Priority:    priority,
			}
			if due != "" {
				parsed, err := time.Parse(time.RFC3339, due)
				if err != nil {
					return fmt.Errorf("invalid --due: %w", err)
				}
				input.DueDate = &parsed
			}
			return rt.withApp(cmd, func(ctx context.Context, app *App) error {
				task, err := app.Engine.CreateTask(ctx, user, input)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), task)
			})
		},
	}
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "low, medium or high")
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	return cmd
}

func newTaskListCommand(rt *runtime) *cobra.Command {
	var filter repository.TaskFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rt.requireUser()
			if err != nil {
				return err
			}
			return rt.withApp(cmd, func(ctx context.Context, app *App) error {
				tasks, err := app.Tasks.ListTasks(ctx, user, filter)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tasks)
			})
		},
	}
	cmd.Flags().StringVar(&filter.Status, "status", "", "active or completed")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum number of tasks")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "number of tasks to skip")
	return cmd
}

func newTaskToggleCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "toggle [task-id]",
		Short:   "Complete or reopen a task",
		Aliases: []string{"done"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rt.requireUser()
			if err != nil {
				return err
			}
			return rt.withApp(cmd, func(ctx context.Context, app *App) error {
				result, err := app.Engine.HandleToggle(ctx, user, args[0], time.Now())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newTaskDeleteCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [task-id]",
		Short: "Delete a task; earned XP is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rt.requireUser()
			if err != nil {
				return err
			}
			return rt.withApp(cmd, func(ctx context.Context, app *App) error {
				if err := app.Engine.DeleteTask(ctx, user, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task deleted: %s\n", args[0])
				return nil
			})
		},
	}
}
