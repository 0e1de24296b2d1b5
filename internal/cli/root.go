package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/questlog/internal/config"
	"github.com/fastygo/questlog/pkg/logger"
)

var errNoUser = errors.New("a user is required: pass --user or set QUESTLOG_USER")

// runtime is the state shared by every command of one invocation.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger

	user       string
	driver     string
	sqlitePath string
	startedAt  time.Time
}

// NewRootCommand builds the questlog command tree.
func NewRootCommand() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "questlog",
		Short: "questlog - task progression service",
		Long: `questlog tracks tasks and turns completions into XP, levels,
streaks and achievements. Run "questlog serve" for the HTTP API or use the
subcommands to work with the configured store directly.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logger == nil {
				return
			}
			rt.logger.Debug("command end",
				zap.String("command", cmd.CommandPath()),
				zap.Int64("duration_ms", time.Since(rt.startedAt).Milliseconds()))
			_ = rt.logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&rt.user, "user", "u", os.Getenv("QUESTLOG_USER"), "user id to act as")
	root.PersistentFlags().StringVar(&rt.driver, "store", "", "override STORE_DRIVER (postgres, sqlite, memory)")
	root.PersistentFlags().StringVar(&rt.sqlitePath, "sqlite-path", "", "override SQLITE_PATH")

	root.AddCommand(
		newServeCommand(rt),
		newMigrateCommand(rt),
		newLedgerCommand(rt),
		newTaskCommand(rt),
		newAchievementsCommand(rt),
		newResetCommand(rt),
		newLeaderboardCommand(rt),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func (rt *runtime) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if rt.driver != "" {
		cfg.Store.Driver = rt.driver
	}
	if rt.sqlitePath != "" {
		cfg.SQLite.Path = rt.sqlitePath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Stderr:   true,
	})
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}

	rt.cfg = cfg
	rt.logger = log.With(zap.String("app", cfg.AppName))
	rt.startedAt = time.Now()

	ctx := logger.ContextWithRequestID(cmd.Context(), uuid.NewString())
	if rt.user != "" {
		ctx = logger.ContextWithUserID(ctx, rt.user)
	}
	cmd.SetContext(ctx)

	logger.WithRequestID(ctx, rt.logger).Debug("command start", zap.String("command", cmd.CommandPath()))
	return nil
}

// withApp bootstraps a one-shot application, runs fn and shuts it down.
func (rt *runtime) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	app, err := Bootstrap(ctx, rt.cfg, rt.logger, false)
	if err != nil {
		return err
	}
	runErr := fn(ctx, app)
	if err := app.Lifecycle.Shutdown(context.Background()); err != nil {
		rt.logger.Warn("shutdown error", zap.Error(err))
	}
	return runErr
}

func (rt *runtime) requireUser() (string, error) {
	if rt.user == "" {
		return "", errNoUser
	}
	return rt.user, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
