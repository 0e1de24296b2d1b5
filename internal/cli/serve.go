package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/questlog/api/handler"
	"github.com/fastygo/questlog/internal/middleware"
	"github.com/fastygo/questlog/internal/router"
	"github.com/fastygo/questlog/pkg/httpcontext"
)

func newServeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the event relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.serve(cmd.Context())
		},
	}
}

func (rt *runtime) serve(parent context.Context) error {
	cfg, log := rt.cfg, rt.logger
	if cfg.JWT.Secret == "" {
		log.Warn("JWT_SECRET is empty; every bearer token will be rejected")
	}

	appCtx, cancel := context.WithCancel(parent)
	defer cancel()

	app, err := Bootstrap(appCtx, cfg, log, true)
	if err != nil {
		return err
	}
	manager := app.Lifecycle
	manager.Listen(cancel)

	app.Monitor.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		app.Monitor.Stop()
		return nil
	})

	if app.Relay != nil {
		app.Relay.Start()
		manager.Register("event_relay", func(ctx context.Context) error {
			app.Relay.Stop(ctx)
			return nil
		})
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Task:     apiHandler.NewTaskHandler(app.Tasks, app.Engine, ctxAdapter, log),
		Progress: apiHandler.NewProgressHandler(app.Engine, ctxAdapter, log),
		Health:   apiHandler.NewHealthHandler(app.Monitor, ctxAdapter, log),
	}
	r := router.New(handlers, middleware.JWTAuth(cfg.JWT.Secret, log))

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("address", cfg.Address()), zap.String("store", cfg.Store.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			serveErr <- err
		}
		cancel()
	}()
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	shutdownErr := manager.Shutdown(context.Background())
	if shutdownErr != nil {
		log.Error("graceful shutdown error", zap.Error(shutdownErr))
	}
	select {
	case err := <-serveErr:
		return err
	default:
		return shutdownErr
	}
}
