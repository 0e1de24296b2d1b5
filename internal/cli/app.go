package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/questlog/internal/config"
	"github.com/fastygo/questlog/internal/infrastructure/broker"
	"github.com/fastygo/questlog/internal/infrastructure/lock"
	"github.com/fastygo/questlog/internal/infrastructure/monitor"
	"github.com/fastygo/questlog/internal/infrastructure/outbox"
	pgInfra "github.com/fastygo/questlog/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/questlog/internal/infrastructure/redis"
	sqliteInfra "github.com/fastygo/questlog/internal/infrastructure/sqlite"
	"github.com/fastygo/questlog/internal/services"
	"github.com/fastygo/questlog/internal/services/lifecycle"
	"github.com/fastygo/questlog/repository"
	"github.com/fastygo/questlog/repository/breaker"
	"github.com/fastygo/questlog/repository/memory"
	"github.com/fastygo/questlog/repository/postgres"
	"github.com/fastygo/questlog/repository/sqlite"
	"github.com/fastygo/questlog/usecase"
	"github.com/fastygo/questlog/usecase/progression"
	taskUC "github.com/fastygo/questlog/usecase/task"
)

// App holds the wired application graph. Everything it opened is closed by
// Lifecycle.Shutdown.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     repository.Store
	Engine    *progression.Engine
	Tasks     *taskUC.UseCase
	Monitor   *monitor.Monitor
	Relay     *services.EventRelay
	Lifecycle *lifecycle.Manager
}

// Bootstrap opens the configured backends. When serving is set the outbox
// relay and its publisher are built as well; one-shot commands only queue
// events for a running server to deliver.
func Bootstrap(ctx context.Context, cfg *config.Config, log *zap.Logger, serving bool) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{
		Config:    cfg,
		Logger:    log,
		Monitor:   monitor.New(10*time.Second, log),
		Lifecycle: lifecycle.New(cfg.Context.ShutdownTimeout, log),
	}
	if err := app.init(ctx, serving); err != nil {
		_ = app.Lifecycle.Shutdown(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context, serving bool) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open %s store: %w", a.Config.Store.Driver, err)
	}
	a.Lifecycle.RegisterCloser("store", store)
	a.Monitor.Register(a.Config.Store.Driver, store, true)

	if a.Config.Breaker.Enabled {
		store = breaker.New(store, breaker.Config{
			Name:             "store-" + a.Config.Store.Driver,
			MaxRequests:      uint32(max(a.Config.Breaker.HalfOpenRequests, 1)),
			Interval:         a.Config.Breaker.Interval,
			Timeout:          a.Config.Breaker.OpenTimeout,
			FailureThreshold: uint32(max(a.Config.Breaker.FailureThreshold, 1)),
		}, a.Logger)
	}
	a.Store = store

	locker, err := a.openLocker(ctx)
	if err != nil {
		return err
	}

	sink, err := a.openSink(serving)
	if err != nil {
		return err
	}

	a.Engine = progression.New(store, locker, sink, a.Logger)
	a.Tasks = taskUC.New(store.Tasks(), a.Logger)
	return nil
}

func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	switch a.Config.Store.Driver {
	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(a.Config, a.Logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, a.Config.Database, a.Logger)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(pool), nil
	case config.DriverSQLite:
		db, err := sqliteInfra.Open(ctx, a.Config.SQLite.Path, a.Logger)
		if err != nil {
			return nil, err
		}
		return sqlite.NewStore(db), nil
	case config.DriverMemory:
		a.Logger.Warn("using in-memory store; nothing survives a restart")
		return memory.New(time.Now), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", a.Config.Store.Driver)
	}
}

func (a *App) openLocker(ctx context.Context) (usecase.Locker, error) {
	if a.Config.Lock.Driver != config.LockRedis {
		return lock.NewLocal(), nil
	}
	client, err := redisInfra.NewClient(ctx, a.Config.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	a.Lifecycle.RegisterCloser("redis", client)
	a.Monitor.Register("redis", redisInfra.Pinger{Client: client}, true)
	return redisInfra.NewLocker(client, a.Config.Lock.TTL, a.Config.Lock.Wait, a.Logger), nil
}

func (a *App) openSink(serving bool) (usecase.TransitionSink, error) {
	var publisher broker.Publisher
	if serving || !a.Config.Outbox.Enabled {
		var err error
		if publisher, err = a.openPublisher(); err != nil {
			return nil, err
		}
	}

	if !a.Config.Outbox.Enabled {
		return services.NewPublishSink(publisher), nil
	}

	box, err := outbox.Open(a.Config.Outbox.Path, "")
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	a.Lifecycle.RegisterCloser("outbox", box)
	a.Monitor.TrackOutbox(func() int {
		n, _ := box.Size()
		return n
	})

	if serving {
		a.Relay = services.NewEventRelay(box, a.Monitor, publisher, a.Logger, services.RelayConfig{
			Interval:   a.Config.Outbox.SyncInterval,
			BatchSize:  a.Config.Outbox.BatchSize,
			MaxRetries: a.Config.Outbox.MaxRetry,
			Retention:  time.Duration(a.Config.Outbox.RetentionHours) * time.Hour,
		})
	}
	return services.NewOutboxSink(box), nil
}

func (a *App) openPublisher() (broker.Publisher, error) {
	if a.Config.Broker.URL == "" {
		return broker.NewLogPublisher(a.Logger), nil
	}
	pub, err := broker.NewRabbitMQPublisher(a.Config.Broker.URL, a.Config.Broker.Exchange, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Lifecycle.RegisterCloser("broker", pub)
	a.Monitor.Register("broker", pub, true)
	return pub, nil
}
