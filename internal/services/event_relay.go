package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/questlog/internal/infrastructure/broker"
	"github.com/fastygo/questlog/internal/infrastructure/outbox"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// RelayConfig controls how frequently the outbox is drained.
type RelayConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// EventRelay moves progression events from the outbox to the publisher.
// Delivery is at least once: an entry is removed only after Publish succeeds.
type EventRelay struct {
	store     *outbox.Store
	monitor   ConnectionHealth
	publisher broker.Publisher
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       RelayConfig
}

func NewEventRelay(
	store *outbox.Store,
	monitor ConnectionHealth,
	publisher broker.Publisher,
	logger *zap.Logger,
	cfg RelayConfig,
) *EventRelay {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &EventRelay{
		store:     store,
		monitor:   monitor,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", max(int(cfg.Interval.Seconds()), 1))
	_, _ = r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := r.Drain(ctx); err != nil {
			r.logger.Error("outbox drain failed", zap.Error(err))
		}
	})
	if cfg.Retention > 0 {
		_, _ = r.cron.AddFunc("@hourly", r.cleanup)
	}

	return r
}

// Start launches the cron scheduler.
func (r *EventRelay) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.cron.Start()
	r.logger.Info("event relay started")
}

// Stop waits for a running drain to finish or ctx to expire.
func (r *EventRelay) Stop(ctx context.Context) {
	if r == nil || r.cron == nil {
		return
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	r.logger.Info("event relay stopped")
}

// Drain publishes one batch and returns how many entries were delivered.
func (r *EventRelay) Drain(ctx context.Context) (int, error) {
	if r == nil || r.store == nil || r.publisher == nil {
		return 0, nil
	}
	if r.monitor != nil && !r.monitor.IsOnline() {
		r.logger.Debug("skipping outbox drain (offline)")
		return 0, nil
	}

	entries, err := r.store.GetBatch(r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := r.publish(ctx, entry); err != nil {
			r.logger.Error("failed to publish progression event",
				zap.String("event_id", entry.Event.ID),
				zap.String("kind", string(entry.Event.Kind)),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(err))

			if entry.Attempts+1 >= r.cfg.MaxRetries {
				r.logger.Warn("dropping progression event (max retries reached)", zap.String("event_id", entry.Event.ID))
				if err := r.store.Remove(entry); err != nil {
					r.logger.Warn("failed to remove outbox entry", zap.Error(err))
				}
				continue
			}
			if err := r.store.Requeue(entry); err != nil {
				r.logger.Error("failed to requeue outbox entry", zap.Error(err))
			}
			continue
		}

		delivered++
		if err := r.store.Remove(entry); err != nil {
			r.logger.Warn("failed to purge delivered outbox entry", zap.Error(err))
		}
	}
	return delivered, nil
}

// Pending returns the number of queued events.
func (r *EventRelay) Pending() int {
	if r == nil || r.store == nil {
		return 0
	}
	size, err := r.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (r *EventRelay) publish(ctx context.Context, entry outbox.Entry) error {
	payload, err := json.Marshal(entry.Event)
	if err != nil {
		return err
	}
	return r.publisher.Publish(ctx, string(entry.Event.Kind), payload)
}

func (r *EventRelay) cleanup() {
	removed, err := r.store.Cleanup(time.Now().Add(-r.cfg.Retention))
	if err != nil {
		r.logger.Error("outbox cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		r.logger.Warn("expired progression events discarded", zap.Int("count", removed))
	}
}
