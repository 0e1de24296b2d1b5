package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/internal/infrastructure/broker"
	"github.com/fastygo/questlog/internal/infrastructure/outbox"
	"github.com/fastygo/questlog/usecase"
)

// OutboxSink queues committed progression events for the relay.
type OutboxSink struct {
	store *outbox.Store
}

func NewOutboxSink(store *outbox.Store) *OutboxSink {
	return &OutboxSink{store: store}
}

func (s *OutboxSink) Record(_ context.Context, events []domain.ProgressEvent) error {
	if s.store == nil {
		return domain.ErrInvalidPayload
	}
	if len(events) == 0 {
		return nil
	}
	return s.store.Append(events...)
}

// PublishSink sends events straight to a publisher. It is used when the
// outbox is disabled, and gives no delivery guarantee beyond the call.
type PublishSink struct {
	publisher broker.Publisher
}

func NewPublishSink(publisher broker.Publisher) *PublishSink {
	return &PublishSink{publisher: publisher}
}

func (s *PublishSink) Record(ctx context.Context, events []domain.ProgressEvent) error {
	if s.publisher == nil {
		return domain.ErrInvalidPayload
	}
	var result error
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			result = errors.Join(result, err)
			continue
		}
		if err := s.publisher.Publish(ctx, string(event.Kind), payload); err != nil {
			result = errors.Join(result, err)
		}
	}
	return result
}

var (
	_ usecase.TransitionSink = (*OutboxSink)(nil)
	_ usecase.TransitionSink = (*PublishSink)(nil)
)
