package usecase

import (
	"context"

	"github.com/fastygo/questlog/domain"
)

// Locker serializes mutations per key. The returned release func must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// TransitionSink receives the events of a committed toggle so use cases stay
// unaware of how notifications are delivered.
type TransitionSink interface {
	Record(ctx context.Context, events []domain.ProgressEvent) error
}
