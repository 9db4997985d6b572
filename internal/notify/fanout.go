package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-seat-reservation/internal/service"
)

// Invalidator drops cached read responses.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Fanout is the service.Notifier of the running server: every committed
// change first invalidates the response cache, then reaches websocket
// subscribers.
type Fanout struct {
	Hub   *Hub
	Cache Invalidator // optional
	Log   *zap.Logger
}

func (f *Fanout) Broadcast(ctx context.Context, event string, payload any, to service.Audience) error {
	if f.Cache != nil {
		if err := f.Cache.Invalidate(ctx); err != nil && f.Log != nil {
			f.Log.Warn("cache invalidation failed", zap.String("event", event), zap.Error(err))
		}
	}
	if f.Hub == nil {
		return nil
	}
	return f.Hub.Broadcast(ctx, event, payload, to == service.AudienceAdmins)
}

var _ service.Notifier = (*Fanout)(nil)
