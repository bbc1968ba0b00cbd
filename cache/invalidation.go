package cache

import (
	"context"

	"github.com/KOMKZ/go-yogan-tiercache/event"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
)

// Invalidator events naming the identifiers they made stale.
// Events without it, or with no ids, invalidate whole categories.
type Invalidator interface {
	InvalidatedIDs() []string
}

// InvalidationRule maps an event name to the categories it invalidates
type InvalidationRule struct {
	Event      string     `mapstructure:"event"`
	Categories []Category `mapstructure:"categories"`
}

func (r InvalidationRule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Event, validation.Required),
		validation.Field(&r.Categories, validation.Required),
	)
}

// SubscribeInvalidation registers one listener per rule on d.
// The returned func removes every subscription.
func (m *Manager) SubscribeInvalidation(d event.Dispatcher, rules []InvalidationRule) (func(), error) {
	if d == nil {
		return nil, ErrInvalidArgument.WithMsg("event dispatcher is required")
	}
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, ErrConfigInvalid.Wrapf(err, "invalidation rule %d", i)
		}
		for _, c := range rule.Categories {
			if err := c.Validate(); err != nil {
				return nil, ErrConfigInvalid.Wrapf(err, "invalidation rule %d", i)
			}
		}
	}

	unsubs := make([]event.UnsubscribeFunc, 0, len(rules))
	for _, rule := range rules {
		unsubs = append(unsubs, d.Subscribe(rule.Event, m.invalidationListener(rule)))
		m.log.Debug("subscribed invalidation event",
			zap.String("event", rule.Event),
			zap.Any("categories", rule.Categories),
		)
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}, nil
}

// invalidationListener failures are logged; the event source is not the place to handle them
func (m *Manager) invalidationListener(rule InvalidationRule) event.Listener {
	return event.ListenerFunc(func(ctx context.Context, e event.Event) error {
		var ids []string
		if inv, ok := e.(Invalidator); ok {
			ids = inv.InvalidatedIDs()
		}

		for _, category := range rule.Categories {
			if len(ids) == 0 {
				if err := m.InvalidateCategory(ctx, category); err != nil {
					m.log.WarnCtx(ctx, "cache invalidate by event failed",
						zap.String("event", e.Name()),
						zap.String("category", string(category)),
						zap.Error(err),
					)
				}
				continue
			}
			for _, id := range ids {
				if err := m.Invalidate(ctx, category, id); err != nil {
					m.log.WarnCtx(ctx, "cache invalidate by event failed",
						zap.String("event", e.Name()),
						zap.String("category", string(category)),
						zap.String("id", id),
						zap.Error(err),
					)
				}
			}
		}
		return nil
	})
}
