// Package events delivers ride events to whoever listens outside a session.
package events

import (
	"context"
	"errors"

	"github.com/example/share-commute/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, ev models.RideEvent) error
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev models.RideEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Discard struct{}

func (Discard) Publish(context.Context, models.RideEvent) error { return nil }
