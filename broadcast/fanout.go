package broadcast

import (
	"context"
	"errors"
)

// Fanout publishes to every sink and subscribes through the first Broker.
// A failing sink does not stop delivery to the others.
type Fanout struct {
	primary Broker
	sinks   []Publisher
}

func NewFanout(primary Broker, sinks ...Publisher) *Fanout {
	return &Fanout{primary: primary, sinks: sinks}
}

func (f *Fanout) Publish(ctx context.Context, event string, payload any) error {
	errs := []error{f.primary.Publish(ctx, event, payload)}
	for _, s := range f.sinks {
		errs = append(errs, s.Publish(ctx, event, payload))
	}
	return errors.Join(errs...)
}

func (f *Fanout) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	return f.primary.Subscribe(ctx)
}
