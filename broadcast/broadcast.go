// Package broadcast delivers prediction events to live subscribers. Delivery
// is at-most-once: a publish never blocks on a slow or absent subscriber.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	EventNewPrediction = "new_prediction"
	EventInitialData   = "initial_data"
)

// Envelope is the wire form of an event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope encodes payload once so every subscriber receives the same bytes.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// Subscriber streams envelopes until ctx is done, then closes the channel.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan Envelope, error)
}

type Broker interface {
	Publisher
	Subscriber
}
