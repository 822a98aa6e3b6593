// Package memory contains an in-memory event publisher for tests and
// deployments without a Pub/Sub topic.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/linkforge/trafficgate/internal/events"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []events.DecisionEvent
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, event events.DecisionEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns the recorded publishes.
func (p *Publisher) Events() []events.DecisionEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]events.DecisionEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Close is a no-op for the memory publisher.
func (p *Publisher) Close() error {
	return nil
}
