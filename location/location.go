package location

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/permgate/behavior"
)

// Permission is the identifier gating every location call.
const Permission = "LOCATION"

// Fix is a single location reading.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude,omitempty"`
	Accuracy  float64   `json:"accuracy"` // meters, horizontal
	Timestamp time.Time `json:"timestamp"`
}

// Request configures continuous updates.
type Request struct {
	HighAccuracy bool
	// Interval is the desired time between updates.
	Interval time.Duration
	// DistanceFilter is the minimum distance in meters between updates.
	DistanceFilter float64
}

// Validate rejects negative settings.
func (r Request) Validate() error {
	if r.Interval < 0 {
		return fmt.Errorf("location: interval must not be negative")
	}
	if r.DistanceFilter < 0 {
		return fmt.Errorf("location: distance filter must not be negative")
	}
	return nil
}

// Provider is the platform location source.
type Provider interface {
	// LastKnown returns the cached reading, if any, without a new query.
	LastKnown(ctx context.Context) (Fix, bool, error)
	// Current queries a fresh reading.
	Current(ctx context.Context) (Fix, error)
	// Updates streams readings until the iterator is closed.
	Updates(ctx context.Context, req Request) (behavior.Iterator[Fix], error)
	// Flush delivers any batched readings and returns once done.
	Flush(ctx context.Context) error
}

// Client applies one behavior to every Provider call.
type Client struct {
	provider Provider
	behavior behavior.Behavior
}

// NewClient wraps provider with b. A nil behavior means behavior.Nop.
func NewClient(provider Provider, b behavior.Behavior) *Client {
	if b == nil {
		b = behavior.Nop
	}
	return &Client{provider: provider, behavior: b}
}

// LastKnown returns the last known fix.
func (c *Client) LastKnown(ctx context.Context) (Fix, bool, error) {
	return behavior.ApplyMaybe(c.behavior, behavior.Maybe[Fix](c.provider.LastKnown))(ctx)
}

// Current returns a fresh fix.
func (c *Client) Current(ctx context.Context) (Fix, error) {
	return behavior.ApplySingle(c.behavior, behavior.Single[Fix](c.provider.Current))(ctx)
}

// Updates streams fixes configured by req.
func (c *Client) Updates(ctx context.Context, req Request) (behavior.Iterator[Fix], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	open := func(ctx context.Context) (behavior.Iterator[Fix], error) {
		return c.provider.Updates(ctx, req)
	}
	return behavior.ApplyStream(c.behavior, behavior.Stream[Fix](open))(ctx)
}

// Flush flushes batched readings.
func (c *Client) Flush(ctx context.Context) error {
	return behavior.ApplyCompletable(c.behavior, c.provider.Flush)(ctx)
}
