package permission

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/permgate/bus"
	"github.com/kbukum/permgate/errors"
	"github.com/kbukum/permgate/logger"
	"github.com/kbukum/permgate/observability"
)

// Completion is the outcome of one gating attempt. It resolves at most
// once, as granted or rejected. A cancelled completion never resolves.
type Completion struct {
	id      string
	session *Session
	log     *logger.Logger

	state atomic.Int32
	done  chan struct{}
	err   error

	denied  Set
	started time.Time
	span    trace.Span

	mu  sync.Mutex
	sub *bus.Subscription
}

func newCompletion(s *Session, id string) *Completion {
	return &Completion{
		id:      id,
		session: s,
		log:     s.log.WithFields(logger.Fields(logger.FieldGateID, id)),
		done:    make(chan struct{}),
	}
}

// ID returns the correlation id of the attempt.
func (c *Completion) ID() string { return c.id }

// State returns the current state.
func (c *Completion) State() State { return State(c.state.Load()) }

// Denied returns the permissions the attempt prompted for. It is empty
// when no prompt was needed.
func (c *Completion) Denied() Set { return c.denied.Clone() }

// Done is closed once the completion resolves. It stays open forever
// after Cancel.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err returns the rejection error once resolved, and nil before that or
// after a grant.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the completion resolves or ctx ends. When ctx ends
// first the completion is cancelled and ctx.Err() returned.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
	}
	c.Cancel()
	select {
	case <-c.done:
		// Resolution won the race with cancellation.
		return c.err
	default:
		return ctx.Err()
	}
}

// Cancel abandons a pending attempt and unsubscribes it from the bus
// before returning. It is idempotent and has no effect once resolved.
func (c *Completion) Cancel() {
	if c.settle(AwaitingResponse, Cancelled, nil) {
		c.log.Debug("gate cancelled", logger.Fields(logger.FieldPermissions, c.denied))
	}
}

// onResponse is the bus listener of an awaiting attempt.
func (c *Completion) onResponse(resp Response) {
	if c.State() != AwaitingResponse {
		return
	}
	v := c.session.match.judge(c.denied, resp)
	if !v.matched {
		c.log.Debug("ignoring unrelated permission response", logger.Fields(
			logger.FieldPermissions, resp.Permissions,
		))
		return
	}
	if v.granted {
		if c.settle(AwaitingResponse, Completed, nil) {
			c.log.Debug("permissions granted", logger.Fields(logger.FieldPermissions, c.denied))
		}
		return
	}
	err := errors.PermissionDenied(c.denied...).WithDetail("refused", v.refused)
	if c.settle(AwaitingResponse, Rejected, err) {
		c.log.Debug("permissions denied", logger.Fields(
			logger.FieldPermissions, c.denied,
			"refused", v.refused,
		))
	}
}

// attach records the bus subscription. If the attempt already left
// AwaitingResponse, the subscription is cancelled on the spot.
func (c *Completion) attach(sub *bus.Subscription) {
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	if c.State() != AwaitingResponse {
		sub.Cancel()
	}
}

func (c *Completion) detach() {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// settle moves the attempt from one state to another. Only the first
// caller wins, which makes double resolution impossible.
func (c *Completion) settle(from, to State, err error) bool {
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	c.err = err
	if from == AwaitingResponse {
		c.detach()
		c.session.forget(c)
		c.session.metrics.RecordResolution(context.Background(), to.String(), time.Since(c.started))
		if c.span != nil {
			c.span.SetAttributes(attribute.String(observability.AttrState, to.String()))
			observability.SetSpanError(c.span, err)
			c.span.End()
		}
	}
	if to != Cancelled {
		close(c.done)
	}
	return true
}
