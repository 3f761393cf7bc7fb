package permission

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/permgate/bus"
	"github.com/kbukum/permgate/errors"
	"github.com/kbukum/permgate/logger"
	"github.com/kbukum/permgate/observability"
)

// Session scopes a response bus and its pending gates to one host
// connection. Close tears both down.
type Session struct {
	bus       *bus.Bus[Response]
	checker   Checker
	requester Requester
	legacy    bool
	match     MatchPolicy
	log       *logger.Logger
	metrics   *observability.GateMetrics
	optErr    error

	mu      sync.Mutex
	pending map[string]*Completion
	closed  bool
}

// Option configures a Session.
type Option func(*Session)

// WithLegacy makes every gate grant immediately without checking.
func WithLegacy(legacy bool) Option {
	return func(s *Session) { s.legacy = legacy }
}

// WithMatchPolicy sets how responses are correlated with pending gates.
func WithMatchPolicy(p MatchPolicy) Option {
	return func(s *Session) { s.match = p }
}

// WithConfig applies a Config. An unknown match value keeps the current
// policy and is logged as a warning by NewSession.
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		s.legacy = cfg.Legacy
		p, err := ParseMatchPolicy(cfg.Match)
		if err != nil {
			s.optErr = err
			return
		}
		s.match = p
	}
}

// WithLogger sets the session logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithMetrics records gate instruments on m.
func WithMetrics(m *observability.GateMetrics) Option {
	return func(s *Session) { s.metrics = m }
}

// NewSession creates a session asking checker for the current status and
// requester for prompts.
func NewSession(checker Checker, requester Requester, opts ...Option) *Session {
	s := &Session{
		checker:   checker,
		requester: requester,
		pending:   make(map[string]*Completion),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.WithComponent("permission")
	}
	if s.optErr != nil {
		s.log.Warn("ignoring invalid gate config", logger.Fields(
			logger.FieldError, s.optErr.Error(),
			"match", s.match.String(),
		))
	}
	s.bus = bus.New[Response](bus.WithLogger(s.log))
	return s
}

// Gate returns a behavior that requires the given permissions.
func (s *Session) Gate(required ...string) *Gate {
	return &Gate{session: s, required: Set(required).Clone()}
}

// Check starts a gating attempt for required.
//
// Permissions already granted, or legacy mode, yield a completion that is
// resolved on return and never touches the bus. Otherwise the attempt
// subscribes to the bus, then asks the Requester to prompt for the denied
// permissions, and resolves when a matching response is delivered. A
// failing status query or prompt trigger rejects with that error. If ctx
// is already done when a prompt would be needed, the completion is returned
// Cancelled and the Requester is never called.
func (s *Session) Check(ctx context.Context, required Set) *Completion {
	c := newCompletion(s, uuid.NewString())
	ctx, span := observability.StartSpan(ctx, observability.SpanGateCheck)
	defer span.End()
	span.SetAttributes(
		attribute.String(observability.AttrGateID, c.id),
		attribute.StringSlice(observability.AttrPermissions, required),
	)
	s.metrics.RecordCheck(ctx)

	c.state.Store(int32(Checking))
	denied, err := s.deniedOf(ctx, required)
	if err != nil {
		c.settle(Checking, Rejected, err)
		observability.SetSpanError(span, err)
		c.log.Debug("permission status query failed", logger.ErrorFields("is_granted", err))
		return c
	}
	if len(denied) == 0 {
		c.settle(Checking, ImmediateGrant, nil)
		s.metrics.RecordImmediateGrant(ctx)
		span.SetAttributes(attribute.String(observability.AttrState, ImmediateGrant.String()))
		return c
	}

	if ctx.Err() != nil {
		// Disposed before the prompt: no subscription, no request.
		c.settle(Checking, Cancelled, nil)
		span.SetAttributes(attribute.String(observability.AttrState, Cancelled.String()))
		return c
	}

	c.denied = denied
	c.started = time.Now()
	span.SetAttributes(attribute.StringSlice(observability.AttrDenied, denied))
	_, c.span = observability.StartSpan(ctx, observability.SpanGateAwait)
	c.state.Store(int32(AwaitingResponse))
	s.metrics.RecordPrompt(ctx, len(denied))

	if !s.register(c) {
		err := errors.ServiceUnavailable("permission session")
		c.settle(AwaitingResponse, Rejected, err)
		observability.SetSpanError(span, err)
		return c
	}

	// Subscribe before prompting so a fast response cannot be missed.
	c.attach(s.bus.Subscribe(c.onResponse))
	c.log.Debug("requesting permissions", logger.Fields(logger.FieldPermissions, denied))

	if err := s.requester.RequestPermissions(ctx, denied.Clone()); err != nil {
		if c.settle(AwaitingResponse, Rejected, err) {
			observability.SetSpanError(span, err)
			c.log.Debug("permission request failed", logger.ErrorFields("request_permissions", err))
		}
	}
	return c
}

func (s *Session) deniedOf(ctx context.Context, required Set) (Set, error) {
	if s.legacy {
		return nil, nil
	}
	var denied Set
	for _, p := range required {
		granted, err := s.checker.IsGranted(ctx, p)
		if err != nil {
			return nil, err
		}
		if !granted {
			denied = append(denied, p)
		}
	}
	return denied, nil
}

// Deliver publishes a prompt result to every gate waiting in this session.
// Hosts call it when the user answers a prompt.
func (s *Session) Deliver(requested Set, outcomes []Outcome) {
	s.DeliverResponse(context.Background(), Response{Permissions: requested, Outcomes: outcomes})
}

// DeliverResponse is Deliver with a context for tracing.
func (s *Session) DeliverResponse(ctx context.Context, resp Response) {
	resp = Response{Permissions: resp.Permissions.Clone(), Outcomes: slices.Clone(resp.Outcomes)}
	listeners := s.bus.Len()

	ctx, span := observability.StartSpan(ctx, observability.SpanDeliver)
	defer span.End()
	span.SetAttributes(
		attribute.StringSlice(observability.AttrPermissions, resp.Permissions),
		attribute.Int(observability.AttrListeners, listeners),
	)
	s.metrics.RecordDelivery(ctx, listeners)
	s.log.Debug("delivering permission response", logger.Fields(
		logger.FieldPermissions, resp.Permissions,
		logger.FieldOutcomes, outcomeNames(resp.Outcomes),
		logger.FieldListeners, listeners,
	))

	s.bus.Publish(resp)
}

// Track keeps table up to date with every delivered response. Cancel the
// returned subscription to stop; a response being delivered at that moment
// may still be applied.
func (s *Session) Track(table *StatusTable) *bus.Subscription {
	return s.bus.Subscribe(table.Apply)
}

// Listeners returns the number of active bus subscriptions.
func (s *Session) Listeners() int { return s.bus.Len() }

// Pending returns the number of gates awaiting a response.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close rejects every pending gate with SERVICE_UNAVAILABLE and closes the
// bus. Gates checked afterwards reject the same way if they need a prompt.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := slices.Collect(maps.Values(s.pending))
	clear(s.pending)
	s.mu.Unlock()

	for _, c := range pending {
		c.settle(AwaitingResponse, Rejected, errors.ServiceUnavailable("permission session"))
	}
	s.bus.Close()
	s.log.Info("permission session closed", logger.Fields("rejected", len(pending)))
}

// CheckHealth reports the session as down once closed.
func (s *Session) CheckHealth(context.Context) observability.Health {
	s.mu.Lock()
	closed, pending := s.closed, len(s.pending)
	s.mu.Unlock()

	h := observability.Health{
		Name:   "permission_session",
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"match":     s.match.String(),
			"legacy":    strconv.FormatBool(s.legacy),
			"pending":   strconv.Itoa(pending),
			"listeners": strconv.Itoa(s.bus.Len()),
		},
	}
	if closed {
		h.Status = observability.HealthStatusDown
		h.Message = "session closed"
	}
	return h
}

func (s *Session) register(c *Completion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending[c.id] = c
	return true
}

func (s *Session) forget(c *Completion) {
	s.mu.Lock()
	delete(s.pending, c.id)
	s.mu.Unlock()
}

func outcomeNames(outcomes []Outcome) []string {
	names := make([]string, len(outcomes))
	for i, o := range outcomes {
		names[i] = o.String()
	}
	return names
}
