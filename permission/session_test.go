package permission

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/permgate/errors"
	"github.com/kbukum/permgate/logger"
)

// fakeHost is a Checker and Requester backed by a static grant table. It
// records every prompt and how many bus listeners existed when it fired.
type fakeHost struct {
	mu         sync.Mutex
	granted    map[string]bool
	checkErr   error
	requestErr error
	checks     []string
	prompts    []Set
	listeners  []int
	session    *Session
	onRequest  func(Set)
}

func (h *fakeHost) IsGranted(_ context.Context, p string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, p)
	if h.checkErr != nil {
		return false, h.checkErr
	}
	return h.granted[p], nil
}

func (h *fakeHost) RequestPermissions(_ context.Context, perms Set) error {
	h.mu.Lock()
	h.prompts = append(h.prompts, perms)
	if h.session != nil {
		h.listeners = append(h.listeners, h.session.Listeners())
	}
	onRequest, err := h.onRequest, h.requestErr
	h.mu.Unlock()
	if onRequest != nil {
		onRequest(perms)
	}
	return err
}

func (h *fakeHost) promptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.prompts)
}

func newTestSession(t *testing.T, host *fakeHost, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	s := NewSession(host, host, opts...)
	host.session = s
	t.Cleanup(s.Close)
	return s
}

func isDone(c *Completion) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func TestCheck_AllGrantedResolvesImmediately(t *testing.T) {
	host := &fakeHost{granted: map[string]bool{"LOCATION": true, "CAMERA": true}}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION", "CAMERA"})

	if c.State() != ImmediateGrant {
		t.Fatalf("state = %s, want immediate_grant", c.State())
	}
	if !isDone(c) || c.Err() != nil {
		t.Errorf("expected resolved success, done=%v err=%v", isDone(c), c.Err())
	}
	if s.Listeners() != 0 {
		t.Errorf("immediate grant must not subscribe, listeners=%d", s.Listeners())
	}
	if host.promptCount() != 0 {
		t.Error("immediate grant must not prompt")
	}
	if len(c.Denied()) != 0 {
		t.Errorf("expected no denied permissions, got %v", c.Denied())
	}
}

func TestCheck_LegacyModeSkipsEverything(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host, WithLegacy(true))

	c := s.Check(context.Background(), Set{"LOCATION"})

	if c.State() != ImmediateGrant || c.Err() != nil {
		t.Fatalf("state = %s err = %v", c.State(), c.Err())
	}
	if len(host.checks) != 0 || host.promptCount() != 0 || s.Listeners() != 0 {
		t.Errorf("legacy mode touched collaborators: checks=%v prompts=%d listeners=%d",
			host.checks, host.promptCount(), s.Listeners())
	}
}

func TestCheck_SubscribesBeforeRequesting(t *testing.T) {
	host := &fakeHost{granted: map[string]bool{"CAMERA": true}}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION", "CAMERA"})

	if c.State() != AwaitingResponse {
		t.Fatalf("state = %s, want awaiting_response", c.State())
	}
	if diff := cmp.Diff([]Set{{"LOCATION"}}, host.prompts); diff != "" {
		t.Errorf("prompted set (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, host.listeners); diff != "" {
		t.Errorf("listeners at prompt time (-want +got):\n%s", diff)
	}
}

func TestCheck_ResponseDuringRequestIsNotLost(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)
	host.onRequest = func(perms Set) { s.Deliver(perms, []Outcome{Granted}) }

	c := s.Check(context.Background(), Set{"LOCATION"})

	if c.State() != Completed {
		t.Fatalf("state = %s, want completed", c.State())
	}
	if s.Listeners() != 0 {
		t.Errorf("listeners = %d, want 0", s.Listeners())
	}
}

func TestScenario_DeniedLocation(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION"})
	s.Deliver(Set{"LOCATION"}, []Outcome{Denied})

	err := c.Wait(context.Background())
	if !errors.IsPermissionDenied(err) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if diff := cmp.Diff([]string{"LOCATION"}, errors.DeniedPermissions(err)); diff != "" {
		t.Errorf("denied permissions (-want +got):\n%s", diff)
	}
	if c.State() != Rejected {
		t.Errorf("state = %s, want rejected", c.State())
	}
	if s.Listeners() != 0 {
		t.Errorf("listeners = %d, want 0", s.Listeners())
	}
}

func TestScenario_GrantedLocation(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION"})
	s.Deliver(Set{"LOCATION"}, []Outcome{Granted})

	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if c.State() != Completed {
		t.Errorf("state = %s, want completed", c.State())
	}
}

func TestScenario_MismatchedThenMatching(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION", "CAMERA"})

	s.Deliver(Set{"CAMERA"}, []Outcome{Granted})
	if isDone(c) || c.State() != AwaitingResponse {
		t.Fatalf("unrelated response resolved the gate: state=%s", c.State())
	}
	if s.Listeners() != 1 {
		t.Fatalf("unrelated response consumed the subscription, listeners=%d", s.Listeners())
	}

	s.Deliver(Set{"LOCATION", "CAMERA"}, []Outcome{Granted, Granted})
	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestResolvesExactlyOnce(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION"})
	s.Deliver(Set{"LOCATION"}, []Outcome{Granted})
	s.Deliver(Set{"LOCATION"}, []Outcome{Denied})

	if c.State() != Completed || c.Err() != nil {
		t.Errorf("second response changed the outcome: state=%s err=%v", c.State(), c.Err())
	}
	if c.settle(AwaitingResponse, Rejected, stderrors.New("late")) {
		t.Error("settle after resolution must fail")
	}
}

func TestPartialDenialRejects(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION", "CAMERA"})
	s.Deliver(Set{"LOCATION", "CAMERA"}, []Outcome{Granted, Denied})

	err := c.Wait(context.Background())
	if !errors.IsPermissionDenied(err) {
		t.Fatalf("expected denial, got %v", err)
	}
	if diff := cmp.Diff([]string{"LOCATION", "CAMERA"}, errors.DeniedPermissions(err)); diff != "" {
		t.Errorf("denial should carry the whole requested set (-want +got):\n%s", diff)
	}
	appErr, _ := errors.AsAppError(err)
	if diff := cmp.Diff([]string{"CAMERA"}, appErr.Details["refused"]); diff != "" {
		t.Errorf("refused detail (-want +got):\n%s", diff)
	}
}

func TestMissingOutcomesReject(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION", "CAMERA"})
	s.Deliver(Set{"LOCATION", "CAMERA"}, []Outcome{Granted})

	if !errors.IsPermissionDenied(c.Wait(context.Background())) {
		t.Errorf("a response without an outcome per permission must reject, state=%s", c.State())
	}
}

func TestCancelBeforeResponse(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION"})
	if s.Listeners() != 1 {
		t.Fatalf("listeners = %d, want 1", s.Listeners())
	}

	c.Cancel()
	c.Cancel()

	if s.Listeners() != 0 {
		t.Fatalf("cancel must unsubscribe synchronously, listeners=%d", s.Listeners())
	}
	s.Deliver(Set{"LOCATION"}, []Outcome{Granted})

	if c.State() != Cancelled {
		t.Errorf("state = %s, want cancelled", c.State())
	}
	if isDone(c) || c.Err() != nil {
		t.Error("a cancelled completion must never resolve")
	}
	if s.Pending() != 0 {
		t.Errorf("pending = %d, want 0", s.Pending())
	}
}

func TestCancelAfterResolutionIsNoop(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION"})
	s.Deliver(Set{"LOCATION"}, []Outcome{Denied})
	c.Cancel()

	if c.State() != Rejected || !errors.IsPermissionDenied(c.Err()) {
		t.Errorf("cancel after resolution changed the outcome: state=%s err=%v", c.State(), c.Err())
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	ctx, cancel := context.WithCancel(context.Background())
	c := s.Check(ctx, Set{"LOCATION"})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Wait(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if !stderrors.Is(err, context.Canceled) {
			t.Errorf("Wait = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
	if c.State() != Cancelled || s.Listeners() != 0 {
		t.Errorf("state=%s listeners=%d", c.State(), s.Listeners())
	}
}

func TestWait_DeliveredFromAnotherGoroutine(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION"})
	go s.Deliver(Set{"LOCATION"}, []Outcome{Granted})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait = %v", err)
	}
}

func TestStatusQueryErrorRejectsUnchanged(t *testing.T) {
	queryErr := stderrors.New("status unavailable")
	host := &fakeHost{checkErr: queryErr}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION"})

	if c.State() != Rejected || c.Err() != queryErr {
		t.Fatalf("state=%s err=%v, want rejected with the query error", c.State(), c.Err())
	}
	if s.Listeners() != 0 || host.promptCount() != 0 {
		t.Errorf("query failure must not subscribe or prompt")
	}
}

func TestRequestTriggerErrorRejectsAndUnsubscribes(t *testing.T) {
	triggerErr := errors.RequestFailed(stderrors.New("no host connected"))
	host := &fakeHost{requestErr: triggerErr}
	s := newTestSession(t, host)

	c := s.Check(context.Background(), Set{"LOCATION"})

	if c.State() != Rejected || c.Err() != error(triggerErr) {
		t.Fatalf("state=%s err=%v", c.State(), c.Err())
	}
	if s.Listeners() != 0 || s.Pending() != 0 {
		t.Errorf("listeners=%d pending=%d, want 0", s.Listeners(), s.Pending())
	}
}

func TestConcurrentGatesShareOneResponse(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host)

	a := s.Check(context.Background(), Set{"LOCATION"})
	b := s.Check(context.Background(), Set{"LOCATION"})
	other := s.Check(context.Background(), Set{"CAMERA"})

	s.Deliver(Set{"LOCATION"}, []Outcome{Granted})

	if a.State() != Completed || b.State() != Completed {
		t.Errorf("states a=%s b=%s, want completed", a.State(), b.State())
	}
	if other.State() != AwaitingResponse {
		t.Errorf("unrelated gate resolved: %s", other.State())
	}
	if a.ID() == b.ID() {
		t.Error("each attempt needs its own correlation id")
	}
}

func TestUnorderedMatchPolicy(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host, WithMatchPolicy(MatchUnordered))

	c := s.Check(context.Background(), Set{"LOCATION", "CAMERA"})
	s.Deliver(Set{"CAMERA", "LOCATION"}, []Outcome{Granted, Granted})

	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("reordered response should match, got %v", err)
	}
}

func TestExactMatchPolicyIgnoresReorderedResponse(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host, WithConfig(Config{Match: "exact"}))

	c := s.Check(context.Background(), Set{"LOCATION", "CAMERA"})
	s.Deliver(Set{"CAMERA", "LOCATION"}, []Outcome{Granted, Granted})

	if c.State() != AwaitingResponse {
		t.Errorf("exact policy must ignore a reordered response, state=%s", c.State())
	}
}

func TestSessionClose(t *testing.T) {
	host := &fakeHost{}
	s := NewSession(host, host, WithLogger(logger.Nop()))

	c := s.Check(context.Background(), Set{"LOCATION"})
	s.Close()
	s.Close()

	if !errors.HasCode(c.Err(), errors.ErrCodeServiceUnavailable) {
		t.Errorf("pending gate should reject on close, got %v", c.Err())
	}
	if s.Listeners() != 0 {
		t.Errorf("listeners = %d after close", s.Listeners())
	}

	late := s.Check(context.Background(), Set{"LOCATION"})
	if !errors.HasCode(late.Err(), errors.ErrCodeServiceUnavailable) {
		t.Errorf("gate on closed session should reject, got %v", late.Err())
	}
	if got := s.CheckHealth(context.Background()).Status; got != "down" {
		t.Errorf("health = %s, want down", got)
	}
}

func TestTrackKeepsStatusTableCurrent(t *testing.T) {
	table := NewStatusTable(nil)
	host := &fakeHost{}
	s := NewSession(table, host, WithLogger(logger.Nop()))
	defer s.Close()
	s.Track(table)

	c := s.Check(context.Background(), Set{"LOCATION"})
	s.Deliver(Set{"LOCATION"}, []Outcome{Granted})
	if err := c.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	again := s.Check(context.Background(), Set{"LOCATION"})
	if again.State() != ImmediateGrant {
		t.Errorf("second check should be granted from the table, state=%s", again.State())
	}
	if host.promptCount() != 1 {
		t.Errorf("prompts = %d, want 1", host.promptCount())
	}
}

func TestWithConfigInvalidMatchIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "permgate", &buf)
	s := NewSession(&fakeHost{}, &fakeHost{},
		WithLogger(log),
		WithMatchPolicy(MatchUnordered),
		WithConfig(Config{Match: "fuzzy"}),
	)
	t.Cleanup(s.Close)

	if s.match != MatchUnordered {
		t.Errorf("match = %s, invalid config must keep the current policy", s.match)
	}
	out := buf.String()
	if !strings.Contains(out, "ignoring invalid gate config") || !strings.Contains(out, "fuzzy") {
		t.Errorf("expected a warning naming the bad value, got %q", out)
	}
}

func TestCheckHealth(t *testing.T) {
	host := &fakeHost{}
	s := newTestSession(t, host, WithMatchPolicy(MatchUnordered))
	s.Check(context.Background(), Set{"LOCATION"})

	h := s.CheckHealth(context.Background())
	if h.Status != "up" {
		t.Errorf("status = %s", h.Status)
	}
	want := map[string]string{"match": "unordered", "legacy": "false", "pending": "1", "listeners": "1"}
	if diff := cmp.Diff(want, h.Details); diff != "" {
		t.Errorf("details (-want +got):\n%s", diff)
	}
}
