package permission

// State is the lifecycle position of one gating attempt.
type State int32

const (
	Idle State = iota
	Checking
	ImmediateGrant
	AwaitingResponse
	Completed
	Rejected
	Cancelled
)

var stateNames = [...]string{
	Idle:             "idle",
	Checking:         "checking",
	ImmediateGrant:   "immediate_grant",
	AwaitingResponse: "awaiting_response",
	Completed:        "completed",
	Rejected:         "rejected",
	Cancelled:        "cancelled",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case ImmediateGrant, Completed, Rejected, Cancelled:
		return true
	}
	return false
}

// Granted reports whether the attempt let the computation proceed.
func (s State) Granted() bool {
	return s == ImmediateGrant || s == Completed
}
