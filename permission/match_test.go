package permission

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatchPolicy_Judge(t *testing.T) {
	tests := []struct {
		name        string
		policy      MatchPolicy
		pending     Set
		resp        Response
		wantMatch   bool
		wantGranted bool
		wantRefused []string
	}{
		{
			name: "exact all granted", policy: MatchExact,
			pending: Set{"A", "B"}, resp: Response{Set{"A", "B"}, []Outcome{Granted, Granted}},
			wantMatch: true, wantGranted: true,
		},
		{
			name: "exact one denied", policy: MatchExact,
			pending: Set{"A", "B"}, resp: Response{Set{"A", "B"}, []Outcome{Denied, Granted}},
			wantMatch: true, wantRefused: []string{"A"},
		},
		{
			name: "exact reordered is unrelated", policy: MatchExact,
			pending: Set{"A", "B"}, resp: Response{Set{"B", "A"}, []Outcome{Granted, Granted}},
		},
		{
			name: "exact subset is unrelated", policy: MatchExact,
			pending: Set{"A", "B"}, resp: Response{Set{"B"}, []Outcome{Granted}},
		},
		{
			name: "exact missing outcome refuses", policy: MatchExact,
			pending: Set{"A", "B"}, resp: Response{Set{"A", "B"}, []Outcome{Granted}},
			wantMatch: true, wantRefused: []string{"B"},
		},
		{
			name: "unordered reordered grants", policy: MatchUnordered,
			pending: Set{"A", "B"}, resp: Response{Set{"B", "A"}, []Outcome{Granted, Granted}},
			wantMatch: true, wantGranted: true,
		},
		{
			name: "unordered reads outcome per identifier", policy: MatchUnordered,
			pending: Set{"A", "B", "C"}, resp: Response{Set{"C", "B", "A"}, []Outcome{Denied, Granted, Denied}},
			wantMatch: true, wantRefused: []string{"A", "C"},
		},
		{
			name: "unordered deduplicated response", policy: MatchUnordered,
			pending: Set{"A", "A", "B"}, resp: Response{Set{"B", "A"}, []Outcome{Granted, Granted}},
			wantMatch: true, wantGranted: true,
		},
		{
			name: "unordered different members", policy: MatchUnordered,
			pending: Set{"A", "B"}, resp: Response{Set{"A", "C"}, []Outcome{Granted, Granted}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := tc.policy.judge(tc.pending, tc.resp)
			if v.matched != tc.wantMatch || v.granted != tc.wantGranted {
				t.Errorf("matched=%v granted=%v, want %v %v", v.matched, v.granted, tc.wantMatch, tc.wantGranted)
			}
			if diff := cmp.Diff(tc.wantRefused, v.refused); diff != "" {
				t.Errorf("refused (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseMatchPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MatchPolicy
		wantErr bool
	}{
		{"", MatchExact, false},
		{"exact", MatchExact, false},
		{"UNORDERED", MatchUnordered, false},
		{"fuzzy", MatchExact, true},
	}
	for _, tc := range tests {
		got, err := ParseMatchPolicy(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseMatchPolicy(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestOutcomeJSON(t *testing.T) {
	var resp Response
	if err := json.Unmarshal([]byte(`{"permissions":["A","B"],"outcomes":["granted","Denied"]}`), &resp); err != nil {
		t.Fatal(err)
	}
	want := Response{Permissions: Set{"A", "B"}, Outcomes: []Outcome{Granted, Denied}}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	out, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"permissions":["A","B"],"outcomes":["granted","denied"]}` {
		t.Errorf("marshal = %s", out)
	}

	if err := json.Unmarshal([]byte(`{"outcomes":["maybe"]}`), &resp); err == nil {
		t.Error("expected unknown outcome to fail")
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Match != "exact" {
		t.Errorf("default match = %q", cfg.Match)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}
	bad := Config{Match: "fuzzy"}
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid match policy to fail validation")
	}
}

func TestStateNames(t *testing.T) {
	if AwaitingResponse.String() != "awaiting_response" || State(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
	if !ImmediateGrant.Granted() || Rejected.Granted() || !Cancelled.Terminal() || AwaitingResponse.Terminal() {
		t.Error("unexpected state predicates")
	}
}

func TestStatusTable(t *testing.T) {
	table := NewStatusTable(map[string]Outcome{"CAMERA": Granted})

	if ok, _ := table.IsGranted(context.Background(), "CAMERA"); !ok {
		t.Error("seeded permission should be granted")
	}
	if ok, _ := table.IsGranted(context.Background(), "LOCATION"); ok {
		t.Error("unknown permission must not be granted")
	}

	table.Apply(Response{Permissions: Set{"LOCATION", "CAMERA", "MIC"}, Outcomes: []Outcome{Granted, Denied}})
	want := map[string]Outcome{"LOCATION": Granted, "CAMERA": Denied}
	if diff := cmp.Diff(want, table.Snapshot()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if _, ok := table.Lookup("MIC"); ok {
		t.Error("permission without an outcome should not be recorded")
	}
	table.Set("MIC", Granted)
	if o, ok := table.Lookup("MIC"); !ok || o != Granted {
		t.Error("Set did not record")
	}
}
