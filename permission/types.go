package permission

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Set is an ordered list of permission identifiers. The order is echoed
// back by the host and takes part in matching under MatchExact.
type Set []string

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	return slices.Clone(s)
}

// String joins the identifiers for log output.
func (s Set) String() string {
	return strings.Join(s, ",")
}

// Outcome is the user's answer for one permission.
type Outcome int

const (
	Denied Outcome = iota
	Granted
)

func (o Outcome) String() string {
	if o == Granted {
		return "granted"
	}
	return "denied"
}

// ParseOutcome parses "granted" or "denied", case-insensitively.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(s) {
	case "granted":
		return Granted, nil
	case "denied":
		return Denied, nil
	}
	return Denied, fmt.Errorf("unknown permission outcome %q", s)
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Response is one real-world answer to a permission prompt: the set that
// was requested and one outcome per identifier, in the same order.
type Response struct {
	Permissions Set       `json:"permissions"`
	Outcomes    []Outcome `json:"outcomes"`
}
