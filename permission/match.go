package permission

import (
	"fmt"
	"slices"
	"strings"
)

// MatchPolicy decides whether a response answers a pending request.
type MatchPolicy int

const (
	// MatchExact requires the same identifiers in the same order.
	MatchExact MatchPolicy = iota
	// MatchUnordered requires the same identifiers as a set. Duplicates
	// collapse and outcomes are looked up per identifier, so a host that
	// reorders or deduplicates the request still resolves the gate.
	MatchUnordered
)

func (p MatchPolicy) String() string {
	switch p {
	case MatchUnordered:
		return "unordered"
	default:
		return "exact"
	}
}

// ParseMatchPolicy parses "exact" or "unordered". Empty means exact.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch strings.ToLower(s) {
	case "", "exact":
		return MatchExact, nil
	case "unordered":
		return MatchUnordered, nil
	}
	return MatchExact, fmt.Errorf("unknown match policy %q (want exact or unordered)", s)
}

// verdict is the result of holding a response against a pending set.
type verdict struct {
	matched bool
	granted bool
	// refused lists the pending identifiers not granted, in request order.
	refused []string
}

// judge compares resp against pending. An unmatched response is unrelated
// and must be ignored. A matched response is granted only when every
// pending identifier is answered Granted; a missing outcome is a refusal.
func (p MatchPolicy) judge(pending Set, resp Response) verdict {
	var refused []string
	switch p {
	case MatchUnordered:
		if !sameMembers(pending, resp.Permissions) {
			return verdict{}
		}
		for perm := range set(pending) {
			if !allGranted(resp, perm) {
				refused = append(refused, perm)
			}
		}
		// Report refusals in request order.
		slices.SortFunc(refused, func(a, b string) int {
			return slices.Index(pending, a) - slices.Index(pending, b)
		})
	default:
		if !slices.Equal(pending, resp.Permissions) {
			return verdict{}
		}
		for i, perm := range pending {
			if i >= len(resp.Outcomes) || resp.Outcomes[i] != Granted {
				refused = append(refused, perm)
			}
		}
	}
	return verdict{matched: true, granted: len(refused) == 0, refused: refused}
}

// allGranted reports whether every occurrence of perm in resp is granted.
func allGranted(resp Response, perm string) bool {
	seen := false
	for i, p := range resp.Permissions {
		if p != perm {
			continue
		}
		if i >= len(resp.Outcomes) || resp.Outcomes[i] != Granted {
			return false
		}
		seen = true
	}
	return seen
}

func sameMembers(a, b Set) bool {
	as, bs := set(a), set(b)
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if _, ok := bs[k]; !ok {
			return false
		}
	}
	return true
}

func set(s Set) map[string]struct{} {
	m := make(map[string]struct{}, len(s))
	for _, v := range s {
		m[v] = struct{}{}
	}
	return m
}
