package behavior

import (
	"context"
	"fmt"
	"slices"

	"github.com/kbukum/permgate/errors"
)

// ErrorPolicy replaces selected failures with the shape's benign outcome.
// An empty ignore-set ignores every failure. A failure matches when any
// AppError in its wrap chain carries one of the ignored codes. Failures
// that do not match propagate unchanged.
//
// A Single has no benign value, so an ignored failure there becomes
// errors.Ignorable(cause), which callers test with errors.IsIgnorable.
type ErrorPolicy struct {
	ignore []errors.ErrorCode
}

// NewErrorPolicy returns a policy ignoring failures of the given kinds.
// With no kinds it ignores everything.
func NewErrorPolicy(kinds ...errors.ErrorCode) *ErrorPolicy {
	return &ErrorPolicy{ignore: slices.Clone(kinds)}
}

// IgnoreAll returns a policy that ignores every failure.
func IgnoreAll() *ErrorPolicy {
	return &ErrorPolicy{}
}

// Ignores reports whether err would be replaced by a benign outcome.
func (p *ErrorPolicy) Ignores(err error) bool {
	if err == nil {
		return false
	}
	if len(p.ignore) == 0 {
		return true
	}
	for _, code := range p.ignore {
		if errors.HasCode(err, code) {
			return true
		}
	}
	return false
}

// Prepare does nothing; the policy only rewrites failures.
func (p *ErrorPolicy) Prepare(context.Context) error { return nil }

// Recover implements Behavior.
func (p *ErrorPolicy) Recover(err error) (error, bool) {
	if !p.Ignores(err) {
		return err, false
	}
	if errors.IsIgnorable(err) {
		return err, true
	}
	return errors.Ignorable(err), true
}

// PolicyConfig is the error_policy configuration section.
type PolicyConfig struct {
	// Ignore lists error codes to ignore. Empty ignores every failure.
	Ignore []string `yaml:"ignore" mapstructure:"ignore"`
}

// Validate rejects blank codes.
func (c *PolicyConfig) Validate() error {
	for i, code := range c.Ignore {
		if code == "" {
			return fmt.Errorf("error_policy.ignore[%d] is empty", i)
		}
	}
	return nil
}

// Build returns the configured policy.
func (c *PolicyConfig) Build() *ErrorPolicy {
	kinds := make([]errors.ErrorCode, 0, len(c.Ignore))
	for _, code := range c.Ignore {
		kinds = append(kinds, errors.ErrorCode(code))
	}
	return NewErrorPolicy(kinds...)
}
