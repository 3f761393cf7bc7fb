package permission

import "fmt"

// Config is the gate configuration section.
type Config struct {
	// Legacy skips every status query and grants immediately, for hosts
	// without runtime permissions.
	Legacy bool `yaml:"legacy" mapstructure:"legacy"`
	// Match selects how responses are correlated: exact or unordered.
	Match string `yaml:"match" mapstructure:"match"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Match == "" {
		c.Match = MatchExact.String()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := ParseMatchPolicy(c.Match); err != nil {
		return fmt.Errorf("gate.match: %w", err)
	}
	return nil
}
