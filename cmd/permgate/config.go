package main

import (
	"fmt"
	"time"

	"github.com/kbukum/permgate/behavior"
	"github.com/kbukum/permgate/bridge"
	"github.com/kbukum/permgate/config"
	"github.com/kbukum/permgate/observability"
	"github.com/kbukum/permgate/permission"
	"github.com/kbukum/permgate/resilience"
)

// AppConfig is the permgate configuration file layout.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Gate          permission.Config     `yaml:"gate" mapstructure:"gate"`
	ErrorPolicy   behavior.PolicyConfig `yaml:"error_policy" mapstructure:"error_policy"`
	Bridge        bridge.Config         `yaml:"bridge" mapstructure:"bridge"`
	Observability observability.Config  `yaml:"observability" mapstructure:"observability"`
	Require       RequireConfig         `yaml:"require" mapstructure:"require"`
}

// RequireConfig lists permissions the host must grant after startup.
type RequireConfig struct {
	Permissions []string               `yaml:"permissions" mapstructure:"permissions"`
	Retry       resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`

	// Timeout bounds each prompt. Zero waits for the answer indefinitely.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills every section.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Gate.ApplyDefaults()
	c.Bridge.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Require.Retry.ApplyDefaults()
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Gate.Validate(); err != nil {
		return err
	}
	if err := c.ErrorPolicy.Validate(); err != nil {
		return err
	}
	if err := c.Bridge.Validate(); err != nil {
		return err
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	for i, p := range c.Require.Permissions {
		if p == "" {
			return fmt.Errorf("require.permissions[%d] is empty", i)
		}
	}
	if c.Require.Timeout < 0 {
		return fmt.Errorf("require.timeout must not be negative")
	}
	if err := c.Require.Retry.Validate(); err != nil {
		return fmt.Errorf("require.retry: %w", err)
	}
	return nil
}
