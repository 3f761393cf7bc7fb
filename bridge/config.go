package bridge

import (
	"fmt"
	"time"

	"github.com/kbukum/permgate/resilience"
)

// Config holds the bridge HTTP server configuration.
type Config struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	ReadTimeout  int    `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds

	// KeepAlive is the SSE keep-alive comment interval in seconds.
	KeepAlive int `yaml:"keep_alive" mapstructure:"keep_alive"`

	// JWTSecret enables HS256 bearer auth on result delivery when set.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`

	// Issuer is the required "iss" claim when auth is enabled.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`

	// RateLimit bounds result deliveries across all hosts. Zero rate disables it.
	RateLimit resilience.RateLimiterConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 30
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("bridge.read_timeout must be non-negative (got: %d)", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("bridge.write_timeout must be non-negative (got: %d)", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("bridge.idle_timeout must be non-negative (got: %d)", c.IdleTimeout)
	}
	if c.KeepAlive < 0 {
		return fmt.Errorf("bridge.keep_alive must be non-negative (got: %d)", c.KeepAlive)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("bridge.rate_limit: %w", err)
	}
	if c.Issuer != "" && c.JWTSecret == "" {
		return fmt.Errorf("bridge.issuer requires bridge.jwt_secret")
	}
	return nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
