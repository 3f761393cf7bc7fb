package bootstrap

import (
	"github.com/kbukum/permgate/config"
)

// Config is satisfied by any struct embedding config.ServiceConfig that
// also has its own ApplyDefaults and Validate.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
