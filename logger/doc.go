// Package logger provides structured logging for permgate using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with map-based structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.New(&cfg.Logging, "permgate").WithComponent("gate")
//	log.Debug("prompt issued", logger.Fields(logger.FieldPermissions, denied))
package logger
