// Package config loads service configuration with Viper.
//
// Values come from a YAML file, then a .env file (via godotenv), then the
// process environment. Environment variables use the service prefix and
// underscore-separated paths, so PERMGATE_GATE_MATCH sets gate.match.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("permgate", &cfg, config.WithConfigFile(path))
package config
