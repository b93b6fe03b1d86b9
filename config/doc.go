// Package config loads service configuration with Viper and .env files with
// godotenv.
//
// A config file (YAML, JSON or TOML) provides the base values, a .env file is
// loaded into the process environment, and every environment variable is then
// bound onto matching keys so that SERVER_PORT overrides server.port.
//
// # Usage
//
//	var eco supervisor.Ecosystem
//	err := config.LoadConfig("primepos", &eco, config.WithConfigFile("ecosystem.yml"))
//
// Durations accept Go syntax ("1.5s") or a bare number of milliseconds.
//
// ReadEnvFile parses a .env file without touching the process environment,
// for callers that build a child environment explicitly.
package config
