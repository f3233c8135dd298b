// Package config provides configuration management for parley.
//
// Configuration is read from a YAML file (parley.yaml by default), completed
// with defaults, overridden from the environment and validated.
//
// # Configuration Loading
//
//	cfg, err := config.Load("parley.yaml", true)
//
// Load first reads a .env file from the working directory into the process
// environment without overriding variables that are already set.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PARLEY_SECTION_FIELD:
//
//   - PARLEY_ROUTING_DEFAULT overrides routing.default
//   - PARLEY_PROVIDERS_DEEPSEEK_MODEL overrides providers.deepseek.model
//   - PARLEY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// API keys are resolved lazily by Config.Provider: a key absent from the
// file is read from GOOGLE_API_KEY, DEEPSEEK_API_KEY or OPENAI_API_KEY when
// the provider is first constructed.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// Watcher reloads the file on change and hands valid configurations to a
// callback. The CLI uses it to re-register provider constructors; provider
// instances that already exist are not rebuilt.
package config
