// Package config provides configuration loading for the swarm service.
//
// Precedence is defaults -> YAML file -> environment variables. The Store
// type holds the live configuration: coordination settings are read through
// it on every operation, and a polling watcher reloads the file so changes
// are observed without a restart.
package config
