// Package config loads leadflow configuration and the declarative agent and
// task definitions the crews are built from. Precedence: built-in defaults,
// then the YAML file, then LEADFLOW_* environment variables.
package config
