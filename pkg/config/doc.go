// Package config loads environment-backed configuration structs.
//
// Every configurable component exposes a Config struct with `env` tags;
// this package parses the environment into it exactly once per type and
// hands back the cached copy on later calls. A .env file, when present,
// is loaded before the first parse.
package config
