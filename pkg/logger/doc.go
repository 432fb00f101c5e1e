// Package logger builds the slog.Logger the engine's services share.
//
// Production gets JSON at info level for log aggregation; development gets
// text at debug level. Attr helpers keep the attribute keys the handlers
// and sweeper use consistent across packages.
package logger
