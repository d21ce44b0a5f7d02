// Package logx provides structured logging for cantinabot.
//
// It wraps zerolog behind a small Logger facade so components don't depend on
// a concrete logging backend, and a Service that owns the configured sinks
// (console, file, optional Telegram) and can swap them at runtime when the
// config file is reloaded.
package logx
