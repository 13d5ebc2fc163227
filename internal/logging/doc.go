// Package logging configures log/slog for launchdex.
//
// Logs are JSON lines written to a size-rotated file under ~/.launchdex/logs/,
// optionally mirrored to stderr. Without --debug only warnings and errors are
// kept.
package logging
