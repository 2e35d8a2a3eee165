//go:build !debug_asm

package x86

import "log/slog"

// defaultLogger returns the logger used when none is given by SetLogger.
// Encoders are silent by default, and building with the debug_asm tag makes every encoder trace to stderr.
func defaultLogger() *slog.Logger {
	return nil
}
