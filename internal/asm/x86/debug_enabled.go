//go:build debug_asm

package x86

import (
	"log/slog"
	"os"
)

// defaultLogger traces every encoded instruction to stderr when built with the debug_asm tag.
func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
