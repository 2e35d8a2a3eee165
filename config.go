package regloc

import (
	"log/slog"

	"github.com/tetratelabs/regloc/internal/asm"
)

// EncoderConfig controls encoder behavior, with the default implementation as NewEncoderConfig
type EncoderConfig struct {
	arch        asm.Arch
	baseAddress uint64
	logger      *slog.Logger
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &EncoderConfig{
	arch: asm.Arch64,
}

// clone ensures all fields are coped even if nil.
func (c *EncoderConfig) clone() *EncoderConfig {
	return &EncoderConfig{
		arch:        c.arch,
		baseAddress: c.baseAddress,
		logger:      c.logger,
	}
}

// NewEncoderConfig returns the configuration of a 64-bit encoder whose code is placed at address zero.
func NewEncoderConfig() *EncoderConfig {
	return defaultConfig.clone()
}

// WithArch sets the target architecture, one of Arch32 or Arch64. Defaults to Arch64.
//
// Note: NewEncoder fails for any other value.
func (c *EncoderConfig) WithArch(arch Arch) *EncoderConfig {
	ret := c.clone()
	ret.arch = arch
	return ret
}

// WithBaseAddress sets the address at which the first byte of the code will be placed. Defaults to zero.
//
// Relative JMP and CALL to an immediate target are computed from this address.
func (c *EncoderConfig) WithBaseAddress(addr uint64) *EncoderConfig {
	ret := c.clone()
	ret.baseAddress = addr
	return ret
}

// WithLogger sets the logger receiving one debug record per encoded instruction. Defaults to nil, which disables
// tracing unless built with the debug_asm tag.
func (c *EncoderConfig) WithLogger(logger *slog.Logger) *EncoderConfig {
	ret := c.clone()
	ret.logger = logger
	return ret
}

// Arch returns the target architecture.
func (c *EncoderConfig) Arch() Arch {
	return c.arch
}

// BaseAddress returns the address given by WithBaseAddress.
func (c *EncoderConfig) BaseAddress() uint64 {
	return c.baseAddress
}
