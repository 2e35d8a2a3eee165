package main

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tetratelabs/regloc"
)

// envPrefix is the prefix of the environment variables overriding the configuration, e.g. REGLOC_ARCH.
const envPrefix = "regloc"

// encodeConf is the configuration of the encode command, read from flags, environment variables and an optional
// config file, in that order of precedence.
type encodeConf struct {
	Arch         int    `mapstructure:"arch"`
	BaseAddress  uint64 `mapstructure:"base_address"`
	ReuseScratch bool   `mapstructure:"reuse_scratch"`
	Trace        bool   `mapstructure:"trace"`
}

// confFlags maps the configuration keys to the flags setting them.
var confFlags = map[string]string{
	"arch":          "arch",
	"base_address":  "base-address",
	"reuse_scratch": "reuse-scratch",
	"trace":         "trace",
}

func loadEncodeConf(cmd *cobra.Command, cfgFile string) (*encodeConf, error) {
	viperObj := viper.New()
	viperObj.SetEnvPrefix(envPrefix)
	viperObj.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viperObj.AutomaticEnv()

	for key, name := range confFlags {
		if err := viperObj.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, errors.Wrapf(err, "bind flag %s", name)
		}
	}

	if cfgFile != "" {
		viperObj.SetConfigFile(cfgFile)
		if err := viperObj.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", cfgFile)
		}
	}

	conf := &encodeConf{}
	hook := mapstructure.ComposeDecodeHookFunc(stringToAddressHookFunc())
	if err := viperObj.Unmarshal(conf, viper.DecodeHook(hook)); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return conf, nil
}

// arch returns the target architecture named by its address width.
func (c *encodeConf) arch() (regloc.Arch, error) {
	switch c.Arch {
	case 32:
		return regloc.Arch32, nil
	case 64:
		return regloc.Arch64, nil
	}
	return 0, fmt.Errorf("unsupported architecture %d: must be 32 or 64", c.Arch)
}

func (c *encodeConf) encoderConfig() (*regloc.EncoderConfig, error) {
	arch, err := c.arch()
	if err != nil {
		return nil, err
	}
	return regloc.NewEncoderConfig().WithArch(arch).WithBaseAddress(c.BaseAddress), nil
}

// stringToAddressHookFunc decodes strings such as "0xFEDCBA98" or "4096" into uint64 fields.
func stringToAddressHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Uint64 {
			return data, nil
		}
		return parseAddress(data.(string))
	}
}

func parseAddress(s string) (uint64, error) {
	s, base := strings.ReplaceAll(strings.TrimSpace(s), "_", ""), 10
	if s == "" {
		return 0, nil
	}
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid address")
	}
	return v, nil
}
