package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionOf(t *testing.T) {
	for _, tc := range []struct {
		name string
		info *debug.BuildInfo
		exp  string
	}{
		{
			name: "main module",
			info: &debug.BuildInfo{Main: debug.Module{Path: modulePath, Version: "v0.1.0"}},
			exp:  "v0.1.0",
		},
		{
			name: "main module from a checkout",
			info: &debug.BuildInfo{Main: debug.Module{Path: modulePath, Version: "(devel)"}},
			exp:  Default,
		},
		{
			name: "dependency",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/jit"},
				Deps: []*debug.Module{
					{Path: "github.com/stretchr/testify", Version: "v1.7.0"},
					{Path: modulePath, Version: "v0.0.0-20221014123113-1948909ec0b1"},
				},
			},
			exp: "v0.0.0-20221014123113-1948909ec0b1",
		},
		{
			name: "replaced dependency",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/jit"},
				Deps: []*debug.Module{{Path: modulePath, Version: "v0.1.0", Replace: &debug.Module{Path: "../regloc"}}},
			},
			exp: Default,
		},
		{
			name: "not found",
			info: &debug.BuildInfo{Main: debug.Module{Path: "example.com/jit"}},
			exp:  Default,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.exp, versionOf(tc.info))
		})
	}
}

func TestGetReglocVersion(t *testing.T) {
	require.NotEmpty(t, GetReglocVersion())

	defer func(v string) { version = v }(version)
	version = "v9.9.9"
	require.Equal(t, "v9.9.9", GetReglocVersion())
}
