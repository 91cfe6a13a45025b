package buildinfo_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauntlet-ci/gauntlet/internal/buildinfo"
)

// TestDefaultValues verifies the package-level variables hold their expected
// defaults when not overridden by ldflags at build time.
func TestDefaultValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dev", buildinfo.Version)
	assert.Equal(t, "unknown", buildinfo.Commit)
	assert.Equal(t, "unknown", buildinfo.Date)
}

func TestGetInfo_PopulatedFromPackageVars(t *testing.T) {
	t.Parallel()

	info := buildinfo.GetInfo()

	assert.Equal(t, buildinfo.Version, info.Version)
	assert.Equal(t, buildinfo.Commit, info.Commit)
	assert.Equal(t, buildinfo.Date, info.Date)
}

func TestInfoString_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info buildinfo.Info
		want string
	}{
		{
			name: "default values",
			info: buildinfo.Info{Version: "dev", Commit: "unknown", Date: "unknown"},
			want: "gauntlet vdev (commit: unknown, built: unknown)",
		},
		{
			name: "release values",
			info: buildinfo.Info{Version: "1.2.0", Commit: "a1b2c3d", Date: "2026-08-25T10:00:00Z"},
			want: "gauntlet v1.2.0 (commit: a1b2c3d, built: 2026-08-25T10:00:00Z)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestInfo_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	info := buildinfo.Info{Version: "1.0.0", Commit: "deadbee", Date: "2026-01-01T00:00:00Z"}

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var decoded buildinfo.Info
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, info, decoded)
}
