package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauntlet-ci/gauntlet/internal/command"
	"github.com/gauntlet-ci/gauntlet/internal/config"
)

func testDockerConfig() config.DockerConfig {
	return config.DockerConfig{
		Repository: "ghcr.io/eventstore",
		Image:      "eventstore",
	}
}

func testProvisionConfig() config.ProvisionConfig {
	return config.ProvisionConfig{
		DefaultChannel: "stable",
		Channels: map[string]string{
			"stable": "24.10",
			"lts":    "23.10",
			"ci":     "ci",
		},
	}
}

func TestResolve_DefaultChannel(t *testing.T) {
	t.Parallel()

	r := NewResolver(testDockerConfig(), testProvisionConfig(), command.NewMockRunner())
	ref, err := r.Resolve(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, "ghcr.io/eventstore/eventstore:24.10", ref.String())
}

func TestResolve_ExplicitChannel(t *testing.T) {
	t.Parallel()

	r := NewResolver(testDockerConfig(), testProvisionConfig(), command.NewMockRunner())
	ref, err := r.Resolve(context.Background(), Request{Channel: "lts"})

	require.NoError(t, err)
	assert.Equal(t, "23.10", ref.Tag)
}

func TestResolve_VersionOverridesChannel(t *testing.T) {
	t.Parallel()

	r := NewResolver(testDockerConfig(), testProvisionConfig(), command.NewMockRunner())
	ref, err := r.Resolve(context.Background(), Request{Channel: "lts", Version: "25.0.0-rc1"})

	require.NoError(t, err)
	assert.Equal(t, "25.0.0-rc1", ref.Tag)
}

func TestResolve_UnknownChannel(t *testing.T) {
	t.Parallel()

	r := NewResolver(testDockerConfig(), testProvisionConfig(), command.NewMockRunner())
	_, err := r.Resolve(context.Background(), Request{Channel: "nightly"})

	require.Error(t, err)
	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "resolve", provErr.Stage)
	assert.Contains(t, err.Error(), `unknown channel "nightly"`)
}

func TestResolve_NoChannelNoDefault(t *testing.T) {
	t.Parallel()

	prov := testProvisionConfig()
	prov.DefaultChannel = ""
	r := NewResolver(testDockerConfig(), prov, command.NewMockRunner())
	_, err := r.Resolve(context.Background(), Request{})

	require.Error(t, err)
}

func TestResolve_PullRunsDockerPull(t *testing.T) {
	t.Parallel()

	prov := testProvisionConfig()
	prov.Pull = true
	mock := command.NewMockRunner()
	r := NewResolver(testDockerConfig(), prov, mock)

	_, err := r.Resolve(context.Background(), Request{})
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "docker", calls[0].Name)
	assert.Equal(t, []string{"pull", "ghcr.io/eventstore/eventstore:24.10"}, calls[0].Args)
}

func TestResolve_BuildCommandRunsBeforePull(t *testing.T) {
	t.Parallel()

	prov := testProvisionConfig()
	prov.Pull = true
	prov.BuildCommand = []string{"make", "docker-image"}
	mock := command.NewMockRunner()
	r := NewResolver(testDockerConfig(), prov, mock)

	_, err := r.Resolve(context.Background(), Request{})
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "make", calls[0].Name)
	assert.Equal(t, "docker", calls[1].Name)
}

func TestResolve_FailedPullIsProvisionError(t *testing.T) {
	t.Parallel()

	prov := testProvisionConfig()
	prov.Pull = true
	mock := command.NewMockRunner().WithRunFunc(func(ctx context.Context, spec command.Spec) (*command.Result, error) {
		return &command.Result{ExitCode: 1, Stderr: "manifest unknown"}, nil
	})
	r := NewResolver(testDockerConfig(), prov, mock)

	_, err := r.Resolve(context.Background(), Request{})
	require.Error(t, err)
	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "pull", provErr.Stage)
	assert.Contains(t, err.Error(), "manifest unknown")
}

func TestResolve_RunnerErrorIsProvisionError(t *testing.T) {
	t.Parallel()

	prov := testProvisionConfig()
	prov.BuildCommand = []string{"make", "docker-image"}
	mock := command.NewMockRunner().WithRunFunc(func(ctx context.Context, spec command.Spec) (*command.Result, error) {
		return nil, errors.New("exec: make not found")
	})
	r := NewResolver(testDockerConfig(), prov, mock)

	_, err := r.Resolve(context.Background(), Request{})
	require.Error(t, err)
	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "build", provErr.Stage)
}

func TestResolve_IsIdempotent(t *testing.T) {
	t.Parallel()

	prov := testProvisionConfig()
	prov.Pull = true
	mock := command.NewMockRunner()
	r := NewResolver(testDockerConfig(), prov, mock)

	first, err := r.Resolve(context.Background(), Request{})
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.CallCount(), "repeat resolution must not re-run side effects")
}

func TestEnvironmentRefString_NoRepository(t *testing.T) {
	t.Parallel()

	ref := EnvironmentRef{Image: "eventstore", Tag: "ci"}
	assert.Equal(t, "eventstore:ci", ref.String())
}
