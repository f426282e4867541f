package builder

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"

	containertypes "github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/git-wheelhouse/internal/config"
	"github.com/oshokin/git-wheelhouse/internal/domain/release"
)

// mockDockerClient satisfies DockerClient with per-method hooks so
// tests can script the container lifecycle without a daemon.
type mockDockerClient struct {
	containerCreateFunc func(ctx context.Context, options client.ContainerCreateOptions) (client.ContainerCreateResult, error)
	containerStartFunc  func(ctx context.Context, containerID string, options client.ContainerStartOptions) (client.ContainerStartResult, error)
	containerAttachFunc func(ctx context.Context, containerID string, options client.ContainerAttachOptions) (client.ContainerAttachResult, error)
	containerWaitFunc   func(ctx context.Context, containerID string, options client.ContainerWaitOptions) client.ContainerWaitResult
	containerRemoveFunc func(ctx context.Context, containerID string, options client.ContainerRemoveOptions) (client.ContainerRemoveResult, error)

	calls []string
}

func (m *mockDockerClient) ContainerCreate(ctx context.Context, options client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
	m.calls = append(m.calls, "create")
	if m.containerCreateFunc != nil {
		return m.containerCreateFunc(ctx, options)
	}

	return client.ContainerCreateResult{}, errors.New("not implemented")
}

func (m *mockDockerClient) ContainerStart(ctx context.Context, containerID string, options client.ContainerStartOptions) (client.ContainerStartResult, error) {
	m.calls = append(m.calls, "start")
	if m.containerStartFunc != nil {
		return m.containerStartFunc(ctx, containerID, options)
	}

	return client.ContainerStartResult{}, nil
}

func (m *mockDockerClient) ContainerAttach(ctx context.Context, containerID string, options client.ContainerAttachOptions) (client.ContainerAttachResult, error) {
	m.calls = append(m.calls, "attach")
	if m.containerAttachFunc != nil {
		return m.containerAttachFunc(ctx, containerID, options)
	}

	var res client.ContainerAttachResult
	res.Reader = bufio.NewReader(strings.NewReader(""))

	return res, nil
}

func (m *mockDockerClient) ContainerWait(ctx context.Context, containerID string, options client.ContainerWaitOptions) client.ContainerWaitResult {
	m.calls = append(m.calls, "wait")
	if m.containerWaitFunc != nil {
		return m.containerWaitFunc(ctx, containerID, options)
	}

	return waitResult(0, nil)
}

func (m *mockDockerClient) ContainerRemove(ctx context.Context, containerID string, options client.ContainerRemoveOptions) (client.ContainerRemoveResult, error) {
	m.calls = append(m.calls, "remove")
	if m.containerRemoveFunc != nil {
		return m.containerRemoveFunc(ctx, containerID, options)
	}

	return client.ContainerRemoveResult{}, nil
}

func (m *mockDockerClient) Close() error { return nil }

// waitResult builds the buffered channel pair ContainerWait hands back.
func waitResult(exitCode int64, waitErr error) client.ContainerWaitResult {
	errCh := make(chan error, 1)
	resCh := make(chan containertypes.WaitResponse, 1)

	if waitErr != nil {
		errCh <- waitErr
	} else {
		resCh <- containertypes.WaitResponse{StatusCode: exitCode}
	}

	return client.ContainerWaitResult{Error: errCh, Result: resCh}
}

func testContainerBuilder() *builder {
	return &builder{
		cfg: &config.Config{BuildImage: config.DefaultBuildImage},
		desc: release.Descriptor{
			Version:  "2.50.1",
			Platform: release.PlatformLinuxARM64,
		},
	}
}

func TestRunContainerBuild(t *testing.T) {
	t.Parallel()

	var created client.ContainerCreateOptions

	mock := &mockDockerClient{
		containerCreateFunc: func(_ context.Context, options client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
			created = options

			return client.ContainerCreateResult{ID: "build-1"}, nil
		},
		containerAttachFunc: func(_ context.Context, containerID string, _ client.ContainerAttachOptions) (client.ContainerAttachResult, error) {
			require.Equal(t, "build-1", containerID)

			var res client.ContainerAttachResult
			res.Reader = bufio.NewReader(strings.NewReader("make: done\n"))

			return res, nil
		},
		containerRemoveFunc: func(_ context.Context, containerID string, options client.ContainerRemoveOptions) (client.ContainerRemoveResult, error) {
			require.Equal(t, "build-1", containerID)
			require.True(t, options.Force)

			return client.ContainerRemoveResult{}, nil
		},
	}

	b := testContainerBuilder()
	require.NoError(t, b.runContainerBuild(context.Background(), mock, "/work/src", "/work/install"))

	require.Equal(t, []string{"create", "attach", "start", "wait", "remove"}, mock.calls)

	require.Equal(t, config.DefaultBuildImage, created.Config.Image)
	require.Equal(t, []string{"/bin/sh", "-ec", containerBuildScript()}, created.Config.Cmd)
	require.Contains(t, created.HostConfig.Binds, "/work/src:"+containerSrcDir)
	require.Contains(t, created.HostConfig.Binds, "/work/install:"+containerInstallDir)
	require.Equal(t, "arm64", created.Platform.Architecture)
	require.Equal(t, "linux", created.Platform.OS)
}

func TestRunContainerBuild_NonZeroExit(t *testing.T) {
	t.Parallel()

	mock := &mockDockerClient{
		containerCreateFunc: func(_ context.Context, _ client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
			return client.ContainerCreateResult{ID: "build-2"}, nil
		},
		containerWaitFunc: func(_ context.Context, _ string, _ client.ContainerWaitOptions) client.ContainerWaitResult {
			return waitResult(42, nil)
		},
	}

	b := testContainerBuilder()
	err := b.runContainerBuild(context.Background(), mock, "/work/src", "/work/install")
	require.ErrorContains(t, err, "exit code 42")

	// The container is removed even when the build fails.
	require.Equal(t, "remove", mock.calls[len(mock.calls)-1])
}

func TestRunContainerBuild_WaitError(t *testing.T) {
	t.Parallel()

	mock := &mockDockerClient{
		containerCreateFunc: func(_ context.Context, _ client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
			return client.ContainerCreateResult{ID: "build-3"}, nil
		},
		containerWaitFunc: func(_ context.Context, _ string, _ client.ContainerWaitOptions) client.ContainerWaitResult {
			return waitResult(0, errors.New("daemon went away"))
		},
	}

	b := testContainerBuilder()
	err := b.runContainerBuild(context.Background(), mock, "/work/src", "/work/install")
	require.ErrorContains(t, err, "daemon went away")
}

func TestRunContainerBuild_CreateError(t *testing.T) {
	t.Parallel()

	mock := &mockDockerClient{
		containerCreateFunc: func(_ context.Context, _ client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
			return client.ContainerCreateResult{}, errors.New("no such image")
		},
	}

	b := testContainerBuilder()
	err := b.runContainerBuild(context.Background(), mock, "/work/src", "/work/install")
	require.ErrorContains(t, err, "no such image")

	// Nothing was created, so nothing is removed.
	require.Equal(t, []string{"create"}, mock.calls)
}
