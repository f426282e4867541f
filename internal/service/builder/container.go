package builder

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/git-wheelhouse/internal/logger"
)

const (
	// containerSrcDir is where the staged source tree is mounted.
	containerSrcDir = "/src"

	// containerInstallDir is where the install staging tree is mounted.
	containerInstallDir = "/install"
)

// buildDependencies are the Alpine packages needed for a static git build.
var buildDependencies = []string{
	"build-base",
	"autoconf",
	"zlib-dev",
	"zlib-static",
	"openssl-dev",
	"openssl-libs-static",
	"curl-dev",
	"curl-static",
	"expat-dev",
	"expat-static",
}

// DockerClient is the subset of the Docker API the builder uses.
// The real client (*client.Client) implements it; tests inject mocks.
type DockerClient interface {
	ContainerCreate(ctx context.Context, options client.ContainerCreateOptions) (client.ContainerCreateResult, error)
	ContainerStart(ctx context.Context, containerID string, options client.ContainerStartOptions) (client.ContainerStartResult, error)
	ContainerAttach(ctx context.Context, containerID string, options client.ContainerAttachOptions) (client.ContainerAttachResult, error)
	ContainerWait(ctx context.Context, containerID string, options client.ContainerWaitOptions) client.ContainerWaitResult
	ContainerRemove(ctx context.Context, containerID string, options client.ContainerRemoveOptions) (client.ContainerRemoveResult, error)
	Close() error
}

// buildContainer compiles git statically inside a container pinned to
// the target architecture, so linux_aarch64 builds run under emulation
// on x86 hosts.
func (b *builder) buildContainer(ctx context.Context, srcRoot, installDir string) error {
	cli, err := client.New(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("create docker client: %w (is the Docker daemon running?)", err)
	}

	defer func() {
		_ = cli.Close()
	}()

	return b.runContainerBuild(ctx, cli, srcRoot, installDir)
}

// runContainerBuild drives one containerized build against the provided
// Docker client: create, start, stream output, wait, remove.
func (b *builder) runContainerBuild(ctx context.Context, cli DockerClient, srcRoot, installDir string) error {
	script := containerBuildScript()

	created, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image:      b.cfg.BuildImage,
			Cmd:        []string{"/bin/sh", "-ec", script},
			Tty:        true,
			WorkingDir: containerSrcDir,
		},
		HostConfig: &container.HostConfig{
			Binds: []string{
				srcRoot + ":" + containerSrcDir,
				installDir + ":" + containerInstallDir,
			},
		},
		Platform: &ocispec.Platform{
			OS:           "linux",
			Architecture: b.desc.Platform.Arch(),
		},
	})
	if err != nil {
		return fmt.Errorf("create build container from %s: %w (pull the image first if it is missing)",
			b.cfg.BuildImage, err)
	}

	defer func() {
		_, _ = cli.ContainerRemove(ctx, created.ID, client.ContainerRemoveOptions{Force: true})
	}()

	attach, err := cli.ContainerAttach(ctx, created.ID, client.ContainerAttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return fmt.Errorf("attach to build container: %w", err)
	}

	if _, err = cli.ContainerStart(ctx, created.ID, client.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("start build container: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		scanner := bufio.NewScanner(attach.Reader)
		for scanner.Scan() {
			logger.Info(gctx, scanner.Text())
		}

		// The stream ends when the container exits; a read error here is
		// expected on teardown and never fails the build.
		return nil
	})

	wait := cli.ContainerWait(ctx, created.ID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})

	select {
	case err = <-wait.Error:
		if err != nil {
			return fmt.Errorf("wait for build container: %w", err)
		}
	case status := <-wait.Result:
		if status.StatusCode != 0 {
			_ = group.Wait()

			return fmt.Errorf("build failed in container with exit code %d", status.StatusCode)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return group.Wait()
}

// containerBuildScript renders the shell script run inside the build
// container: install the toolchain, build statically, install into the
// mounted staging directory.
func containerBuildScript() string {
	flags := strings.Join(makeArgs(containerInstallDir), " ")

	lines := []string{
		"apk add --no-cache " + strings.Join(buildDependencies, " "),
		fmt.Sprintf(`make -C %s -j"$(nproc)" %s CFLAGS="-O2" LDFLAGS="-static" all strip`, containerSrcDir, flags),
		fmt.Sprintf("make -C %s %s install", containerSrcDir, flags),
	}

	return strings.Join(lines, "\n")
}
