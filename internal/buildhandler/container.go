package buildhandler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// Runtime wraps the Docker SDK client for the scoped container lifetime
// every BuildHandler variant needs: start a long-running build image,
// exec compile/test commands inside it, tear it down on every exit
// path. Grounded on the NewClientWithOpts(WithAPIVersionNegotiation,
// WithHost) construction pattern used elsewhere in the pack for local
// Docker-socket access.
type Runtime struct {
	cli *dockerclient.Client
}

// NewRuntime connects to the Docker daemon at host (empty string uses
// the SDK default: DOCKER_HOST env var or the platform socket).
func NewRuntime(host string) (*Runtime, error) {
	opts := []dockerclient.Opt{dockerclient.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, dockerclient.WithHost(host))
	}
	cli, err := dockerclient.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("buildhandler: docker client: %w", err)
	}
	return &Runtime{cli: cli}, nil
}

// Close releases the underlying client's connection pool.
func (r *Runtime) Close() error {
	return r.cli.Close()
}

// StartKeepAlive creates and starts a container from image, bind-mounting
// repoDir at /repo, running as the host uid:gid, kept alive with a
// `tail -f /dev/null` entrypoint so later Exec calls can run against it.
func (r *Runtime) StartKeepAlive(ctx context.Context, imageName, repoDir string) (string, error) {
	if _, _, err := r.cli.ImageInspectWithRaw(ctx, imageName); err != nil {
		reader, pullErr := r.cli.ImagePull(ctx, imageName, image.PullOptions{})
		if pullErr != nil {
			return "", fmt.Errorf("buildhandler: pull image %s: %w", imageName, pullErr)
		}
		defer reader.Close()
		io.Copy(io.Discard, reader)
	}

	uid, gid := os.Getuid(), os.Getgid()
	resp, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      imageName,
			Entrypoint: []string{"tail", "-f", "/dev/null"},
			User:       fmt.Sprintf("%d:%d", uid, gid),
			WorkingDir: "/repo",
		},
		&container.HostConfig{
			Mounts: []mount.Mount{{
				Type:   mount.TypeBind,
				Source: repoDir,
				Target: "/repo",
			}},
			AutoRemove: false,
		},
		nil, nil, "",
	)
	if err != nil {
		return "", fmt.Errorf("buildhandler: create container: %w", err)
	}

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("buildhandler: start container: %w", err)
	}
	return resp.ID, nil
}

// Stop kills and removes containerID. Safe to call on an already-gone
// container; errors are swallowed since this always runs during teardown.
func (r *Runtime) Stop(ctx context.Context, containerID string) {
	if containerID == "" {
		return
	}
	_ = r.cli.ContainerKill(ctx, containerID, "KILL")
	_ = r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true, RemoveVolumes: true})
}

// ExecResult carries the combined output and exit status of a command
// run inside a container via Exec.
type ExecResult struct {
	Output   string
	ExitCode int
}

// Exec runs cmd inside containerID and returns its combined stdout+stderr
// and exit code. ctx should carry the caller's soft timeout.
func (r *Runtime) Exec(ctx context.Context, containerID string, cmd []string) (ExecResult, error) {
	created, err := r.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("buildhandler: exec create: %w", err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("buildhandler: exec attach: %w", err)
	}
	defer attach.Close()

	// The attach stream multiplexes stdout/stderr with frame headers;
	// demultiplex into one combined buffer.
	var buf bytes.Buffer
	_, _ = stdcopy.StdCopy(&buf, &buf, attach.Reader)

	deadline := time.Now().Add(time.Hour)
	for {
		inspect, err := r.cli.ContainerExecInspect(ctx, created.ID)
		if err != nil {
			return ExecResult{}, fmt.Errorf("buildhandler: exec inspect: %w", err)
		}
		if !inspect.Running {
			return ExecResult{Output: buf.String(), ExitCode: inspect.ExitCode}, nil
		}
		if time.Now().After(deadline) {
			return ExecResult{Output: buf.String(), ExitCode: -1}, fmt.Errorf("buildhandler: exec timed out after one hour")
		}
		select {
		case <-ctx.Done():
			return ExecResult{Output: buf.String(), ExitCode: -1}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
