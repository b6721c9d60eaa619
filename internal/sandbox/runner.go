// Package sandbox runs untrusted learner code in isolated, resource-bounded
// Docker containers.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"codetutor/internal/domain"
)

const (
	// Resource limits for learner containers.
	memoryLimitBytes = 256 * 1024 * 1024 // 256MB
	nanoCPUs         = 500_000_000       // 0.5 CPU
	pidsLimit        = 128

	// Grace period added to the execution timeout before the attached
	// output stream is abandoned.
	streamGracePeriod = 2 * time.Second

	teardownTimeout = 30 * time.Second
)

// Runner executes code submissions in an isolated environment.
type Runner interface {
	// Execute runs code with the given wall-clock timeout. A result with
	// Success=false is a normal outcome, not an error; errors indicate
	// infrastructure failures (allocation, start, teardown).
	Execute(ctx context.Context, code string, timeout time.Duration) (*domain.ExecutionResult, error)

	// ExecuteWithTests runs the submission with grading code appended,
	// under the runner's default timeout.
	ExecuteWithTests(ctx context.Context, code, testCode string) (*domain.ExecutionResult, error)
}

// dockerAPI is the slice of the Docker client the runner consumes. Narrowed
// so tests can substitute a fake runtime.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecStartOptions) (types.HijackedResponse, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// DockerRunner implements Runner using the Docker API.
type DockerRunner struct {
	cli            dockerAPI
	image          string
	defaultTimeout time.Duration
}

// NewDockerRunner creates a Docker-backed runner. The image is assumed to be
// present on the host; building it is out of scope here.
func NewDockerRunner(image string, defaultTimeout time.Duration) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	slog.Info("Sandbox runner initialized", "image", image, "default_timeout", defaultTimeout)
	return &DockerRunner{cli: cli, image: image, defaultTimeout: defaultTimeout}, nil
}

// Execute runs the submitted code in a fresh container and tears the
// container down on every exit path. A teardown failure is propagated even
// when execution itself succeeded.
func (r *DockerRunner) Execute(ctx context.Context, code string, timeout time.Duration) (res *domain.ExecutionResult, err error) {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	start := time.Now()
	containerName := fmt.Sprintf("learner-code-%s", uuid.New())

	// The container's main process is a sleep sized to the execution
	// timeout, so a runaway submission cannot outlive its budget even if
	// the attached stream is abandoned.
	config := &container.Config{
		Image:        r.image,
		Tty:          false,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          strslice.StrSlice{"sleep", strconv.Itoa(int(timeout / time.Second))},
	}
	hostConfig := &container.HostConfig{
		NetworkMode: container.NetworkMode("none"),
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			NanoCPUs:  nanoCPUs,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}

	created, err := r.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, containerName)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	// Teardown is unconditional and not cancellable: even when the caller
	// abandons the request, the container must not leak.
	defer func() {
		if removeErr := r.remove(created.ID); removeErr != nil {
			slog.Error("Sandbox teardown failed", "error", removeErr, "container_id", created.ID)
			if err == nil {
				res, err = nil, fmt.Errorf("sandbox teardown: %w", removeErr)
			}
		}
	}()

	if err := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container %s: %w", created.ID, err)
	}

	stdout, stderr, err := r.exec(ctx, created.ID, code, timeout)
	if err != nil {
		return nil, err
	}

	res = &domain.ExecutionResult{
		Success:         stderr == "",
		Output:          stdout,
		Error:           stderr,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}
	slog.Info("Sandbox execution finished",
		"container_id", created.ID,
		"success", res.Success,
		"elapsed_ms", res.ExecutionTimeMS,
	)
	return res, nil
}

// ExecuteWithTests appends grading code to the submission and runs the
// combined program under the same guarantees as Execute.
func (r *DockerRunner) ExecuteWithTests(ctx context.Context, code, testCode string) (*domain.ExecutionResult, error) {
	return r.Execute(ctx, code+"\n\n"+testCode, r.defaultTimeout)
}

// exec runs the code inside the container and collects stdout and stderr
// separately until the process exits or the timeout elapses.
func (r *DockerRunner) exec(ctx context.Context, containerID, code string, timeout time.Duration) (string, string, error) {
	execResp, err := r.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          []string{"python3", "-c", code},
	})
	if err != nil {
		return "", "", fmt.Errorf("create exec: %w", err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return "", "", fmt.Errorf("attach exec %s: %w", execResp.ID, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		done <- copyErr
	}()

	timer := time.NewTimer(timeout + streamGracePeriod)
	defer timer.Stop()

	select {
	case copyErr := <-done:
		if copyErr != nil {
			return "", "", fmt.Errorf("collect exec output: %w", copyErr)
		}
		return stdout.String(), stderr.String(), nil
	case <-timer.C:
		// An expired submission is a grading outcome, not an
		// infrastructure failure. Close the attach to stop the copier
		// and wait for it before touching the buffers.
		attach.Close()
		<-done
		return stdout.String(), fmt.Sprintf("execution timed out after %s", timeout), nil
	case <-ctx.Done():
		attach.Close()
		<-done
		return stdout.String(), fmt.Sprintf("execution canceled: %s", ctx.Err()), nil
	}
}

// remove force-removes the container under a background context so teardown
// survives caller cancellation. A missing container is fine; any other
// failure is reported distinctly from code-execution errors.
func (r *DockerRunner) remove(containerID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if err := r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove container %s: %w", containerID, err)
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
