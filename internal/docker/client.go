package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/p-arndt/labkasten/internal/driver"
)

// Client drives the Docker Engine API. It satisfies driver.Driver.
type Client struct {
	docker         *client.Client
	maxOutputBytes int64
}

var _ driver.Driver = (*Client)(nil)

// New connects using the standard DOCKER_HOST/DOCKER_* environment.
// maxOutputBytes caps the combined stdout and stderr of an exec; 0
// disables the cap.
func New(maxOutputBytes int64) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Client{docker: cli, maxOutputBytes: maxOutputBytes}, nil
}

func (c *Client) Close() error {
	return c.docker.Close()
}

// Ping verifies the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.docker.Ping(ctx); err != nil {
		return classify(ctx, "ping", driver.ErrRuntimeUnavailable, err)
	}
	return nil
}

func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, err := c.docker.ImageInspect(ctx, ref)
	if err == nil {
		return true, nil
	}
	if cerrdefs.IsNotFound(err) {
		return false, nil
	}
	return false, classify(ctx, "image inspect", driver.ErrRuntimeUnavailable, err)
}

func (c *Client) PullImage(ctx context.Context, ref string) error {
	reader, err := c.docker.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return classify(ctx, "image pull", driver.ErrPullFailed, err)
	}
	defer reader.Close()

	if err := drainPull(reader); err != nil {
		return classify(ctx, "image pull", driver.ErrPullFailed, err)
	}
	return nil
}

// drainPull consumes the pull progress stream, which must be read to the
// end for the pull to complete. Registry failures (rate limits, denied
// layers) arrive inside the stream after a 200, as a *jsonmessage.JSONError.
func drainPull(r io.Reader) error {
	return jsonmessage.DisplayJSONMessagesStream(r, io.Discard, 0, false, nil)
}

// RunDetached creates and starts a container publishing HostPort -> InternalPort/tcp.
func (c *Client) RunDetached(ctx context.Context, opts driver.RunOpts) (string, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(opts.InternalPort))
	if err != nil {
		return "", driver.Fail(ctx, "container create", driver.ErrStartFailed, err.Error())
	}

	containerCfg := &container.Config{
		Image:        opts.Image,
		Labels:       opts.Labels,
		Cmd:          opts.Cmd,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}

	hostCfg := &container.HostConfig{
		AutoRemove:    false,
		Init:          boolPtr(true),
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostPort: strconv.Itoa(opts.HostPort)}},
		},
		Resources: container.Resources{
			NanoCPUs: opts.Resources.NanoCPUs,
			Memory:   opts.Resources.MemoryBytes,
		},
	}
	if opts.Resources.PidsLimit > 0 {
		hostCfg.Resources.PidsLimit = int64Ptr(opts.Resources.PidsLimit)
	}

	resp, err := c.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		if cerrdefs.IsConflict(err) {
			return "", classify(ctx, "container create", driver.ErrNameConflict, err)
		}
		return "", classify(ctx, "container create", driver.ErrStartFailed, err)
	}

	if err := c.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Clean up on start failure.
		_ = c.docker.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
		return "", classify(ctx, "container start", driver.ErrStartFailed, err)
	}

	return resp.ID, nil
}

// Remove force-removes a container and its anonymous volumes.
func (c *Client) Remove(ctx context.Context, name string) error {
	err := c.docker.ContainerRemove(ctx, name, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return classify(ctx, "container remove", driver.ErrRuntimeUnavailable, err)
	}
	return nil
}

func (c *Client) InspectRunning(ctx context.Context, name string) (bool, error) {
	info, err := c.inspect(ctx, name)
	if err != nil {
		return false, err
	}
	return info.State != nil && info.State.Running, nil
}

func (c *Client) PublishedPorts(ctx context.Context, name string) ([]int, error) {
	info, err := c.inspect(ctx, name)
	if err != nil {
		return nil, err
	}
	if info.NetworkSettings == nil {
		return nil, nil
	}
	return hostPorts(info.NetworkSettings.Ports), nil
}

func (c *Client) inspect(ctx context.Context, name string) (container.InspectResponse, error) {
	info, err := c.docker.ContainerInspect(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return info, classify(ctx, "container inspect", driver.ErrNotFound, err)
		}
		return info, classify(ctx, "container inspect", driver.ErrRuntimeUnavailable, err)
	}
	return info, nil
}

func (c *Client) Exec(ctx context.Context, name string, cmd []string) (*driver.ExecResult, error) {
	execResp, err := c.docker.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		// 409 means the container exists but is not running.
		if cerrdefs.IsNotFound(err) || cerrdefs.IsConflict(err) {
			return nil, classify(ctx, "exec create", driver.ErrNotFound, err)
		}
		return nil, classify(ctx, "exec create", driver.ErrRuntimeUnavailable, err)
	}

	attachResp, err := c.docker.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, classify(ctx, "exec attach", driver.ErrRuntimeUnavailable, err)
	}
	defer attachResp.Close()

	// Demultiplex Docker's stdout/stderr stream (8-byte headers).
	stdout, stderr := newCappedPair(c.maxOutputBytes)
	if _, err := stdcopy.StdCopy(stdout, stderr, attachResp.Reader); err != nil {
		return nil, classify(ctx, "exec read", driver.ErrRuntimeUnavailable, err)
	}

	inspect, err := c.docker.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, classify(ctx, "exec inspect", driver.ErrRuntimeUnavailable, err)
	}

	return &driver.ExecResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  inspect.ExitCode,
		Truncated: stdout.Truncated(),
	}, nil
}

func (c *Client) Logs(ctx context.Context, name string, tailLines int) (string, error) {
	reader, err := c.docker.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tailLines),
	})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return "", classify(ctx, "container logs", driver.ErrNotFound, err)
		}
		return "", classify(ctx, "container logs", driver.ErrRuntimeUnavailable, err)
	}
	defer reader.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, reader); err != nil {
		return "", classify(ctx, "container logs", driver.ErrRuntimeUnavailable, err)
	}
	return out.String(), nil
}

// classify maps an SDK error onto the driver taxonomy. Connection
// failures always win over the operation's default kind.
func classify(ctx context.Context, op string, kind error, err error) error {
	if client.IsErrConnectionFailed(err) {
		kind = driver.ErrRuntimeUnavailable
	}
	return driver.Fail(ctx, op, kind, err.Error())
}

// hostPorts flattens a port map into the distinct host ports it binds.
func hostPorts(pm nat.PortMap) []int {
	seen := make(map[int]bool)
	var ports []int
	for _, bindings := range pm {
		for _, b := range bindings {
			n, err := strconv.Atoi(b.HostPort)
			if err != nil || n <= 0 || seen[n] {
				continue
			}
			seen[n] = true
			ports = append(ports, n)
		}
	}
	return ports
}

func int64Ptr(v int64) *int64 {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}
