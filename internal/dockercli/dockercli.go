// Package dockercli implements driver.Driver by shelling out to a docker
// compatible binary (docker or podman). It is the fallback when the
// Engine API socket is not reachable from the daemon but the CLI is.
package dockercli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/kballard/go-shellquote"

	"github.com/p-arndt/labkasten/internal/driver"
)

// result is what one invocation of the binary produced.
type result struct {
	stdout   string
	stderr   string
	exitCode int
}

// runFunc executes the binary. err is non-nil only when the process could
// not be started or was killed; a non-zero exit is reported via exitCode.
type runFunc func(ctx context.Context, binary string, args ...string) (result, error)

// Runtime drives a container engine through its command line.
type Runtime struct {
	Binary string
	// MaxOutput caps the combined exec output kept in bytes; zero keeps all.
	MaxOutput int64

	run    runFunc
	logger *slog.Logger
}

var _ driver.Driver = (*Runtime)(nil)

func New(binary string, logger *slog.Logger) *Runtime {
	if binary == "" {
		binary = "docker"
	}
	return &Runtime{Binary: binary, run: execRun, logger: logger}
}

func execRun(ctx context.Context, binary string, args ...string) (result, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := result{stdout: stdout.String(), stderr: stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.exitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// invoke runs the binary and turns a failed start or non-zero exit into
// a classified driver error. kind is used unless stderr says otherwise.
func (r *Runtime) invoke(ctx context.Context, op string, kind error, args ...string) (string, error) {
	r.logger.Debug("container cli", "cmd", shellquote.Join(append([]string{r.Binary}, args...)...))

	res, err := r.run(ctx, r.Binary, args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", driver.Fail(ctx, op, driver.ErrRuntimeUnavailable, err.Error())
		}
		return "", driver.Fail(ctx, op, kind, strings.TrimSpace(res.stderr+" "+err.Error()))
	}
	if res.exitCode != 0 {
		return res.stdout, driver.Fail(ctx, op, classifyStderr(res.stderr, kind), res.stderr)
	}
	return res.stdout, nil
}

func (r *Runtime) Ping(ctx context.Context) error {
	_, err := r.invoke(ctx, "version", driver.ErrRuntimeUnavailable, "version", "--format", "{{.Server.Version}}")
	return err
}

func (r *Runtime) ImageExists(ctx context.Context, image string) (bool, error) {
	_, err := r.invoke(ctx, "image inspect", driver.ErrNotFound, "image", "inspect", "--format", "{{.Id}}", image)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, driver.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (r *Runtime) PullImage(ctx context.Context, image string) error {
	_, err := r.invoke(ctx, "pull", driver.ErrPullFailed, "pull", "--quiet", image)
	return err
}

func (r *Runtime) RunDetached(ctx context.Context, opts driver.RunOpts) (string, error) {
	args := []string{"run", "-d", "--init", "--restart=no", "--name", opts.Name,
		"-p", fmt.Sprintf("%d:%d", opts.HostPort, opts.InternalPort)}

	for _, k := range slices.Sorted(maps.Keys(opts.Labels)) {
		args = append(args, "--label", k+"="+opts.Labels[k])
	}
	if opts.Resources.NanoCPUs > 0 {
		args = append(args, "--cpus", strconv.FormatFloat(float64(opts.Resources.NanoCPUs)/1e9, 'f', -1, 64))
	}
	if opts.Resources.MemoryBytes > 0 {
		args = append(args, "--memory", strconv.FormatInt(opts.Resources.MemoryBytes, 10))
	}
	if opts.Resources.PidsLimit > 0 {
		args = append(args, "--pids-limit", strconv.FormatInt(opts.Resources.PidsLimit, 10))
	}

	args = append(args, opts.Image)
	args = append(args, opts.Cmd...)

	out, err := r.invoke(ctx, "run", driver.ErrStartFailed, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Runtime) Remove(ctx context.Context, name string) error {
	_, err := r.invoke(ctx, "rm", driver.ErrRuntimeUnavailable, "rm", "-f", name)
	if errors.Is(err, driver.ErrNotFound) {
		return nil
	}
	return err
}

func (r *Runtime) InspectRunning(ctx context.Context, name string) (bool, error) {
	out, err := r.invoke(ctx, "inspect", driver.ErrRuntimeUnavailable,
		"container", "inspect", "--format", "{{.State.Running}}", name)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "true", nil
}

func (r *Runtime) PublishedPorts(ctx context.Context, name string) ([]int, error) {
	out, err := r.invoke(ctx, "inspect", driver.ErrRuntimeUnavailable,
		"container", "inspect", "--format", "{{json .NetworkSettings.Ports}}", name)
	if err != nil {
		return nil, err
	}
	return parsePorts(out)
}

func (r *Runtime) Exec(ctx context.Context, name string, cmd []string) (*driver.ExecResult, error) {
	args := append([]string{"exec", name}, cmd...)
	r.logger.Debug("container cli", "cmd", shellquote.Join(append([]string{r.Binary}, args...)...))

	res, err := r.run(ctx, r.Binary, args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, driver.Fail(ctx, "exec", driver.ErrRuntimeUnavailable, err.Error())
		}
		return nil, driver.Fail(ctx, "exec", driver.ErrRuntimeUnavailable, strings.TrimSpace(res.stderr+" "+err.Error()))
	}
	if kind := engineFailure(res); kind != nil {
		return nil, driver.Fail(ctx, "exec", kind, res.stderr)
	}
	stdout, stderr, truncated := capOutput(res.stdout, res.stderr, r.MaxOutput)
	return &driver.ExecResult{Stdout: stdout, Stderr: stderr, ExitCode: res.exitCode, Truncated: truncated}, nil
}

// capOutput trims stdout then stderr so together they fit in limit bytes.
func capOutput(stdout, stderr string, limit int64) (string, string, bool) {
	if limit <= 0 || int64(len(stdout)+len(stderr)) <= limit {
		return stdout, stderr, false
	}
	if int64(len(stdout)) >= limit {
		return stdout[:limit], "", true
	}
	return stdout, stderr[:limit-int64(len(stdout))], true
}

func (r *Runtime) Logs(ctx context.Context, name string, tailLines int) (string, error) {
	r.logger.Debug("container cli", "cmd", shellquote.Join(r.Binary, "logs", "--tail", strconv.Itoa(tailLines), name))
	res, err := r.run(ctx, r.Binary, "logs", "--tail", strconv.Itoa(tailLines), name)
	if err != nil {
		return "", driver.Fail(ctx, "logs", driver.ErrRuntimeUnavailable, err.Error())
	}
	if res.exitCode != 0 {
		return "", driver.Fail(ctx, "logs", classifyStderr(res.stderr, driver.ErrRuntimeUnavailable), res.stderr)
	}
	// docker logs replays the container's stderr on our stderr.
	return res.stdout + res.stderr, nil
}

// engineFailure reports the error class when a failed exec was rejected by
// the runtime itself (missing or stopped container, daemon down) rather than
// run. Only engine-prefixed diagnostics count: the command's own stderr is
// part of its result whatever it says.
func engineFailure(res result) error {
	if res.exitCode == 0 || res.stdout != "" {
		return nil
	}
	msg := strings.TrimSpace(res.stderr)
	switch {
	case strings.HasPrefix(msg, "Error response from daemon:"),
		strings.HasPrefix(msg, "Cannot connect to the Docker daemon"),
		// podman exits 125 for its own errors
		strings.HasPrefix(msg, "Error:") && res.exitCode == 125:
		return classifyStderr(msg, driver.ErrRuntimeUnavailable)
	}
	return nil
}

// classifyStderr recognises engine diagnostics shared by docker and podman.
func classifyStderr(stderr string, fallback error) error {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "cannot connect to the docker daemon"),
		strings.Contains(s, "is the docker daemon running"),
		strings.Contains(s, "cannot connect to podman"),
		strings.Contains(s, "dockerdesktoplinuxengine"):
		return driver.ErrRuntimeUnavailable
	case strings.Contains(s, "is already in use by container"),
		strings.Contains(s, "the container name") && strings.Contains(s, "already in use"):
		return driver.ErrNameConflict
	case strings.Contains(s, "no such container"),
		strings.Contains(s, "no such object"),
		strings.Contains(s, "no such image"),
		strings.Contains(s, "no container with name or id"),
		strings.Contains(s, "image not known"):
		return driver.ErrNotFound
	case strings.Contains(s, "is not running"):
		return driver.ErrNotFound
	}
	return fallback
}

func parsePorts(out string) ([]int, error) {
	out = strings.TrimSpace(out)
	if out == "" || out == "null" || out == "{}" {
		return nil, nil
	}
	var pm nat.PortMap
	if err := json.Unmarshal([]byte(out), &pm); err != nil {
		return nil, fmt.Errorf("parse port bindings: %w", err)
	}
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
	return ports, nil
}
