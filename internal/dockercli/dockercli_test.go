package dockercli

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/labkasten/internal/driver"
)

type call struct {
	args []string
}

// scripted answers each invocation from a list keyed by the first arg.
type scripted struct {
	calls   []call
	answers map[string]result
	err     error
}

func (s *scripted) run(ctx context.Context, binary string, args ...string) (result, error) {
	s.calls = append(s.calls, call{args: args})
	if s.err != nil {
		return result{}, s.err
	}
	return s.answers[args[0]], nil
}

func newTestRuntime(s *scripted) *Runtime {
	r := New("docker", slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.run = s.run
	return r
}

func TestRunDetachedBuildsArgs(t *testing.T) {
	s := &scripted{answers: map[string]result{"run": {stdout: "abc123\n"}}}
	r := newTestRuntime(s)

	id, err := r.RunDetached(context.Background(), driver.RunOpts{
		Name:         "labkasten_lab_dvwa_u1",
		Image:        "vulnerables/web-dvwa",
		HostPort:     8123,
		InternalPort: 80,
		Labels:       map[string]string{"labkasten.owner": "u1", "labkasten.kind": "lab"},
		Resources:    driver.Resources{NanoCPUs: 1_500_000_000, MemoryBytes: 512 << 20},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	got := strings.Join(s.calls[0].args, " ")
	assert.Equal(t, "run -d --init --restart=no --name labkasten_lab_dvwa_u1 -p 8123:80 "+
		"--label labkasten.kind=lab --label labkasten.owner=u1 --cpus 1.5 --memory 536870912 vulnerables/web-dvwa", got)
}

func TestRunDetachedNameConflict(t *testing.T) {
	s := &scripted{answers: map[string]result{"run": {
		exitCode: 125,
		stderr:   `docker: Error response from daemon: Conflict. The container name "/x" is already in use by container "deadbeef".`,
	}}}
	r := newTestRuntime(s)

	_, err := r.RunDetached(context.Background(), driver.RunOpts{Name: "x", Image: "img", HostPort: 1, InternalPort: 2})
	assert.ErrorIs(t, err, driver.ErrNameConflict)
	assert.Contains(t, driver.Diagnostic(err), "already in use")
}

func TestRunDetachedDaemonDown(t *testing.T) {
	s := &scripted{answers: map[string]result{"run": {
		exitCode: 1,
		stderr:   "Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?",
	}}}
	r := newTestRuntime(s)

	_, err := r.RunDetached(context.Background(), driver.RunOpts{Name: "x", Image: "img", HostPort: 1, InternalPort: 2})
	assert.ErrorIs(t, err, driver.ErrRuntimeUnavailable)
}

func TestImageExists(t *testing.T) {
	s := &scripted{answers: map[string]result{"image": {stdout: "sha256:1\n"}}}
	ok, err := newTestRuntime(s).ImageExists(context.Background(), "img:tag")
	require.NoError(t, err)
	assert.True(t, ok)

	s = &scripted{answers: map[string]result{"image": {exitCode: 1, stderr: "Error: No such image: img:tag"}}}
	ok, err = newTestRuntime(s).ImageExists(context.Background(), "img:tag")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPullFailed(t *testing.T) {
	s := &scripted{answers: map[string]result{"pull": {exitCode: 1, stderr: "pull access denied for nope"}}}
	err := newTestRuntime(s).PullImage(context.Background(), "nope")
	assert.ErrorIs(t, err, driver.ErrPullFailed)
}

func TestRemoveMissingIsNotAnError(t *testing.T) {
	s := &scripted{answers: map[string]result{"rm": {exitCode: 1, stderr: "Error: No such container: ghost"}}}
	assert.NoError(t, newTestRuntime(s).Remove(context.Background(), "ghost"))
}

func TestInspectRunning(t *testing.T) {
	s := &scripted{answers: map[string]result{"container": {stdout: "true\n"}}}
	running, err := newTestRuntime(s).InspectRunning(context.Background(), "c")
	require.NoError(t, err)
	assert.True(t, running)

	s = &scripted{answers: map[string]result{"container": {exitCode: 1, stderr: "Error: No such object: c"}}}
	_, err = newTestRuntime(s).InspectRunning(context.Background(), "c")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestPublishedPorts(t *testing.T) {
	s := &scripted{answers: map[string]result{"container": {
		stdout: `{"22/tcp":[{"HostIp":"0.0.0.0","HostPort":"22345"},{"HostIp":"::","HostPort":"22345"}],"80/tcp":null}`,
	}}}
	ports, err := newTestRuntime(s).PublishedPorts(context.Background(), "c")
	require.NoError(t, err)
	sort.Ints(ports)
	assert.Equal(t, []int{22345}, ports)
}

func TestPublishedPortsNone(t *testing.T) {
	s := &scripted{answers: map[string]result{"container": {stdout: "{}\n"}}}
	ports, err := newTestRuntime(s).PublishedPorts(context.Background(), "c")
	require.NoError(t, err)
	assert.Empty(t, ports)
}

func TestExecNonZeroExitIsAResult(t *testing.T) {
	s := &scripted{answers: map[string]result{"exec": {exitCode: 2, stderr: "ls: /nope: No such file or directory\n"}}}
	res, err := newTestRuntime(s).Exec(context.Background(), "c", []string{"/bin/sh", "-c", "ls /nope"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Stderr, "No such file")
	assert.Equal(t, []string{"exec", "c", "/bin/sh", "-c", "ls /nope"}, s.calls[0].args)
}

func TestExecMissingContainer(t *testing.T) {
	s := &scripted{answers: map[string]result{"exec": {exitCode: 1, stderr: "Error response from daemon: No such container: c"}}}
	_, err := newTestRuntime(s).Exec(context.Background(), "c", []string{"true"})
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestExecCommandStderrIsNotAnEngineError(t *testing.T) {
	for _, stderr := range []string{
		" * apache2 is not running\n",
		"No such container: c\n",
		"Error: no such image in my script\n",
	} {
		s := &scripted{answers: map[string]result{"exec": {exitCode: 3, stderr: stderr}}}
		res, err := newTestRuntime(s).Exec(context.Background(), "c", []string{"/bin/sh", "-c", "service apache2 status"})
		require.NoError(t, err, stderr)
		assert.Equal(t, 3, res.ExitCode)
		assert.Equal(t, stderr, res.Stderr)
	}
}

func TestExecStoppedContainer(t *testing.T) {
	s := &scripted{answers: map[string]result{"exec": {exitCode: 1,
		stderr: "Error response from daemon: container 4f2a is not running\n"}}}
	_, err := newTestRuntime(s).Exec(context.Background(), "c", []string{"true"})
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestExecPodmanMissingContainer(t *testing.T) {
	s := &scripted{answers: map[string]result{"exec": {exitCode: 125,
		stderr: "Error: no container with name or id \"c\" found: no such container\n"}}}
	_, err := newTestRuntime(s).Exec(context.Background(), "c", []string{"true"})
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestExecDaemonDown(t *testing.T) {
	s := &scripted{answers: map[string]result{"exec": {exitCode: 1,
		stderr: "Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?\n"}}}
	_, err := newTestRuntime(s).Exec(context.Background(), "c", []string{"true"})
	assert.ErrorIs(t, err, driver.ErrRuntimeUnavailable)
}

func TestBinaryMissing(t *testing.T) {
	s := &scripted{err: &execNotFound{}}
	err := newTestRuntime(s).Ping(context.Background())
	assert.ErrorIs(t, err, driver.ErrRuntimeUnavailable)
}

func TestLogsCombinesStreams(t *testing.T) {
	s := &scripted{answers: map[string]result{"logs": {stdout: "out\n", stderr: "err\n"}}}
	logs, err := newTestRuntime(s).Logs(context.Background(), "c", 80)
	require.NoError(t, err)
	assert.Equal(t, "out\nerr\n", logs)
	assert.Equal(t, []string{"logs", "--tail", "80", "c"}, s.calls[0].args)
}

func TestExecCapsOutput(t *testing.T) {
	s := &scripted{answers: map[string]result{"exec": {stdout: "abcdef", stderr: "ghij"}}}
	r := newTestRuntime(s)
	r.MaxOutput = 8

	res, err := r.Exec(context.Background(), "c1", []string{"sh", "-c", "x"})
	require.NoError(t, err)
	assert.Equal(t, "abcdef", res.Stdout)
	assert.Equal(t, "gh", res.Stderr)
	assert.True(t, res.Truncated)
}

func TestCapOutput(t *testing.T) {
	out, errOut, truncated := capOutput("abc", "de", 0)
	assert.Equal(t, "abc", out)
	assert.Equal(t, "de", errOut)
	assert.False(t, truncated)

	out, errOut, truncated = capOutput("abcdef", "gh", 4)
	assert.Equal(t, "abcd", out)
	assert.Empty(t, errOut)
	assert.True(t, truncated)
}
