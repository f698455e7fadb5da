package compose

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/stackpilot/stackpilot/pkg/types"
)

// ContainerRow is one entry of `docker compose ps --format json`
type ContainerRow struct {
	Name     string `json:"Name"`
	Service  string `json:"Service"`
	State    string `json:"State"`
	Health   string `json:"Health"`
	ExitCode int    `json:"ExitCode"`
}

// Runner is the surface the engines consume to drive the deployment.
// Implementations must be safe for sequential use; the orchestrator
// never calls concurrently.
type Runner interface {
	// Pull refreshes all service images from their registries
	Pull(ctx context.Context) error

	// UpDetached starts the named services (all when empty) in the
	// background, creating containers as needed
	UpDetached(ctx context.Context, services ...string) error

	// ForceRecreate recreates exactly one service, leaving its
	// dependencies untouched
	ForceRecreate(ctx context.Context, service string) error

	// RunOneShot runs cmd in a fresh, removed-after-exit container of
	// service (used for migrations and bootstrap steps)
	RunOneShot(ctx context.Context, service string, cmd ...string) error

	// Exec runs cmd inside the running container of service and returns
	// combined output
	Exec(ctx context.Context, service string, cmd ...string) (string, error)

	// ExecStdout runs cmd inside service streaming stdout to w
	ExecStdout(ctx context.Context, service string, w io.Writer, cmd ...string) error

	// ExecStdin runs cmd inside service feeding r to stdin
	ExecStdin(ctx context.Context, service string, r io.Reader, cmd ...string) error

	// CopyFrom copies src from the service container to dst on the host
	CopyFrom(ctx context.Context, service, src, dst string) error

	// CopyTo copies src on the host to dst in the service container
	CopyTo(ctx context.Context, service, src, dst string) error

	// PS reports all project containers, including stopped ones
	PS(ctx context.Context) ([]ContainerRow, error)

	// Logs returns project logs emitted within the window
	Logs(ctx context.Context, window time.Duration) (string, error)

	// Stop stops all services without removing anything
	Stop(ctx context.Context) error

	// Down stops and removes containers, optionally persistent volumes
	Down(ctx context.Context, removeVolumes bool) error

	// PruneImages removes images superseded by an update
	PruneImages(ctx context.Context) error

	// ListVolumes returns the project's persistent volume names
	ListVolumes(ctx context.Context) ([]string, error)
}

// CLIRunner drives the docker compose plugin via os/exec
type CLIRunner struct {
	projectDir  string
	composeFile string
	projectName string

	// callTimeout bounds any single CLI invocation that has no tighter
	// caller-side deadline
	callTimeout time.Duration
}

// NewCLIRunner creates a runner for one compose project
func NewCLIRunner(projectDir, composeFile, projectName string) *CLIRunner {
	return &CLIRunner{
		projectDir:  projectDir,
		composeFile: composeFile,
		projectName: projectName,
		callTimeout: 10 * time.Minute,
	}
}

// WithCallTimeout overrides the per-invocation bound
func (r *CLIRunner) WithCallTimeout(d time.Duration) *CLIRunner {
	r.callTimeout = d
	return r
}

func (r *CLIRunner) composeArgs(sub ...string) []string {
	args := []string{"compose", "--project-directory", r.projectDir, "-f", r.composeFile}
	if r.projectName != "" {
		args = append(args, "-p", r.projectName)
	}
	return append(args, sub...)
}

// run executes a docker invocation, converting failure into an
// external-command error carrying the stderr tail.
func (r *CLIRunner) run(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdin = stdin

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if stdout != nil {
		cmd.Stdout = stdout
	}

	if err := cmd.Run(); err != nil {
		op := fmt.Sprintf("docker %s", strings.Join(args, " "))
		if msg := tail(stderr.String(), 4); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return types.NewExternalCommandError(op, err)
	}
	return nil
}

// output executes a docker invocation capturing stdout
func (r *CLIRunner) output(ctx context.Context, args ...string) (string, error) {
	var stdout bytes.Buffer
	if err := r.run(ctx, nil, &stdout, args...); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

func (r *CLIRunner) Pull(ctx context.Context) error {
	return r.run(ctx, nil, nil, r.composeArgs("pull", "--quiet")...)
}

func (r *CLIRunner) UpDetached(ctx context.Context, services ...string) error {
	args := r.composeArgs(append([]string{"up", "-d"}, services...)...)
	return r.run(ctx, nil, nil, args...)
}

func (r *CLIRunner) ForceRecreate(ctx context.Context, service string) error {
	args := r.composeArgs("up", "-d", "--force-recreate", "--no-deps", service)
	return r.run(ctx, nil, nil, args...)
}

func (r *CLIRunner) RunOneShot(ctx context.Context, service string, cmd ...string) error {
	args := r.composeArgs(append([]string{"run", "--rm", "--no-deps", service}, cmd...)...)
	return r.run(ctx, nil, nil, args...)
}

func (r *CLIRunner) Exec(ctx context.Context, service string, cmd ...string) (string, error) {
	args := r.composeArgs(append([]string{"exec", "-T", service}, cmd...)...)
	return r.output(ctx, args...)
}

func (r *CLIRunner) ExecStdout(ctx context.Context, service string, w io.Writer, cmd ...string) error {
	args := r.composeArgs(append([]string{"exec", "-T", service}, cmd...)...)
	return r.run(ctx, nil, w, args...)
}

func (r *CLIRunner) ExecStdin(ctx context.Context, service string, rd io.Reader, cmd ...string) error {
	args := r.composeArgs(append([]string{"exec", "-T", service}, cmd...)...)
	return r.run(ctx, rd, nil, args...)
}

func (r *CLIRunner) CopyFrom(ctx context.Context, service, src, dst string) error {
	args := r.composeArgs("cp", fmt.Sprintf("%s:%s", service, src), dst)
	return r.run(ctx, nil, nil, args...)
}

func (r *CLIRunner) CopyTo(ctx context.Context, service, src, dst string) error {
	args := r.composeArgs("cp", src, fmt.Sprintf("%s:%s", service, dst))
	return r.run(ctx, nil, nil, args...)
}

func (r *CLIRunner) PS(ctx context.Context) ([]ContainerRow, error) {
	out, err := r.output(ctx, r.composeArgs("ps", "--all", "--format", "json")...)
	if err != nil {
		return nil, err
	}
	return decodePS(out)
}

func (r *CLIRunner) Logs(ctx context.Context, window time.Duration) (string, error) {
	since := fmt.Sprintf("%ds", int(window.Seconds()))
	return r.output(ctx, r.composeArgs("logs", "--no-color", "--since", since)...)
}

func (r *CLIRunner) Stop(ctx context.Context) error {
	return r.run(ctx, nil, nil, r.composeArgs("stop")...)
}

func (r *CLIRunner) Down(ctx context.Context, removeVolumes bool) error {
	args := []string{"down", "--remove-orphans"}
	if removeVolumes {
		args = append(args, "--volumes")
	}
	return r.run(ctx, nil, nil, r.composeArgs(args...)...)
}

func (r *CLIRunner) PruneImages(ctx context.Context) error {
	return r.run(ctx, nil, nil, "image", "prune", "--force")
}

func (r *CLIRunner) ListVolumes(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, "volume", "ls",
		"--filter", "label=com.docker.compose.project="+r.projectName,
		"--format", "{{.Name}}")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// tail returns the last n non-empty lines of s on one line
func tail(s string, n int) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
