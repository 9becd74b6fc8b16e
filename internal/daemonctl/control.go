// Package daemonctl starts, stops, and inspects a local narrativd process on
// behalf of the CLI. Liveness comes from the HTTP health endpoint; the pid file
// written by narrativd is used for signalling.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates no narrativd process could be found.
var ErrDaemonNotRunning = errors.New("daemon not running")

// HealthChecker reports whether the daemon answers health checks.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	Bind       string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Status is a point-in-time view of the local daemon.
type Status struct {
	PID     int
	Alive   bool
	Healthy bool
}

// Launch starts a detached narrativd process in its own session.
func Launch(executablePath string, opts LaunchOptions) (int, error) {
	if strings.TrimSpace(executablePath) == "" {
		return 0, fmt.Errorf("resolve executable: executable path is empty")
	}

	var args []string
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if bind := strings.TrimSpace(opts.Bind); bind != "" {
		args = append(args, "--bind", bind)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := proc.Process.Pid
	return pid, proc.Process.Release()
}

// WaitForHealthy polls health until it succeeds or timeout elapses.
func WaitForHealthy(ctx context.Context, health HealthChecker, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	var lastErr error
	for {
		if lastErr = health.Health(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon failed to become healthy: %w", lastErr)
		case <-ticker.C:
		}
	}
}

// EnsureStarted launches narrativd unless it already answers health checks.
func EnsureStarted(ctx context.Context, health HealthChecker, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if err := health.Health(ctx); err == nil {
		return StartResult{State: StartStateAlreadyRunning}, nil
	}
	pid, err := Launch(executablePath, opts)
	if err != nil {
		return StartResult{}, err
	}
	if err := WaitForHealthy(ctx, health, waitTimeout); err != nil {
		return StartResult{PID: pid}, err
	}
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// ReadPID parses the pid file. A missing file returns ErrDaemonNotRunning.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrDaemonNotRunning
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q is malformed", pidPath)
	}
	return pid, nil
}

// ProcessAlive reports whether pid names a live process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Inspect combines the pid file and a health check.
func Inspect(ctx context.Context, health HealthChecker, pidPath string) Status {
	var status Status
	if pid, err := ReadPID(pidPath); err == nil {
		status.PID = pid
		status.Alive = ProcessAlive(pid)
	}
	status.Healthy = health.Health(ctx) == nil
	return status
}

// Stop sends SIGTERM to the daemon named by pidPath and escalates to SIGKILL
// if it is still alive after gracePeriod. Stale pid and lock files are removed.
func Stop(ctx context.Context, pidPath, lockPath string, gracePeriod time.Duration) (StopResult, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	result := StopResult{PID: pid}
	if !ProcessAlive(pid) {
		cleanup(pidPath, lockPath)
		return result, ErrDaemonNotRunning
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitForExit(ctx, pid, gracePeriod) {
		cleanup(pidPath, lockPath)
		return result, nil
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	waitForExit(ctx, pid, gracePeriod)
	cleanup(pidPath, lockPath)
	result.ForcedKill = true
	return result, nil
}

func waitForExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !ProcessAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
}

func cleanup(pidPath, lockPath string) {
	_ = os.Remove(pidPath)
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
}
