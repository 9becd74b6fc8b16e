package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"narrativ/internal/daemonctl"
)

const (
	daemonStartWait = 15 * time.Second
	daemonStopGrace = 10 * time.Second
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start, stop, and inspect a local narrativd",
	}

	var executable, bind string
	start := &cobra.Command{
		Use:   "start",
		Short: "Launch narrativd in the background and wait until it is healthy",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			path, err := resolveDaemonExecutable(executable)
			if err != nil {
				return err
			}
			cfg := ctx.configValue()
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, path, daemonctl.LaunchOptions{
				ConfigPath: *ctx.configFlag,
				Bind:       bind,
			}, daemonStartWait)
			if err != nil {
				return fmt.Errorf("%w; see %s", err, cfg.DaemonLogPath())
			}
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(cmd.OutOrStdout(), "narrativd already running at %s\n", client.BaseURL())
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "narrativd started (pid %d) at %s\n", result.PID, client.BaseURL())
			}
			return nil
		},
	}
	start.Flags().StringVar(&executable, "exec", "", "Path to the narrativd binary (default: next to narrativ, then $PATH)")
	start.Flags().StringVar(&bind, "bind", "", "Override paths.api_bind for the launched daemon")

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the local narrativd",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			result, err := daemonctl.Stop(cmd.Context(), cfg.PIDPath(), cfg.LockPath(), daemonStopGrace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "narrativd is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(cmd.OutOrStdout(), "narrativd (pid %d) killed after grace period\n", result.PID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "narrativd (pid %d) stopped\n", result.PID)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Report whether the local narrativd is running and healthy",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			cfg := ctx.configValue()
			st := daemonctl.Inspect(cmd.Context(), client, cfg.PIDPath())
			out := cmd.OutOrStdout()
			color := colorEnabled(out)
			pid := "-"
			if st.PID > 0 {
				pid = fmt.Sprintf("%d", st.PID)
			}
			printTable(out, []string{"Check", "Status", "Detail"}, [][]string{
				{"Process", passLabel(st.Alive, color), "pid " + pid},
				{"API", passLabel(st.Healthy, color), client.BaseURL()},
			}, nil)
			return nil
		},
	}

	daemonCmd.AddCommand(start, stop, status)
	return daemonCmd
}

// resolveDaemonExecutable prefers an explicit path, then a narrativd beside
// the running binary, then $PATH.
func resolveDaemonExecutable(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "narrativd")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath("narrativd")
	if err != nil {
		return "", fmt.Errorf("narrativd not found next to narrativ or on $PATH; pass --exec")
	}
	return path, nil
}
