package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running rtftpd daemon",
	Long: `Stop an rtftpd server previously started in background (daemon) mode,
by sending it SIGTERM and waiting for it to exit.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/rtftpd/rtftpd.pid)")
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := pidFile
	if pidPath == "" {
		stateDir := os.Getenv("XDG_STATE_HOME")
		if stateDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("getting home directory: %w", err)
			}
			stateDir = filepath.Join(homeDir, ".local", "state")
		}
		pidPath = filepath.Join(stateDir, "rtftpd", "rtftpd.pid")
	}

	pidData, err := os.ReadFile(pidPath)
	if err != nil {
		return fmt.Errorf("reading pid file %s: %w (is rtftpd running in daemon mode?)", pidPath, err)
	}

	var pid int
	if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err != nil {
		return fmt.Errorf("parsing pid file %s: %w", pidPath, err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling process %d: %w", pid, err)
	}

	fmt.Printf("Sent SIGTERM to rtftpd (PID %d)\n", pid)

	for i := 0; i < 50; i++ {
		if err := process.Signal(syscall.Signal(0)); err != nil {
			fmt.Println("rtftpd stopped")
			_ = os.Remove(pidPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("rtftpd did not exit within 5s; it may still be draining sessions")
	return nil
}
