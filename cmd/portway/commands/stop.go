package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
)

// errProcessDone reports that the target process had already exited when the
// stop signal was delivered.
var errProcessDone = errors.New("process already finished")

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Portway gateway",
	Long: `Stop a running Portway gateway.

By default, sends SIGTERM for graceful shutdown. Use --force for immediate
termination with SIGKILL.

Examples:
  # Stop gateway (uses default PID file)
  portway stop

  # Stop gateway using custom PID file
  portway stop --pid-file /var/run/portway.pid

  # Force stop (SIGKILL)
  portway stop --force`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/portway/portway.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Force kill (SIGKILL) instead of graceful shutdown (SIGTERM)")
}

func runStop(cmd *cobra.Command, args []string) error {
	// Use default PID file if not specified
	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	// Read PID file
	pidData, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PID file not found: %s\n\nIs the gateway running?", pidPath)
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	// Parse PID
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return fmt.Errorf("invalid PID in file: %s", string(pidData))
	}

	// Find the process
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := stopProcess(process, pid, stopForce); err != nil {
		if errors.Is(err, errProcessDone) {
			fmt.Println("Gateway already stopped")
			// Clean up PID file
			_ = os.Remove(pidPath)
			return nil
		}
		return err
	}

	if stopForce {
		fmt.Println("Gateway terminated")
	} else {
		fmt.Println("Shutdown signal sent. Gateway will stop gracefully.")
	}

	return nil
}
