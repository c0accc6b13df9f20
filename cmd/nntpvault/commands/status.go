package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/internal/cli/output"
)

var (
	statusOutput  string
	statusPidFile string
	statusAPIPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Display the current status of the nntpvault daemon.

This command checks the PID file and calls the health endpoints of the
management API to report liveness and backend readiness.

Examples:
  # Check status (uses default settings)
  nntpvault status

  # Check status with custom API port
  nntpvault status --api-port 9419

  # Output as JSON
  nntpvault status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/nntpvault/nntpvault.pid)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 8419, "API server port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// DaemonStatus represents the daemon status information.
type DaemonStatus struct {
	Running bool   `json:"running" yaml:"running"`
	PID     int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Healthy bool   `json:"healthy" yaml:"healthy"`
	Ready   bool   `json:"ready" yaml:"ready"`
	Message string `json:"message" yaml:"message"`
}

type healthEnvelope struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := DaemonStatus{Message: "Daemon is not running"}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if pid, running := isProcessRunning(pidPath); running {
		status.Running = true
		status.PID = pid
		status.Message = "Daemon process exists but health check failed"
	}

	client := &http.Client{Timeout: 2 * time.Second}

	if env, err := fetchHealth(client, statusAPIPort, "/health"); err == nil {
		status.Running = true
		status.Healthy = env.Status == "healthy"
		if status.Healthy {
			status.Message = "Daemon is running and healthy"
		} else {
			status.Message = fmt.Sprintf("Daemon is running but unhealthy: %s", env.Error)
		}

		if env, err := fetchHealth(client, statusAPIPort, "/health/ready"); err == nil {
			status.Ready = env.Status == "healthy"
			if status.Healthy && !status.Ready {
				status.Message = fmt.Sprintf("Daemon is running but not ready: %s", env.Error)
			}
		}
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func fetchHealth(client *http.Client, port int, path string) (*healthEnvelope, error) {
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d%s", port, path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env healthEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

func printStatusTable(status DaemonStatus) {
	fmt.Println()
	fmt.Println("nntpvault Daemon Status")
	fmt.Println("=======================")
	fmt.Println()

	if status.Running {
		if status.Healthy {
			fmt.Printf("  Status:     \033[32m● Running\033[0m\n")
		} else {
			fmt.Printf("  Status:     \033[33m● Running (unhealthy)\033[0m\n")
		}
		if status.PID != 0 {
			fmt.Printf("  PID:        %d\n", status.PID)
		}
		fmt.Printf("  Ready:      %v\n", status.Ready)
	} else {
		fmt.Printf("  Status:     \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
