package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rtftp/rtftpd/internal/cliout"
	"github.com/rtftp/rtftpd/internal/session"
	"github.com/rtftp/rtftpd/pkg/config"
	"github.com/spf13/cobra"
)

var sessionsAdminAddr string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List live guest sessions from a running rtftpd's admin surface",
	Long: `Query the admin HTTP surface of a running rtftpd daemon and print its
current guest session table: one row per attached NBD URL, with state,
reference count, idle time, and number of mounts.`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsAdminAddr, "admin-addr", "", "Admin HTTP address (default: read from config)")
}

func runSessions(cmd *cobra.Command, args []string) error {
	addr, err := resolveAdminAddr(sessionsAdminAddr)
	if err != nil {
		return err
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/sessions", addr))
	if err != nil {
		return fmt.Errorf("querying admin surface at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("admin surface returned %s", resp.Status)
	}

	var snapshots []session.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshots); err != nil {
		return fmt.Errorf("decoding session list: %w", err)
	}

	if len(snapshots) == 0 {
		fmt.Println("no active guest sessions")
		return nil
	}

	headers := []string{"URL", "State", "RefCount", "Idle", "Mounts"}
	rows := make([][]string, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, []string{
			s.URL,
			s.State,
			fmt.Sprintf("%d", s.RefCount),
			time.Since(s.LastActivity).Round(time.Second).String(),
			fmt.Sprintf("%d", len(s.Mounts)),
		})
	}
	cliout.Table(os.Stdout, headers, rows)

	return nil
}

// resolveAdminAddr returns explicit, or falls back to the admin address
// configured in the loaded config file.
func resolveAdminAddr(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return "", fmt.Errorf("loading config to find admin address: %w", err)
	}
	if !cfg.Admin.Enabled {
		return "", fmt.Errorf("admin surface is disabled in config; pass --admin-addr or enable admin.enabled")
	}
	return cfg.Admin.ListenAddress, nil
}
