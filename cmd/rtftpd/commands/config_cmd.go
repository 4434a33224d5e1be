package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rtftp/rtftpd/internal/cliout"
	"github.com/rtftp/rtftpd/internal/nbdconfig"
	"github.com/spf13/cobra"
)

var (
	configAdminAddr  string
	configShowSchema bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show NBD configs loaded by a running rtftpd's admin surface",
	Long: `Query the admin HTTP surface of a running rtftpd daemon and print the
*.nbd configs it has scanned from the tftp root, keyed by client IP. Pass
--schema to print the JSON Schema those files are validated against instead.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.Flags().StringVar(&configAdminAddr, "admin-addr", "", "Admin HTTP address (default: read from config)")
	configCmd.Flags().BoolVar(&configShowSchema, "schema", false, "Print the *.nbd JSON Schema instead of loaded configs")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if configShowSchema {
		schema, err := nbdconfig.Schema()
		if err != nil {
			return fmt.Errorf("generating schema: %w", err)
		}
		_, err = os.Stdout.Write(schema)
		return err
	}

	addr, err := resolveAdminAddr(configAdminAddr)
	if err != nil {
		return err
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/configs", addr))
	if err != nil {
		return fmt.Errorf("querying admin surface at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("admin surface returned %s: %s", resp.Status, string(body))
	}

	var configs map[string]*nbdconfig.NbdConfig
	if err := json.NewDecoder(resp.Body).Decode(&configs); err != nil {
		return fmt.Errorf("decoding config list: %w", err)
	}

	if len(configs) == 0 {
		fmt.Println("no *.nbd configs loaded")
		return nil
	}

	headers := []string{"Client", "URL", "Mounts"}
	rows := make([][]string, 0, len(configs))
	for client, cfg := range configs {
		rows = append(rows, []string{client, cfg.URL, fmt.Sprintf("%d", len(cfg.Mounts))})
	}
	cliout.Table(os.Stdout, headers, rows)

	return nil
}
