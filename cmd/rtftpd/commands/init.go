package commands

import (
	"fmt"

	"github.com/rtftp/rtftpd/internal/cliprompt"
	"github.com/rtftp/rtftpd/pkg/config"
	"github.com/spf13/cobra"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample rtftpd configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/rtftpd/config.yaml.
Use --config to specify a custom path, or --interactive to be prompted for the
most commonly adjusted settings.

Examples:
  # Initialize with default location
  rtftpd init

  # Walk through the common settings interactively
  rtftpd init --interactive

  # Initialize with custom path
  rtftpd init --config /etc/rtftpd/config.yaml

  # Force overwrite existing config
  rtftpd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for tftp root, listen address, and admin settings")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		_, err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	if initInteractive {
		if err := runInteractiveInit(configPath); err != nil {
			if err == cliprompt.ErrAborted {
				fmt.Println("\nAborted; the config file written above is still the plain default.")
				return nil
			}
			return err
		}
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to point tftp_root at your client directories")
	fmt.Println("  2. Start the server with: rtftpd start")
	fmt.Printf("  3. Or specify custom config: rtftpd start --config %s\n", configPath)

	return nil
}

// runInteractiveInit prompts for the handful of settings operators most
// often need to change on first setup, then rewrites configPath with them.
func runInteractiveInit(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("reloading config at %s: %w", configPath, err)
	}

	tftpRoot, err := cliprompt.TextRequired("TFTP root (contains default/ and per-client directories)")
	if err != nil {
		return err
	}
	cfg.Server.TFTPRoot = tftpRoot

	listenAddr, err := cliprompt.Text("TFTP listen address", cfg.Server.ListenAddress)
	if err != nil {
		return err
	}
	cfg.Server.ListenAddress = listenAddr

	enableAdmin, err := cliprompt.Confirm("Enable the admin HTTP surface (health, sessions, metrics)", cfg.Admin.Enabled)
	if err != nil {
		return err
	}
	cfg.Admin.Enabled = enableAdmin

	if enableAdmin {
		adminAddr, err := cliprompt.Text("Admin HTTP listen address", cfg.Admin.ListenAddress)
		if err != nil {
			return err
		}
		cfg.Admin.ListenAddress = adminAddr
	}

	enableMetrics, err := cliprompt.Confirm("Enable Prometheus metrics", cfg.Metrics.Enabled)
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = enableMetrics

	return config.SaveConfig(cfg, configPath)
}
