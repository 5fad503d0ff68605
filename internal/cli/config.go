package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/portsage/portsage/internal/catalog"
	"github.com/portsage/portsage/internal/config"
)

// NewConfigCommand creates the config management command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage portsage configuration",
		Long: `Inspect and initialize portsage configuration.

Settings load from the config file (~/.portsage/config.yaml by
default), may be overridden by PORTSAGE_* environment variables, and
command-line flags always win.

Rate profiles control the speed and aggressiveness of scans:
- slow: Conservative scanning (50 pps, 50 workers)
- medium: Balanced scanning (200 pps, 200 workers)
- fast: Aggressive scanning (1000 pps, 500 workers)
- ludicrous: Maximum speed (5000 pps, 1000 workers)`,
	}

	cmd.AddCommand(NewConfigShowCommand())
	cmd.AddCommand(NewConfigProfilesCommand())
	cmd.AddCommand(NewConfigInitCommand())

	return cmd
}

// NewConfigShowCommand shows the effective configuration
func NewConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  "Display the configuration after file, environment and defaults are merged.",
		RunE:  runConfigShow,
	}
}

// NewConfigProfilesCommand lists the rate profiles
func NewConfigProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List available rate profiles",
		Long:  "Show all rate profiles with their settings.",
		RunE:  runConfigProfiles,
	}
}

// NewConfigInitCommand writes a starter config file
func NewConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented starter config file",
		Long: `Create a starter config file with documented defaults. Writes to the
path given with --config, or ~/.portsage/config.yaml. Refuses to
overwrite an existing file.`,
		RunE: runConfigInit,
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadSetup(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration\n")
	fmt.Printf("=============\n")
	fmt.Printf("%-14s %s\n", "profile:", cfg.Profile)
	fmt.Printf("%-14s %s\n", "ports:", cfg.Ports)
	fmt.Printf("%-14s %d\n", "concurrency:", cfg.Concurrency)
	fmt.Printf("%-14s %v\n", "timeout:", cfg.Timeout)
	if cfg.Rate == 0 {
		fmt.Printf("%-14s unlimited\n", "rate:")
	} else {
		fmt.Printf("%-14s %d pps\n", "rate:", cfg.Rate)
	}
	fmt.Printf("%-14s %d\n", "retries:", cfg.Retries)
	fmt.Printf("%-14s %t\n", "identify:", cfg.Identify)
	fmt.Printf("%-14s %t\n", "webtech:", cfg.WebTech)
	fmt.Printf("%-14s %s\n", "output:", cfg.OutputFormat)
	fmt.Printf("%-14s %s\n", "out_dir:", cfg.OutDir)
	if overlay := catalog.FindOverlay(cfg.Signatures); overlay != "" {
		fmt.Printf("%-14s %s\n", "signatures:", overlay)
	} else {
		fmt.Printf("%-14s (builtin only)\n", "signatures:")
	}
	return nil
}

func runConfigProfiles(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadSetup(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("Rate Profiles\n")
	fmt.Printf("=============\n")
	fmt.Printf("Current profile: %s\n\n", cfg.Profile)

	for _, name := range config.ProfileOrder {
		profile := config.Profiles[name]

		status := ""
		if name == cfg.Profile {
			status = " (current)"
		}

		fmt.Printf("• %s%s\n", name, status)
		fmt.Printf("  Description: %s\n", profile.Description)
		fmt.Printf("  Rate: %d pps | Concurrency: %d workers | Timeout: %v | Retries: %d\n\n",
			profile.Rate, profile.Concurrency, profile.Timeout, profile.Retries)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locate home directory: %w", err)
		}
		path = filepath.Join(home, ".portsage", "config.yaml")
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}

	fmt.Printf("✅ Wrote starter config to %s\n", path)
	return nil
}
