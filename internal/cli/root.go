// Package cli assembles the portsage command tree. Commands load
// configuration, build the collaborators (catalog, resolver, session,
// stores) and hand results to the exporters; no scanning logic lives
// here.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/portsage/portsage/internal/catalog"
	"github.com/portsage/portsage/internal/config"
)

// NewRootCommand creates the portsage root command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portsage",
		Short: "Concurrent TCP port scanner and service fingerprinter",
		Long: `portsage scans TCP ports concurrently and fingerprints the services
behind the open ones: banner grabbing, active probes, TLS certificate
inspection and web technology detection.

Examples:
  portsage quick 192.168.1.10
  portsage scan 10.0.0.0/24 -p top100 --profile fast
  portsage scan example.com -p 8000-9000 -s --webtech --output json
  portsage identify 192.168.1.10 22
  portsage report last`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Config file (default ~/.portsage/config.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewQuickCommand())
	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewIdentifyCommand())
	cmd.AddCommand(NewWebTechCommand())
	cmd.AddCommand(NewCatalogCommand())
	cmd.AddCommand(NewConfigCommand())
	cmd.AddCommand(NewReportCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// loadSetup reads the persistent flags and builds what nearly every
// command needs: the effective configuration and a logger.
func loadSetup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, newLogger(verbose || cfg.Verbose), nil
}

// newLogger builds a console logger on stderr, keeping stdout free for
// command output.
func newLogger(verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
}

// buildCatalog returns the builtin catalog with the user's signature
// overlay merged in when one exists.
func buildCatalog(cfg config.Config) (*catalog.Catalog, error) {
	cat := catalog.Default()
	path := catalog.FindOverlay(cfg.Signatures)
	if path == "" {
		return cat, nil
	}
	o, err := catalog.LoadOverlay(path)
	if err != nil {
		return nil, fmt.Errorf("signature overlay %s: %w", path, err)
	}
	return cat.WithOverlay(o)
}

// notifyStop invokes fn on the first interrupt or termination signal.
// The returned release function detaches the handler; a second signal
// after release falls through to the default handler and kills the
// process.
func notifyStop(fn func()) (release func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			fn()
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(sigCh)
	}
}

// interactive reports whether f is attached to a terminal.
func interactive(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// truncateString truncates a string to a maximum length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
