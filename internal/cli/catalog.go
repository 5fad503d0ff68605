package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portsage/portsage/internal/catalog"
)

// NewCatalogCommand creates the catalog inspection command
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the service recognition catalog",
		Long: `Inspect the builtin service catalog: well-known port mappings, probe
payloads and response signatures, including anything merged from a
signature overlay file.`,
	}

	cmd.AddCommand(NewCatalogListCommand())
	cmd.AddCommand(NewCatalogShowCommand())
	cmd.AddCommand(NewCatalogCheckCommand())

	return cmd
}

// NewCatalogListCommand lists the catalog contents
func NewCatalogListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List well-known ports and recognized services",
		RunE:  runCatalogList,
	}
}

// NewCatalogShowCommand shows one service's catalog entry
func NewCatalogShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <service>",
		Short: "Show the catalog entry for one service",
		Args:  cobra.ExactArgs(1),
		RunE:  runCatalogShow,
	}
}

// NewCatalogCheckCommand validates a signature overlay file
func NewCatalogCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <overlay.yaml>",
		Short: "Validate a signature overlay file",
		Long: `Parse and validate a signature overlay file, then merge it against the
builtin catalog the way a scan would. Reports the first problem found.`,
		Args: cobra.ExactArgs(1),
		RunE: runCatalogCheck,
	}
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadSetup(cmd)
	if err != nil {
		return err
	}
	cat, err := buildCatalog(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Well-Known Ports\n")
	fmt.Printf("================\n")
	for _, port := range cat.Ports() {
		fmt.Printf("%-8d %s\n", port, cat.ServiceForPort(port))
	}

	fmt.Printf("\nServices with signatures (%d, in match order):\n", len(cat.ServiceNames()))
	fmt.Printf("  %s\n", strings.Join(cat.ServiceNames(), ", "))
	return nil
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadSetup(cmd)
	if err != nil {
		return err
	}
	cat, err := buildCatalog(cfg)
	if err != nil {
		return err
	}

	svc := args[0]

	var ports []int
	for _, port := range cat.Ports() {
		if cat.ServiceForPort(port) == svc {
			ports = append(ports, port)
		}
	}
	hasProbe := false
	for _, name := range cat.ProbeServices() {
		if name == svc {
			hasProbe = true
			break
		}
	}
	sigs := cat.SignaturesFor(svc)

	if len(ports) == 0 && !hasProbe && len(sigs) == 0 {
		return fmt.Errorf("service %q not in catalog", svc)
	}

	fmt.Printf("Service: %s\n", svc)
	fmt.Println(strings.Repeat("=", 40))
	if len(ports) > 0 {
		fmt.Printf("%-12s %s\n", "Ports:", joinInts(ports))
	}
	if hasProbe {
		if payload := cat.PayloadFor(svc); len(payload) > 0 {
			fmt.Printf("%-12s %q\n", "Probe:", payload)
		} else {
			fmt.Printf("%-12s (connect only)\n", "Probe:")
		}
	}
	if len(sigs) > 0 {
		fmt.Printf("Signatures:\n")
		for _, sig := range sigs {
			fmt.Printf("  - %q\n", sig)
		}
	}
	return nil
}

func runCatalogCheck(cmd *cobra.Command, args []string) error {
	path := args[0]

	o, err := catalog.LoadOverlay(path)
	if err != nil {
		return err
	}
	if _, err := catalog.Default().WithOverlay(o); err != nil {
		return err
	}

	fmt.Printf("✅ Overlay valid: %s\n", path)
	fmt.Printf("   ports: %d | signature sets: %d | probes: %d | version patterns: %d | webtech: %d\n",
		len(o.Ports), len(o.Signatures), len(o.Probes), len(o.Versions), len(o.WebTech))
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
