package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portsage/portsage/internal/identify"
)

// NewIdentifyCommand creates the identify command
func NewIdentifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identify <host> <port>",
		Short: "Fingerprint the service on a single port",
		Long: `Connect to one port and run the full identification pipeline:
well-known port lookup, banner grabbing, active probes and TLS
certificate inspection.

Examples:
  portsage identify 192.168.1.10 22
  portsage identify example.com 443 --json`,
		Args: cobra.ExactArgs(2),
		RunE: runIdentify,
	}

	cmd.Flags().Bool("json", false, "Output JSON")

	return cmd
}

// NewWebTechCommand creates the webtech command
func NewWebTechCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webtech <host> <port>",
		Short: "Inspect the web stack behind an HTTP(S) port",
		Long: `Issue HTTP requests against one port and report the server software,
page metadata and recognized technologies.

Examples:
  portsage webtech 192.168.1.10 80
  portsage webtech example.com 443 --json`,
		Args: cobra.ExactArgs(2),
		RunE: runWebTech,
	}

	cmd.Flags().Bool("json", false, "Output JSON")

	return cmd
}

func runIdentify(cmd *cobra.Command, args []string) error {
	identifier, host, port, asJSON, err := identifySetup(cmd, args)
	if err != nil {
		return err
	}

	if !asJSON {
		fmt.Fprintf(os.Stderr, "🔍 Identifying %s...\n", net.JoinHostPort(host, args[1]))
	}

	info := identifier.Identify(cmd.Context(), host, port)

	if asJSON {
		return writeJSON(info)
	}
	printServiceInfo(host, port, info)
	return nil
}

func runWebTech(cmd *cobra.Command, args []string) error {
	identifier, host, port, asJSON, err := identifySetup(cmd, args)
	if err != nil {
		return err
	}

	if !asJSON {
		fmt.Fprintf(os.Stderr, "🔍 Inspecting %s...\n", net.JoinHostPort(host, args[1]))
	}

	web, err := identifier.InspectWeb(cmd.Context(), host, port)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(web)
	}
	printWebInfo(host, port, web)
	return nil
}

// identifySetup handles the shared argument parsing and identifier
// construction for the single-port inspection commands.
func identifySetup(cmd *cobra.Command, args []string) (*identify.Identifier, string, int, bool, error) {
	cfg, logger, err := loadSetup(cmd)
	if err != nil {
		return nil, "", 0, false, err
	}

	port, err := parsePortArg(args[1])
	if err != nil {
		return nil, "", 0, false, err
	}

	cat, err := buildCatalog(cfg)
	if err != nil {
		return nil, "", 0, false, err
	}

	identifier := identify.New(identify.Config{
		Catalog: cat,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})

	asJSON, _ := cmd.Flags().GetBool("json")
	return identifier, args[0], port, asJSON, nil
}

func parsePortArg(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q: must be 1-65535", s)
	}
	return port, nil
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printServiceInfo(host string, port int, info *identify.ServiceInfo) {
	fmt.Printf("Service at %s\n", net.JoinHostPort(host, strconv.Itoa(port)))
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("%-13s %s\n", "Service:", info.Service)
	if info.Version != "" {
		fmt.Printf("%-13s %s\n", "Version:", info.Version)
	}
	fmt.Printf("%-13s %s\n", "Protocol:", info.Protocol)
	if info.Banner != "" {
		fmt.Printf("%-13s %s\n", "Banner:", truncateString(strings.TrimSpace(info.Banner), 80))
	}
	if info.TLS != nil {
		fmt.Printf("%-13s %s\n", "TLS:", info.TLS.Version)
		if info.TLS.Subject != "" {
			fmt.Printf("%-13s %s\n", "Subject:", info.TLS.Subject)
		}
		if info.TLS.Issuer != "" {
			fmt.Printf("%-13s %s\n", "Issuer:", info.TLS.Issuer)
		}
		fmt.Printf("%-13s %s to %s\n", "Validity:",
			info.TLS.NotBefore.Format("2006-01-02"),
			info.TLS.NotAfter.Format("2006-01-02"))
	}
	if info.ServerHeader != "" {
		fmt.Printf("%-13s %s\n", "Server:", info.ServerHeader)
	}
	if info.PoweredBy != "" {
		fmt.Printf("%-13s %s\n", "Powered by:", info.PoweredBy)
	}
	if len(info.Technologies) > 0 {
		fmt.Printf("%-13s %s\n", "Technologies:", strings.Join(info.Technologies, ", "))
	}
}

func printWebInfo(host string, port int, web *identify.WebInfo) {
	fmt.Printf("Web stack at %s\n", net.JoinHostPort(host, strconv.Itoa(port)))
	fmt.Println(strings.Repeat("=", 40))
	if web.Server != "" {
		fmt.Printf("%-13s %s\n", "Server:", web.Server)
	}
	if web.PoweredBy != "" {
		fmt.Printf("%-13s %s\n", "Powered by:", web.PoweredBy)
	}
	if web.Title != "" {
		fmt.Printf("%-13s %s\n", "Title:", truncateString(web.Title, 80))
	}
	if web.Generator != "" {
		fmt.Printf("%-13s %s\n", "Generator:", web.Generator)
	}
	if len(web.Technologies) > 0 {
		fmt.Printf("%-13s %s\n", "Technologies:", strings.Join(web.Technologies, ", "))
	}
	if web.Server == "" && web.PoweredBy == "" && web.Title == "" &&
		web.Generator == "" && len(web.Technologies) == 0 {
		fmt.Println("Nothing recognized")
	}
}
