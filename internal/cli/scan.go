package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portsage/portsage/internal/backend"
	"github.com/portsage/portsage/internal/config"
	"github.com/portsage/portsage/internal/export"
	"github.com/portsage/portsage/internal/netx"
	"github.com/portsage/portsage/internal/scan"
	"github.com/portsage/portsage/internal/session"
)

// resolverTTL bounds how long DNS answers are reused within one
// invocation.
const resolverTTL = 5 * time.Minute

// progressThreshold is the minimum number of ports before a progress
// bar is worth drawing.
const progressThreshold = 10

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <targets...>",
		Short: "Scan targets for open TCP ports",
		Long: `Scan one or more targets for open TCP ports and optionally fingerprint
the services behind them.

Targets may be IP addresses, hostnames, CIDR blocks (10.0.0.0/24) or
dash ranges (192.168.1.10-20). Ports accept lists and ranges
("22,80,8000-8100") or named sets (common, web, database, top100,
top1000).

Examples:
  portsage scan 192.168.1.10
  portsage scan 10.0.0.0/24 -p top100 --profile fast
  portsage scan example.com -p 443 -s --webtech --output json
  portsage scan 192.168.1.1 --backend nmap --save`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScan,
	}

	cmd.Flags().StringP("ports", "p", "", "Ports to scan: list, range or named set")
	cmd.Flags().IntP("concurrency", "c", 0, "Concurrent connection attempts")
	cmd.Flags().Duration("timeout", 0, "Per-connection timeout")
	cmd.Flags().Int("rate", 0, "Connection attempts per second (0 = unlimited)")
	cmd.Flags().String("profile", "", "Rate profile: slow, medium, fast, ludicrous")
	cmd.Flags().BoolP("identify", "s", false, "Fingerprint services on open ports")
	cmd.Flags().Bool("webtech", false, "Inspect web technologies on open HTTP(S) ports")
	cmd.Flags().String("backend", "", "Scan backend: native (default) or nmap")
	cmd.Flags().String("method", "", "Scan method: connect natively; syn, udp, fin, xmas, null via nmap")
	cmd.Flags().String("output", "", "Output format: text, json, csv, html")
	cmd.Flags().Bool("save", false, "Save the run for the report commands")
	cmd.Flags().String("out-dir", "", "Directory for saved runs")
	cmd.Flags().String("signatures", "", "Signature overlay file")

	return cmd
}

// NewQuickCommand creates the quick command
func NewQuickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "quick <target>",
		Short: "Scan common ports with identification and auto-save",
		Long: `Quick scan with opinionated defaults: the common port set, service
identification on, text output, and the run saved for later inspection
with the report commands.

Examples:
  portsage quick 192.168.1.10
  portsage quick example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runQuick,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSetup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err = applyScanFlags(cmd, cfg)
	if err != nil {
		return err
	}

	targets, err := scan.ExpandTargets(args)
	if err != nil {
		return err
	}
	ports, err := scan.ParsePortSpec(cfg.Ports)
	if err != nil {
		return err
	}

	backendName, _ := cmd.Flags().GetString("backend")
	method, _ := cmd.Flags().GetString("method")

	var report *session.Report
	switch backendName {
	case "", "native":
		if _, err := scan.ParseMethod(method); err != nil {
			return err
		}
		report, err = runNativeScan(cmd.Context(), cfg, logger, targets, ports)
	case "nmap":
		report, err = runNmapScan(cmd, cfg, logger, targets, ports)
	default:
		return fmt.Errorf("unknown backend %q (available: native, nmap)", backendName)
	}
	if err != nil {
		return err
	}

	doc := export.NewDocument(report)
	if err := doc.Write(os.Stdout, cfg.OutputFormat); err != nil {
		return err
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		return saveRun(cfg, doc)
	}
	return nil
}

func runQuick(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSetup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg.Ports = "common"
	cfg.Identify = true
	cfg.OutputFormat = export.FormatText

	targets, err := scan.ExpandTargets(args)
	if err != nil {
		return err
	}
	ports, err := scan.ParsePortSpec(cfg.Ports)
	if err != nil {
		return err
	}

	report, err := runNativeScan(cmd.Context(), cfg, logger, targets, ports)
	if err != nil {
		return err
	}

	doc := export.NewDocument(report)
	if err := doc.Write(os.Stdout, cfg.OutputFormat); err != nil {
		return err
	}
	return saveRun(cfg, doc)
}

// applyScanFlags overrides the loaded configuration with explicitly
// set scan flags. The profile applies first so that individual flags
// win over the profile they refine.
func applyScanFlags(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	flags := cmd.Flags()

	if flags.Changed("profile") {
		name, _ := flags.GetString("profile")
		applied, err := cfg.ApplyProfile(name)
		if err != nil {
			return cfg, err
		}
		cfg = applied
	}
	if flags.Changed("ports") {
		cfg.Ports, _ = flags.GetString("ports")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("rate") {
		cfg.Rate, _ = flags.GetInt("rate")
	}
	if flags.Changed("identify") {
		cfg.Identify, _ = flags.GetBool("identify")
	}
	if flags.Changed("webtech") {
		cfg.WebTech, _ = flags.GetBool("webtech")
	}
	if flags.Changed("output") {
		cfg.OutputFormat, _ = flags.GetString("output")
	}
	if flags.Changed("out-dir") {
		cfg.OutDir, _ = flags.GetString("out-dir")
	}
	if flags.Changed("signatures") {
		cfg.Signatures, _ = flags.GetString("signatures")
	}

	return cfg.Normalize(), nil
}

// runNativeScan executes a scan with the builtin engine. Interrupt
// signals stop the session gracefully so partial results still reach
// the exporters.
func runNativeScan(ctx context.Context, cfg config.Config, logger *zap.Logger, targets []string, ports []int) (*session.Report, error) {
	cat, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	sess := session.New(session.Options{
		Config:   cfg,
		Catalog:  cat,
		Resolver: netx.NewCachingResolver(netx.SystemResolver{}, resolverTTL),
		Logger:   logger,
	})

	release := notifyStop(func() {
		fmt.Fprintln(os.Stderr, "\n⏹  Stopping, collecting finished work...")
		sess.Stop()
	})
	defer release()

	fmt.Fprintf(os.Stderr, "🔍 Scanning %d target(s), %d port(s) (profile %s, concurrency %d)\n",
		len(targets), len(ports), cfg.Profile, cfg.Concurrency)

	var cb session.Callbacks
	bar := newProgressBar(len(targets) * len(ports))
	if bar != nil {
		cb.OnProgress = func(done, total int) {
			bar.Add(1)
		}
	}

	report, err := sess.Run(ctx, targets, ports, cb)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	return report, err
}

// runNmapScan delegates the scan to the external nmap binary and
// reshapes its findings into a regular report.
func runNmapScan(cmd *cobra.Command, cfg config.Config, logger *zap.Logger, targets []string, ports []int) (*session.Report, error) {
	// nmap interprets the timeout per host, not per connection, so the
	// configured default would cut hosts off early. Only an explicit
	// flag is forwarded.
	var hostTimeout time.Duration
	if cmd.Flags().Changed("timeout") {
		hostTimeout = cfg.Timeout
	}

	method, _ := cmd.Flags().GetString("method")
	technique, err := backend.TechniqueFlag(method)
	if err != nil {
		return nil, err
	}

	nm := backend.NewNmap(backend.NmapOptions{
		Technique:        technique,
		ServiceDetection: cfg.Identify,
		Timeout:          hostTimeout,
		Logger:           logger,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	release := notifyStop(cancel)
	defer release()

	fmt.Fprintf(os.Stderr, "🔍 Scanning %d target(s), %d port(s) via nmap\n", len(targets), len(ports))

	start := time.Now()
	findings, err := nm.Scan(ctx, targets, ports)
	if err != nil {
		return nil, err
	}
	return reportFromFindings(targets, findings, start, time.Now()), nil
}

// reportFromFindings shapes backend findings like a session report so
// the exporters work the same regardless of which engine produced the
// data.
func reportFromFindings(targets []string, findings []backend.Finding, start, end time.Time) *session.Report {
	report := &session.Report{
		Targets:   targets,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start).Seconds(),
	}

	for _, f := range findings {
		report.Rows = append(report.Rows, session.Row{
			Host:    f.Result.Host,
			Port:    f.Result.Port,
			State:   f.Result.State,
			Error:   f.Result.Error,
			RTT:     f.Result.RTT,
			Service: f.Service,
		})
		switch f.Result.State {
		case scan.StateOpen:
			report.Open++
		case scan.StateClosed:
			report.Closed++
		default:
			report.Errored++
		}
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].Host != report.Rows[j].Host {
			return report.Rows[i].Host < report.Rows[j].Host
		}
		return report.Rows[i].Port < report.Rows[j].Port
	})
	report.Reindex()
	return report
}

// newProgressBar returns a stderr progress bar, or nil when stdout is
// not a terminal or the scan is too small to bother.
func newProgressBar(total int) *progressbar.ProgressBar {
	if !interactive(os.Stdout) || total <= progressThreshold {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func saveRun(cfg config.Config, doc *export.Document) error {
	store := export.NewRunStore(cfg.OutDir)
	runID, err := store.Save(doc)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	fmt.Fprintf(os.Stderr, "💾 Saved run %s\n", runID)
	return nil
}
