package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portsage/portsage/internal/export"
)

// NewReportCommand creates the saved-run report command
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Work with saved scan runs",
		Long: `List, render and export scan runs saved with --save or the quick
command.

Examples:
  portsage report list
  portsage report last
  portsage report last --output json
  portsage report export scan_1724400000 results.html
  portsage report clean --days 30`,
	}

	cmd.PersistentFlags().String("out-dir", "", "Directory runs were saved under")

	cmd.AddCommand(NewReportListCommand())
	cmd.AddCommand(NewReportLastCommand())
	cmd.AddCommand(NewReportExportCommand())
	cmd.AddCommand(NewReportCleanCommand())

	return cmd
}

// NewReportListCommand lists saved runs
func NewReportListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		RunE:  runReportList,
	}
}

// NewReportLastCommand renders the most recent run
func NewReportLastCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "last",
		Short: "Render the most recent saved run",
		RunE:  runReportLast,
	}

	cmd.Flags().String("output", export.FormatText, "Output format: text, json, csv, html")

	return cmd
}

// NewReportExportCommand exports a saved run to a file
func NewReportExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id|last> [file]",
		Short: "Export a saved run to a file",
		Long: `Export one saved run. The format is inferred from the file extension;
without a file argument a name is generated in the current directory
using the --output format.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runReportExport,
	}

	cmd.Flags().String("output", export.FormatJSON, "Format when no file is given: json, csv, text, html")

	return cmd
}

// NewReportCleanCommand removes old runs
func NewReportCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove saved runs older than a cutoff",
		RunE:  runReportClean,
	}

	cmd.Flags().Int("days", 30, "Keep runs newer than this many days")

	return cmd
}

// reportStore builds the run store honoring --out-dir over the
// configured directory.
func reportStore(cmd *cobra.Command) (*export.RunStore, error) {
	cfg, _, err := loadSetup(cmd)
	if err != nil {
		return nil, err
	}

	dir := cfg.OutDir
	if cmd.Flags().Changed("out-dir") {
		dir, _ = cmd.Flags().GetString("out-dir")
	}
	return export.NewRunStore(dir), nil
}

func runReportList(cmd *cobra.Command, args []string) error {
	store, err := reportStore(cmd)
	if err != nil {
		return err
	}

	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No saved runs found")
		return nil
	}

	fmt.Printf("%-22s %-20s %-9s %-26s %s\n", "RUN ID", "STARTED", "DURATION", "TARGETS", "SUMMARY")
	fmt.Println(strings.Repeat("-", 110))
	for _, run := range runs {
		fmt.Printf("%-22s %-20s %-9s %-26s %s\n",
			run.RunID,
			run.StartTime.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.1fs", run.Duration),
			truncateString(strings.Join(run.Targets, ","), 23),
			run.Summary)
	}
	return nil
}

func runReportLast(cmd *cobra.Command, args []string) error {
	store, err := reportStore(cmd)
	if err != nil {
		return err
	}

	last, err := store.Last()
	if err != nil {
		return err
	}
	doc, err := store.Load(last.RunID)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("output")
	return doc.Write(os.Stdout, format)
}

func runReportExport(cmd *cobra.Command, args []string) error {
	store, err := reportStore(cmd)
	if err != nil {
		return err
	}

	runID := args[0]
	if runID == "last" {
		last, err := store.Last()
		if err != nil {
			return err
		}
		runID = last.RunID
	}

	doc, err := store.Load(runID)
	if err != nil {
		return err
	}

	var path string
	if len(args) == 2 {
		path = args[1]
	} else {
		format, _ := cmd.Flags().GetString("output")
		target := "all"
		if len(doc.Report.Targets) > 0 {
			target = doc.Report.Targets[0]
		}
		path = export.Filename(target, doc.Report.StartTime, format)
	}

	if err := doc.Save(path); err != nil {
		return err
	}

	fmt.Printf("✅ Exported %s to %s\n", runID, path)
	return nil
}

func runReportClean(cmd *cobra.Command, args []string) error {
	store, err := reportStore(cmd)
	if err != nil {
		return err
	}

	days, _ := cmd.Flags().GetInt("days")
	removed, err := store.Clean(days)
	if err != nil {
		return err
	}

	fmt.Printf("🧹 Removed %d run(s) older than %d days\n", removed, days)
	return nil
}
