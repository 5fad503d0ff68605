// Package export renders scan reports to JSON, CSV, plain text and
// HTML, and persists completed runs for later retrieval.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/portsage/portsage/internal/session"
	"github.com/portsage/portsage/internal/version"
)

// Document wraps a session report with generation metadata. It is the
// unit of serialization: every field the scanner and identifier
// produced survives a JSON round trip.
type Document struct {
	Tool        string          `json:"tool"`
	ToolVersion string          `json:"tool_version"`
	GeneratedAt time.Time       `json:"generated_at"`
	Report      *session.Report `json:"report"`
}

// NewDocument builds a Document around a finished report.
func NewDocument(report *session.Report) *Document {
	return &Document{
		Tool:        "portsage",
		ToolVersion: version.Version,
		GeneratedAt: time.Now(),
		Report:      report,
	}
}

// Formats supported by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "text"
	FormatHTML = "html"
)

// Write renders the document in the named format.
func (d *Document) Write(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		return d.WriteJSON(w)
	case FormatCSV:
		return d.WriteCSV(w)
	case FormatText:
		return d.WriteText(w)
	case FormatHTML:
		return d.WriteHTML(w)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// Save writes the document to path, creating parent directories. The
// format is inferred from the file extension; an extension no writer
// handles fails before anything is created on disk.
func (d *Document) Save(path string) error {
	format, err := formatForPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	return d.Write(file, format)
}

// formatForPath maps a file extension to its Write format.
func formatForPath(path string) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch ext {
	case FormatJSON, FormatCSV, FormatText, FormatHTML:
		return ext, nil
	case "htm":
		return FormatHTML, nil
	case "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported output format: %q", ext)
	}
}

// WriteJSON emits the full document as indented JSON.
func (d *Document) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(d)
}

// WriteCSV emits one record per scanned port.
func (d *Document) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Host", "Port", "State", "Service", "Version", "Protocol", "Error"}); err != nil {
		return err
	}
	for _, row := range d.Report.Rows {
		service, svcVersion, protocol := "", "", ""
		if row.Service != nil {
			service = row.Service.Service
			svcVersion = row.Service.Version
			protocol = row.Service.Protocol
		}
		record := []string{
			row.Host,
			strconv.Itoa(row.Port),
			string(row.State),
			service,
			svcVersion,
			protocol,
			row.Error,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteText emits a human-readable report: a summary block, a port
// table and per-service detail lines.
func (d *Document) WriteText(w io.Writer) error {
	r := d.Report

	fmt.Fprintf(w, "portsage scan report\n")
	fmt.Fprintf(w, "====================\n")
	fmt.Fprintf(w, "Targets:  %s\n", strings.Join(r.Targets, ", "))
	fmt.Fprintf(w, "Started:  %s\n", r.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration: %.1fs\n", r.Duration)
	fmt.Fprintf(w, "Scanned:  %d ports (%d open, %d closed, %d error)\n\n",
		len(r.Rows), r.Open, r.Closed, r.Errored)

	fmt.Fprintf(w, "%-24s %-6s %-7s %-14s %-20s %s\n",
		"HOST", "PORT", "STATE", "SERVICE", "VERSION", "DETAIL")
	fmt.Fprintln(w, strings.Repeat("-", 85))
	for _, row := range r.Rows {
		service, svcVersion := "", ""
		if row.Service != nil {
			service = row.Service.Service
			svcVersion = row.Service.Version
		}
		fmt.Fprintf(w, "%-24s %-6d %-7s %-14s %-20s %s\n",
			row.Host, row.Port, row.State, service, svcVersion, row.Error)
	}

	details := serviceDetails(r)
	if len(details) > 0 {
		fmt.Fprintln(w)
		for _, line := range details {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

// serviceDetails lists TLS and web findings that do not fit the table.
func serviceDetails(r *session.Report) []string {
	var lines []string
	for _, row := range r.Rows {
		svc := row.Service
		if svc == nil {
			continue
		}
		var extra []string
		if svc.TLS != nil {
			tls := svc.TLS.Version
			if svc.TLS.Subject != "" {
				tls += ", subject " + svc.TLS.Subject
			}
			extra = append(extra, "  tls: "+tls)
		}
		if svc.ServerHeader != "" {
			extra = append(extra, "  server: "+svc.ServerHeader)
		}
		if len(svc.Technologies) > 0 {
			extra = append(extra, "  technologies: "+strings.Join(svc.Technologies, ", "))
		}
		if len(extra) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s:%d", row.Host, row.Port))
		lines = append(lines, extra...)
	}
	return lines
}

// Filename builds the conventional export file name for a target:
// scan_<target>_<YYYYMMDD_HHMMSS>.<ext>, with path-hostile characters
// in the target replaced by underscores.
func Filename(target string, ts time.Time, ext string) string {
	return fmt.Sprintf("scan_%s_%s.%s", sanitizeTarget(target), ts.Format("20060102_150405"), ext)
}

func sanitizeTarget(target string) string {
	var b strings.Builder
	for _, r := range target {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

