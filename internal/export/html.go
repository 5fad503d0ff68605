package export

import (
	"html/template"
	"io"
	"strings"
	"time"
)

// WriteHTML renders the document as a standalone HTML page.
func (d *Document) WriteHTML(w io.Writer) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatTime": formatTime,
		"stateClass": stateClass,
		"join":       strings.Join,
	}).Parse(htmlTemplate)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, d)
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func stateClass(state string) string {
	switch state {
	case "open":
		return "state-open"
	case "closed":
		return "state-closed"
	default:
		return "state-error"
	}
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>portsage scan report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            color: #333;
            background-color: #f8f9fa;
        }

        .container {
            max-width: 1100px;
            margin: 0 auto;
            padding: 20px;
        }

        .header {
            background: white;
            border-radius: 8px;
            padding: 30px;
            margin-bottom: 20px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }

        .header h1 {
            color: #2c3e50;
            margin-bottom: 10px;
        }

        .header .meta {
            color: #666;
            font-size: 14px;
        }

        .summary {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(160px, 1fr));
            gap: 20px;
            margin-bottom: 20px;
        }

        .summary-card {
            background: white;
            border-radius: 8px;
            padding: 20px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }

        .summary-card h3 {
            color: #2c3e50;
            margin-bottom: 10px;
            font-size: 14px;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }

        .summary-card .value {
            font-size: 24px;
            font-weight: bold;
            color: #3498db;
        }

        .section {
            background: white;
            border-radius: 8px;
            padding: 30px;
            margin-bottom: 20px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }

        .section h2 {
            color: #2c3e50;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #ecf0f1;
        }

        .ports-table {
            width: 100%;
            border-collapse: collapse;
        }

        .ports-table th,
        .ports-table td {
            padding: 12px;
            text-align: left;
            border-bottom: 1px solid #ecf0f1;
        }

        .ports-table th {
            background: #f8f9fa;
            font-weight: 600;
            color: #2c3e50;
        }

        .port-state {
            padding: 4px 8px;
            border-radius: 4px;
            font-size: 12px;
            font-weight: bold;
            text-transform: uppercase;
        }

        .port-state.state-open {
            background: #d4edda;
            color: #155724;
        }

        .port-state.state-closed {
            background: #e2e3e5;
            color: #41464b;
        }

        .port-state.state-error {
            background: #f8d7da;
            color: #721c24;
        }

        .detail {
            color: #666;
            font-size: 13px;
            font-family: monospace;
        }

        .footer {
            text-align: center;
            color: #666;
            font-size: 14px;
            margin-top: 40px;
            padding-top: 20px;
            border-top: 1px solid #ecf0f1;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Scan Report</h1>
            <div class="meta">
                Targets: <strong>{{join .Report.Targets ", "}}</strong> |
                Started: <strong>{{formatTime .Report.StartTime}}</strong> |
                Generated: <strong>{{formatTime .GeneratedAt}}</strong>
            </div>
        </div>

        <div class="summary">
            <div class="summary-card">
                <h3>Duration</h3>
                <div class="value">{{printf "%.1fs" .Report.Duration}}</div>
            </div>
            <div class="summary-card">
                <h3>Ports Scanned</h3>
                <div class="value">{{len .Report.Rows}}</div>
            </div>
            <div class="summary-card">
                <h3>Open</h3>
                <div class="value">{{.Report.Open}}</div>
            </div>
            <div class="summary-card">
                <h3>Closed</h3>
                <div class="value">{{.Report.Closed}}</div>
            </div>
            <div class="summary-card">
                <h3>Errors</h3>
                <div class="value">{{.Report.Errored}}</div>
            </div>
        </div>

        <div class="section">
            <h2>Ports</h2>
            <table class="ports-table">
                <thead>
                    <tr>
                        <th>Host</th>
                        <th>Port</th>
                        <th>State</th>
                        <th>Service</th>
                        <th>Version</th>
                        <th>Details</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Report.Rows}}
                    <tr>
                        <td>{{.Host}}</td>
                        <td><strong>{{.Port}}</strong></td>
                        <td><span class="port-state {{stateClass (printf "%s" .State)}}">{{.State}}</span></td>
                        <td>{{if .Service}}{{.Service.Service}}{{end}}</td>
                        <td>{{if .Service}}{{.Service.Version}}{{end}}</td>
                        <td class="detail">
                            {{if .Error}}{{.Error}}{{end}}
                            {{if .Service}}{{if .Service.TLS}}{{.Service.TLS.Version}}{{end}}
                            {{if .Service.Technologies}}{{join .Service.Technologies ", "}}{{end}}{{end}}
                        </td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>

        <div class="footer">
            <p>Generated by {{.Tool}} {{.ToolVersion}} on {{formatTime .GeneratedAt}}</p>
        </div>
    </div>
</body>
</html>`
