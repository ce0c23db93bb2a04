package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bounty-cli/internal/analytics"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render session metrics as table, CSV, or XLSX",
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.String("session", "", "session ID (default: latest)")
	f.String("format", "table", "output format: table, csv, or xlsx")
	f.String("output", "", "output file path (required for xlsx, default stdout otherwise)")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sessionID, _ := cmd.Flags().GetString("session")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	if format == "xlsx" && outputPath == "" {
		return eris.New("report: --output is required for xlsx")
	}

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var m *analytics.SessionMetrics
	if sessionID != "" {
		m, err = env.Store.GetSessionMetrics(ctx, sessionID)
	} else {
		m, err = env.Store.LatestSessionMetrics(ctx)
	}
	if err != nil {
		return err
	}
	if m == nil {
		fmt.Println("No session metrics recorded yet. Run 'triage' first.")
		return nil
	}

	switch format {
	case "table":
		return writeReportTable(os.Stdout, m, outputPath)
	case "csv":
		return writeReportCSV(m, outputPath)
	case "xlsx":
		return writeReportXLSX(m, outputPath)
	default:
		return eris.Errorf("report: unsupported format %q", format)
	}
}

// reportRows flattens the metrics into (section, metric, value) rows shared
// by all three output formats.
func reportRows(m *analytics.SessionMetrics) [][3]string {
	rows := [][3]string{
		{"session", "id", m.SessionID},
		{"session", "started_at", m.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"decisions", "total", fmt.Sprintf("%d", m.Decisions.Total)},
		{"decisions", "implement", fmt.Sprintf("%d", m.Decisions.Implement)},
		{"decisions", "skip", fmt.Sprintf("%d", m.Decisions.Skip)},
		{"decisions", "implement_rate_pct", fmt.Sprintf("%.1f", m.Decisions.ImplementRate)},
		{"implementation", "started", fmt.Sprintf("%d", m.Implementation.Started)},
		{"implementation", "completed", fmt.Sprintf("%d", m.Implementation.Completed)},
		{"implementation", "succeeded", fmt.Sprintf("%d", m.Implementation.Succeeded)},
		{"implementation", "failed", fmt.Sprintf("%d", m.Implementation.Failed)},
		{"implementation", "success_rate_pct", fmt.Sprintf("%.1f", m.Implementation.SuccessRatePct)},
		{"implementation", "avg_duration_min", fmt.Sprintf("%.2f", m.Implementation.AvgDurationMinutes)},
		{"quality", "evaluated", fmt.Sprintf("%d", m.Quality.Evaluated)},
		{"quality", "passed", fmt.Sprintf("%d", m.Quality.Passed)},
		{"quality", "failed", fmt.Sprintf("%d", m.Quality.Failed)},
		{"quality", "failure_rate_pct", fmt.Sprintf("%.1f", m.Quality.FailureRatePct)},
		{"value", "committed_usd", fmt.Sprintf("%.2f", float64(m.Value.CommittedCents)/100)},
		{"value", "delivered_usd", fmt.Sprintf("%.2f", float64(m.Value.DeliveredCents)/100)},
	}
	for _, tier := range []string{"below", "tier1", "tier2", "tier3"} {
		if cents, ok := m.Value.ByTier[tier]; ok {
			rows = append(rows, [3]string{"value", "committed_usd_" + tier, fmt.Sprintf("%.2f", float64(cents)/100)})
		}
	}
	rows = append(rows,
		[3]string{"rates", "decisions_per_minute", fmt.Sprintf("%.2f", m.Rates.DecisionsPerMinute)},
		[3]string{"rates", "implementations_per_hour", fmt.Sprintf("%.2f", m.Rates.ImplementationsPerHour)},
		[3]string{"rates", "estimated_cost_usd", fmt.Sprintf("%.2f", m.Rates.EstimatedCostUSD)},
		[3]string{"rates", "estimated_roi", fmt.Sprintf("%.1f", m.Rates.EstimatedROI)},
	)
	if m.Rates.Note != "" {
		rows = append(rows, [3]string{"rates", "note", m.Rates.Note})
	}
	for _, b := range m.Bottlenecks {
		rows = append(rows, [3]string{"bottleneck", string(b.Kind), b.Message})
	}
	return rows
}

func writeReportTable(w io.Writer, m *analytics.SessionMetrics, outputPath string) error {
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "report: create output file %s", outputPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	var section string
	for _, row := range reportRows(m) {
		if row[0] != section {
			section = row[0]
			fmt.Fprintf(w, "\n[%s]\n", section)
		}
		fmt.Fprintf(w, "  %-26s %s\n", row[1], row[2])
	}
	return nil
}

func writeReportCSV(m *analytics.SessionMetrics, outputPath string) error {
	w := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "report: create output file %s", outputPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"section", "metric", "value"}); err != nil {
		return eris.Wrap(err, "report: write CSV header")
	}
	for _, row := range reportRows(m) {
		if err := cw.Write(row[:]); err != nil {
			return eris.Wrap(err, "report: write CSV row")
		}
	}
	return nil
}

func writeReportXLSX(m *analytics.SessionMetrics, outputPath string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Session Metrics")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Section", "Metric", "Value"} {
		header.AddCell().Value = h
	}
	for _, row := range reportRows(m) {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().Value = v
		}
	}

	if err := f.Save(outputPath); err != nil {
		return eris.Wrapf(err, "report: save %s", outputPath)
	}
	fmt.Printf("Report written to %s\n", outputPath)
	return nil
}
