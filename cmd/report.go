package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

var (
	reportLimit  int
	reportOutput string
	reportOpen   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render launch history as HTML charts",
	Long: `Render launch history as an HTML page with charts:
  - successes and failures per instance
  - attempts needed per launch over time
  - overall outcome split

The page is written to the workspace cache (or --output) and opened in the browser.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVarP(&reportLimit, "limit", "n", 200, "Number of recent launches to chart")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Output file (default: cache/report.html)")
	reportCmd.Flags().BoolVar(&reportOpen, "open", true, "Open the report when done")
}

func runReport(cmd *cobra.Command, args []string) error {
	history := historyPort()
	if history == nil {
		fmt.Println(ui.FormatError("Launch history is not available"))
		return errNoHistory
	}

	ctx := getContext()
	summaries, err := history.Summaries(ctx)
	if err != nil {
		return err
	}
	records, err := history.List(ctx, "", reportLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(ui.FormatInfo("No launches recorded yet"))
		return nil
	}

	path := reportOutput
	if path == "" {
		path = appWorkspace.GetCachePath("report.html")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := writeReport(f, summaries, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Println(ui.FormatSuccess("Report written: " + path))
	if reportOpen {
		return OpenFile(path, "")
	}
	return nil
}

// writeReport renders the charts page for the given history
func writeReport(w io.Writer, summaries []domain.InstanceSummary, records []domain.LaunchRecord) error {
	page := components.NewPage()
	page.PageTitle = "autostart report"
	page.AddCharts(
		outcomeBar(summaries),
		attemptsLine(records),
		outcomePie(summaries),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

func outcomeBar(summaries []domain.InstanceSummary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Launches per instance",
			Subtitle: fmt.Sprintf("generated %s", time.Now().Format("2006-01-02 15:04")),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
	)

	names := make([]string, len(summaries))
	ok := make([]opts.BarData, len(summaries))
	failed := make([]opts.BarData, len(summaries))
	for i, s := range summaries {
		names[i] = s.Instance
		ok[i] = opts.BarData{Value: s.Successes}
		failed[i] = opts.BarData{Value: s.Failures}
	}

	bar.SetXAxis(names).
		AddSeries("Succeeded", ok).
		AddSeries("Failed", failed).
		SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "outcome"}))
	return bar
}

// attemptsLine plots attempts per launch, oldest first
func attemptsLine(records []domain.LaunchRecord) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Attempts per launch"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "attempts", MinInterval: 1}),
	)

	labels := make([]string, len(records))
	points := make([]opts.LineData, len(records))
	for i := range records {
		rec := records[len(records)-1-i]
		labels[i] = rec.FinishedAt.Local().Format("01-02 15:04")
		points[i] = opts.LineData{Value: rec.Attempts, Name: rec.Instance}
	}

	line.SetXAxis(labels).AddSeries("Attempts", points)
	return line
}

func outcomePie(summaries []domain.InstanceSummary) *charts.Pie {
	var ok, failed int
	for _, s := range summaries {
		ok += s.Successes
		failed += s.Failures
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Outcome"}))
	pie.AddSeries("Outcome", []opts.PieData{
		{Name: "Succeeded", Value: ok},
		{Name: "Failed", Value: failed},
	})
	return pie
}
