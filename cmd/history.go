package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

var (
	historyLimit   int
	historySummary bool
)

var historyCmd = &cobra.Command{
	Use:   "history [instance]",
	Short: "Show past launches",
	Long: `Show finished launches, newest first.

Pass an instance name to filter, or --summary for per-instance totals.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of launches to show")
	historyCmd.Flags().BoolVarP(&historySummary, "summary", "s", false, "Show per-instance totals")
}

var errNoHistory = errors.New("launch history is not available")

func runHistory(cmd *cobra.Command, args []string) error {
	history := historyPort()
	if history == nil {
		fmt.Println(ui.FormatError("Launch history is not available"))
		fmt.Println(ui.FormatMuted("See " + appWorkspace.LogPath() + " for details"))
		return errNoHistory
	}

	ctx := getContext()

	if historySummary {
		summaries, err := history.Summaries(ctx)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println(ui.FormatInfo("No launches recorded yet"))
			return nil
		}
		fmt.Print(renderSummaries(summaries))
		return nil
	}

	instance := ""
	if len(args) == 1 {
		instance = args[0]
	}

	records, err := history.List(ctx, instance, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(ui.FormatInfo("No launches recorded yet"))
		return nil
	}

	fmt.Print(renderHistory(records))
	return nil
}

func renderHistory(records []domain.LaunchRecord) string {
	table := ui.NewTable([]ui.TableColumn{
		{Header: "Finished"},
		{Header: "Instance"},
		{Header: "Status", Status: true},
		{Header: "Attempts", Align: "right"},
		{Header: "Took", Align: "right"},
		{Header: "Detail", MaxWidth: 48},
	})
	for _, rec := range records {
		table.AddRow([]string{
			rec.FinishedAt.Local().Format("2006-01-02 15:04"),
			rec.Instance,
			string(rec.Status),
			fmt.Sprintf("%d/%d", rec.Attempts, rec.MaxRetries),
			rec.Duration().Round(time.Second).String(),
			rec.Detail,
		})
	}
	return table.Render()
}

func renderSummaries(summaries []domain.InstanceSummary) string {
	table := ui.NewTable([]ui.TableColumn{
		{Header: "Instance"},
		{Header: "Runs", Align: "right"},
		{Header: "OK", Align: "right"},
		{Header: "Failed", Align: "right"},
		{Header: "Success", Align: "right"},
		{Header: "Avg attempts", Align: "right"},
		{Header: "Last run"},
	})
	for _, s := range summaries {
		table.AddRow([]string{
			s.Instance,
			strconv.Itoa(s.Runs),
			strconv.Itoa(s.Successes),
			strconv.Itoa(s.Failures),
			fmt.Sprintf("%.0f%%", s.SuccessRate()*100),
			fmt.Sprintf("%.1f", s.AvgAttempts),
			s.LastRun.Local().Format("2006-01-02 15:04"),
		})
	}
	return table.Render()
}
