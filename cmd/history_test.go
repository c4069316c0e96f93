package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

func TestRenderHistory(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []domain.LaunchRecord{
		{
			Instance:   "Farm-1",
			Status:     domain.TaskCompleted,
			Success:    true,
			Attempts:   2,
			MaxRetries: 3,
			Detail:     "game already running",
			StartedAt:  start,
			FinishedAt: start.Add(42 * time.Second),
		},
	}

	out := renderHistory(records)

	for _, want := range []string{"Farm-1", ui.IconSuccess + " completed", "2/3", "42s", "game already running"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderSummaries(t *testing.T) {
	summaries := []domain.InstanceSummary{
		{Instance: "Farm-1", Runs: 4, Successes: 3, Failures: 1, AvgAttempts: 1.5, LastRun: time.Now()},
	}

	out := renderSummaries(summaries)

	for _, want := range []string{"Farm-1", "75%", "1.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}
