package cmd

import (
	"strings"
	"testing"

	"github.com/kamal-hamza/autostart/internal/core/domain"
)

func TestRenderCheckReport_Complete(t *testing.T) {
	report := &domain.CheckReport{Dir: "/tmp/templates"}
	for _, name := range domain.AllFiles() {
		report.Entries = append(report.Entries, domain.TemplateCheck{
			Filename: name,
			State:    domain.TemplatePresent,
			Width:    64,
			Height:   32,
		})
	}

	out := renderCheckReport(report)

	if !strings.Contains(out, "/tmp/templates") {
		t.Error("expected directory in output")
	}
	for _, group := range domain.Groups() {
		if !strings.Contains(out, group.Title) {
			t.Errorf("expected group title %q in output", group.Title)
		}
	}
	if !strings.Contains(out, "64x32") {
		t.Error("expected template size in output")
	}
	if !strings.Contains(out, "templates present") || !strings.Contains(out, "All") {
		t.Errorf("expected complete summary, got:\n%s", out)
	}
}

func TestRenderCheckReport_Incomplete(t *testing.T) {
	report := &domain.CheckReport{
		Dir: "/tmp/templates",
		Entries: []domain.TemplateCheck{
			{Filename: "world.png", State: domain.TemplatePresent, Width: 10, Height: 10},
			{Filename: "play.png", State: domain.TemplateMissing},
			{Filename: "close_x.png", State: domain.TemplateInvalid, Error: "png: invalid format"},
		},
		Extra: []string{"screenshot.png"},
	}

	out := renderCheckReport(report)

	if !strings.Contains(out, "png: invalid format") {
		t.Error("expected decode error for invalid template")
	}
	if !strings.Contains(out, "Not in catalog") || !strings.Contains(out, "screenshot.png") {
		t.Error("expected extra files section")
	}
	if !strings.Contains(out, "1/3 templates present") {
		t.Errorf("expected partial summary, got:\n%s", out)
	}
}
