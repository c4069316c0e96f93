package ui

import (
	"strings"
	"testing"
)

func TestPadString(t *testing.T) {
	tests := []struct {
		in    string
		width int
		align string
		want  string
	}{
		{"ab", 4, "left", "ab  "},
		{"ab", 4, "right", "  ab"},
		{"ab", 5, "center", " ab  "},
		{"abcdef", 3, "left", "abcdef"},
		{"", 2, "", "  "},
	}

	for _, tt := range tests {
		if got := padString(tt.in, tt.width, tt.align); got != tt.want {
			t.Errorf("padString(%q, %d, %q) = %q, want %q", tt.in, tt.width, tt.align, got, tt.want)
		}
	}
}

func TestTable_Render(t *testing.T) {
	table := NewTable([]TableColumn{
		{Header: "Instance"},
		{Header: "Runs", Align: "right"},
	})
	table.AddRow([]string{"Farm-1", "12"})
	table.AddRow([]string{"Main", "3"})

	out := table.Render()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "Instance") || !strings.Contains(lines[0], "Runs") {
		t.Errorf("header missing columns: %q", lines[0])
	}
	if !strings.Contains(lines[2], "Farm-1") || !strings.Contains(lines[3], "Main") {
		t.Errorf("rows out of order:\n%s", out)
	}
}

func TestTable_Empty(t *testing.T) {
	if got := NewTable(nil).Render(); got != "" {
		t.Errorf("expected empty render, got %q", got)
	}
}

func TestFormatStatus(t *testing.T) {
	for _, status := range []string{"completed", "failed", "missing", "running", "whatever"} {
		if got := FormatStatus(status); !strings.Contains(got, status) {
			t.Errorf("FormatStatus(%q) = %q", status, got)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(0.756); !strings.Contains(got, "76%") {
		t.Errorf("FormatPercent(0.756) = %q", got)
	}
	if got := FormatPercent(0); !strings.Contains(got, "0%") {
		t.Errorf("FormatPercent(0) = %q", got)
	}
}

func TestTable_StatusColumn(t *testing.T) {
	table := NewTable([]TableColumn{
		{Header: "Instance"},
		{Header: "Status", Status: true},
	})
	table.AddRow([]string{"Farm-1", "completed"})
	table.AddRow([]string{"Farm-2", "failed"})
	table.AddRow([]string{"Farm-3", "-"})

	lines := strings.Split(strings.TrimRight(table.Render(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[2], IconSuccess+" completed") {
		t.Errorf("completed should carry the success icon: %q", lines[2])
	}
	if !strings.Contains(lines[3], IconError+" failed") {
		t.Errorf("failed should carry the error icon: %q", lines[3])
	}
	if strings.Contains(lines[4], IconSuccess) || strings.Contains(lines[4], IconError) {
		t.Errorf("placeholder should stay plain: %q", lines[4])
	}
}

func TestTable_MaxWidth(t *testing.T) {
	table := NewTable([]TableColumn{
		{Header: "Detail", MaxWidth: 8},
	})
	table.AddRow([]string{"assumed success after cleanup"})

	out := table.Render()
	if strings.Contains(out, "cleanup") {
		t.Errorf("long cell should be cut:\n%s", out)
	}
	if !strings.Contains(out, "assumed…") {
		t.Errorf("expected ellipsis, got:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"overflowing", 5, "over…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
