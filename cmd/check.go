package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

var checkStrict bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check which templates are present",
	Long: `Check the templates directory against the template catalog.

Every catalog file is reported as present, missing or invalid (not a decodable PNG).
PNG files that are not part of the catalog are listed as extra.

Use --strict to exit with an error when the set is incomplete.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Fail when any template is missing or invalid")
}

func runCheck(cmd *cobra.Command, args []string) error {
	report, err := templateService.Check(getContext())
	if err != nil {
		fmt.Println(ui.FormatError("Cannot read templates directory"))
		fmt.Println(ui.FormatInfo("Run 'autostart init' or set templates_dir in the config"))
		return err
	}

	fmt.Print(renderCheckReport(report))

	if checkStrict && !report.Complete() {
		return fmt.Errorf("%d templates missing, %d invalid",
			report.Count(domain.TemplateMissing), report.Count(domain.TemplateInvalid))
	}
	return nil
}

// renderCheckReport prints the report grouped by catalog category
func renderCheckReport(report *domain.CheckReport) string {
	byName := make(map[string]domain.TemplateCheck, len(report.Entries))
	for _, e := range report.Entries {
		byName[e.Filename] = e
	}

	var b strings.Builder
	b.WriteString(ui.FormatTitle(ui.IconTemplate+" Templates") + "\n")
	b.WriteString(ui.FormatMuted(report.Dir) + "\n\n")

	for _, group := range domain.Groups() {
		b.WriteString(ui.StyleHeader.Render(group.Title) + "\n")
		for _, name := range group.Files {
			entry := byName[name]
			line := fmt.Sprintf("  %-20s %s", name, ui.FormatStatus(string(entry.State)))
			switch entry.State {
			case domain.TemplatePresent:
				line += ui.FormatMuted(fmt.Sprintf("  %dx%d", entry.Width, entry.Height))
			case domain.TemplateInvalid:
				line += ui.FormatMuted("  " + entry.Error)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	if len(report.Extra) > 0 {
		b.WriteString(ui.StyleHeader.Render("Not in catalog") + "\n")
		for _, name := range report.Extra {
			b.WriteString("  " + ui.FormatMuted(name) + "\n")
		}
		b.WriteString("\n")
	}

	present := report.Count(domain.TemplatePresent)
	total := len(report.Entries)
	if report.Complete() {
		b.WriteString(ui.FormatSuccess(fmt.Sprintf("All %d templates present", total)) + "\n")
	} else {
		b.WriteString(ui.FormatWarning(fmt.Sprintf("%d/%d templates present", present, total)) + "\n")
	}

	return b.String()
}
