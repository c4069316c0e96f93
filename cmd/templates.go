package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	fuzzyfinder "github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/adapters/watcher"
	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/services"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

var (
	watchQuiet    bool
	watchDebounce string
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"tpl"},
	Short:   "Manage template images (alias: tpl)",
	Long: `Manage the PNG templates used to recognise the game screen.

Subcommands:
  list    Show the catalog and which files are present
  add     Import a PNG under a catalog name
  view    Render a template in the terminal
  watch   Re-check the directory whenever templates change
  setup   Create the directory and rewrite its README.md`,
}

var templatesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List catalog templates and their status",
	Args:    cobra.NoArgs,
	RunE:    runTemplatesList,
}

var templatesAddCmd = &cobra.Command{
	Use:   "add [name] <source.png>",
	Short: "Import a PNG as a catalog template",
	Long: `Import a PNG file into the templates directory under a catalog name.

The catalog name may be given with or without the .png extension.
Without a name, a fuzzy picker over the catalog is shown.
Importing identical content again is a no-op.

Examples:
  autostart templates add close_x2 ~/crops/ad-close.png
  autostart templates add ~/crops/world.png`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTemplatesAdd,
}

var templatesViewCmd = &cobra.Command{
	Use:   "view <name>",
	Short: "Render a template in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesView,
}

var templatesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the templates directory and re-check on change",
	Long: `Watch the templates directory for PNG changes.

Changed templates are dropped from the in-memory cache and the directory is
checked again. Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runTemplatesWatch,
}

var templatesSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the templates directory and its README.md",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := templateService.Setup(getContext())
		if err != nil {
			fmt.Println(ui.FormatError("Failed to set up templates directory"))
			return err
		}
		fmt.Println(ui.FormatSuccess("README written: " + path))
		return nil
	},
}

func init() {
	templatesWatchCmd.Flags().BoolVarP(&watchQuiet, "quiet", "q", false, "Only print when the set becomes incomplete")
	templatesWatchCmd.Flags().StringVar(&watchDebounce, "debounce", watcher.DefaultDebounce.String(), "Quiet period before re-checking")

	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesAddCmd)
	templatesCmd.AddCommand(templatesViewCmd)
	templatesCmd.AddCommand(templatesWatchCmd)
	templatesCmd.AddCommand(templatesSetupCmd)
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	ctx := getContext()

	report, err := templateService.Check(ctx)
	if err != nil {
		return err
	}
	states := make(map[string]domain.TemplateState, len(report.Entries))
	for _, e := range report.Entries {
		states[e.Filename] = e.State
	}

	table := ui.NewTable([]ui.TableColumn{
		{Header: "Template"},
		{Header: "Used as"},
		{Header: "Status"},
		{Header: "Imported from"},
	})

	for _, spec := range domain.Specs() {
		source := "-"
		if asset, err := templateRepo.Asset(ctx, spec.Filename); err == nil {
			source = fmt.Sprintf("%s (%s)", filepath.Base(asset.OriginalName), asset.ImportedAt.Format("2006-01-02"))
		}
		table.AddRow([]string{
			spec.Filename,
			categoryTitles(spec.Categories),
			string(states[spec.Filename]),
			source,
		})
	}

	fmt.Println(ui.FormatTitle(ui.IconTemplate + " Template catalog"))
	fmt.Println(ui.FormatMuted(templateService.Dir()))
	fmt.Println()
	fmt.Print(table.Render())
	return nil
}

func categoryTitles(cats []domain.Category) string {
	titles := make([]string, len(cats))
	for i, c := range cats {
		titles[i] = c.Title()
	}
	return strings.Join(titles, ", ")
}

func runTemplatesAdd(cmd *cobra.Command, args []string) error {
	var name, source string
	if len(args) == 2 {
		name, source = args[0], args[1]
	} else {
		source = args[0]
		picked, err := pickTemplateName()
		if err != nil {
			fmt.Println(ui.FormatInfo("Selection cancelled."))
			return nil
		}
		name = picked
	}

	resp, err := templateService.Add(getContext(), services.AddTemplateRequest{Name: name, SourcePath: source})
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTemplate) {
			fmt.Println(ui.FormatError("Not a catalog template: " + name))
			fmt.Println(ui.FormatInfo("Run 'autostart templates list' to see valid names"))
		}
		return err
	}

	if !resp.Changed {
		fmt.Println(ui.FormatInfo("Template unchanged: " + resp.Asset.Filename))
		return nil
	}

	fmt.Println(ui.FormatSuccess(fmt.Sprintf("Imported %s (%dx%d)", resp.Asset.Filename, resp.Asset.Width, resp.Asset.Height)))
	fmt.Println(ui.FormatMuted("  " + resp.Path))
	return nil
}

// pickTemplateName lets the user choose a catalog filename
func pickTemplateName() (string, error) {
	specs := domain.Specs()
	idx, err := fuzzyfinder.Find(
		specs,
		func(i int) string {
			return specs[i].Filename
		},
		fuzzyfinder.WithPromptString("template> "),
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			var s strings.Builder
			s.WriteString(specs[i].Filename + "\n\n")
			for _, c := range specs[i].Categories {
				s.WriteString("• " + c.Title() + "\n")
			}
			if templateRepo.Exists(specs[i].Filename) {
				s.WriteString("\n(present, will be replaced)")
			}
			return s.String()
		}),
	)
	if err != nil {
		return "", err
	}
	return specs[idx].Filename, nil
}

func runTemplatesView(cmd *cobra.Command, args []string) error {
	name := args[0]
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	if !templateRepo.Exists(name) {
		fmt.Println(ui.FormatError("Template not found: " + name))
		return domain.ErrTemplateNotFound
	}

	view, err := NewImageView(filepath.Join(templateRepo.Dir(), name))
	if err != nil {
		return err
	}
	return view.Run()
}

func runTemplatesWatch(cmd *cobra.Command, args []string) error {
	ctx := getContext()

	debounce, err := parseDuration(watchDebounce)
	if err != nil {
		return fmt.Errorf("invalid --debounce: %w", err)
	}

	w := watcher.New(templateService.Dir(), debounce, appLog)

	fmt.Println(ui.FormatRocket("Watching templates..."))
	fmt.Println(ui.FormatMuted("Directory: " + templateService.Dir()))
	fmt.Println(ui.FormatMuted("Press Ctrl+C to stop"))
	fmt.Println()

	err = w.Run(ctx, func(changed []string) {
		report, err := templateService.Refresh(ctx, changed)
		if err != nil {
			fmt.Println(ui.FormatError("Check failed: " + err.Error()))
			appLog.Err(err).Msg("template re-check failed")
			return
		}

		appLog.Info().Strs("changed", changed).Bool("complete", report.Complete()).Msg("templates changed")
		if watchQuiet && report.Complete() {
			return
		}

		fmt.Println(ui.FormatInfo("Changed: " + strings.Join(changed, ", ")))
		fmt.Print(renderCheckReport(report))
		fmt.Println()
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(ui.FormatMuted("Watcher stopped"))
	return nil
}
