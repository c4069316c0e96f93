package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/pkg/config"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the health of your autostart installation",
	Long: `Diagnose issues with your autostart setup.

Checks for:
  - Workspace directory and configuration file
  - The memuc control binary and its instance list
  - Template completeness
  - Launch history database and log file`,
	RunE: runDoctor,
}

var errDoctorFailed = errors.New("some checks failed")

// webhookCheck accepts an empty URL since notifications are optional
func webhookCheck(raw string) error {
	if raw == "" {
		return skipped("not configured (optional)")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("expected an http(s) URL, got %q", raw)
	}
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := getContext()
	fmt.Println(ui.FormatTitle("autostart doctor"))
	fmt.Println()

	ok := true
	step := func(name string, check func() error) {
		if !checkStep(name, check) {
			ok = false
		}
	}

	step("Workspace Directory", func() error {
		if !appWorkspace.Exists() {
			return fmt.Errorf("not found at %s (run 'autostart init')", appWorkspace.RootPath)
		}
		return nil
	})

	step("Templates Directory", func() error {
		dir := appWorkspace.TemplatesPath
		if appConfig != nil {
			dir = appConfig.ResolveTemplatesDir(appWorkspace.TemplatesPath)
		}
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("missing at %s", dir)
		}
		return nil
	})

	configPath := activeConfigPath()
	step("Configuration File", func() error {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("missing at %s (defaults in use)", configPath)
		}
		if _, err := config.Load(configPath); err != nil {
			return fmt.Errorf("%w (defaults in use, run 'autostart config edit')", err)
		}
		return nil
	})

	// The remaining checks need the wired services
	if appConfig == nil {
		fmt.Println()
		fmt.Println(ui.FormatWarning("Skipping emulator and template checks until the workspace exists"))
		return errDoctorFailed
	}

	step("memuc (Emulator Control)", func() error {
		if !emulator.IsAvailable() {
			return fmt.Errorf("not found at %s: %w", emulator.Path(), domain.ErrNotAvailable)
		}
		return nil
	})

	if emulator.IsAvailable() {
		step("MEmu Instances", func() error {
			instances, err := emulator.ListInstances(ctx)
			if err != nil {
				return err
			}
			if len(instances) == 0 {
				return fmt.Errorf("memuc reported no instances")
			}
			running := 0
			for _, inst := range instances {
				if inst.IsRunning() {
					running++
				}
			}
			fmt.Println(ui.FormatMuted(fmt.Sprintf("    %d instances, %d running", len(instances), running)))
			return nil
		})
	}

	step("Templates", func() error {
		report, err := templateService.Check(ctx)
		if err != nil {
			return err
		}
		if !report.Complete() {
			return fmt.Errorf("%d of %d missing or unreadable (run 'autostart check')",
				len(report.Entries)-report.Count(domain.TemplatePresent), len(report.Entries))
		}
		return nil
	})

	step("Launch History", func() error {
		if historyRepo == nil {
			return fmt.Errorf("unavailable at %s (see log)", appWorkspace.HistoryPath())
		}
		return nil
	})

	step("Log File", func() error {
		if logFile == nil {
			return fmt.Errorf("could not open %s", appWorkspace.LogPath())
		}
		return nil
	})

	step("Webhook", func() error {
		return webhookCheck(appConfig.WebhookURL)
	})

	fmt.Println()
	if !ok {
		return errDoctorFailed
	}
	fmt.Println(ui.FormatSuccess("Everything looks good"))
	return nil
}
