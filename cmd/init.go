package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kamal-hamza/autostart/internal/adapters/repository"
	"github.com/kamal-hamza/autostart/internal/core/services"
	"github.com/kamal-hamza/autostart/pkg/config"
	"github.com/kamal-hamza/autostart/pkg/ui"
	"github.com/kamal-hamza/autostart/pkg/workspace"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the autostart workspace",
	Long: `Initialize the autostart workspace directory structure.

This creates the managed workspace at ~/.local/share/autostart/ with the following structure:
  - templates/   : PNG templates matched against screenshots (with README.md)
  - cache/       : Screenshots and generated reports
  - history.db   : Launch history (created on first use)
  - config.yaml  : Global configuration (in ~/.config/autostart/)`,
	RunE: runInit,
}

const configHeader = `# autostart configuration
# Every key is optional; AUTOSTART_* environment variables override this file.
# Durations use Go syntax (10s, 500ms). Coordinates are device pixels.

`

func runInit(cmd *cobra.Command, args []string) error {
	ws, err := workspace.New()
	if err != nil {
		fmt.Println(ui.FormatError("Failed to determine workspace location"))
		return err
	}

	if ws.Exists() {
		fmt.Println(ui.FormatWarning("Workspace already initialized"))
		fmt.Println(ui.FormatMuted("Location: " + ws.RootPath))
		return nil
	}

	fmt.Println(ui.FormatRocket("Initializing autostart workspace..."))
	fmt.Println()

	if err := ws.Initialize(); err != nil {
		fmt.Println(ui.FormatError("Failed to initialize workspace"))
		return err
	}

	if _, err := os.Stat(ws.ConfigPath); os.IsNotExist(err) {
		if err := writeDefaultConfig(ws.ConfigPath); err != nil {
			// config is optional
			fmt.Println(ui.FormatWarning("Failed to create default config: " + err.Error()))
		} else {
			fmt.Println(ui.FormatSuccess("Default config created"))
		}
	}

	svc := services.NewTemplateService(repository.NewTemplateRepository(ws.TemplatesPath))
	readme, err := svc.Setup(getContext())
	if err != nil {
		fmt.Println(ui.FormatWarning("Failed to set up templates directory: " + err.Error()))
	} else {
		fmt.Println(ui.FormatSuccess("Templates README created"))
		fmt.Println(ui.FormatMuted("  " + readme))
	}

	fmt.Println(ui.FormatSuccess("Workspace initialized successfully!"))
	fmt.Println()
	fmt.Println(ui.RenderKeyValue("Location", ws.RootPath))
	fmt.Println(ui.RenderKeyValue("Config", ws.ConfigPath))
	fmt.Println()
	fmt.Println(ui.FormatInfo("Next steps:"))
	fmt.Println(ui.FormatMuted("  1. Add templates:        autostart templates add world.png ~/crops/world.png"))
	fmt.Println(ui.FormatMuted("  2. Check what's missing: autostart check"))
	fmt.Println(ui.FormatMuted("  3. Start the game:       autostart launch"))

	return nil
}

func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, append([]byte(configHeader), data...), 0644)
}
