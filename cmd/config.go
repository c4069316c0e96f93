package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kamal-hamza/autostart/pkg/config"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration autostart is running with.

Values come from AUTOSTART_* environment variables first, then the config
file, then built-in defaults.`,
	RunE: runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE:  runConfigEdit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(activeConfigPath())
	},
}

func init() {
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configPathCmd)
}

func activeConfigPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return appWorkspace.ConfigPath
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path := activeConfigPath()

	data, err := yaml.Marshal(appConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	source := path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		source = path + " (missing, defaults in use)"
	}

	fmt.Println(ui.RenderKeyValue("File", source))
	fmt.Println(ui.RenderKeyValue("Env prefix", config.EnvPrefix))
	if configErr != nil {
		fmt.Println()
		fmt.Println(ui.FormatWarning("Config has problems, showing defaults: " + configErr.Error()))
		fmt.Println(ui.FormatInfo("Run 'autostart config edit' to fix it"))
	}
	fmt.Println()
	fmt.Print(string(data))
	return configErr
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path := activeConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Println(ui.FormatInfo("Created default config"))
	}

	fmt.Println(ui.FormatInfo("Opening config: " + path))
	if err := runEditor(path); err != nil {
		return err
	}

	// Surface mistakes now rather than on the next launch
	if _, err := config.Load(path); err != nil {
		fmt.Println(ui.FormatWarning("Config has problems: " + err.Error()))
		return err
	}
	fmt.Println(ui.FormatSuccess("Config is valid"))
	return nil
}
