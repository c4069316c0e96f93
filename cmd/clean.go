package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/pkg/ui"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove cached reports and captured screenshots",
	Long: `Clear the cache directory.

The cache holds HTML reports written by 'autostart report' and screenshots
saved with 'autostart locate --save'. Templates and launch history are kept.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	entries, err := os.ReadDir(appWorkspace.CachePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if len(entries) == 0 {
		fmt.Println(ui.FormatInfo("Cache is already empty"))
		return nil
	}

	fmt.Print(ui.StyleWarning.Render(fmt.Sprintf("Cleaning %d cached files... ", len(entries))))

	if err := appWorkspace.CleanCache(); err != nil {
		fmt.Println(ui.FormatError("Failed"))
		return err
	}

	fmt.Println(ui.FormatSuccess("Done"))
	return nil
}
