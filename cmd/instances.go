package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/services"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

var instancesCmd = &cobra.Command{
	Use:     "instances",
	Aliases: []string{"vms"},
	Short:   "List MEmu instances (alias: vms)",
	Long: `List the MEmu instances reported by 'memuc listvms'.

Subcommands start and stop boot or shut down an instance by name.`,
	Args: cobra.NoArgs,
	RunE: runInstances,
}

// bootTimeout bounds how long start --launch waits for the instance to report Running
const bootTimeout = 3 * time.Minute

var instancesLaunch bool

var instancesStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Boot an instance",
	Long: `Boot an instance by name.

With --launch the command waits for the instance to report Running, lets it
settle for startup_settle and then starts the game on it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return powerInstance(args[0], true)
	},
}

var instancesStopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Shut an instance down",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return powerInstance(args[0], false)
	},
}

func init() {
	instancesStartCmd.Flags().BoolVarP(&instancesLaunch, "launch", "l", false, "Start the game once the instance is running")
	instancesCmd.AddCommand(instancesStartCmd)
	instancesCmd.AddCommand(instancesStopCmd)
}

func requireEmulator() error {
	if emulator.IsAvailable() {
		return nil
	}
	fmt.Println(ui.FormatError("memuc not found: " + emulator.Path()))
	fmt.Println(ui.FormatInfo("Set memuc_path in the config or AUTOSTART_MEMUC_PATH"))
	return domain.ErrNotAvailable
}

func runInstances(cmd *cobra.Command, args []string) error {
	if err := requireEmulator(); err != nil {
		return err
	}

	instances, err := emulator.ListInstances(getContext())
	if err != nil {
		fmt.Println(ui.FormatError("Failed to list instances"))
		return err
	}

	if len(instances) == 0 {
		fmt.Println(ui.FormatWarning("No instances found"))
		return nil
	}

	table := ui.NewTable([]ui.TableColumn{
		{Header: "#", Align: "right"},
		{Header: "Name"},
		{Header: "Status", Status: true},
		{Header: "Launch", Status: true},
	})
	for _, inst := range instances {
		launch := "-"
		if snap, ok := taskManager.Status(inst.Name); ok {
			launch = string(snap.Status)
		}
		table.AddRow([]string{
			strconv.Itoa(inst.Index),
			inst.Name,
			string(inst.Status),
			launch,
		})
	}

	fmt.Println(ui.FormatTitle(ui.IconGame + " Instances"))
	fmt.Println()
	fmt.Print(table.Render())
	return nil
}

func powerInstance(name string, start bool) error {
	if err := requireEmulator(); err != nil {
		return err
	}

	ctx := getContext()
	instances, err := emulator.ListInstances(ctx)
	if err != nil {
		return err
	}
	inst, ok := domain.FindInstance(instances, name)
	if !ok {
		fmt.Println(ui.FormatError("Instance not found: " + name))
		return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, name)
	}

	if start {
		if inst.IsRunning() {
			fmt.Println(ui.FormatInfo(inst.Name + " is already running"))
			if instancesLaunch {
				return launchAfterBoot(ctx, inst.Name)
			}
			return nil
		}
		fmt.Println(ui.FormatRocket("Starting " + inst.Name + "..."))
		err = emulator.Start(ctx, inst.Index)
	} else {
		fmt.Println(ui.FormatInfo("Stopping " + inst.Name + "..."))
		err = emulator.Stop(ctx, inst.Index)
	}
	if err != nil {
		fmt.Println(ui.FormatError("memuc failed: " + err.Error()))
		return err
	}

	fmt.Println(ui.FormatSuccess("Done"))
	if start && instancesLaunch {
		return launchAfterBoot(ctx, inst.Name)
	}
	return nil
}

// launchAfterBoot waits for a booting instance and starts the game on it
func launchAfterBoot(ctx context.Context, name string) error {
	fmt.Println(ui.FormatInfo("Waiting for " + name + " to boot..."))

	waitCtx, cancel := context.WithTimeout(ctx, bootTimeout)
	defer cancel()
	if _, err := services.WaitRunning(waitCtx, emulator, name, 2*time.Second); err != nil {
		fmt.Println(ui.FormatError("Instance did not come up: " + err.Error()))
		return err
	}

	// Android keeps booting for a while after memuc reports Running
	timer := time.NewTimer(appConfig.StartupSettle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	var result domain.LaunchRecord
	if _, err := taskManager.Start(ctx, name, 0, func(rec domain.LaunchRecord) {
		result = rec
		printLaunchResult(rec)
	}); err != nil {
		fmt.Println(ui.FormatError(err.Error()))
		return err
	}
	fmt.Println(ui.FormatRocket("Launching on " + name + "..."))

	waitForTasks(ctx)
	if !result.Success {
		return fmt.Errorf("launch on %s failed: %s", name, result.Detail)
	}
	return nil
}
