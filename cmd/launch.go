package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	fuzzyfinder "github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/services"
	"github.com/kamal-hamza/autostart/pkg/config"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

var (
	launchAll       bool
	launchRetries   int
	launchDashboard bool
	launchWatch     bool
)

var launchCmd = &cobra.Command{
	Use:   "launch [instance...]",
	Short: "Start the game on one or more instances",
	Long: `Start the game on MEmu instances.

For each instance a screenshot is taken and matched against the templates:
  - game world visible   : done
  - main menu visible    : tap Play and wait for the game to load
  - anything else        : close ads, tap generic buttons, then retry

Without arguments a picker over all instances is shown.

With --watch the command keeps running and launches the game whenever a
watched instance is seen running: the named instances, or auto_startup from
the config. A successful launch is not repeated within startup_cooldown
unless the instance is stopped in between.

Examples:
  autostart launch Farm-1 Farm-2
  autostart launch --all --retries 5
  autostart launch --all --dashboard
  autostart launch --watch Farm-1 Farm-2`,
	RunE: runLaunch,
}

func init() {
	launchCmd.Flags().BoolVarP(&launchAll, "all", "a", false, "Launch on every running instance")
	launchCmd.Flags().IntVarP(&launchRetries, "retries", "r", 0, "Attempts per instance (default from config)")
	launchCmd.Flags().BoolVarP(&launchDashboard, "dashboard", "d", false, "Follow progress in the dashboard")
	launchCmd.Flags().BoolVarP(&launchWatch, "watch", "w", false, "Keep launching on watched instances whenever they run")
}

// watchOptions builds the monitor options for --watch; names override auto_startup
func watchOptions(cfg *config.Config, names []string, retries int) services.MonitorOptions {
	opts := services.MonitorOptionsFromConfig(cfg)
	if len(names) > 0 {
		opts.Instances = names
	}
	if retries > 0 {
		opts.MaxRetries = retries
	}
	opts.OnComplete = printLaunchResult
	return opts
}

func runWatch(ctx context.Context, names []string) error {
	if launchAll {
		return errors.New("--watch takes instance names or auto_startup, not --all")
	}

	opts := watchOptions(appConfig, names, launchRetries)
	if len(opts.Instances) == 0 {
		fmt.Println(ui.FormatWarning("No instances to watch"))
		fmt.Println(ui.FormatInfo("Pass instance names or set auto_startup in the config"))
		return errors.New("no instances to watch")
	}

	fmt.Println(ui.FormatRocket("Watching " + strings.Join(opts.Instances, ", ")))
	fmt.Println(ui.FormatMuted(fmt.Sprintf("Checking every %s, cooldown %s. Press Ctrl+C to stop", opts.Interval, opts.Cooldown)))

	services.NewMonitor(emulator, taskManager, opts, appLog).Run(ctx)

	if len(taskManager.Running()) > 0 {
		fmt.Println(ui.FormatInfo("Stopping launches..."))
	}
	taskManager.StopAll()
	taskManager.Wait()
	return nil
}

// printLaunchResult reports a finished launch on one line
func printLaunchResult(rec domain.LaunchRecord) {
	if rec.Success {
		fmt.Println(ui.FormatSuccess(fmt.Sprintf("%s: %s (%d attempts, %s)",
			rec.Instance, rec.Detail, rec.Attempts, rec.Duration().Round(100*time.Millisecond))))
		return
	}
	fmt.Println(ui.FormatError(fmt.Sprintf("%s: %s (%d attempts)",
		rec.Instance, rec.Detail, rec.Attempts)))
}

// resolveTargets picks the instances to launch from names or --all
func resolveTargets(instances []domain.Instance, names []string, all bool) ([]domain.Instance, error) {
	if all {
		var running []domain.Instance
		for _, inst := range instances {
			if inst.IsRunning() {
				running = append(running, inst)
			}
		}
		if len(running) == 0 {
			return nil, errors.New("no running instances")
		}
		return running, nil
	}

	var (
		targets []domain.Instance
		unknown []string
		seen    = make(map[string]bool)
	)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		inst, ok := domain.FindInstance(instances, name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		targets = append(targets, inst)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, strings.Join(unknown, ", "))
	}
	return targets, nil
}

func pickInstances(instances []domain.Instance) ([]domain.Instance, error) {
	idxs, err := fuzzyfinder.FindMulti(
		instances,
		func(i int) string {
			return fmt.Sprintf("%s [%s]", instances[i].Name, instances[i].Status)
		},
		fuzzyfinder.WithPromptString("instances (tab to select)> "),
	)
	if err != nil {
		return nil, err
	}

	picked := make([]domain.Instance, len(idxs))
	for i, idx := range idxs {
		picked[i] = instances[idx]
	}
	return picked, nil
}

func runLaunch(cmd *cobra.Command, args []string) error {
	ctx := getContext()

	if err := requireEmulator(); err != nil {
		return err
	}
	if launchWatch {
		return runWatch(ctx, args)
	}

	instances, err := emulator.ListInstances(ctx)
	if err != nil {
		fmt.Println(ui.FormatError("Failed to list instances"))
		return err
	}
	if len(instances) == 0 {
		fmt.Println(ui.FormatWarning("No instances found"))
		return nil
	}

	var targets []domain.Instance
	if len(args) == 0 && !launchAll {
		targets, err = pickInstances(instances)
		if err != nil {
			fmt.Println(ui.FormatInfo("Selection cancelled."))
			return nil
		}
	} else {
		targets, err = resolveTargets(instances, args, launchAll)
		if err != nil {
			fmt.Println(ui.FormatError(err.Error()))
			return err
		}
	}

	var (
		mu      sync.Mutex
		results []domain.LaunchRecord
	)
	onComplete := func(rec domain.LaunchRecord) {
		mu.Lock()
		results = append(results, rec)
		mu.Unlock()

		if !launchDashboard {
			printLaunchResult(rec)
		}
	}

	started := 0
	for _, inst := range targets {
		if _, err := taskManager.Start(ctx, inst.Name, launchRetries, onComplete); err != nil {
			fmt.Println(ui.FormatWarning(fmt.Sprintf("%s: %v", inst.Name, err)))
			continue
		}
		started++
		if !launchDashboard {
			fmt.Println(ui.FormatRocket("Launching on " + inst.Name + "..."))
		}
	}
	if started == 0 {
		return errors.New("no launch started")
	}

	if launchDashboard {
		if err := runDashboardProgram(ctx, true); err != nil {
			return err
		}
		if len(taskManager.Running()) > 0 {
			fmt.Println(ui.FormatInfo("Waiting for launches to finish (Ctrl+C to stop)..."))
		}
	}

	waitForTasks(ctx)

	failed := 0
	for _, rec := range results {
		if !rec.Success {
			failed++
		}
	}

	fmt.Println()
	if failed > 0 {
		fmt.Println(ui.FormatWarning(fmt.Sprintf("%d of %d launches failed", failed, len(results))))
		return fmt.Errorf("%d launches failed", failed)
	}
	fmt.Println(ui.FormatSuccess(fmt.Sprintf("Game running on %d instance(s)", len(results))))
	return nil
}

// waitForTasks blocks until every launch finished; Ctrl+C stops them first
func waitForTasks(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		taskManager.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		fmt.Println()
		fmt.Println(ui.FormatInfo("Stopping launches..."))
		taskManager.StopAll()
		<-done
	}
}
