package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/adapters/server"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose launches over HTTP",
	Long: `Run an HTTP API so other tools can start and watch launches.
Instances listed under auto_startup in the config are launched whenever
they are seen running, see 'autostart launch --watch'.

Endpoints:
  GET    /healthz               module info
  GET    /tasks                 all launch tasks
  GET    /tasks/{name}          one task
  POST   /tasks/{name}          start a launch (?retries=N)
  DELETE /tasks/{name}          stop a launch
  GET    /history               finished launches (?instance=&limit=)
  GET    /history/summary       per-instance totals
  GET    /templates/check       template completeness`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := getContext()

	addr := serveAddr
	if addr == "" {
		addr = appConfig.ServeAddr
	}

	if !emulator.IsAvailable() {
		fmt.Println(ui.FormatWarning("memuc not found at " + emulator.Path() + ", launches will fail"))
	}

	handler := server.NewHandler(taskManager, historyPort(), templateService, appLog)

	fmt.Println(ui.FormatRocket("Listening on http://" + addr))
	if names := monitor.Instances(); len(names) > 0 {
		fmt.Println(ui.FormatInfo("Auto startup: " + strings.Join(names, ", ")))
	}
	fmt.Println(ui.FormatMuted("Press Ctrl+C to stop"))

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if len(monitor.Instances()) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.Run(monitorCtx)
		}()
	}

	err := handler.Serve(ctx, addr)
	stopMonitor()
	wg.Wait()

	// Launches started over HTTP end with the server
	taskManager.StopAll()
	taskManager.Wait()

	return err
}
