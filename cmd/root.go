package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/adapters/memuc"
	"github.com/kamal-hamza/autostart/internal/adapters/notifier"
	"github.com/kamal-hamza/autostart/internal/adapters/repository"
	"github.com/kamal-hamza/autostart/internal/core/ports"
	"github.com/kamal-hamza/autostart/internal/core/services"
	"github.com/kamal-hamza/autostart/internal/logger"
	"github.com/kamal-hamza/autostart/pkg/config"
	"github.com/kamal-hamza/autostart/pkg/ui"
	"github.com/kamal-hamza/autostart/pkg/workspace"
)

var (
	// Global workspace and configuration
	appWorkspace *workspace.Workspace
	appConfig    *config.Config
	appLog       *logger.Logger

	// Adapters
	emulator     *memuc.Client
	templateRepo *repository.TemplateRepository
	historyRepo  *repository.HistoryRepository

	// Services
	templateService  *services.TemplateService
	detector         *services.Detector
	autostartService *services.AutostartService
	taskManager      *services.TaskManager
	monitor          *services.Monitor

	appCtx    context.Context
	appCancel context.CancelFunc
	logFile   io.Closer

	// configErr holds the load error for commands that run on defaults instead
	configErr error

	// Global flags
	flagVerbose   bool
	flagConfig    string
	flagTemplates string
)

// commands that run before the workspace exists
var skipInit = map[string]bool{
	"init":       true,
	"version":    true,
	"help":       true,
	"completion": true,
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "autostart",
	Short: "autostart - start games on MEmu instances",
	Long: ui.StyleTitle.Render("autostart") + " - MEmu game launcher\n\n" +
		"Takes screenshots of MEmu instances, recognises the game state from PNG templates\n" +
		"and taps through menus and ads until the game is running.",
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	// cobra skips post-run hooks when RunE fails, so release here
	shutdownApp()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Also print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flagTemplates, "templates", "", "Templates directory (overrides config)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(instancesCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// initializeApp initializes the application components
func initializeApp(cmd *cobra.Command, args []string) error {
	appCtx, appCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if skipInit[cmd.Name()] {
		return nil
	}

	ws, err := workspace.New()
	if err != nil {
		return fmt.Errorf("failed to initialize workspace: %w", err)
	}
	appWorkspace = ws

	if !appWorkspace.Exists() {
		// doctor reports a missing workspace itself
		if cmd.Name() == "doctor" {
			return nil
		}
		fmt.Println(ui.FormatError("Workspace not initialized"))
		fmt.Println(ui.FormatInfo("Run 'autostart init' to create it"))
		return fmt.Errorf("workspace not found at %s", appWorkspace.RootPath)
	}

	cfg, err := loadConfig(cmd, activeConfigPath())
	if err != nil {
		fmt.Println(ui.FormatError("Invalid configuration"))
		fmt.Println(ui.FormatInfo("Run 'autostart doctor' or 'autostart config edit' to fix it"))
		return err
	}
	if flagTemplates != "" {
		cfg.TemplatesDir = flagTemplates
	}
	appConfig = cfg
	ui.SetTheme(cfg.ColorTheme)

	appLog = newAppLogger(cfg.LogLevel)
	if configErr != nil {
		appLog.Warn().Err(configErr).Str("command", cmd.Name()).Msg("config invalid, running on defaults")
	}

	return wireServices()
}

// toleratesInvalidConfig reports whether cmd runs on defaults when the config file is broken,
// so the commands that diagnose and repair it stay usable
func toleratesInvalidConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "doctor", "config":
			return true
		}
	}
	return false
}

func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	configErr = nil

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !toleratesInvalidConfig(cmd) {
		return nil, err
	}

	configErr = err
	return config.DefaultConfig(), nil
}

func newAppLogger(level string) *logger.Logger {
	var console io.Writer
	if flagVerbose {
		console = os.Stderr
	}

	f, err := logger.OpenFile(appWorkspace.LogPath())
	if err != nil {
		// Fall back to stderr so failures are still visible
		return logger.New("cli", logger.Console(os.Stderr), level)
	}
	logFile = f
	return logger.NewFileAndConsole("cli", f, console, level)
}

func wireServices() error {
	emulator = memuc.NewClient(appConfig, appLog)
	templateRepo = repository.NewTemplateRepository(appConfig.ResolveTemplatesDir(appWorkspace.TemplatesPath))
	templateService = services.NewTemplateService(templateRepo)
	detector = services.NewDetector(templateRepo, appConfig.ConfidenceThreshold, appLog)
	autostartService = services.NewAutostartService(emulator, detector, services.LaunchOptionsFromConfig(appConfig), appLog)

	// A broken history database must not block launching
	var history ports.HistoryRepository
	repo, err := repository.OpenHistory(appCtx, appWorkspace.HistoryPath(), appLog)
	if err != nil {
		appLog.Warn().Err(err).Msg("launch history disabled")
	} else {
		historyRepo = repo
		history = repo
	}

	taskManager = services.NewTaskManager(
		emulator,
		autostartService,
		history,
		notifier.New(appConfig.WebhookURL),
		templateRepo.Dir(),
		appConfig.MaxConcurrent,
		appLog,
	)
	monitor = services.NewMonitor(emulator, taskManager, services.MonitorOptionsFromConfig(appConfig), appLog)

	return nil
}

// shutdownApp releases what initializeApp opened. Safe to call more than once.
func shutdownApp() {
	if historyRepo != nil {
		if err := historyRepo.Close(); err != nil && appLog != nil {
			appLog.Warn().Err(err).Msg("failed to close history database")
		}
		historyRepo = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	if appCancel != nil {
		appCancel()
	}
}

// getContext returns a context cancelled on Ctrl+C
func getContext() context.Context {
	if appCtx == nil {
		return context.Background()
	}
	return appCtx
}

// historyPort returns the history repository, or nil when it is unavailable
func historyPort() ports.HistoryRepository {
	if historyRepo == nil {
		return nil
	}
	return historyRepo
}
