package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace represents the managed storage directory for autostart
type Workspace struct {
	RootPath      string
	TemplatesPath string
	CachePath     string
	ConfigPath    string
}

// New creates a new Workspace instance with XDG-compliant paths
func New() (*Workspace, error) {
	rootPath, rootErr := getRoot()
	configPath, configErr := getConfigPath()
	if rootErr != nil {
		return nil, fmt.Errorf("failed to determine workspace root: %w", rootErr)
	}
	if configErr != nil {
		return nil, fmt.Errorf("failed to determine config path: %w", configErr)
	}

	return NewAt(rootPath, configPath), nil
}

// NewAt creates a Workspace rooted at an explicit directory
func NewAt(rootPath, configPath string) *Workspace {
	return &Workspace{
		RootPath:      rootPath,
		TemplatesPath: filepath.Join(rootPath, "templates"),
		CachePath:     filepath.Join(rootPath, "cache"),
		ConfigPath:    configPath,
	}
}

// getRoot returns the workspace root directory path
// Follows XDG Base Directory specification on Unix and uses AppData on Windows
func getRoot() (string, error) {
	if dir := os.Getenv("AUTOSTART_HOME"); dir != "" {
		return dir, nil
	}

	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "autostart"), nil
	}

	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "autostart"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".local", "share", "autostart"), nil
}

func getConfigPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "autostart", "config.yaml"), nil
	}

	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "autostart-config", "config.yaml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "autostart", "config.yaml"), nil
}

// Initialize creates the workspace directory structure if it doesn't exist
func (w *Workspace) Initialize() error {
	directories := []string{
		w.RootPath,
		w.TemplatesPath,
		w.CachePath,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Exists checks if the workspace has been initialized
func (w *Workspace) Exists() bool {
	info, err := os.Stat(w.RootPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// GetTemplatePath returns the full path for a template file
func (w *Workspace) GetTemplatePath(filename string) string {
	return filepath.Join(w.TemplatesPath, filename)
}

// GetCachePath returns the full path for a cached file
func (w *Workspace) GetCachePath(filename string) string {
	return filepath.Join(w.CachePath, filename)
}

// HistoryPath returns the path to the launch history database
func (w *Workspace) HistoryPath() string {
	return filepath.Join(w.RootPath, "history.db")
}

// LogPath returns the path to the log file
func (w *Workspace) LogPath() string {
	return filepath.Join(w.RootPath, "autostart.log")
}

// CleanCache removes all files in the cache directory
func (w *Workspace) CleanCache() error {
	entries, err := os.ReadDir(w.CachePath)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		path := filepath.Join(w.CachePath, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	return nil
}
