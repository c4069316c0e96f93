package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kamal-hamza/autostart/pkg/config"
)

func writeBrokenConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("confidence_threshold: 5\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_RepairCommandsRunOnDefaults(t *testing.T) {
	path := writeBrokenConfig(t)
	t.Cleanup(func() { configErr = nil })

	for _, args := range [][]string{{"doctor"}, {"config"}, {"config", "edit"}, {"config", "path"}} {
		cmd, _, err := rootCmd.Find(args)
		if err != nil {
			t.Fatalf("command %v not found: %v", args, err)
		}

		cfg, err := loadConfig(cmd, path)
		if err != nil {
			t.Fatalf("%v: expected defaults, got error %v", args, err)
		}
		if cfg.ConfidenceThreshold != config.DefaultConfig().ConfidenceThreshold {
			t.Errorf("%v: expected default threshold, got %v", args, cfg.ConfidenceThreshold)
		}
		if !errors.Is(configErr, config.ErrInvalidThreshold) {
			t.Errorf("%v: expected load error to be kept, got %v", args, configErr)
		}
	}
}

func TestLoadConfig_OtherCommandsFail(t *testing.T) {
	path := writeBrokenConfig(t)
	t.Cleanup(func() { configErr = nil })

	for _, name := range []string{"launch", "serve", "check"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil {
			t.Fatalf("command %s not found: %v", name, err)
		}
		if _, err := loadConfig(cmd, path); !errors.Is(err, config.ErrInvalidThreshold) {
			t.Errorf("%s: expected invalid threshold error, got %v", name, err)
		}
	}
}

func TestLoadConfig_ClearsPreviousError(t *testing.T) {
	configErr = errors.New("stale")
	t.Cleanup(func() { configErr = nil })

	cmd, _, _ := rootCmd.Find([]string{"doctor"})
	if _, err := loadConfig(cmd, filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if configErr != nil {
		t.Errorf("expected configErr to be cleared, got %v", configErr)
	}
}

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestShutdownApp_ReleasesOnce(t *testing.T) {
	closer := &countingCloser{}
	cancelled := 0
	logFile = closer
	appCancel = func() { cancelled++ }
	t.Cleanup(func() {
		logFile = nil
		appCancel = nil
	})

	shutdownApp()
	shutdownApp()

	if closer.closed != 1 {
		t.Errorf("expected log file closed once, got %d", closer.closed)
	}
	if cancelled == 0 {
		t.Error("expected context to be cancelled")
	}
	if logFile != nil {
		t.Error("expected log file to be cleared")
	}
}

func TestRootCommand_NoPostRunHook(t *testing.T) {
	// cobra skips post-run hooks after a failed RunE, so cleanup lives in Execute
	if rootCmd.PersistentPostRunE != nil || rootCmd.PersistentPostRun != nil {
		t.Error("root command should not release resources in a post-run hook")
	}
}

func TestWebhookCheck(t *testing.T) {
	tests := []struct {
		url      string
		wantSkip bool
		wantErr  bool
	}{
		{"", true, true},
		{"https://hooks.example.com/abc", false, false},
		{"http://127.0.0.1:9000/notify", false, false},
		{"hooks.example.com/abc", false, true},
		{"ftp://example.com", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := webhookCheck(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("webhookCheck(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			var skip skipped
			if errors.As(err, &skip) != tt.wantSkip {
				t.Errorf("webhookCheck(%q) skipped = %v, want %v", tt.url, !tt.wantSkip, tt.wantSkip)
			}
		})
	}
}

func TestCheckStep_SkippedPasses(t *testing.T) {
	if !checkStep("Webhook", func() error { return webhookCheck("") }) {
		t.Error("an unconfigured optional check must not fail doctor")
	}
	if checkStep("Webhook", func() error { return webhookCheck("not a url") }) {
		t.Error("a malformed webhook should fail doctor")
	}
}
