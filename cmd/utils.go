package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/kamal-hamza/autostart/pkg/ui"
)

// GetPreferredEditor returns the editor command from env, or default
func GetPreferredEditor() string {
	if env := os.Getenv("EDITOR"); env != "" {
		return env
	}
	if runtime.GOOS == "windows" {
		return "notepad"
	}
	return "vi"
}

// OpenFile opens a file using a custom viewer or the OS default application.
func OpenFile(path string, viewer string) error {
	var cmd *exec.Cmd

	if viewer != "" {
		cmd = exec.Command(viewer, path)
	} else {
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", path)
		case "windows":
			cmd = exec.Command("cmd", "/c", "start", "", path)
		default:
			cmd = exec.Command("xdg-open", path)
		}
	}

	// Start() detaches so autostart can exit while the viewer stays open
	if err := cmd.Start(); err != nil {
		if viewer != "" {
			return fmt.Errorf("failed to open '%s' with '%s': %w", path, viewer, err)
		}
		return fmt.Errorf("failed to open '%s': %w", path, err)
	}

	return nil
}

// runEditor opens path in the preferred editor and waits for it to exit
func runEditor(path string) error {
	c := exec.Command(GetPreferredEditor(), path)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

// parseDuration parses a non-negative duration flag
func parseDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("%s is negative", value)
	}
	return d, nil
}

// skipped marks an optional check that does not apply and must not fail the run
type skipped string

func (s skipped) Error() string { return string(s) }

// checkStep runs a check function and prints the result nicely.
// It reports whether the check passed.
func checkStep(name string, check func() error) bool {
	err := check()
	if err == nil {
		fmt.Printf("%s %s\n", ui.StyleSuccess.Render(ui.IconSuccess), name)
		return true
	}

	var skip skipped
	if errors.As(err, &skip) {
		fmt.Printf("%s %s\n", ui.StyleInfo.Render(ui.IconInfo), name)
		fmt.Printf("    %s\n", ui.StyleMuted.Render(skip.Error()))
		return true
	}

	fmt.Printf("%s %s\n", ui.StyleError.Render(ui.IconError), name)
	fmt.Printf("    %s\n", ui.StyleMuted.Render(err.Error()))
	return false
}
