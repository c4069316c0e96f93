package memuc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/logger"
	"github.com/kamal-hamza/autostart/pkg/config"
)

const (
	deviceScreenshot = "/sdcard/autostart_screen.png"

	listTimeout    = 30 * time.Second
	cleanupTimeout = 5 * time.Second
	tapTimeout     = 10 * time.Second
	powerTimeout   = 60 * time.Second

	// memory figures reported by some MEmu builds instead of a status code
	runningMemoryFloor = 1000000
)

// runFunc executes memuc with args and returns combined output
type runFunc func(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error)

// Client implements the Emulator port by shelling out to memuc
type Client struct {
	path           string
	commandTimeout time.Duration
	minBytes       int64
	captureSettle  time.Duration
	tempDir        string
	log            *logger.Logger
	run            runFunc
}

// NewClient creates a memuc client from config
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	c := &Client{
		path:           cfg.MemucPath,
		commandTimeout: cfg.CommandTimeout,
		minBytes:       cfg.MinScreenshotBytes,
		captureSettle:  500 * time.Millisecond,
		tempDir:        os.TempDir(),
		log:            log,
	}
	c.run = c.exec
	return c
}

// Path returns the memuc binary in use
func (c *Client) Path() string {
	return c.path
}

// IsAvailable reports whether the memuc binary can be resolved
func (c *Client) IsAvailable() bool {
	if c.path == "" {
		return false
	}
	if strings.ContainsAny(c.path, `/\`) {
		info, err := os.Stat(c.path)
		return err == nil && !info.IsDir()
	}
	_, err := exec.LookPath(c.path)
	return err == nil
}

func (c *Client) exec(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.path, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return out.Bytes(), fmt.Errorf("memuc %s timed out after %s", strings.Join(args, " "), timeout)
	}
	if err != nil {
		return out.Bytes(), fmt.Errorf("memuc %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}
	return out.Bytes(), nil
}

// ListInstances runs `memuc listvms`
func (c *Client) ListInstances(ctx context.Context) ([]domain.Instance, error) {
	start := time.Now()
	out, err := c.run(ctx, listTimeout, "listvms")
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	instances := ParseInstances(string(out))
	logger.Elapsed(c.log.Debug(), start).Int("count", len(instances)).Msg("listed instances")
	return instances, nil
}

// ParseInstances parses listvms output, one `index,name,status...` per line.
// Lines that do not parse are skipped.
func ParseInstances(output string) []domain.Instance {
	var instances []domain.Instance
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if inst, ok := parseInstanceLine(line); ok {
			instances = append(instances, inst)
		}
	}
	return instances
}

func parseInstanceLine(line string) (domain.Instance, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return domain.Instance{}, false
	}

	index, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return domain.Instance{}, false
	}

	return domain.Instance{
		Index:  index,
		Name:   parts[1],
		Status: DetermineStatus(parts[2:]),
	}, true
}

// DetermineStatus maps the status columns of listvms to an instance status
func DetermineStatus(fields []string) domain.InstanceStatus {
	if len(fields) == 0 {
		return domain.InstanceStopped
	}

	first := strings.TrimSpace(fields[0])
	if first == "" || strings.Trim(first, "0123456789") != "" {
		return domain.InstanceStopped
	}

	val, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return domain.InstanceUnknown
	}

	switch {
	case val > runningMemoryFloor, val == 1:
		return domain.InstanceRunning
	case val == 2:
		return domain.InstanceStarting
	case val == 3:
		return domain.InstanceStopping
	case val > 0:
		return domain.InstanceRunning
	default:
		return domain.InstanceStopped
	}
}

// Screenshot captures the screen on the device, pulls it and decodes it
func (c *Client) Screenshot(ctx context.Context, index int) (image.Image, error) {
	idx := strconv.Itoa(index)
	local := filepath.Join(c.tempDir, fmt.Sprintf("autostart_screenshot_%d_%d.png", index, time.Now().UnixNano()))
	defer os.Remove(local)

	if _, err := c.run(ctx, c.commandTimeout, "adb", "-i", idx, "shell", "screencap", "-p", deviceScreenshot); err != nil {
		return nil, fmt.Errorf("%w: capture: %v", domain.ErrScreenshotFailed, err)
	}

	if c.captureSettle > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.captureSettle):
		}
	}

	if _, err := c.run(ctx, c.commandTimeout, "adb", "-i", idx, "pull", deviceScreenshot, local); err != nil {
		return nil, fmt.Errorf("%w: pull: %v", domain.ErrScreenshotFailed, err)
	}

	if _, err := c.run(ctx, cleanupTimeout, "adb", "-i", idx, "shell", "rm", deviceScreenshot); err != nil {
		c.log.Debug().Err(err).Int("index", index).Msg("failed to remove device screenshot")
	}

	info, err := os.Stat(local)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrScreenshotFailed, err)
	}
	if info.Size() <= c.minBytes {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", domain.ErrScreenshotFailed, info.Size())
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrScreenshotFailed, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrScreenshotFailed, err)
	}
	return img, nil
}

// Tap sends `input tap X Y` to the instance
func (c *Client) Tap(ctx context.Context, index int, x, y int) error {
	_, err := c.run(ctx, tapTimeout, "adb", "-i", strconv.Itoa(index), "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	if err != nil {
		return fmt.Errorf("failed to tap (%d,%d): %w", x, y, err)
	}
	c.log.Debug().Int("index", index).Int("x", x).Int("y", y).Msg("tap")
	return nil
}

// Start boots an instance
func (c *Client) Start(ctx context.Context, index int) error {
	if _, err := c.run(ctx, powerTimeout, "start", "-i", strconv.Itoa(index)); err != nil {
		return fmt.Errorf("failed to start instance %d: %w", index, err)
	}
	return nil
}

// Stop shuts down an instance
func (c *Client) Stop(ctx context.Context, index int) error {
	if _, err := c.run(ctx, powerTimeout, "stop", "-i", strconv.Itoa(index)); err != nil {
		return fmt.Errorf("failed to stop instance %d: %w", index, err)
	}
	return nil
}
