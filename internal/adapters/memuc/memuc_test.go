package memuc

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/logger"
	"github.com/kamal-hamza/autostart/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls [][]string
	fail  map[string]error
	pull  func(local string) error
}

func (f *fakeRunner) run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	key := args[0]
	if args[0] == "adb" && len(args) > 3 {
		key = args[3]
		if args[3] == "shell" {
			key = args[4]
		}
	}
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	if key == "pull" && f.pull != nil {
		return nil, f.pull(args[len(args)-1])
	}
	return nil, nil
}

func newTestClient(t *testing.T, r *fakeRunner) *Client {
	t.Helper()
	c := NewClient(config.DefaultConfig(), logger.Nop())
	c.captureSettle = 0
	c.tempDir = t.TempDir()
	c.run = r.run
	return c
}

func writeNoisePNG(path string, w, h int) error {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func TestParseInstances(t *testing.T) {
	output := strings.Join([]string{
		"0,MEmu,1,1,12345",
		"1,Farm-1,0,0,0",
		"",
		"garbage line",
		"x,Bad,1",
		"2,Farm-2,2048000000,0",
		"3,Farm-3,2",
	}, "\r\n")

	instances := ParseInstances(output)

	require.Len(t, instances, 4)
	assert.Equal(t, domain.Instance{Index: 0, Name: "MEmu", Status: domain.InstanceRunning}, instances[0])
	assert.Equal(t, domain.Instance{Index: 1, Name: "Farm-1", Status: domain.InstanceStopped}, instances[1])
	assert.Equal(t, domain.InstanceRunning, instances[2].Status)
	assert.Equal(t, domain.InstanceStarting, instances[3].Status)
}

func TestDetermineStatus(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   domain.InstanceStatus
	}{
		{"empty", nil, domain.InstanceStopped},
		{"memory figure", []string{"2048000000"}, domain.InstanceRunning},
		{"one", []string{"1"}, domain.InstanceRunning},
		{"two", []string{"2"}, domain.InstanceStarting},
		{"three", []string{"3"}, domain.InstanceStopping},
		{"other positive", []string{"17"}, domain.InstanceRunning},
		{"zero", []string{"0"}, domain.InstanceStopped},
		{"text", []string{"running"}, domain.InstanceStopped},
		{"blank", []string{""}, domain.InstanceStopped},
		{"overflow", []string{"99999999999999999999999"}, domain.InstanceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineStatus(tt.fields))
		})
	}
}

func TestClient_Screenshot(t *testing.T) {
	r := &fakeRunner{pull: func(local string) error { return writeNoisePNG(local, 120, 120) }}
	c := newTestClient(t, r)

	img, err := c.Screenshot(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())

	require.Len(t, r.calls, 3)
	assert.Equal(t, []string{"adb", "-i", "4", "shell", "screencap", "-p", deviceScreenshot}, r.calls[0])
	assert.Equal(t, []string{"adb", "-i", "4", "pull", deviceScreenshot}, r.calls[1][:5])
	assert.Equal(t, []string{"adb", "-i", "4", "shell", "rm", deviceScreenshot}, r.calls[2])

	entries, err := os.ReadDir(c.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "local screenshot should be removed")
}

func TestClient_Screenshot_TooSmall(t *testing.T) {
	r := &fakeRunner{pull: func(local string) error { return writeNoisePNG(local, 4, 4) }}
	c := newTestClient(t, r)

	_, err := c.Screenshot(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrScreenshotFailed)
}

func TestClient_Screenshot_CaptureFails(t *testing.T) {
	r := &fakeRunner{fail: map[string]error{"screencap": errors.New("device offline")}}
	c := newTestClient(t, r)

	_, err := c.Screenshot(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrScreenshotFailed)
	assert.Len(t, r.calls, 1, "pull must not run after a failed capture")
}

func TestClient_Screenshot_CleanupFailureIgnored(t *testing.T) {
	r := &fakeRunner{
		pull: func(local string) error { return writeNoisePNG(local, 120, 120) },
		fail: map[string]error{"rm": errors.New("no such file")},
	}
	c := newTestClient(t, r)

	_, err := c.Screenshot(context.Background(), 1)
	assert.NoError(t, err)
}

func TestClient_Tap(t *testing.T) {
	r := &fakeRunner{}
	c := newTestClient(t, r)

	require.NoError(t, c.Tap(context.Background(), 2, 240, 400))
	assert.Equal(t, []string{"adb", "-i", "2", "shell", "input", "tap", "240", "400"}, r.calls[0])
}

func TestClient_StartStop(t *testing.T) {
	r := &fakeRunner{}
	c := newTestClient(t, r)

	require.NoError(t, c.Start(context.Background(), 5))
	require.NoError(t, c.Stop(context.Background(), 5))
	assert.Equal(t, []string{"start", "-i", "5"}, r.calls[0])
	assert.Equal(t, []string{"stop", "-i", "5"}, r.calls[1])
}

func TestClient_ListInstances(t *testing.T) {
	c := newTestClient(t, &fakeRunner{})
	c.run = func(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
		return []byte("0,MEmu,1\n1,Farm,0\n"), nil
	}

	instances, err := c.ListInstances(context.Background())
	require.NoError(t, err)
	assert.Len(t, instances, 2)
}

func TestClient_IsAvailable(t *testing.T) {
	c := newTestClient(t, &fakeRunner{})

	c.path = ""
	assert.False(t, c.IsAvailable())

	c.path = "/definitely/not/here/memuc.exe"
	assert.False(t, c.IsAvailable())

	exe, err := os.Executable()
	require.NoError(t, err)
	c.path = exe
	assert.True(t, c.IsAvailable())
}
