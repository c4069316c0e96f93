package services

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/ports/mocks"
	"github.com/kamal-hamza/autostart/internal/logger"
	"github.com/kamal-hamza/autostart/pkg/config"
	"github.com/kamal-hamza/autostart/pkg/vision"
)

var farm = domain.Instance{Index: 2, Name: "Farm-2", Status: domain.InstanceRunning}

// fastOptions mirrors the defaults with every wait removed
func fastOptions() LaunchOptions {
	cfg := config.DefaultConfig()
	opts := LaunchOptionsFromConfig(cfg)
	opts.Timings = config.Timings{}
	opts.LoadPolls = 5
	return opts
}

func newAutostart(emu *mocks.MockEmulator, opts LaunchOptions) *AutostartService {
	d := NewDetector(catalogTemplates(), vision.DefaultThreshold, logger.Nop())
	return NewAutostartService(emu, d, opts, logger.Nop())
}

// onTapShow switches the emulator screen after the given tap numbers (1-based)
func onTapShow(screens map[int]image.Image) func(*mocks.MockEmulator, mocks.TapCall) {
	count := 0
	return func(m *mocks.MockEmulator, _ mocks.TapCall) {
		count++
		if s, ok := screens[count]; ok {
			m.SetScreen(s)
		}
	}
}

func TestLaunchOptionsFromConfig(t *testing.T) {
	opts := LaunchOptionsFromConfig(config.DefaultConfig())

	if opts.LoadPolls != 60 {
		t.Errorf("expected 60 load polls, got %d", opts.LoadPolls)
	}
	if opts.DismissPoint != image.Pt(240, 400) {
		t.Errorf("unexpected dismiss point %v", opts.DismissPoint)
	}
	want := []image.Point{{240, 600}, {240, 500}, {240, 300}, {400, 300}, {80, 300}}
	if len(opts.FallbackPoints) != len(want) {
		t.Fatalf("expected %d fallback points, got %d", len(want), len(opts.FallbackPoints))
	}
	for i, p := range want {
		if opts.FallbackPoints[i] != p {
			t.Errorf("fallback %d = %v, want %v", i, opts.FallbackPoints[i], p)
		}
	}
}

func TestAutostart_AlreadyInGame(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("world_icon.png"))

	var states []domain.GameState
	res := newAutostart(emu, fastOptions()).Run(context.Background(), farm, 3, func(_ int, s domain.GameState) {
		if s != "" {
			states = append(states, s)
		}
	})

	if !res.Success || res.Attempts != 1 {
		t.Fatalf("expected success on first attempt, got %+v", res)
	}
	if len(emu.Taps()) != 0 {
		t.Errorf("expected no taps, got %v", emu.Taps())
	}
	if len(states) == 0 || states[0] != domain.StateInGame {
		t.Errorf("observer should see ALREADY_IN_GAME, got %v", states)
	}
}

func TestAutostart_MainMenuPlayThenLoad(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("game_launcher.png"))
	emu.OnTap = onTapShow(map[int]image.Image{1: screenWith("game_icon.png")})

	res := newAutostart(emu, fastOptions()).Run(context.Background(), farm, 3, nil)

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Detail != "game loaded" {
		t.Errorf("unexpected detail %q", res.Detail)
	}

	taps := emu.Taps()
	if len(taps) != 1 {
		t.Fatalf("expected one tap, got %v", taps)
	}
	c := centerOf(0)
	if taps[0] != (mocks.TapCall{Index: 2, X: c.X, Y: c.Y}) {
		t.Errorf("tap = %+v, want launcher center %v", taps[0], c)
	}
}

func TestAutostart_CloseAdThenInGame(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("close_x5.png"))
	emu.OnTap = onTapShow(map[int]image.Image{1: screenWith("world.png")})

	res := newAutostart(emu, fastOptions()).Run(context.Background(), farm, 1, nil)

	if !res.Success || res.Detail != "reached game after ad handling" {
		t.Fatalf("unexpected result %+v", res)
	}
	if taps := emu.Taps(); len(taps) != 1 || taps[0].X != centerOf(0).X {
		t.Errorf("expected one tap on the close button, got %v", taps)
	}
}

func TestAutostart_DismissLeadsToMainMenu(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith())
	emu.OnTap = onTapShow(map[int]image.Image{
		1: screenWith("game_launcher.png"),
		2: screenWith("town_icon.png"),
	})

	res := newAutostart(emu, fastOptions()).Run(context.Background(), farm, 1, nil)

	if !res.Success || res.Detail != "game loaded" {
		t.Fatalf("unexpected result %+v", res)
	}
	taps := emu.Taps()
	if len(taps) != 2 {
		t.Fatalf("expected dismiss + play taps, got %v", taps)
	}
	if taps[0].X != 240 || taps[0].Y != 400 {
		t.Errorf("first tap should dismiss at (240,400), got %+v", taps[0])
	}
}

func TestAutostart_UnknownStateAssumesSuccess(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith())
	opts := fastOptions()

	res := newAutostart(emu, opts).Run(context.Background(), farm, 3, nil)

	if !res.Success || res.Attempts != 1 {
		t.Fatalf("expected assumed success, got %+v", res)
	}
	if !strings.Contains(res.Detail, "assumed") {
		t.Errorf("unexpected detail %q", res.Detail)
	}

	taps := emu.Taps()
	if len(taps) != opts.AdAttempts+len(opts.FallbackPoints) {
		t.Fatalf("expected %d taps, got %d", opts.AdAttempts+len(opts.FallbackPoints), len(taps))
	}
	for i := 0; i < opts.AdAttempts; i++ {
		if taps[i].X != 240 || taps[i].Y != 400 {
			t.Errorf("tap %d should be the dismiss point, got %+v", i, taps[i])
		}
	}
	for i, p := range opts.FallbackPoints {
		got := taps[opts.AdAttempts+i]
		if got.X != p.X || got.Y != p.Y {
			t.Errorf("fallback tap %d = %+v, want %v", i, got, p)
		}
	}
}

func TestAutostart_GenericElementTapped(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("details_button.png"))
	opts := fastOptions()
	opts.AdAttempts = 1

	res := newAutostart(emu, opts).Run(context.Background(), farm, 1, nil)
	if !res.Success {
		t.Fatalf("expected assumed success, got %+v", res)
	}

	taps := emu.Taps()
	if len(taps) != 1+1+len(opts.FallbackPoints) {
		t.Fatalf("expected dismiss, generic and fallback taps, got %v", taps)
	}
	if taps[1].X != centerOf(0).X || taps[1].Y != centerOf(0).Y {
		t.Errorf("second tap should hit details_button, got %+v", taps[1])
	}
}

func TestAutostart_ScreenshotFailureRetries(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.ScreenErr = domain.ErrScreenshotFailed

	attempts := 0
	res := newAutostart(emu, fastOptions()).Run(context.Background(), farm, 3, func(a int, s domain.GameState) {
		if s == "" {
			attempts++
		}
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Attempts != 3 || attempts != 3 {
		t.Errorf("expected 3 attempts, got %d (observed %d)", res.Attempts, attempts)
	}
	if !strings.Contains(res.Detail, "screenshot") {
		t.Errorf("unexpected detail %q", res.Detail)
	}
	if emu.ScreenshotCalls() != 3 {
		t.Errorf("expected one screenshot per attempt, got %d", emu.ScreenshotCalls())
	}
}

func TestAutostart_LoadTimeout(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("game_launcher.png"))
	opts := fastOptions()
	opts.LoadPolls = 3

	res := newAutostart(emu, opts).Run(context.Background(), farm, 1, nil)

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Detail != "game failed to load within timeout" {
		t.Errorf("unexpected detail %q", res.Detail)
	}
	// play tap plus a launcher relaunch on every poll
	if got := len(emu.Taps()); got != 1+opts.LoadPolls {
		t.Errorf("expected %d taps, got %d", 1+opts.LoadPolls, got)
	}
}

func TestAutostart_CrashRelaunchThenLoad(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("game_launcher.png"))
	emu.OnTap = onTapShow(map[int]image.Image{2: screenWith("world.png")})

	res := newAutostart(emu, fastOptions()).Run(context.Background(), farm, 1, nil)

	if !res.Success || res.Detail != "game loaded" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := len(emu.Taps()); got != 2 {
		t.Errorf("expected play + relaunch taps, got %d", got)
	}
}

func TestAutostart_DialogWhileLoading(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("game_launcher.png"))
	emu.OnTap = onTapShow(map[int]image.Image{
		1: screenWith("close_x.png"),
		2: screenWith("world.png"),
	})

	res := newAutostart(emu, fastOptions()).Run(context.Background(), farm, 1, nil)

	if !res.Success {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := len(emu.Taps()); got != 2 {
		t.Errorf("expected play + close taps, got %d", got)
	}
}

func TestAutostart_CancelledBeforeStart(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("world.png"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newAutostart(emu, fastOptions()).Run(ctx, farm, 3, nil)
	if res.Success || res.Attempts != 0 || res.Detail != "stopped" {
		t.Errorf("unexpected result %+v", res)
	}
	if emu.ScreenshotCalls() != 0 {
		t.Error("no screenshot should be taken after cancellation")
	}
}

func TestAutostart_CancelDuringRetryDelay(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.ScreenErr = domain.ErrScreenshotFailed
	opts := fastOptions()
	opts.Timings.RetryDelay = 1 << 40

	ctx, cancel := context.WithCancel(context.Background())
	emuObserver := func(attempt int, _ domain.GameState) {
		if attempt == 1 {
			cancel()
		}
	}

	res := newAutostart(emu, opts).Run(ctx, farm, 3, emuObserver)
	if res.Success || res.Attempts != 1 || res.Detail != "stopped" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestAutostart_DefaultRetries(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.ScreenErr = domain.ErrScreenshotFailed

	res := newAutostart(emu, fastOptions()).Run(context.Background(), farm, 0, nil)
	if res.Attempts != config.DefaultConfig().MaxRetries {
		t.Errorf("expected default retries, got %d", res.Attempts)
	}
}

func TestAutostart_ClickTemplate(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	svc := newAutostart(emu, fastOptions())
	screen := vision.FromImage(screenWith("deploy_button.png"))

	if !svc.ClickTemplate(context.Background(), 2, screen, "deploy_button.png") {
		t.Fatal("expected click")
	}
	if svc.ClickTemplate(context.Background(), 2, screen, "play.png") {
		t.Error("play.png is not on screen")
	}
	if len(emu.Taps()) != 1 {
		t.Errorf("expected one tap, got %v", emu.Taps())
	}
}

func TestAutostart_MainMenuWithoutWorkingPlayButton(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("game_launcher.png"))
	emu.TapErr = errors.New("adb: device offline")

	res := newAutostart(emu, fastOptions()).Run(context.Background(), farm, 1, nil)

	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Detail != "main menu shows no play button" {
		t.Errorf("unexpected detail %q", res.Detail)
	}
	// three play taps and the two dismiss taps between them, then the bound stops the bouncing
	if got := len(emu.Taps()); got != maxMenuDepth*2+1 {
		t.Errorf("expected %d taps, got %d", maxMenuDepth*2+1, got)
	}
}

func TestAutostart_MenuBoundResetsPerAttempt(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("game_launcher.png"))
	emu.TapErr = errors.New("adb: device offline")

	res := newAutostart(emu, fastOptions()).Run(context.Background(), farm, 2, nil)

	if res.Success || res.Attempts != 2 {
		t.Fatalf("expected two failed attempts, got %+v", res)
	}
	if got := len(emu.Taps()); got != 2*(maxMenuDepth*2+1) {
		t.Errorf("expected each attempt to bounce the same number of times, got %d taps", got)
	}
}

func TestAutostart_StopWhileWaitingForLoad(t *testing.T) {
	emu := mocks.NewMockEmulator(farm)
	emu.SetScreen(screenWith("game_launcher.png"))
	opts := fastOptions()
	opts.LoadPolls = 1000
	opts.Timings.PollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the play tap leads to a loading screen that never finishes
	emu.OnTap = func(m *mocks.MockEmulator, _ mocks.TapCall) {
		m.SetScreen(screenWith())
		time.AfterFunc(20*time.Millisecond, cancel)
	}

	done := make(chan domain.LaunchResult, 1)
	go func() {
		done <- newAutostart(emu, opts).Run(ctx, farm, 3, nil)
	}()

	select {
	case res := <-done:
		if res.Success || res.Attempts != 1 || res.Detail != "stopped" {
			t.Errorf("unexpected result %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop while waiting for the game to load")
	}

	if got := len(emu.Taps()); got != 1 {
		t.Errorf("expected only the play tap, got %d", got)
	}
}
