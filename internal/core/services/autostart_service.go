package services

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/ports"
	"github.com/kamal-hamza/autostart/internal/logger"
	"github.com/kamal-hamza/autostart/pkg/config"
	"github.com/kamal-hamza/autostart/pkg/vision"
)

// maxMenuDepth bounds how often a run may bounce between the main menu
// and unknown-state handling when no play button can be found.
const maxMenuDepth = 2

// LaunchOptions tune the start-game automation
type LaunchOptions struct {
	MaxRetries     int
	AdAttempts     int
	LoadPolls      int
	DismissPoint   image.Point
	FallbackPoints []image.Point
	Timings        config.Timings
}

// LaunchOptionsFromConfig builds options from the loaded configuration
func LaunchOptionsFromConfig(cfg *config.Config) LaunchOptions {
	points := make([]image.Point, 0, len(cfg.FallbackPoints))
	for _, p := range cfg.FallbackPoints {
		points = append(points, p.ImagePoint())
	}
	return LaunchOptions{
		MaxRetries:     cfg.MaxRetries,
		AdAttempts:     cfg.AdAttempts,
		LoadPolls:      cfg.LoadPolls(),
		DismissPoint:   cfg.DismissPoint.ImagePoint(),
		FallbackPoints: points,
		Timings:        cfg.Timings,
	}
}

// Observer receives progress of a run
type Observer func(attempt int, state domain.GameState)

// AutostartService drives one instance from wherever it is into the game world
type AutostartService struct {
	emulator ports.Emulator
	detector *Detector
	opts     LaunchOptions
	log      *logger.Logger
}

func NewAutostartService(emu ports.Emulator, detector *Detector, opts LaunchOptions, log *logger.Logger) *AutostartService {
	return &AutostartService{
		emulator: emu,
		detector: detector,
		opts:     opts,
		log:      log,
	}
}

// Options returns the options the service runs with
func (s *AutostartService) Options() LaunchOptions {
	return s.opts
}

// Run attempts to start the game up to maxRetries times.
// It stops early when ctx is cancelled, and logs through the logger carried by ctx when there is one.
func (s *AutostartService) Run(ctx context.Context, inst domain.Instance, maxRetries int, observe Observer) domain.LaunchResult {
	if maxRetries <= 0 {
		maxRetries = s.opts.MaxRetries
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	if observe == nil {
		observe = func(int, domain.GameState) {}
	}

	r := &launchRun{
		svc:     s,
		ctx:     ctx,
		inst:    inst,
		log:     logger.FromContext(ctx, s.log.ForInstance(inst.Name, inst.Index)),
		observe: observe,
	}

	r.log.Info().Int("max_retries", maxRetries).Msg("auto start begins")
	start := time.Now()

	result := domain.LaunchResult{}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			result.Detail = "stopped"
			break
		}

		r.attempt = attempt
		result.Attempts = attempt
		r.log.Info().Msgf("attempt %d/%d", attempt, maxRetries)
		observe(attempt, "")

		ok, detail := r.run()
		result.Detail = detail
		if ok {
			result.Success = true
			logger.Elapsed(r.log.Info(), start).Int("attempts", attempt).Msg("game started")
			return result
		}

		r.log.Warn().Str("detail", detail).Int("attempt", attempt).Msg("attempt failed")
		if attempt < maxRetries {
			r.log.Info().Dur("delay", s.opts.Timings.RetryDelay).Msg("waiting before retry")
			if err := sleep(ctx, s.opts.Timings.RetryDelay); err != nil {
				result.Detail = "stopped"
				break
			}
		}
	}

	logger.Elapsed(r.log.Error(), start).Int("attempts", result.Attempts).Str("detail", result.Detail).Msg("failed to start game")
	return result
}

// ClickTemplate taps the center of a template when it is visible on screen
func (s *AutostartService) ClickTemplate(ctx context.Context, index int, screen *vision.Gray, name string) bool {
	m, ok := s.detector.Find(screen, name)
	if !ok {
		return false
	}
	c := m.Center()
	if err := s.emulator.Tap(ctx, index, c.X, c.Y); err != nil {
		s.log.Debug().Err(err).Str("template", name).Msg("tap failed")
		return false
	}
	return true
}

// launchRun carries the state of a single Run
type launchRun struct {
	svc       *AutostartService
	ctx       context.Context
	inst      domain.Instance
	log       *logger.Logger
	observe   Observer
	attempt   int
	menuDepth int
}

func (r *launchRun) screenshot() (*vision.Gray, error) {
	img, err := r.svc.emulator.Screenshot(r.ctx, r.inst.Index)
	if err != nil {
		return nil, err
	}
	return vision.FromImage(img), nil
}

func (r *launchRun) detect(screen *vision.Gray) domain.GameState {
	state := r.svc.detector.Detect(screen)
	r.observe(r.attempt, state)
	return state
}

func (r *launchRun) tap(p image.Point) {
	if err := r.svc.emulator.Tap(r.ctx, r.inst.Index, p.X, p.Y); err != nil {
		r.log.Debug().Err(err).Int("x", p.X).Int("y", p.Y).Msg("tap failed")
	}
}

// clickFirst taps the first template of names found on screen
func (r *launchRun) clickFirst(screen *vision.Gray, names []string) (string, bool) {
	for _, name := range names {
		if r.svc.ClickTemplate(r.ctx, r.inst.Index, screen, name) {
			return name, true
		}
	}
	return "", false
}

func (r *launchRun) wait(d time.Duration) bool {
	return sleep(r.ctx, d) == nil
}

func (r *launchRun) run() (bool, string) {
	r.menuDepth = 0

	screen, err := r.screenshot()
	if err != nil {
		return false, fmt.Sprintf("failed to take screenshot: %v", err)
	}

	state := r.detect(screen)
	r.log.Info().Str("state", string(state)).Msg("detected state")

	switch state {
	case domain.StateInGame:
		return true, "game already running"
	case domain.StateMainMenu:
		return r.startFromMainMenu(screen)
	default:
		return r.handleUnknownState(screen)
	}
}

func (r *launchRun) startFromMainMenu(screen *vision.Gray) (bool, string) {
	r.menuDepth++
	r.log.Info().Msg("starting game from main menu")

	if name, ok := r.clickFirst(screen, domain.Files(domain.CategoryPlayButtons)); ok {
		r.log.Info().Str("template", name).Msg("clicked play button")
		return r.waitForLoad()
	}

	if r.menuDepth > maxMenuDepth {
		return false, "main menu shows no play button"
	}

	r.log.Warn().Msg("no play buttons found, trying common positions")
	return r.handleUnknownState(screen)
}

func (r *launchRun) handleUnknownState(attemptScreen *vision.Gray) (bool, string) {
	opts := r.svc.opts
	timings := opts.Timings
	r.log.Info().Msg("handling unknown state")

	for round := 1; round <= opts.AdAttempts; round++ {
		if r.ctx.Err() != nil {
			return false, "stopped"
		}

		current, err := r.screenshot()
		if err != nil {
			current = attemptScreen
		}

		r.log.Debug().Msgf("ad handling round %d/%d", round, opts.AdAttempts)

		if name, ok := r.clickFirst(current, domain.Files(domain.CategoryCloseButtons)); ok {
			r.log.Info().Str("template", name).Msg("closed dialog")
		} else {
			r.log.Debug().Msg("tapping to dismiss dialogs")
			r.tap(opts.DismissPoint)
		}
		if !r.wait(timings.DismissSettle) || !r.wait(timings.VerifyDelay) {
			return false, "stopped"
		}

		check, err := r.screenshot()
		if err != nil {
			continue
		}
		switch r.detect(check) {
		case domain.StateInGame:
			return true, "reached game after ad handling"
		case domain.StateMainMenu:
			return r.startFromMainMenu(check)
		}
	}

	r.log.Info().Msg("trying generic UI elements")
	if screen, err := r.screenshot(); err == nil {
		if name, ok := r.clickFirst(screen, domain.Files(domain.CategoryGeneric)); ok {
			r.log.Info().Str("template", name).Msg("clicked generic element")
			if !r.wait(timings.GenericSettle) {
				return false, "stopped"
			}
		}
	}

	r.log.Info().Msg("trying common click positions")
	for _, p := range opts.FallbackPoints {
		r.tap(p)
		if !r.wait(timings.FallbackDelay) {
			return false, "stopped"
		}
	}

	if !r.wait(timings.FinalSettle) {
		return false, "stopped"
	}

	if screen, err := r.screenshot(); err == nil {
		switch r.detect(screen) {
		case domain.StateInGame:
			return true, "reached game after cleanup"
		case domain.StateMainMenu:
			return r.startFromMainMenu(screen)
		}
	}

	r.log.Warn().Msg("state still unknown after cleanup, assuming success")
	return true, "assumed success after cleanup"
}

func (r *launchRun) waitForLoad() (bool, string) {
	opts := r.svc.opts
	r.log.Info().Msg("waiting for game to load")

	for poll := 0; poll < opts.LoadPolls; poll++ {
		if r.ctx.Err() != nil {
			return false, "stopped"
		}

		screen, err := r.screenshot()
		if err == nil {
			if _, _, crashed := r.svc.detector.FindAny(screen, domain.Files(domain.CategoryMainMenu)); crashed {
				r.log.Warn().Msg("main menu visible while loading, game crashed")
				if r.svc.ClickTemplate(r.ctx, r.inst.Index, screen, domain.LauncherTemplate) {
					r.log.Info().Msg("clicked launcher again")
					continue
				}
			}

			if _, _, loaded := r.svc.detector.FindAny(screen, domain.Files(domain.CategoryGameWorld)); loaded {
				r.observe(r.attempt, domain.StateInGame)
				return true, "game loaded"
			}

			if name, ok := r.clickFirst(screen, domain.Files(domain.CategoryCloseButtons)); ok {
				r.log.Info().Str("template", name).Msg("closed dialog while loading")
			}
		}

		if !r.wait(opts.Timings.PollInterval) {
			return false, "stopped"
		}
	}

	return false, "game failed to load within timeout"
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
