package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/ports"
	"github.com/kamal-hamza/autostart/internal/logger"
	"github.com/kamal-hamza/autostart/pkg/config"
)

// MonitorOptions tune the auto startup monitor
type MonitorOptions struct {
	Instances  []string
	Interval   time.Duration
	Cooldown   time.Duration
	Settle     time.Duration
	MaxRetries int

	// OnComplete, when set, also receives every launch the monitor started
	OnComplete CompletionFunc
}

// MonitorOptionsFromConfig builds options from the loaded configuration
func MonitorOptionsFromConfig(cfg *config.Config) MonitorOptions {
	return MonitorOptions{
		Instances:  cfg.AutoStartup,
		Interval:   cfg.MonitorInterval,
		Cooldown:   cfg.StartupCooldown,
		Settle:     cfg.StartupSettle,
		MaxRetries: cfg.MaxRetries,
	}
}

// Monitor keeps the game running on the instances configured for auto startup.
// A watched instance seen Running is launched once it has settled, unless a
// launch succeeded within the cooldown. Stopping the instance clears that.
type Monitor struct {
	emulator ports.Emulator
	tasks    *TaskManager
	opts     MonitorOptions
	log      *logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	runningAt map[string]time.Time // first time the instance was seen Running
	doneAt    map[string]time.Time // last successful launch
	active    map[string]bool      // launched by the monitor and not yet recorded
}

func NewMonitor(emu ports.Emulator, tasks *TaskManager, opts MonitorOptions, log *logger.Logger) *Monitor {
	return &Monitor{
		emulator:  emu,
		tasks:     tasks,
		opts:      opts,
		log:       &logger.Logger{Logger: log.With().Str("component", "monitor").Logger()},
		now:       time.Now,
		runningAt: make(map[string]time.Time),
		doneAt:    make(map[string]time.Time),
		active:    make(map[string]bool),
	}
}

// Instances returns the watched instance names
func (m *Monitor) Instances() []string {
	return m.opts.Instances
}

// Run checks the watched instances every interval until ctx is done
func (m *Monitor) Run(ctx context.Context) {
	interval := m.opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	m.log.Info().Strs("instances", m.opts.Instances).Dur("interval", interval).Msg("auto startup monitor started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.Check(ctx); err != nil && ctx.Err() == nil {
			m.log.Warn().Err(err).Msg("auto startup check failed")
		}

		select {
		case <-ctx.Done():
			m.log.Info().Msg("auto startup monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check inspects every watched instance once and returns the ones it launched on
func (m *Monitor) Check(ctx context.Context) ([]string, error) {
	if len(m.opts.Instances) == 0 {
		return nil, nil
	}
	if !m.emulator.IsAvailable() {
		return nil, domain.ErrNotAvailable
	}

	instances, err := m.emulator.ListInstances(ctx)
	if err != nil {
		return nil, err
	}

	var started []string
	for _, name := range m.opts.Instances {
		inst, ok := domain.FindInstance(instances, name)
		if !ok {
			m.log.Debug().Str("instance", name).Msg("watched instance not found")
			continue
		}

		switch inst.Status {
		case domain.InstanceRunning:
			if m.launch(ctx, inst) {
				started = append(started, name)
			}
		case domain.InstanceStarting, domain.InstanceStopping:
			m.log.Debug().Str("instance", name).Str("status", string(inst.Status)).Msg("instance in transition")
		default:
			m.reset(name)
		}
	}

	return started, nil
}

// Completed reports whether a launch on name succeeded within the cooldown
func (m *Monitor) Completed(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.doneAt[name]
	return ok && m.now().Sub(at) < m.opts.Cooldown
}

func (m *Monitor) launch(ctx context.Context, inst domain.Instance) bool {
	now := m.now()

	m.mu.Lock()
	since, seen := m.runningAt[inst.Name]
	if !seen {
		m.runningAt[inst.Name] = now
		since = now
	}
	at, done := m.doneAt[inst.Name]
	busy := m.active[inst.Name]
	if busy || now.Sub(since) < m.opts.Settle || (done && now.Sub(at) < m.opts.Cooldown) {
		m.mu.Unlock()
		return false
	}
	m.active[inst.Name] = true
	m.mu.Unlock()

	if _, err := m.tasks.Start(ctx, inst.Name, m.opts.MaxRetries, m.record); err != nil {
		m.mu.Lock()
		delete(m.active, inst.Name)
		m.mu.Unlock()

		if !errors.Is(err, domain.ErrAlreadyRunning) {
			m.log.Warn().Err(err).Str("instance", inst.Name).Msg("auto startup failed to start")
		}
		return false
	}

	m.log.Info().Str("instance", inst.Name).Msg("auto startup triggered")
	return true
}

func (m *Monitor) record(rec domain.LaunchRecord) {
	m.mu.Lock()
	delete(m.active, rec.Instance)
	if rec.Success {
		m.doneAt[rec.Instance] = m.now()
	}
	m.mu.Unlock()

	if m.opts.OnComplete != nil {
		m.opts.OnComplete(rec)
	}
}

// reset forgets a stopped instance and stops its launch
func (m *Monitor) reset(name string) {
	m.mu.Lock()
	_, done := m.doneAt[name]
	delete(m.doneAt, name)
	delete(m.runningAt, name)
	m.mu.Unlock()

	if done {
		m.log.Info().Str("instance", name).Msg("instance stopped, auto startup reset")
	}
	if err := m.tasks.Stop(name); err == nil {
		m.log.Info().Str("instance", name).Msg("stopped launch on stopped instance")
	}
}

// WaitRunning polls until the named instance reports Running.
// The caller bounds the wait through ctx.
func WaitRunning(ctx context.Context, emu ports.Emulator, name string, poll time.Duration) (domain.Instance, error) {
	if poll <= 0 {
		poll = time.Second
	}

	for {
		instances, err := emu.ListInstances(ctx)
		if err != nil {
			return domain.Instance{}, err
		}
		inst, ok := domain.FindInstance(instances, name)
		if !ok {
			return domain.Instance{}, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, name)
		}
		if inst.IsRunning() {
			return inst, nil
		}

		if err := sleep(ctx, poll); err != nil {
			return inst, fmt.Errorf("%s is still %s: %w", name, inst.Status, err)
		}
	}
}
