package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/ports"
	"github.com/kamal-hamza/autostart/internal/logger"
)

const (
	ModuleName        = "AutoStartGame"
	ModuleVersion     = "1.0.0"
	ModuleDescription = "Automatically starts the game on MEmu instances using image detection"

	persistTimeout = 10 * time.Second
)

// CompletionFunc is called once a launch has finished and been recorded
type CompletionFunc func(record domain.LaunchRecord)

// ModuleInfo describes the launcher and its template set
type ModuleInfo struct {
	Name               string                       `json:"name"`
	Version            string                       `json:"version"`
	Description        string                       `json:"description"`
	Available          bool                         `json:"available"`
	RunningInstances   int                          `json:"running_instances"`
	TemplatesDir       string                       `json:"templates_dir"`
	SupportedTemplates map[domain.Category][]string `json:"supported_templates"`
}

type task struct {
	snap       domain.TaskSnapshot
	cancel     context.CancelFunc
	onComplete CompletionFunc
}

// TaskManager runs AutoStartGame for several instances at once
type TaskManager struct {
	emulator   ports.Emulator
	runner     *AutostartService
	history    ports.HistoryRepository
	notifier   ports.Notifier
	log        *logger.Logger
	maxRetries int
	templates  string

	mu    sync.Mutex
	tasks map[string]*task
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewTaskManager creates a manager allowing maxConcurrent launches at a time.
// history and notifier may be nil.
func NewTaskManager(
	emu ports.Emulator,
	runner *AutostartService,
	history ports.HistoryRepository,
	notifier ports.Notifier,
	templatesDir string,
	maxConcurrent int,
	log *logger.Logger,
) *TaskManager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &TaskManager{
		emulator:   emu,
		runner:     runner,
		history:    history,
		notifier:   notifier,
		log:        log,
		maxRetries: runner.Options().MaxRetries,
		templates:  templatesDir,
		tasks:      make(map[string]*task),
		slots:      make(chan struct{}, maxConcurrent),
	}
}

// Start launches the game on the named instance in the background
func (m *TaskManager) Start(ctx context.Context, name string, maxRetries int, onComplete CompletionFunc) (domain.TaskSnapshot, error) {
	if !m.emulator.IsAvailable() {
		return domain.TaskSnapshot{}, domain.ErrNotAvailable
	}

	m.mu.Lock()
	_, running := m.tasks[name]
	m.mu.Unlock()
	if running {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: %s", domain.ErrAlreadyRunning, name)
	}

	instances, err := m.emulator.ListInstances(ctx)
	if err != nil {
		return domain.TaskSnapshot{}, err
	}
	inst, ok := domain.FindInstance(instances, name)
	if !ok {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, name)
	}

	if maxRetries <= 0 {
		maxRetries = m.maxRetries
	}

	runID := uuid.New()
	runLog := &logger.Logger{Logger: m.log.ForInstance(name, inst.Index).With().Str("run_id", runID.String()).Logger()}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = runLog.WithContext(runCtx)
	t := &task{
		snap: domain.TaskSnapshot{
			RunID:         runID,
			Instance:      name,
			InstanceIndex: inst.Index,
			Status:        domain.TaskStarting,
			MaxRetries:    maxRetries,
			StartTime:     time.Now(),
		},
		cancel:     cancel,
		onComplete: onComplete,
	}

	m.mu.Lock()
	if _, running := m.tasks[name]; running {
		m.mu.Unlock()
		cancel()
		return domain.TaskSnapshot{}, fmt.Errorf("%w: %s", domain.ErrAlreadyRunning, name)
	}
	m.tasks[name] = t
	snap := t.snap
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(runCtx, t, inst, maxRetries)

	m.log.Info().Str("instance", name).Str("run_id", snap.RunID.String()).Msg("auto start queued")
	return snap, nil
}

func (m *TaskManager) run(ctx context.Context, t *task, inst domain.Instance, maxRetries int) {
	defer m.wg.Done()
	defer t.cancel()

	var result domain.LaunchResult
	status := domain.TaskFailed

	select {
	case m.slots <- struct{}{}:
		result, status = m.execute(ctx, t, inst, maxRetries)
		<-m.slots
	case <-ctx.Done():
		result.Detail = "stopped"
	}

	m.finish(t, result, status)
}

func (m *TaskManager) execute(ctx context.Context, t *task, inst domain.Instance, maxRetries int) (result domain.LaunchResult, status domain.TaskStatus) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Str("instance", inst.Name).Msg("auto start crashed")
			result.Detail = fmt.Sprintf("error: %v", r)
			status = domain.TaskError
		}
	}()

	m.update(t, func(s *domain.TaskSnapshot) {
		if s.Status == domain.TaskStarting {
			s.Status = domain.TaskRunning
		}
	})

	result = m.runner.Run(ctx, inst, maxRetries, func(attempt int, state domain.GameState) {
		m.update(t, func(s *domain.TaskSnapshot) {
			s.CurrentAttempt = attempt
			if state != "" {
				s.LastState = state
			}
		})
	})

	if result.Success {
		return result, domain.TaskCompleted
	}
	return result, domain.TaskFailed
}

func (m *TaskManager) update(t *task, fn func(*domain.TaskSnapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&t.snap)
}

func (m *TaskManager) finish(t *task, result domain.LaunchResult, status domain.TaskStatus) {
	m.mu.Lock()
	t.snap.Status = status
	snap := t.snap
	delete(m.tasks, snap.Instance)
	m.mu.Unlock()

	record := domain.LaunchRecord{
		ID:            snap.RunID,
		Instance:      snap.Instance,
		InstanceIndex: snap.InstanceIndex,
		Status:        status,
		Success:       result.Success,
		Attempts:      result.Attempts,
		MaxRetries:    snap.MaxRetries,
		Detail:        result.Detail,
		StartedAt:     snap.StartTime,
		FinishedAt:    time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if m.history != nil {
		if err := m.history.Save(ctx, record); err != nil {
			m.log.Warn().Err(err).Str("instance", record.Instance).Msg("failed to record launch")
		}
	}
	if m.notifier != nil {
		if err := m.notifier.Notify(ctx, record); err != nil {
			m.log.Warn().Err(err).Str("instance", record.Instance).Msg("failed to send notification")
		}
	}

	m.log.Info().
		Str("instance", record.Instance).
		Str("status", string(status)).
		Int("attempts", record.Attempts).
		Dur("duration", record.Duration().Round(time.Millisecond)).
		Msg("auto start finished")

	if t.onComplete != nil {
		t.onComplete(record)
	}
}

// Stop requests the launch on an instance to stop
func (m *TaskManager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotRunning, name)
	}
	t.snap.Status = domain.TaskStopping
	t.cancel()

	m.log.Info().Str("instance", name).Msg("auto start stop requested")
	return nil
}

// StopAll requests every running launch to stop
func (m *TaskManager) StopAll() {
	for _, name := range m.Running() {
		_ = m.Stop(name)
	}
}

// Status returns a snapshot of the launch on an instance
func (m *TaskManager) Status(name string) (domain.TaskSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return domain.TaskSnapshot{}, false
	}
	snap := t.snap
	snap.Elapsed = time.Since(snap.StartTime)
	return snap, true
}

// Snapshots returns every running launch ordered by instance name
func (m *TaskManager) Snapshots() []domain.TaskSnapshot {
	names := m.Running()
	out := make([]domain.TaskSnapshot, 0, len(names))
	for _, name := range names {
		if snap, ok := m.Status(name); ok {
			out = append(out, snap)
		}
	}
	return out
}

// Running returns the instances with a launch in progress
func (m *TaskManager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Wait blocks until every launch has finished
func (m *TaskManager) Wait() {
	m.wg.Wait()
}

// Info describes the launcher
func (m *TaskManager) Info() ModuleInfo {
	supported := make(map[domain.Category][]string)
	for _, c := range domain.Categories() {
		supported[c] = domain.Files(c)
	}

	return ModuleInfo{
		Name:               ModuleName,
		Version:            ModuleVersion,
		Description:        ModuleDescription,
		Available:          m.emulator.IsAvailable(),
		RunningInstances:   len(m.Running()),
		TemplatesDir:       m.templates,
		SupportedTemplates: supported,
	}
}
