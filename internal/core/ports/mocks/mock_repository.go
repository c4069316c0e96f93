package mocks

import (
	"context"
	"fmt"
	"image"
	"io"
	"sort"
	"sync"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/pkg/vision"
)

// --- MockEmulator ---

// TapCall is one recorded tap
type TapCall struct {
	Index int
	X, Y  int
}

// MockEmulator is a scripted implementation of the Emulator port.
// Screenshot returns queued screens in order and keeps repeating the last one.
type MockEmulator struct {
	mu sync.Mutex

	Available bool
	Instances []domain.Instance
	ListErr   error

	screens     []image.Image
	ScreenErr   error
	screenCalls int

	// OnTap runs after every successful tap and may queue the screen the tap leads to
	OnTap  func(m *MockEmulator, call TapCall)
	TapErr error
	taps   []TapCall

	// OnStart runs after Start, typically to move the instance to Running
	OnStart func(m *MockEmulator, index int)
	started []int
	stopped []int
}

// NewMockEmulator creates an available emulator with the given instances
func NewMockEmulator(instances ...domain.Instance) *MockEmulator {
	return &MockEmulator{
		Available: true,
		Instances: instances,
	}
}

// QueueScreens appends screens to be returned by Screenshot
func (m *MockEmulator) QueueScreens(screens ...image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screens = append(m.screens, screens...)
}

// SetScreen replaces the queue with a single screen
func (m *MockEmulator) SetScreen(screen image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screens = []image.Image{screen}
}

func (m *MockEmulator) IsAvailable() bool {
	return m.Available
}

func (m *MockEmulator) ListInstances(ctx context.Context) ([]domain.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]domain.Instance, len(m.Instances))
	copy(out, m.Instances)
	return out, nil
}

// SetStatus changes the reported status of the named instance
func (m *MockEmulator) SetStatus(name string, status domain.InstanceStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Instances {
		if m.Instances[i].Name == name {
			m.Instances[i].Status = status
		}
	}
}

func (m *MockEmulator) Screenshot(ctx context.Context, index int) (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.screenCalls++
	if m.ScreenErr != nil {
		return nil, m.ScreenErr
	}
	if len(m.screens) == 0 {
		return nil, fmt.Errorf("%w: no screen queued", domain.ErrScreenshotFailed)
	}

	screen := m.screens[0]
	if len(m.screens) > 1 {
		m.screens = m.screens[1:]
	}
	return screen, nil
}

func (m *MockEmulator) Tap(ctx context.Context, index int, x, y int) error {
	call := TapCall{Index: index, X: x, Y: y}

	m.mu.Lock()
	m.taps = append(m.taps, call)
	hook, err := m.OnTap, m.TapErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(m, call)
	}
	return nil
}

func (m *MockEmulator) Start(ctx context.Context, index int) error {
	m.mu.Lock()
	m.started = append(m.started, index)
	hook := m.OnStart
	m.mu.Unlock()

	if hook != nil {
		hook(m, index)
	}
	return nil
}

func (m *MockEmulator) Stop(ctx context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = append(m.stopped, index)
	return nil
}

// Taps returns the recorded taps
func (m *MockEmulator) Taps() []TapCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TapCall, len(m.taps))
	copy(out, m.taps)
	return out
}

// ScreenshotCalls returns how many screenshots were requested
func (m *MockEmulator) ScreenshotCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screenCalls
}

// Started returns the indexes passed to Start
func (m *MockEmulator) Started() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.started...)
}

// Stopped returns the indexes passed to Stop
func (m *MockEmulator) Stopped() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.stopped...)
}

// --- MockTemplateRepository ---

type MockTemplateRepository struct {
	mu          sync.RWMutex
	dir         string
	templates   map[string]*vision.Gray
	assets      map[string]*domain.TemplateAsset
	invalidated []string
}

func NewMockTemplateRepository() *MockTemplateRepository {
	return &MockTemplateRepository{
		dir:       "/mock/templates",
		templates: make(map[string]*vision.Gray),
		assets:    make(map[string]*domain.TemplateAsset),
	}
}

// Put registers a decoded template under name
func (m *MockTemplateRepository) Put(name string, g *vision.Gray) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[name] = g
}

func (m *MockTemplateRepository) Dir() string {
	return m.dir
}

func (m *MockTemplateRepository) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.templates[name]
	return ok
}

func (m *MockTemplateRepository) Load(name string) (*vision.Gray, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
	}
	return g, nil
}

func (m *MockTemplateRepository) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.templates))
	for name := range m.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockTemplateRepository) Import(ctx context.Context, name, originalName string, content io.Reader) (*domain.TemplateAsset, bool, error) {
	img, _, err := image.Decode(content)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrInvalidTemplate, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	asset := &domain.TemplateAsset{
		Filename:     name,
		OriginalName: originalName,
		Width:        img.Bounds().Dx(),
		Height:       img.Bounds().Dy(),
	}
	m.templates[name] = vision.FromImage(img)
	m.assets[name] = asset
	return asset, true, nil
}

func (m *MockTemplateRepository) Asset(ctx context.Context, name string) (*domain.TemplateAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
	}
	return a, nil
}

func (m *MockTemplateRepository) Invalidate(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, name)
}

func (m *MockTemplateRepository) Reset() {}

// Invalidated returns the names passed to Invalidate
func (m *MockTemplateRepository) Invalidated() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.invalidated...)
}

// --- MockHistoryRepository ---

type MockHistoryRepository struct {
	mu      sync.Mutex
	records []domain.LaunchRecord
	SaveErr error
}

func NewMockHistoryRepository() *MockHistoryRepository {
	return &MockHistoryRepository{}
}

func (m *MockHistoryRepository) Save(ctx context.Context, record domain.LaunchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.records = append(m.records, record)
	return nil
}

func (m *MockHistoryRepository) List(ctx context.Context, instance string, limit int) ([]domain.LaunchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.LaunchRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if instance != "" && r.Instance != instance {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockHistoryRepository) Summaries(ctx context.Context) ([]domain.InstanceSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byName := make(map[string]*domain.InstanceSummary)
	var order []string
	attempts := make(map[string]int)
	for _, r := range m.records {
		s, ok := byName[r.Instance]
		if !ok {
			s = &domain.InstanceSummary{Instance: r.Instance}
			byName[r.Instance] = s
			order = append(order, r.Instance)
		}
		s.Runs++
		if r.Success {
			s.Successes++
		} else {
			s.Failures++
		}
		attempts[r.Instance] += r.Attempts
		if r.FinishedAt.After(s.LastRun) {
			s.LastRun = r.FinishedAt
		}
	}

	sort.Strings(order)
	out := make([]domain.InstanceSummary, 0, len(order))
	for _, name := range order {
		s := byName[name]
		s.AvgAttempts = float64(attempts[name]) / float64(s.Runs)
		out = append(out, *s)
	}
	return out, nil
}

// Records returns everything saved so far
func (m *MockHistoryRepository) Records() []domain.LaunchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LaunchRecord(nil), m.records...)
}

// --- MockNotifier ---

type MockNotifier struct {
	mu      sync.Mutex
	sent    []domain.LaunchRecord
	FailErr error
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, record domain.LaunchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, record)
	return m.FailErr
}

// Sent returns the notified records
func (m *MockNotifier) Sent() []domain.LaunchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LaunchRecord(nil), m.sent...)
}
