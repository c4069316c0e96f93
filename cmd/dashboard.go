package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/pkg/ui"
)

// dashboardCmd represents the dashboard command
var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash"},
	Short:   "Live view of instances and launches (alias: dash)",
	Long: `Launch a full-screen dashboard for starting the game on instances.

Keyboard Shortcuts:
  ↑/k ↓/j     Move
  enter/l     Launch on the selected instance
  s           Stop the selected launch
  S           Stop all launches
  r           Refresh instances and history
  ?           Toggle help
  q           Quit (running launches are stopped)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEmulator(); err != nil {
			return err
		}
		ctx := getContext()
		if err := runDashboardProgram(ctx, false); err != nil {
			return err
		}
		taskManager.StopAll()
		taskManager.Wait()
		return nil
	},
}

const (
	dashboardTick   = 500 * time.Millisecond
	messageLifetime = 3 * time.Second
	recentLaunches  = 5
)

// dashboardBackend is what the dashboard reads and drives
type dashboardBackend interface {
	Instances(ctx context.Context) ([]domain.Instance, error)
	Snapshots() []domain.TaskSnapshot
	Launch(ctx context.Context, name string) error
	Stop(name string) error
	StopAll()
	Recent(ctx context.Context, limit int) []domain.LaunchRecord
}

// liveBackend drives the real task manager
type liveBackend struct{}

func (liveBackend) Instances(ctx context.Context) ([]domain.Instance, error) {
	return emulator.ListInstances(ctx)
}

func (liveBackend) Snapshots() []domain.TaskSnapshot { return taskManager.Snapshots() }

func (liveBackend) Launch(ctx context.Context, name string) error {
	_, err := taskManager.Start(ctx, name, launchRetries, nil)
	return err
}

func (liveBackend) Stop(name string) error { return taskManager.Stop(name) }

func (liveBackend) StopAll() { taskManager.StopAll() }

func (liveBackend) Recent(ctx context.Context, limit int) []domain.LaunchRecord {
	history := historyPort()
	if history == nil {
		return nil
	}
	records, err := history.List(ctx, "", limit)
	if err != nil {
		appLog.Warn().Err(err).Msg("failed to load recent launches")
		return nil
	}
	return records
}

func runDashboardProgram(ctx context.Context, follow bool) error {
	m := newDashboardModel(ctx, liveBackend{}, follow)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running dashboard: %w", err)
	}
	return nil
}

// Messages
type tickMsg time.Time

type instancesMsg struct {
	instances []domain.Instance
	err       error
}

type recentMsg []domain.LaunchRecord

type statusMsg struct {
	message string
	isError bool
}

// Key bindings
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Launch  key.Binding
	Stop    key.Binding
	StopAll key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Launch, k.Stop, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Launch, k.Stop, k.StopAll},
		{k.Refresh, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "move down"),
	),
	Launch: key.NewBinding(
		key.WithKeys("enter", "l"),
		key.WithHelp("enter/l", "launch"),
	),
	Stop: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "stop"),
	),
	StopAll: key.NewBinding(
		key.WithKeys("S"),
		key.WithHelp("S", "stop all"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Dashboard model
type dashboardModel struct {
	ctx       context.Context
	backend   dashboardBackend
	follow    bool // opened by launch --dashboard
	instances []domain.Instance
	tasks     map[string]domain.TaskSnapshot
	recent    []domain.LaunchRecord
	cursor    int
	sawTasks  bool
	spinner   spinner.Model
	help      help.Model
	keys      keyMap
	width     int
	height    int

	message       string
	messageError  bool
	messageExpiry time.Time
	loadErr       error
}

func newDashboardModel(ctx context.Context, backend dashboardBackend, follow bool) dashboardModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(ui.ColorInfo)

	return dashboardModel{
		ctx:     ctx,
		backend: backend,
		follow:  follow,
		tasks:   make(map[string]domain.TaskSnapshot),
		spinner: sp,
		help:    help.New(),
		keys:    keys,
	}
}

func (m dashboardModel) loadInstances() tea.Msg {
	instances, err := m.backend.Instances(m.ctx)
	return instancesMsg{instances: instances, err: err}
}

func (m dashboardModel) loadRecent() tea.Msg {
	return recentMsg(m.backend.Recent(m.ctx, recentLaunches))
}

func tick() tea.Cmd {
	return tea.Tick(dashboardTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.loadInstances, m.loadRecent, m.spinner.Tick, tick())
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tickMsg:
		return m.refreshTasks(), tick()

	case instancesMsg:
		m.loadErr = msg.err
		if msg.err == nil {
			m.instances = msg.instances
			if m.cursor >= len(m.instances) {
				m.cursor = max(0, len(m.instances)-1)
			}
		}
		return m, nil

	case recentMsg:
		m.recent = msg
		return m, nil

	case statusMsg:
		m.message = msg.message
		m.messageError = msg.isError
		m.messageExpiry = time.Now().Add(messageLifetime)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// refreshTasks copies the latest snapshots and notices finished launches
func (m dashboardModel) refreshTasks() tea.Model {
	before := len(m.tasks)

	tasks := make(map[string]domain.TaskSnapshot)
	for _, snap := range m.backend.Snapshots() {
		tasks[snap.Instance] = snap
	}
	m.tasks = tasks
	if len(tasks) > 0 {
		m.sawTasks = true
	}

	if len(tasks) < before {
		m.recent = m.backend.Recent(m.ctx, recentLaunches)
	}
	if m.follow && m.sawTasks && len(tasks) == 0 && m.message == "" {
		m.message = "All launches finished, press q to exit"
		m.messageExpiry = time.Now().Add(time.Hour)
	}
	if m.message != "" && time.Now().After(m.messageExpiry) {
		m.message = ""
	}
	return m
}

func (m dashboardModel) selected() (domain.Instance, bool) {
	if m.cursor < 0 || m.cursor >= len(m.instances) {
		return domain.Instance{}, false
	}
	return m.instances[m.cursor], true
}

func (m dashboardModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.instances)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Launch):
		inst, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.launch(inst.Name)

	case key.Matches(msg, m.keys.Stop):
		inst, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.stop(inst.Name)

	case key.Matches(msg, m.keys.StopAll):
		m.backend.StopAll()
		return m, func() tea.Msg { return statusMsg{message: "Stopping all launches"} }

	case key.Matches(msg, m.keys.Refresh):
		return m, tea.Batch(m.loadInstances, m.loadRecent)

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	return m, nil
}

func (m dashboardModel) launch(name string) tea.Cmd {
	return func() tea.Msg {
		if err := m.backend.Launch(m.ctx, name); err != nil {
			return statusMsg{message: err.Error(), isError: true}
		}
		return statusMsg{message: "Launching on " + name}
	}
}

func (m dashboardModel) stop(name string) tea.Cmd {
	return func() tea.Msg {
		if err := m.backend.Stop(name); err != nil {
			return statusMsg{message: err.Error(), isError: true}
		}
		return statusMsg{message: "Stopping " + name}
	}
}

func (m dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(ui.FormatTitle(ui.IconGame+" autostart") + "  ")
	b.WriteString(ui.FormatMuted(fmt.Sprintf("%d running", len(m.tasks))) + "\n\n")

	switch {
	case m.loadErr != nil:
		b.WriteString(ui.FormatError("Failed to list instances: "+m.loadErr.Error()) + "\n")
	case len(m.instances) == 0:
		b.WriteString(ui.FormatMuted("No instances") + "\n")
	default:
		b.WriteString(m.renderInstances())
	}

	if len(m.recent) > 0 {
		b.WriteString("\n" + ui.StyleHeader.Render("Recent launches") + "\n")
		for _, rec := range m.recent {
			status := ui.FormatStatus(string(rec.Status))
			b.WriteString(fmt.Sprintf("  %s  %-14s %s  %s\n",
				rec.FinishedAt.Local().Format("15:04:05"),
				rec.Instance,
				status,
				ui.FormatMuted(rec.Detail)))
		}
	}

	if m.message != "" {
		b.WriteString("\n")
		if m.messageError {
			b.WriteString(ui.FormatError(m.message))
		} else {
			b.WriteString(ui.FormatInfo(m.message))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m dashboardModel) renderInstances() string {
	table := ui.NewTable([]ui.TableColumn{
		{Header: " "},
		{Header: "Instance"},
		{Header: "VM", Status: true},
		{Header: "Launch"},
		{Header: "Attempt", Align: "right"},
		{Header: "Elapsed", Align: "right"},
		{Header: "Screen", Status: true},
	})

	for i, inst := range m.instances {
		marker := " "
		if i == m.cursor {
			marker = "›"
		}

		launch, attempt, elapsed, screen := "-", "", "", ""
		if snap, ok := m.tasks[inst.Name]; ok {
			launch = string(snap.Status)
			if !snap.Status.IsFinal() {
				launch = m.spinner.View() + " " + launch
			}
			if snap.CurrentAttempt > 0 {
				attempt = fmt.Sprintf("%d/%d", snap.CurrentAttempt, snap.MaxRetries)
			}
			elapsed = snap.Elapsed.Round(time.Second).String()
			screen = string(snap.LastState)
		}

		table.AddRow([]string{marker, inst.Name, string(inst.Status), launch, attempt, elapsed, screen})
	}

	return table.Render()
}
