// Package tui provides a Bubble Tea terminal user interface for mailmirror.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/handiism/mailmirror/internal/config"
	"github.com/handiism/mailmirror/internal/download"
	ioutils "github.com/handiism/mailmirror/internal/io"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// maxLogs is the number of recent progress lines kept on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateListing
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Options configures the TUI.
type Options struct {
	Settings *config.Settings

	// APIKey is the resolved Earth Class Mail key. When empty the user is
	// prompted for one.
	APIKey string

	// Verbose shows skipped files from the start.
	Verbose bool
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	apiKey    string
	logs      []LogEntry
	err       error

	// Sync context
	ctx    context.Context
	cancel context.CancelFunc

	manager *download.Manager
	events  chan download.ProgressEvent
	unlock  func() error

	// Sync progress
	pieces          int
	totalFiles      int32
	downloadedFiles int32
	receivedBytes   int64
	summary         download.Summary
	failures        int

	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Earth Class Mail API key"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	settings := opts.Settings
	if settings == nil {
		settings = config.DefaultSettings()
	}

	state := StateListing
	if opts.APIKey == "" {
		state = StateInput
	}

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     state,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		apiKey:    opts.APIKey,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan download.ProgressEvent, 64),
		verbose:   opts.Verbose,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	if m.state == StateListing {
		return m.startSync()
	}
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg is sent for every progress event of the running sync.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// ListDoneMsg is sent when the catalog is listed and the work list built.
	ListDoneMsg struct {
		Manager *download.Manager
		Unlock  func() error
		Err     error
	}

	// SyncDoneMsg is sent when all downloads finished.
	SyncDoneMsg struct {
		Summary download.Summary
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			m.release()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateListing {
				m.cancel()
			}

		case "enter":
			if m.state == StateInput {
				if key := strings.TrimSpace(m.textInput.Value()); key != "" {
					m.apiKey = key
					m.state = StateListing
					return m, m.startSync()
				}
			}

		case "v":
			if m.state != StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.logs = nil
				m.err = nil
				m.pieces = 0
				m.downloadedFiles = 0
				m.totalFiles = 0
				m.receivedBytes = 0
				m.failures = 0
				m.manager = nil
				m.cancel()
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.state = StateListing
				return m, m.startSync()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, m.waitForEvent())
		if msg.Event.Level == download.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}

	case ListDoneMsg:
		m.unlock = msg.Unlock
		if msg.Err != nil {
			m.release()
			m.state = StateError
			m.err = msg.Err
			break
		}
		m.manager = msg.Manager
		m.pieces = m.manager.Summary().Pieces
		m.totalFiles = int32(len(m.manager.WorkList()))
		m.state = StateDownloading
		cmds = append(cmds, m.startDownload(), m.tickProgress())

	case SyncDoneMsg:
		m.release()
		m.summary = msg.Summary
		m.receivedBytes = msg.Summary.Bytes
		m.downloadedFiles = int32(msg.Summary.Downloaded)

		var aggErr *download.AggregateError
		switch {
		case errors.Is(msg.Err, context.Canceled):
			m.state = StateError
			m.err = errors.New("cancelled by user")
		case errors.As(msg.Err, &aggErr):
			m.state = StateComplete
			m.failures = len(aggErr.Failed)
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateDownloading {
			received, files, totalFiles := m.manager.GetProgress()
			m.receivedBytes = received
			m.downloadedFiles = files
			m.totalFiles = totalFiles

			var percent float64
			if totalFiles > 0 {
				percent = float64(files) / float64(totalFiles)
			}
			progressCmd := m.progress.SetPercent(percent)
			cmds = append(cmds, progressCmd, m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// release drops the mirror lock once the sync is over.
func (m *Model) release() {
	if m.unlock != nil {
		_ = m.unlock()
		m.unlock = nil
	}
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Mail Mirror"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Mirror root: " + m.settings.MirrorRoot))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateListing:
		b.WriteString(m.viewListing())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter Earth Class Mail API key:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Set %s to skip this prompt.", config.APIKeyEnv)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewListing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Listing pieces..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(successStyle.Render(fmt.Sprintf("%d pieces, %d files to download", m.pieces, m.totalFiles)))
	b.WriteString("\n\n")

	var percent float64
	if m.totalFiles > 0 {
		percent = float64(m.downloadedFiles) / float64(m.totalFiles)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Files: %d/%d | Downloaded: %s",
		m.downloadedFiles,
		m.totalFiles,
		humanize.Bytes(uint64(max(m.receivedBytes, 0))),
	)))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	title := "Mirror up to date"
	if m.failures > 0 {
		title = fmt.Sprintf("Finished with %d failed download(s)", m.failures)
	}

	box := boxStyle.Render(fmt.Sprintf(
		"%s\n\n"+
			"Pieces: %d\n"+
			"Skipped: %d\n"+
			"Downloaded: %d/%d\n"+
			"Size: %s\n"+
			"Time: %s",
		title,
		m.summary.Pieces,
		m.summary.Skipped,
		m.summary.Downloaded,
		m.summary.Pending,
		humanize.Bytes(uint64(max(m.summary.Bytes, 0))),
		m.summary.Duration.Round(time.Second),
	))
	b.WriteString(box)
	if m.failures > 0 {
		b.WriteString("\n\n")
		b.WriteString(m.renderLogs())
	}

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • esc: quit"
	case StateListing, StateDownloading:
		return "v: verbose • esc: cancel"
	case StateComplete, StateError:
		return "r: sync again • q: quit"
	}
	return ""
}

// startSync locks the mirror, lists the catalog and builds the work list.
func (m Model) startSync() tea.Cmd {
	ctx := m.ctx
	events := m.events
	settings := m.settings
	apiKey := m.apiKey

	list := func() tea.Msg {
		unlock, err := ioutils.LockMirror(settings.MirrorRoot)
		if err != nil {
			return ListDoneMsg{Err: err}
		}

		manager := download.NewManager(settings, apiKey, func(event download.ProgressEvent) {
			select {
			case events <- event:
			case <-ctx.Done():
			}
		})
		if err := manager.Initialize(ctx); err != nil {
			return ListDoneMsg{Unlock: unlock, Err: err}
		}
		return ListDoneMsg{Manager: manager, Unlock: unlock}
	}

	return tea.Batch(list, m.waitForEvent(), m.spinner.Tick)
}

// waitForEvent delivers the next progress event of the current sync.
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case event := <-events:
			return ProgressMsg{Event: event}
		case <-ctx.Done():
			return nil
		}
	}
}

// startDownload runs the downloads in background.
func (m Model) startDownload() tea.Cmd {
	manager := m.manager
	ctx := m.ctx
	return func() tea.Msg {
		err := manager.StartDownloads(ctx)
		return SyncDoneMsg{Summary: manager.Summary(), Err: err}
	}
}

// Run starts the TUI application.
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
