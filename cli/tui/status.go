package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/calliope-io/herald/runtime"
)

// statusMsg carries one runtime status update into the model.
type statusMsg runtime.StatusUpdate

// runDoneMsg signals that the run finished.
type runDoneMsg struct {
	result *runtime.RunResult
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// StatusModel is a Bubble Tea model rendering the live run status.
type StatusModel struct {
	updates  <-chan runtime.StatusUpdate
	done     <-chan *runtime.RunResult
	cancel   func()
	latest   *runtime.StatusUpdate
	result   *runtime.RunResult
	width    int
	quitting bool
}

// NewStatusModel creates a status model. cancel is invoked when the user
// quits so the run winds down with the display.
func NewStatusModel(updates <-chan runtime.StatusUpdate, done <-chan *runtime.RunResult, cancel func()) StatusModel {
	return StatusModel{
		updates: updates,
		done:    done,
		cancel:  cancel,
	}
}

// Init implements tea.Model.
func (m StatusModel) Init() tea.Cmd {
	return m.waitForEvent()
}

// waitForEvent blocks on the next status update or run completion.
func (m StatusModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case update, ok := <-m.updates:
			if !ok {
				return runDoneMsg{result: <-m.done}
			}
			return statusMsg(update)
		case result := <-m.done:
			return runDoneMsg{result: result}
		}
	}
}

// Update implements tea.Model.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case statusMsg:
		update := runtime.StatusUpdate(msg)
		m.latest = &update
		return m, m.waitForEvent()

	case runDoneMsg:
		m.result = msg.result
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("herald"))
	b.WriteString("\n")
	b.WriteString(m.renderTrack())
	b.WriteString("\n")
	b.WriteString(m.renderCounters())

	if m.latest != nil && m.latest.Err != "" {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("last error: " + m.latest.Err))
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + "\n" + help
}

// renderTrack renders the most recent snapshot box.
func (m StatusModel) renderTrack() string {
	if m.latest == nil {
		return BoxStyle.Render(ValueStyle.Render("waiting for track events..."))
	}

	snap := m.latest.Track
	var rows []string
	rows = append(rows, LabelStyle.Render("Title")+ValueStyle.Render(orDash(snap.TitleText())))
	rows = append(rows, LabelStyle.Render("Artist")+ValueStyle.Render(orDash(snap.ArtistText())))
	if duration, ok := snap.DurationSeconds(); ok {
		rows = append(rows, LabelStyle.Render("Duration")+ValueStyle.Render(formatDuration(duration)))
	}

	state := "reported"
	style := SuccessStyle
	switch {
	case m.latest.Deduped:
		state = "unchanged"
		style = WarningStyle
	case m.latest.Err != "":
		state = "failed"
		style = ErrorStyle
	case !m.latest.Reported:
		state = "skipped"
		style = WarningStyle
	}
	rows = append(rows, LabelStyle.Render("Status")+style.Render(state))

	return BoxStyle.Render(strings.Join(rows, "\n"))
}

// renderCounters renders the metrics summary line.
func (m StatusModel) renderCounters() string {
	if m.latest == nil {
		return ""
	}
	s := m.latest.Metrics
	return HelpStyle.Render(fmt.Sprintf(
		"received=%d deduped=%d sent=%d dropped=%d reconnects=%d",
		s.SnapshotsReceived, s.SnapshotsDeduped, s.ReportsSent, s.ReportsDropped, s.ReconnectsScheduled,
	))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatDuration renders seconds as m:ss.
func formatDuration(seconds uint64) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Run displays the status view until the run completes or the user quits.
// Returns the run result delivered on done, or nil when quit early.
func Run(updates <-chan runtime.StatusUpdate, done <-chan *runtime.RunResult, cancel func()) (*runtime.RunResult, error) {
	model := NewStatusModel(updates, done, cancel)
	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	if m, ok := final.(StatusModel); ok {
		return m.result, nil
	}
	return nil, nil
}
