package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/haivivi/rtconsole/pkg/cli"
	"github.com/haivivi/rtconsole/pkg/console"
	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

// Fixed pane heights; the event log takes the rest.
const (
	toolPaneHeight        = 8
	controlsPaneHeight    = 2
	diagnosticsPaneHeight = 5
)

// consoleDeps are the components the TUI drives.
type consoleDeps struct {
	Session        *console.Session
	EventLog       *console.EventLog
	Controls       *console.Controls
	Tools          *console.ToolPanel
	Store          *console.Store
	LogWriter      *cli.LogWriter
	Logger         *slog.Logger
	Archive        *console.Archive
	ConnectTimeout time.Duration
	Title          string
}

type focusArea int

const (
	focusLog focusArea = iota
	focusInput
	focusFilter
)

// consoleModel is the bubbletea model of the console.
type consoleModel struct {
	deps consoleDeps
	now  func() time.Time

	input  textinput.Model
	filter textinput.Model
	focus  focusArea

	snap        console.Snapshot
	rows        []console.Row
	selected    string // key of the selected row
	activeSince time.Time
	status      string
	logs        []string

	styles   cli.Styles
	width    int
	height   int
	quitting bool
}

// snapshotMsg carries a session snapshot into the TUI.
type snapshotMsg console.Snapshot

// startDoneMsg reports the end of a start attempt.
type startDoneMsg struct{ err error }

// stopDoneMsg reports the end of a disconnect.
type stopDoneMsg struct{ err error }

// submitDoneMsg reports whether a message was sent.
type submitDoneMsg struct {
	text string
	ok   bool
}

// logMsg is a diagnostics line.
type logMsg string

// tickMsg refreshes the status line.
type tickMsg time.Time

func newConsoleModel(deps consoleDeps) consoleModel {
	input := textinput.New()
	input.Placeholder = console.InputPlaceholder
	input.CharLimit = 4096

	filter := textinput.New()
	filter.Prompt = "jq> "
	filter.Placeholder = `select(.type == "response.done")`
	filter.SetValue(deps.EventLog.Filter())

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return consoleModel{
		deps:   deps,
		now:    time.Now,
		input:  input,
		filter: filter,
		styles: cli.NewStyles(cli.DefaultTheme),
	}
}

// observe feeds a snapshot to the controls and the tool panel. It runs on
// the session's delivery goroutine.
func (m consoleModel) observe(snap console.Snapshot) {
	m.deps.Controls.Observe(snap)
	if err := m.deps.Tools.Observe(snap); err != nil {
		m.deps.Logger.Error("tool call failed", "error", err)
	}
}

// Init initializes the model.
func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(
		m.listenLogs(),
		m.tick(),
	)
}

func (m consoleModel) listenLogs() tea.Cmd {
	if m.deps.LogWriter == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-m.deps.LogWriter.Channel()
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}

func (m consoleModel) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m consoleModel) startCmd() tea.Cmd {
	session, controls, timeout := m.deps.Session, m.deps.Controls, m.deps.ConnectTimeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		err := session.Start(ctx)
		controls.Finish(err)
		return startDoneMsg{err: err}
	}
}

// submitCmd sends text off the event loop: sending delivers snapshots
// through Program.Send, which must not be called from Update.
func (m consoleModel) submitCmd(text string) tea.Cmd {
	controls := m.deps.Controls
	return func() tea.Msg {
		return submitDoneMsg{text: text, ok: controls.Submit(text)}
	}
}

func (m consoleModel) stopCmd() tea.Cmd {
	controls := m.deps.Controls
	return func() tea.Msg {
		return stopDoneMsg{err: controls.Stop()}
	}
}

// Update handles messages.
func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 10)
		m.filter.Width = max(msg.Width-10, 10)
		return m, nil

	case snapshotMsg:
		m.applySnapshot(console.Snapshot(msg))
		return m, nil

	case startDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, console.ErrSessionStopped) {
			m.status = msg.err.Error()
		}
		return m, nil

	case submitDoneMsg:
		if msg.ok && m.input.Value() == msg.text {
			m.input.Reset()
		}
		return m, nil

	case stopDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		return m, nil

	case logMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > 50 {
			m.logs = m.logs[len(m.logs)-50:]
		}
		return m, m.listenLogs()

	case tickMsg:
		return m, m.tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *consoleModel) applySnapshot(snap console.Snapshot) {
	prev := m.snap.State
	m.snap = snap
	switch {
	case snap.State == console.Active && prev != console.Active:
		m.activeSince = m.now()
		m.status = ""
		m.deps.EventLog.CollapseAll()
		m.focus = focusInput
		m.input.Focus()
	case snap.State != console.Active:
		m.activeSince = time.Time{}
		if m.focus == focusInput {
			m.focus = focusLog
			m.input.Blur()
		}
	}
	m.refreshRows()
}

// refreshRows re-renders the event log. A skipped pass shows no rows; the
// selection is kept for the next pass.
func (m *consoleModel) refreshRows() {
	rows, ok := m.deps.EventLog.Render(m.snap.Events, m.now())
	if !ok {
		m.rows = nil
		return
	}
	m.rows = rows
	if m.selectedIndex() < 0 {
		m.selected = ""
		if len(rows) > 0 {
			m.selected = rows[0].Key
		}
	}
}

func (m consoleModel) selectedIndex() int {
	for i, row := range m.rows {
		if row.Key == m.selected {
			return i
		}
	}
	return -1
}

func (m *consoleModel) moveSelection(delta int) {
	if len(m.rows) == 0 {
		return
	}
	i := max(m.selectedIndex(), 0) + delta
	i = min(max(i, 0), len(m.rows)-1)
	m.selected = m.rows[i].Key
}

func (m consoleModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.focus {
	case focusFilter:
		return m.handleFilterKey(msg)
	case focusInput:
		return m.handleInputKey(msg)
	}

	active := m.deps.Controls.View().Mode == console.ControlsActive
	switch msg.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "s":
		if !active && m.deps.Controls.RequestStart() {
			m.status = ""
			return m, m.startCmd()
		}
	case "d":
		if active {
			return m, m.stopCmd()
		}
	case "i", "tab":
		if active {
			m.focus = focusInput
			return m, m.input.Focus()
		}
	case "/":
		m.focus = focusFilter
		return m, m.filter.Focus()
	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		m.moveSelection(1)
	case "home", "g":
		m.moveSelection(-len(m.rows))
	case "end", "G":
		m.moveSelection(len(m.rows))
	case "enter", " ":
		if m.selected != "" {
			m.deps.EventLog.Toggle(m.selected)
			m.refreshRows()
		}
	case "c":
		m.deps.EventLog.CollapseAll()
		m.refreshRows()
	}
	return m, nil
}

func (m consoleModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		return m, m.submitCmd(m.input.Value())
	case tea.KeyEsc, tea.KeyTab:
		m.focus = focusLog
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m consoleModel) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if err := m.deps.EventLog.SetFilter(m.filter.Value()); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = ""
		m.focus = focusLog
		m.filter.Blur()
		m.refreshRows()
		return m, nil
	case tea.KeyEsc:
		m.filter.SetValue(m.deps.EventLog.Filter())
		m.focus = focusLog
		m.filter.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

// View renders the UI.
func (m consoleModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	frame := cli.Frame{
		Styles: m.styles,
		Title:  m.deps.Title,
		Status: m.statusLine(),
		Sections: []cli.Section{
			{Label: "Events", Lines: m.eventLines(m.eventPaneHeight())},
			{Label: "Tool", Lines: m.toolLines(), Height: toolPaneHeight},
			{Label: "Session", Lines: m.controlLines(), Height: controlsPaneHeight},
			{Label: "Diagnostics", Lines: m.logs, Height: diagnosticsPaneHeight, Tail: true},
		},
		Help: m.helpLine(),
	}
	return frame.Render(m.width, m.height)
}

// eventPaneHeight mirrors the height cli.Frame gives the event log.
func (m consoleModel) eventPaneHeight() int {
	const sections = 4
	return max(m.height-4-sections-toolPaneHeight-controlsPaneHeight-diagnosticsPaneHeight, 2)
}

func (m consoleModel) statusLine() string {
	parts := []string{m.snap.State.String()}
	if !m.activeSince.IsZero() {
		parts = append(parts, cli.FormatDuration(m.now().Sub(m.activeSince)))
	}
	events := fmt.Sprintf("%d events", len(m.snap.Events))
	if st := m.deps.Store; st != nil && st.Capacity() > 0 {
		events = fmt.Sprintf("%d/%d events", len(m.snap.Events), st.Capacity())
		if n := st.Evicted(); n > 0 {
			events += fmt.Sprintf(" (%d evicted)", n)
		}
	}
	parts = append(parts, events)
	if f := m.deps.EventLog.Filter(); f != "" {
		parts = append(parts, "filter "+f)
	}
	if m.deps.Archive != nil {
		if run := m.deps.Archive.Current(); run != "" {
			parts = append(parts, "run "+run)
		}
	}
	return strings.Join(parts, " · ")
}

// eventLines renders the event log, scrolled so the selected row is visible.
func (m consoleModel) eventLines(height int) []string {
	if len(m.snap.Events) == 0 {
		return []string{m.styles.Help.Render(console.AwaitingEvents)}
	}

	var lines []string
	selectedLine := 0
	for _, row := range m.rows {
		marker := "▸"
		if row.Expanded {
			marker = "▾"
		}
		label := m.styles.Server.Render(row.Label())
		if row.Origin == rt.OriginClient {
			label = m.styles.Client.Render(row.Label())
		}
		line := fmt.Sprintf("%s %s %s %s", marker, label, row.Type, m.styles.Help.Render(row.Time))
		if row.Key == m.selected {
			selectedLine = len(lines)
			if m.focus == focusLog {
				line = fmt.Sprintf("%s %s %s %s", m.styles.Selected.Render(marker), label, row.Type, m.styles.Help.Render(row.Time))
			}
		}
		lines = append(lines, line)
		if row.Expanded {
			for bodyLine := range strings.SplitSeq(row.Body, "\n") {
				lines = append(lines, "    "+bodyLine)
			}
		}
	}

	if len(lines) > height {
		start := min(max(selectedLine-height/3, 0), len(lines)-height)
		lines = lines[start : start+height]
	}
	return lines
}

func (m consoleModel) toolLines() []string {
	v := m.deps.Tools.View()
	if v.Invocation == nil {
		return []string{m.styles.Help.Render(v.Placeholder)}
	}
	inv := v.Invocation
	lines := []string{m.styles.Label.Render("Theme: " + inv.Theme)}

	var swatches []string
	for _, c := range inv.Colors {
		swatches = append(swatches, cli.Swatch(c, 6)+" "+c)
	}
	lines = append(lines, strings.Join(swatches, "  "))
	lines = append(lines, strings.Split(inv.Payload(), "\n")...)
	return lines
}

func (m consoleModel) controlLines() []string {
	v := m.deps.Controls.View()
	var lines []string
	if v.Mode == console.ControlsActive {
		lines = []string{
			m.input.View(),
			m.styles.Help.Render("[enter] " + console.LabelSend + "   [d] " + console.LabelDisconnect),
		}
	} else {
		lines = []string{"[s] " + v.StartLabel}
	}
	if m.focus == focusFilter {
		lines[0] = m.filter.View()
	}
	if v.Mode == console.ControlsActive {
		if m.status != "" {
			lines[1] = m.styles.Error.Render(m.status)
		}
		return lines
	}

	switch {
	case v.Err != nil:
		lines = append(lines, m.styles.Error.Render(v.Err.Error()))
	case m.status != "":
		lines = append(lines, m.styles.Error.Render(m.status))
	}
	return lines
}

func (m consoleModel) helpLine() string {
	switch m.focus {
	case focusInput:
		return "enter=send  esc/tab=event log  ctrl+c=quit"
	case focusFilter:
		return "enter=apply filter  esc=cancel"
	}
	if m.deps.Controls.View().Mode == console.ControlsActive {
		return "↑/↓=select  enter=expand  c=collapse all  /=filter  i=type  d=disconnect  q=quit"
	}
	return "s=start  ↑/↓=select  enter=expand  /=filter  q=quit"
}
