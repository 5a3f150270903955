package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/CK6170/handcontroller-go/controller"
	"github.com/CK6170/handcontroller-go/internal/logging"
	"github.com/CK6170/handcontroller-go/models"
	"github.com/CK6170/handcontroller-go/protocol"
	serialpkg "github.com/CK6170/handcontroller-go/serial"
	"github.com/CK6170/handcontroller-go/ui"
)

type screen int

const (
	screenConnect screen = iota
	screenMain
)

const maxLogLines = 1000

const calibrationNotice = "Start throttle calibration? Move the throttle through its full range " +
	"for 6 seconds. Throttle output is held at neutral meanwhile. The stored calibration is replaced."

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type keyMap struct {
	GetConfig   key.Binding
	GetPID      key.Binding
	GetCal      key.Binding
	Calibrate   key.Binding
	Invert      key.Binding
	Level       key.Binding
	Odometer    key.Binding
	SavePID     key.Binding
	ResetPID    key.Binding
	SetValue    key.Binding
	DeviceHelp  key.Binding
	Copy        key.Binding
	Clear       key.Binding
	Confirm     key.Binding
	Deny        key.Binding
	Disconnect  key.Binding
	Refresh     key.Binding
	Connect     key.Binding
	ToggleHelp  key.Binding
	Quit        key.Binding
	Cancel      key.Binding
	setCommands []string
}

func newKeyMap() keyMap {
	return keyMap{
		GetConfig:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "get config")),
		GetPID:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "get PID")),
		GetCal:     key.NewBinding(key.WithKeys("k"), key.WithHelp("k", "get calibration")),
		Calibrate:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "calibrate throttle")),
		Invert:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "invert throttle")),
		Level:      key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "level assistant")),
		Odometer:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "reset odometer")),
		SavePID:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save PID")),
		ResetPID:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset PID")),
		SetValue:   key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8"), key.WithHelp("1-8", "set value")),
		DeviceHelp: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "device help")),
		Copy:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy log")),
		Clear:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear log")),
		Confirm:    key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "yes")),
		Deny:       key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		Disconnect: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh ports")),
		Connect:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
		ToggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		setCommands: []string{
			protocol.CommandSetMotorPulley,
			protocol.CommandSetWheelPulley,
			protocol.CommandSetWheelSize,
			protocol.CommandSetMotorPoles,
			protocol.CommandSetPIDKp,
			protocol.CommandSetPIDKi,
			protocol.CommandSetPIDKd,
			protocol.CommandSetPIDOutputMax,
		},
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.GetConfig, k.Calibrate, k.SetValue, k.Copy, k.ToggleHelp, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.GetConfig, k.GetPID, k.GetCal, k.DeviceHelp},
		{k.Invert, k.Level, k.Odometer, k.Calibrate},
		{k.SetValue, k.SavePID, k.ResetPID},
		{k.Copy, k.Clear, k.Disconnect, k.ToggleHelp, k.Quit},
	}
}

// setCommand maps a digit key to the set_* command it edits.
func (k keyMap) setCommand(s string) (string, bool) {
	if len(s) != 1 || s[0] < '1' || s[0] > '8' {
		return "", false
	}
	return k.setCommands[s[0]-'1'], true
}

type portItem struct{ info serialpkg.PortInfo }

func (i portItem) Title() string { return i.info.Name }
func (i portItem) Description() string {
	if !i.info.IsUSB {
		return "serial"
	}
	return strings.TrimPrefix(i.info.String(), i.info.Name+" ")
}
func (i portItem) FilterValue() string { return i.info.Name }

type logLine struct {
	text string
	kind protocol.Kind
}

type model struct {
	scr  screen
	eng  *engine
	keys keyMap

	ports    list.Model
	log      viewport.Model
	input    textinput.Model
	help     help.Model
	spinner  spinner.Model
	pending  string
	// pendingConfirm holds calibrate_throttle until the user agrees; the
	// firmware erases the stored calibration when it starts.
	pendingConfirm bool
	lines    []logLine
	width    int
	height   int
	infoLine string
	lastErr  error

	cfg     models.HandConfig
	changed protocol.Changes
	cal     protocol.CalibrationState

	// connectID guards against results of superseded connect attempts.
	connectID int
}

type errMsg struct{ err error }
type infoMsg struct{ s string }
type portsMsg struct{ ports []serialpkg.PortInfo }
type connectedMsg struct {
	id   int
	port string
}
type sentMsg struct{ line string }
type eventMsg struct{ ev controller.Event }
type eventsClosedMsg struct{}
type lostMsg struct{ err error }

func newModel(e *engine) model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	ports := list.New([]list.Item{}, delegate, 40, 12)
	ports.Title = "Serial ports"
	ports.SetShowStatusBar(false)
	ports.SetShowHelp(false)
	ports.SetFilteringEnabled(false)

	in := textinput.New()
	in.CharLimit = 16
	in.Width = 16

	s := spinner.New()
	s.Spinner = spinner.Dot

	return model{
		scr:     screenConnect,
		eng:     e,
		keys:    newKeyMap(),
		ports:   ports,
		log:     viewport.New(80, 10),
		input:   in,
		help:    help.New(),
		spinner: s,
		cfg:     e.proc.Config(),
		width:   80,
		height:  24,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForEvent(m.eng), waitForLost(m.eng), m.spinner.Tick, listPortsCmd()}
	if m.eng.params.SERIAL.PORT != "" {
		cmds = append(cmds, connectCmd(m.eng, m.connectID, ""))
	}
	return tea.Batch(cmds...)
}

func waitForEvent(e *engine) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-e.proc.Events()
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func waitForLost(e *engine) tea.Cmd {
	return func() tea.Msg {
		return lostMsg{err: <-e.Lost()}
	}
}

func listPortsCmd() tea.Cmd {
	return func() tea.Msg {
		ports, err := serialpkg.ListPorts(context.Background())
		if err != nil {
			return errMsg{err: err}
		}
		return portsMsg{ports: ports}
	}
}

func connectCmd(e *engine, id int, port string) tea.Cmd {
	return func() tea.Msg {
		if err := e.connect(port); err != nil {
			return errMsg{err: err}
		}
		return connectedMsg{id: id, port: e.port()}
	}
}

func dispatchCmd(fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		line, err := fn()
		if err != nil {
			return errMsg{err: err}
		}
		return sentMsg{line: line}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.pendingConfirm {
			return m.updateConfirm(msg)
		}
		if m.pending != "" {
			return m.updatePrompt(msg)
		}
		if m.scr == screenConnect {
			return m.updateConnectKey(msg)
		}
		return m.updateMainKey(msg)

	case errMsg:
		m.lastErr = msg.err
		return m, nil

	case infoMsg:
		m.infoLine = msg.s
		return m, nil

	case portsMsg:
		items := make([]list.Item, len(msg.ports))
		for i, p := range msg.ports {
			items[i] = portItem{info: p}
		}
		m.infoLine = fmt.Sprintf("%d port(s) found", len(items))
		return m, m.ports.SetItems(items)

	case connectedMsg:
		if msg.id != m.connectID {
			return m, nil
		}
		m.scr = screenMain
		m.lastErr = nil
		m.infoLine = "Connected on " + msg.port
		m.layout()
		return m, dispatchCmd(m.eng.disp.GetConfig)

	case sentMsg:
		m.appendLog(ui.SentLine(msg.line), protocol.KindSent)
		return m, nil

	case eventMsg:
		m.applyEvent(msg.ev)
		return m, waitForEvent(m.eng)

	case eventsClosedMsg:
		return m, nil

	case lostMsg:
		m.lastErr = errors.Wrap(msg.err, "connection lost")
		_ = m.eng.disconnect()
		m.scr = screenConnect
		return m, tea.Batch(waitForLost(m.eng), listPortsCmd())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.scr == screenMain {
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) applyEvent(ev controller.Event) {
	m.cfg = ev.Config
	m.cal = ev.Calibration
	if len(ev.Changes) > 0 {
		m.changed = ev.Changes
	}
	if ev.Line != "" {
		m.appendLog(ev.Line, ev.Kind)
	} else if ev.CalibrationChanged && ev.Calibration.Phase == protocol.PhaseFailed {
		m.appendLog(ui.CalibrationSummary(ev.Calibration), protocol.KindError)
	}
}

func (m *model) appendLog(text string, kind protocol.Kind) {
	m.lines = append(m.lines, logLine{text: text, kind: kind})
	if n := len(m.lines) - maxLogLines; n > 0 {
		m.lines = append(m.lines[:0:0], m.lines[n:]...)
	}
	atBottom := m.log.AtBottom()
	m.log.SetContent(m.renderLog())
	if atBottom {
		m.log.GotoBottom()
	}
}

func (m model) renderLog() string {
	width := m.log.Width
	rows := make([]string, len(m.lines))
	for i, l := range m.lines {
		row := ui.RenderLine(l.text, l.kind)
		if width > 0 {
			row = ansi.Truncate(row, width, "…")
		}
		rows[i] = row
	}
	return strings.Join(rows, "\n")
}

// plainLog is the log as copied to the clipboard.
func (m model) plainLog() string {
	rows := make([]string, len(m.lines))
	for i, l := range m.lines {
		rows[i] = ui.FormatLine(l.text, l.kind)
	}
	return strings.Join(rows, "\n")
}

// layout sizes the widgets for the current window.
func (m *model) layout() {
	m.help.Width = m.width
	m.ports.SetSize(m.width, max(m.height-6, 5))
	// title, status line, config panel with border, prompt and help.
	reserved := 4 + len(models.Fields) + 2 + 2
	m.log.Width = m.width
	m.log.Height = max(m.height-reserved, 3)
	m.log.SetContent(m.renderLog())
	m.log.GotoBottom()
}

func (m model) updateConnectKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(k, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(k, m.keys.Refresh):
		m.infoLine = "Scanning ports..."
		return m, listPortsCmd()
	case key.Matches(k, m.keys.Connect):
		item, ok := m.ports.SelectedItem().(portItem)
		if !ok {
			return m, nil
		}
		m.connectID++
		m.infoLine = "Connecting to " + item.info.Name + "..."
		return m, connectCmd(m.eng, m.connectID, item.info.Name)
	}
	var cmd tea.Cmd
	m.ports, cmd = m.ports.Update(k)
	return m, cmd
}

func (m model) updateMainKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.eng.disp
	switch {
	case key.Matches(k, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(k, m.keys.GetConfig):
		return m, dispatchCmd(d.GetConfig)
	case key.Matches(k, m.keys.GetPID):
		return m, dispatchCmd(d.GetPIDParams)
	case key.Matches(k, m.keys.GetCal):
		return m, dispatchCmd(d.GetCalibration)
	case key.Matches(k, m.keys.Calibrate):
		m.pendingConfirm = true
		return m, nil
	case key.Matches(k, m.keys.Invert):
		return m, dispatchCmd(d.InvertThrottle)
	case key.Matches(k, m.keys.Level):
		return m, dispatchCmd(d.LevelAssistant)
	case key.Matches(k, m.keys.Odometer):
		return m, dispatchCmd(d.ResetOdometer)
	case key.Matches(k, m.keys.SavePID):
		return m, dispatchCmd(d.SavePIDNVS)
	case key.Matches(k, m.keys.ResetPID):
		return m, dispatchCmd(d.ResetPIDDefaults)
	case key.Matches(k, m.keys.DeviceHelp):
		return m, dispatchCmd(d.Help)
	case key.Matches(k, m.keys.SetValue):
		name, _ := m.keys.setCommand(k.String())
		spec, _ := protocol.Lookup(name)
		m.pending = name
		m.input.SetValue("")
		m.input.Placeholder = fmt.Sprintf("%g-%g", spec.Min, spec.Max)
		return m, m.input.Focus()
	case key.Matches(k, m.keys.Copy):
		if err := clipboard.WriteAll(m.plainLog()); err != nil {
			m.lastErr = errors.Wrap(err, "copy log")
			return m, nil
		}
		m.infoLine = fmt.Sprintf("Copied %d log lines", len(m.lines))
		return m, nil
	case key.Matches(k, m.keys.Clear):
		m.lines = nil
		m.log.SetContent("")
		m.log.GotoTop()
		return m, nil
	case key.Matches(k, m.keys.Disconnect):
		if err := m.eng.disconnect(); err != nil {
			m.lastErr = err
		}
		m.infoLine = "Disconnected"
		m.scr = screenConnect
		return m, listPortsCmd()
	case key.Matches(k, m.keys.ToggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	var cmd tea.Cmd
	m.log, cmd = m.log.Update(k)
	return m, cmd
}

func (m model) updateConfirm(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(k, m.keys.Confirm):
		m.pendingConfirm = false
		return m, dispatchCmd(m.eng.disp.CalibrateThrottle)
	case key.Matches(k, m.keys.Deny):
		m.pendingConfirm = false
		m.infoLine = "Calibration cancelled"
		return m, nil
	}
	return m, nil
}

func (m model) updatePrompt(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(k, m.keys.Cancel):
		m.pending = ""
		m.input.Blur()
		return m, nil
	case key.Matches(k, m.keys.Connect):
		name, value := m.pending, m.input.Value()
		m.pending = ""
		m.input.Blur()
		d := m.eng.disp
		return m, dispatchCmd(func() (string, error) { return d.Dispatch(name, value) })
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Hand Controller") + "\n")
	switch {
	case m.lastErr != nil:
		b.WriteString(errStyle.Render("Error: "+m.lastErr.Error()) + "\n")
	case m.infoLine != "":
		b.WriteString(okStyle.Render(m.infoLine) + "\n")
	default:
		b.WriteString("\n")
	}
	if m.scr == screenConnect {
		b.WriteString(m.ports.View() + "\n")
		b.WriteString(helpStyle.Render("enter connect - r refresh - q quit") + "\n")
		return b.String()
	}

	status := ui.CalibrationSummary(m.cal)
	if m.cal.Phase == protocol.PhaseCalibrating {
		status = m.spinner.View() + " " + status
	}
	side := lipgloss.JoinVertical(lipgloss.Left,
		"Port: "+m.eng.port(),
		"",
		status,
	)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(ui.ConfigTable(m.cfg, m.changed)),
		panelStyle.Render(side),
	) + "\n")
	b.WriteString(m.log.View() + "\n")
	switch {
	case m.pendingConfirm:
		b.WriteString(calibrationNotice + helpStyle.Render("  y start - n cancel") + "\n")
	case m.pending != "":
		b.WriteString(m.pending + " " + m.input.View() + helpStyle.Render("  enter send - esc cancel") + "\n")
	default:
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func runTUI(c *cli.Context) error {
	p, err := loadSettings(c)
	if err != nil {
		return err
	}
	if p.LOGFILE == "" {
		p.LOGFILE = defaultLogFile()
	}
	closeLog := logging.Setup(logging.Options{Debug: p.DEBUG, File: p.LOGFILE})
	defer closeLog()

	e := newEngine(p)
	defer e.close()
	prog := tea.NewProgram(newModel(e), tea.WithAltScreen(), tea.WithContext(c.Context))
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
