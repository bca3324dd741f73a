package tui

import (
	"fmt"
	"math"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"overtone/alloc"
	"overtone/engine"
	"overtone/midi"
	"overtone/theme"
	"overtone/tuning"
	"overtone/widgets"
)

type Model struct {
	Engine    *engine.Engine
	DeviceMgr *midi.DeviceManager
	Theme     *theme.Theme
	quitting  bool
	cursor    int    // index into the output list
	message   string // last error, cleared by the next key
	showHelp  bool
}

var helpSections = []widgets.KeySection{
	{Title: "Outputs", Keys: []widgets.KeyBinding{
		{Key: "j/k", Desc: "move between ports"},
		{Key: "space", Desc: "select or deselect port"},
		{Key: "+/-", Desc: "harmonic bend range"},
		{Key: "</>", Desc: "fundamental bend range"},
	}},
	{Title: "Playing", Keys: []widgets.KeyBinding{
		{Key: "m", Desc: "cycle receive mode"},
		{Key: ",/.", Desc: "snap tolerance"},
		{Key: "x", Desc: "panic"},
	}},
	{Title: "Piper", Keys: []widgets.KeyBinding{
		{Key: "[/]", Desc: "buffer length"},
		{Key: "r", Desc: "forget steps"},
	}},
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(eng *engine.Engine, deviceMgr *midi.DeviceManager, th *theme.Theme) Model {
	return Model{
		Engine:    eng,
		DeviceMgr: deviceMgr,
		Theme:     th,
	}
}

func ListenForUpdates(eng *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		<-eng.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Engine),
		ListenForDevices(m.DeviceMgr),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.message = ""
		eng := m.Engine
		st := eng.Status()

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(st.Outputs)-1 {
				m.cursor++
			}

		case " ", "enter":
			if port, ok := m.cursorPort(st); ok {
				m.do(func() error { return eng.TogglePort(port) })
			}

		case "x", "!":
			m.do(func() error { eng.Panic(); return nil })

		case "m":
			m.do(func() error { eng.CycleMode(); return nil })

		case "+", "=", "-", "_", ">", "<":
			port, ok := m.cursorPort(st)
			if !ok || !st.Selected(port) {
				m.message = "select the port first"
				break
			}
			class, delta := rangeKey(msg.String())
			ps := portStatus(st, port)
			m.do(func() error { return eng.SetBendRange(port, class, ps.BendRange[class]+delta) })

		case ",", ".":
			tol := st.Tolerance - 0.05
			if msg.String() == "." {
				tol = st.Tolerance + 0.05
			}
			m.do(func() error { eng.SetTolerance(math.Round(tol*100) / 100); return nil })

		case "[", "]":
			n := st.Piper.Length - 1
			if msg.String() == "]" {
				n = st.Piper.Length + 1
			}
			m.do(func() error { eng.SetPiperLength(n); return nil })

		case "r":
			m.do(func() error { eng.ResetPiper(); return nil })

		case "?":
			m.showHelp = !m.showHelp
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Engine)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.Engine.AddInput(event.Controller)
		case midi.DeviceDisconnected:
			m.Engine.RemoveInput(event.ID)
		case midi.DevicePortsChanged:
			m.Engine.Do(func() { m.Engine.SetOutputs(event.Outputs) })
			if m.cursor >= len(event.Outputs) {
				m.cursor = max(0, len(event.Outputs)-1)
			}
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

// do runs fn on the engine goroutine and keeps its error for display
func (m *Model) do(fn func() error) {
	var err error
	if doErr := m.Engine.Do(func() { err = fn() }); doErr != nil {
		err = doErr
	}
	if err != nil {
		m.message = err.Error()
	}
}

func (m Model) cursorPort(st engine.Status) (string, bool) {
	if m.cursor < 0 || m.cursor >= len(st.Outputs) {
		return "", false
	}
	return st.Outputs[m.cursor], true
}

// rangeKey maps +/- to the harmonic class and >/< to the fundamental class
func rangeKey(key string) (tuning.Class, int) {
	switch key {
	case ">":
		return tuning.Fundamental, 1
	case "<":
		return tuning.Fundamental, -1
	case "+", "=":
		return tuning.Harmonic, 1
	default:
		return tuning.Harmonic, -1
	}
}

func portStatus(st engine.Status, name string) alloc.PortStatus {
	for _, p := range st.Ports {
		if p.Name == name {
			return p
		}
	}
	return alloc.PortStatus{Name: name}
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// noteName formats a fractional note number as e.g. "E2" or "G4+14c"
func noteName(note float64) string {
	n := int(math.Round(note))
	cents := int(math.Round((note - float64(n)) * 100))
	name := fmt.Sprintf("%s%d", noteNames[((n%12)+12)%12], n/12-1)
	if cents != 0 {
		name += fmt.Sprintf("%+dc", cents)
	}
	return name
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	st := m.Engine.Status()
	sym := m.Theme.Symbols

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	fundStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())
	harmStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	fund := "no fundamental"
	if st.HasFundamental {
		fund = fmt.Sprintf("fundamental %d %s %.2fHz", st.Fundamental, noteName(tuning.HzToNote(st.FundamentalHz)), st.FundamentalHz)
		if st.HeldFundamentals > 1 {
			fund += fmt.Sprintf(" (+%d held)", st.HeldFundamentals-1)
		}
	}
	header := headerStyle.Render(fmt.Sprintf("overtone  %s  tol %.2f  %s", st.Mode, st.Tolerance, fund))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	inputs := "none"
	if len(st.Inputs) > 0 {
		inputs = strings.Join(st.Inputs, ", ")
	}
	out.WriteString(dimStyle.Render("inputs  " + inputs))
	out.WriteString("\n\n")

	// Output ports with channel grids
	out.WriteString(fgStyle.Render("outputs"))
	out.WriteString("\n")
	if len(st.Outputs) == 0 {
		out.WriteString(dimStyle.Render("  none found"))
		out.WriteString("\n")
	}
	for i, name := range st.Outputs {
		mark := sym.Unselected
		if st.Selected(name) {
			mark = sym.Selected
		}
		line := fmt.Sprintf("%c %s", mark, name)
		if i == m.cursor {
			out.WriteString(cursorStyle.Render("> " + line))
		} else {
			out.WriteString(fgStyle.Render("  " + line))
		}
		out.WriteString("\n")

		if !st.Selected(name) {
			continue
		}
		ps := portStatus(st, name)
		out.WriteString("    ")
		for ch := uint8(0); ch < midi.NumChannels; ch++ {
			out.WriteString(m.channelCell(ps, ch, fundStyle, harmStyle, dimStyle))
		}
		info := fmt.Sprintf("  range F%d H%d  delay F%v H%v",
			ps.BendRange[tuning.Fundamental], ps.BendRange[tuning.Harmonic],
			ps.Delay[tuning.Fundamental], ps.Delay[tuning.Harmonic])
		if ps.Pending > 0 {
			info += fmt.Sprintf("  pending %d", ps.Pending)
		}
		out.WriteString(dimStyle.Render(info))
		out.WriteString("\n")
	}
	out.WriteString("\n")

	// Sounding harmonics
	var harms []string
	for _, v := range st.Harmonics {
		harms = append(harms, fmt.Sprintf("%d:%s", v.ID, noteName(tuning.HzToNote(v.Hz))))
	}
	harmLine := "harmonics  " + strings.Join(harms, " ")
	if st.HasCurrent {
		harmLine += fmt.Sprintf("  last %d", st.Current)
	}
	out.WriteString(harmStyle.Render(harmLine))
	out.WriteString("\n")

	out.WriteString(m.piperView(st.Piper, dimStyle, cursorStyle))
	out.WriteString("\n")

	if len(st.Keys) > 0 {
		out.WriteString("\n")
		out.WriteString(m.keyStrip(st.Keys))
		out.WriteString("\n")
	}

	if st.AnyKey {
		state := "up"
		if st.LastDown {
			state = "down"
		}
		out.WriteString(dimStyle.Render(fmt.Sprintf("key %d %s", st.LastKey, state)))
		out.WriteString("\n")
	}

	if m.message != "" {
		out.WriteString(warnStyle.Render(m.message))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	if m.showHelp {
		out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(helpSections)))
		out.WriteString("\n\n")
		out.WriteString(m.legend())
		out.WriteString("\n")
	}
	out.WriteString(dimStyle.Render("?:help  q:quit"))

	return out.String()
}

// legend explains the channel grid and key strip symbols
func (m Model) legend() string {
	sym := m.Theme.Symbols
	lines := []string{
		widgets.RenderLegendItem(m.Theme.Success(), sym.ChannelHeld, "fundamental", "channel sounding the fundamental"),
		widgets.RenderLegendItem(m.Theme.Active(), sym.ChannelHeld, "harmonic", "channel sounding a harmonic"),
		widgets.RenderLegendItem(m.Theme.Muted(), sym.ChannelOff, "unused", "channel in neither class"),
		widgets.RenderLegendItem(m.Theme.Cursor(), 'P', "piper", "key replaying the next step"),
	}
	return strings.Join(lines, "\n")
}

// keyStrip draws the key map one octave per line
func (m Model) keyStrip(keys []engine.KeyState) string {
	cells := make([]widgets.KeyCell, 0, len(keys))
	for _, k := range keys {
		c := widgets.KeyCell{Symbol: '·', Color: m.Theme.Muted(), Held: k.Held}
		switch {
		case k.Entry.Fundamental.IsTone():
			c.Symbol, c.Color = 'F', m.Theme.Success()
		case k.Entry.Harmonic.IsPiper():
			c.Symbol, c.Color = 'P', m.Theme.Cursor()
		case k.Entry.Harmonic.IsTone():
			c.Symbol, c.Color = 'h', m.Theme.Active()
		}
		cells = append(cells, c)
	}
	return widgets.RenderKeyStrip(cells, 12)
}

func (m Model) channelCell(ps alloc.PortStatus, ch uint8, fund, harm, dim lipgloss.Style) string {
	sym := m.Theme.Symbols
	for c, style := range []lipgloss.Style{fund, harm} {
		if !slices.Contains(ps.Channels[c], ch) {
			continue
		}
		held := slices.ContainsFunc(ps.Held[c], func(n alloc.HeldNote) bool { return n.Channel == ch })
		if held {
			return style.Render(string(sym.ChannelHeld))
		}
		return style.Render(string(sym.ChannelFree))
	}
	return dim.Render(string(sym.ChannelOff))
}

func (m Model) piperView(p engine.PiperStatus, dim, cursor lipgloss.Style) string {
	sym := m.Theme.Symbols
	var cells strings.Builder
	for i := range p.Steps {
		switch {
		case i == p.Cursor && p.Playing:
			cells.WriteString(cursor.Render(string(sym.StepActive)))
		case i == p.Cursor:
			cells.WriteString(cursor.Render(string(sym.StepCursor)))
		default:
			cells.WriteString(dim.Render(string(sym.Step)))
		}
	}
	line := fmt.Sprintf("piper %d/%d  ", len(p.Steps), p.Length)
	if p.Pending > 0 {
		return dim.Render(line) + cells.String() + dim.Render(fmt.Sprintf("  +%d", p.Pending))
	}
	return dim.Render(line) + cells.String()
}
