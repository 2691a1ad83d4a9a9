// SPDX-License-Identifier: MIT
// Package tui renders the interactive terminal views: the live pipeline
// monitor and the device picker.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tonepipe/internal/analysis"
	"tonepipe/internal/audio"
	"tonepipe/internal/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#C0392B")).
			Padding(0, 1).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0")).
			Width(12)
)

// refreshInterval is how often counters are re-read.
const refreshInterval = 100 * time.Millisecond

// historySize is the number of key presses kept on screen.
const historySize = 32

// Snapshot is what the monitor shows about the running pipeline.
type Snapshot struct {
	Mode     string
	State    string
	Frames   uint64 // Frames processed or samples synthesized
	Gated    uint64
	Symbols  uint64
	Skipped  uint64 // Samples dropped while overrun was set
	Overruns uint64
	Overrun  bool
}

// Source is polled by the monitor. ResetOverrun is bound to a key.
type Source interface {
	Snapshot() Snapshot
	ResetOverrun()
}

type analysisSource struct{ p *pipeline.FrameProcessor }

// AnalysisSource adapts a frame processor.
func AnalysisSource(p *pipeline.FrameProcessor) Source {
	return analysisSource{p}
}

func (s analysisSource) Snapshot() Snapshot {
	st := s.p.Stats()
	return Snapshot{
		Mode:     "analysis",
		State:    s.p.State().String(),
		Frames:   st.Frames,
		Gated:    st.Gated,
		Symbols:  st.Symbols,
		Overruns: st.Overruns,
		Overrun:  st.Overrun,
	}
}

func (s analysisSource) ResetOverrun() { s.p.ResetOverrun() }

type synthesisSource struct {
	s *pipeline.Synthesizer
	e *audio.SynthEngine
}

// SynthesisSource adapts a synthesizer and the engine that flags its
// overruns.
func SynthesisSource(s *pipeline.Synthesizer, e *audio.SynthEngine) Source {
	return synthesisSource{s, e}
}

func (s synthesisSource) Snapshot() Snapshot {
	st := s.s.Stats()
	state := "running"
	if s.e.IsOverrun() {
		state = "muted"
	}
	return Snapshot{
		Mode:     "synthesis",
		State:    state,
		Frames:   st.Samples,
		Skipped:  st.Skipped,
		Overruns: s.e.Overruns(),
		Overrun:  s.e.IsOverrun(),
	}
}

func (s synthesisSource) ResetOverrun() { s.e.ResetOverrun() }

// SymbolMsg carries one key press into the monitor.
type SymbolMsg struct {
	Symbol  analysis.Symbol
	Channel string
}

// Feed is a pipeline observer forwarding key presses to the monitor. It
// never blocks the processing loop: presses arriving while the buffer is
// full are dropped.
type Feed struct {
	ch chan SymbolMsg
}

// NewFeed returns a feed buffering up to size presses.
func NewFeed(size int) *Feed {
	return &Feed{ch: make(chan SymbolMsg, size)}
}

// Observe implements pipeline.Observer.
func (f *Feed) Observe(res *pipeline.FrameResult) {
	if res.Pressed == analysis.NoSymbol {
		return
	}
	select {
	case f.ch <- SymbolMsg{Symbol: res.Pressed, Channel: res.Channel.String()}:
	default:
	}
}

type keyMap struct {
	Quit  key.Binding
	Reset key.Binding
	Clear key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Reset: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset overrun")),
		Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear history")),
	}
}

func (k keyMap) help() string {
	parts := make([]string, 0, 3)
	for _, b := range []key.Binding{k.Reset, k.Clear, k.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

type tickMsg time.Time

// MonitorModel is the Bubble Tea model of the live monitor.
type MonitorModel struct {
	title   string
	source  Source
	feed    *Feed
	keys    keyMap
	snap    Snapshot
	history []SymbolMsg
	started time.Time
	now     time.Time
}

// NewMonitorModel builds a monitor for source. feed may be nil when no key
// presses are expected.
func NewMonitorModel(title string, source Source, feed *Feed) MonitorModel {
	now := time.Now()
	return MonitorModel{
		title:   title,
		source:  source,
		feed:    feed,
		keys:    defaultKeyMap(),
		snap:    source.Snapshot(),
		started: now,
		now:     now,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MonitorModel) waitForSymbol() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	ch := m.feed.ch
	return func() tea.Msg { return <-ch }
}

// Init starts the refresh ticker and the symbol listener.
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(tick(), m.waitForSymbol())
}

// Update handles input and updates the model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.snap = m.source.Snapshot()
		m.now = time.Time(msg)
		return m, tick()

	case SymbolMsg:
		m.history = append(m.history, msg)
		if len(m.history) > historySize {
			m.history = m.history[len(m.history)-historySize:]
		}
		return m, m.waitForSymbol()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reset):
			m.source.ResetOverrun()
			m.snap = m.source.Snapshot()
		case key.Matches(msg, m.keys.Clear):
			m.history = nil
		}
	}
	return m, nil
}

// View renders the UI
func (m MonitorModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label))
		sb.WriteString(infoStyle.Render(value))
		sb.WriteString("\n")
	}

	row("Mode", m.snap.Mode)
	row("State", m.snap.State)
	row("Uptime", m.now.Sub(m.started).Truncate(time.Second).String())
	if m.snap.Mode == "synthesis" {
		row("Samples", fmt.Sprintf("%d", m.snap.Frames))
		row("Skipped", fmt.Sprintf("%d", m.snap.Skipped))
	} else {
		row("Frames", fmt.Sprintf("%d", m.snap.Frames))
		row("Gated", fmt.Sprintf("%d", m.snap.Gated))
		row("Keys", fmt.Sprintf("%d", m.snap.Symbols))
	}
	row("Overruns", fmt.Sprintf("%d", m.snap.Overruns))

	sb.WriteString("\n")
	if m.snap.Overrun {
		sb.WriteString(alertStyle.Render("OVERRUN"))
	} else {
		sb.WriteString(highlightStyle.Render("ok"))
	}
	sb.WriteString("\n\n")

	if m.snap.Mode != "synthesis" {
		sb.WriteString(labelStyle.Render("History"))
		sb.WriteString(highlightStyle.Render(m.historyLine()))
		sb.WriteString("\n\n")
	}

	sb.WriteString(infoStyle.Render(m.keys.help()))
	return sb.String()
}

// historyLine prints presses in order; presses on channels other than mono
// are tagged with the channel initial.
func (m MonitorModel) historyLine() string {
	if len(m.history) == 0 {
		return "-"
	}
	var sb strings.Builder
	for i, h := range m.history {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(h.Symbol.String())
		if h.Channel != "mono" && h.Channel != "" {
			sb.WriteByte('/')
			sb.WriteByte(h.Channel[0])
		}
	}
	return sb.String()
}

// RunMonitor shows the monitor until the user quits or ctx is done.
func RunMonitor(ctx context.Context, title string, source Source, feed *Feed) error {
	p := tea.NewProgram(
		NewMonitorModel(title, source, feed),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
