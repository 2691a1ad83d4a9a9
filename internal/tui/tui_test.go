// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonepipe/internal/analysis"
	"tonepipe/internal/audio"
	"tonepipe/internal/pipeline"
)

type fakeSource struct {
	snap   Snapshot
	resets int
}

func (f *fakeSource) Snapshot() Snapshot { return f.snap }

func (f *fakeSource) ResetOverrun() {
	f.resets++
	f.snap.Overrun = false
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMonitorRefreshesOnTick(t *testing.T) {
	src := &fakeSource{snap: Snapshot{Mode: "analysis", State: "idle"}}
	m := NewMonitorModel("tonepipe", src, nil)

	src.snap = Snapshot{Mode: "analysis", State: "processing", Frames: 1234, Gated: 7, Symbols: 3}
	next, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd, "the ticker re-arms")

	view := next.View()
	assert.Contains(t, view, "processing")
	assert.Contains(t, view, "1234")
	assert.Contains(t, view, "ok")
	assert.NotContains(t, view, "OVERRUN")
}

func TestMonitorResetOverrun(t *testing.T) {
	src := &fakeSource{snap: Snapshot{Mode: "analysis", Overrun: true, Overruns: 2}}
	m := NewMonitorModel("tonepipe", src, nil)
	assert.Contains(t, m.View(), "OVERRUN")

	next, _ := m.Update(runes("r"))
	assert.Equal(t, 1, src.resets)
	assert.NotContains(t, next.View(), "OVERRUN")
}

func TestMonitorQuit(t *testing.T) {
	m := NewMonitorModel("tonepipe", &fakeSource{}, nil)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestMonitorHistory(t *testing.T) {
	feed := NewFeed(4)
	m := NewMonitorModel("tonepipe", &fakeSource{snap: Snapshot{Mode: "analysis"}}, feed)
	assert.Contains(t, m.View(), "History")

	var model tea.Model = m
	for _, msg := range []SymbolMsg{{'1', "mono"}, {'9', "right"}} {
		var cmd tea.Cmd
		model, cmd = model.Update(msg)
		assert.NotNil(t, cmd, "the listener re-arms after each press")
	}
	assert.Contains(t, model.View(), "1 9/r")

	model, _ = model.Update(runes("c"))
	assert.NotContains(t, model.View(), "9/r")
}

func TestMonitorHistoryIsBounded(t *testing.T) {
	var model tea.Model = NewMonitorModel("tonepipe", &fakeSource{}, nil)
	for i := 0; i < historySize+5; i++ {
		model, _ = model.Update(SymbolMsg{Symbol: '5', Channel: "mono"})
	}
	assert.Len(t, model.(MonitorModel).history, historySize)
}

func TestMonitorSynthesisView(t *testing.T) {
	src := &fakeSource{snap: Snapshot{Mode: "synthesis", State: "running", Frames: 48000, Skipped: 12}}
	view := NewMonitorModel("tonepipe", src, nil).View()
	assert.Contains(t, view, "Samples")
	assert.Contains(t, view, "12")
	assert.NotContains(t, view, "History")
}

func TestFeedForwardsPressesOnly(t *testing.T) {
	feed := NewFeed(1)

	feed.Observe(&pipeline.FrameResult{Symbol: '4', Held: '4'})
	assert.Len(t, feed.ch, 0)

	feed.Observe(&pipeline.FrameResult{Channel: pipeline.ChannelLeft, Pressed: '4'})
	feed.Observe(&pipeline.FrameResult{Pressed: '7'}) // Buffer full, dropped.
	require.Len(t, feed.ch, 1)

	got := <-feed.ch
	assert.Equal(t, SymbolMsg{Symbol: analysis.Symbol('4'), Channel: "left"}, got)
}

var testDevices = []audio.Device{
	{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 16000},
}

func readyPicker(t *testing.T) tea.Model {
	t.Helper()
	m := NewDeviceListModel(func() ([]audio.Device, error) { return testDevices, nil })
	msg := m.Init()()
	require.IsType(t, devicesMsg{}, msg)

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	model, _ = model.Update(msg)
	return model
}

func TestDevicePickerSelection(t *testing.T) {
	model := readyPicker(t)
	view := model.View()
	assert.Contains(t, view, "Built-in Microphone")
	assert.Contains(t, view, "Not usable for analysis")

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, model.View(), "Configure Device: USB Interface")

	// Default rate is preselected; move one step up to 8 kHz.
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	sel := model.(DeviceListModel).Selection()
	require.NotNil(t, sel)
	assert.Equal(t, 1, sel.Device.ID)
	assert.Equal(t, 8000.0, sel.SampleRate)
	assert.Equal(t, "--input-device 1 --output-device 1 --sample-rate 8000", sel.Flags())
}

func TestDevicePickerBackAndQuit(t *testing.T) {
	model := readyPicker(t)
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Contains(t, model.View(), "Audio Device List")

	model, cmd := model.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Nil(t, model.(DeviceListModel).Selection())
}

func TestDevicePickerFetchError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host API") })

	var model tea.Model = m
	model, _ = model.Update(m.Init()())
	assert.Contains(t, model.View(), "no host API")

	_, cmd := model.Update(runes("x"))
	require.NotNil(t, cmd, "any key exits after an error")
}
