// SPDX-License-Identifier: MIT
package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonepipe/internal/analysis"
	"tonepipe/internal/config"
	"tonepipe/internal/pipeline"
	"tonepipe/internal/ring"
	"tonepipe/pkg/utils"
)

const (
	testSampleRate = 8000.0
	testFrameSize  = 256
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Audio.FrameSize = testFrameSize
	return cfg
}

// newTestEngine builds an engine around a fresh ring without opening any
// device.
func newTestEngine(t *testing.T) (*Engine, *ring.BufferRing) {
	t.Helper()
	r, err := ring.New(testFrameSize)
	require.NoError(t, err)
	return &Engine{config: testConfig(), ring: r}, r
}

func TestNewEngineRejectsMismatchedRing(t *testing.T) {
	r, err := ring.New(testFrameSize / 2)
	require.NoError(t, err)

	_, err = NewEngine(testConfig(), r)
	assert.ErrorContains(t, err, "frame size")
}

func TestCallbackFillsRingAndSignals(t *testing.T) {
	e, r := newTestEngine(t)
	in := utils.GenerateSineWave(testFrameSize, testSampleRate, 1000)
	out := make([]int16, 2*testFrameSize)

	filling := r.Filling()
	e.processStream(in, out)

	index, ready := r.PeekReady()
	require.True(t, ready)
	assert.Equal(t, filling, index, "the filled slot becomes ready")
	assert.Equal(t, in, r.Slot(index))
	assert.False(t, r.IsOverrun())
}

func TestCallbackPlaysProcessedFrameBack(t *testing.T) {
	e, r := newTestEngine(t)
	out := make([]int16, 2*testFrameSize)

	frames := [][]int16{
		utils.GenerateSineWave(testFrameSize, testSampleRate, 500),
		utils.GenerateSineWave(testFrameSize, testSampleRate, 1000),
		utils.GenerateSineWave(testFrameSize, testSampleRate, 1500),
	}

	for i, in := range frames {
		e.processStream(in, out)
		_, ok := r.TakeReady()
		require.True(t, ok)
		if i == 2 {
			// Frame 0 was ready when frame 1 arrived and is draining now.
			assert.Equal(t, frames[0], out)
		}
	}
	assert.False(t, r.IsOverrun())
}

func TestCallbackLatchesOverrun(t *testing.T) {
	e, r := newTestEngine(t)
	in := make([]int16, 2*testFrameSize)
	out := make([]int16, 2*testFrameSize)

	e.processStream(in, out)
	e.processStream(in, out)

	assert.True(t, r.IsOverrun())
	assert.Equal(t, uint64(1), r.Stats().Overruns)
}

func TestCallbackPadsShortBuffers(t *testing.T) {
	e, r := newTestEngine(t)
	slot := r.Filling()
	for i := range r.Slot(slot) {
		r.Slot(slot)[i] = 99
	}

	in := []int16{1, 2, 3, 4}
	out := make([]int16, 2*testFrameSize+4)
	e.processStream(in, out)

	frame := r.Slot(slot)
	assert.Equal(t, []int16{1, 2, 3, 4}, frame[:4])
	assert.Equal(t, int16(0), frame[len(frame)-1])
	assert.Equal(t, uint64(1), e.shortFrames.Load())
	assert.Equal(t, int16(0), out[len(out)-1])
}

func TestCallbackFeedsProcessor(t *testing.T) {
	e, r := newTestEngine(t)
	p, err := pipeline.NewFrameProcessor(e.config, r)
	require.NoError(t, err)

	var pressed []analysis.Symbol
	p.AddObserver(pipeline.ObserverFunc(func(res *pipeline.FrameResult) {
		if res.Pressed != analysis.NoSymbol {
			pressed = append(pressed, res.Pressed)
		}
	}))

	in := utils.GenerateDualTone(testFrameSize, testSampleRate, 941, 1477, 8000)
	out := make([]int16, 2*testFrameSize)
	for i := 0; i < 3; i++ {
		e.processStream(in, out)
		require.True(t, p.Poll())
	}

	assert.Equal(t, []analysis.Symbol{'#'}, pressed)
	assert.False(t, p.Stats().Overrun)
}

func TestCallbackZeroAllocs(t *testing.T) {
	e, r := newTestEngine(t)
	in := utils.GenerateSineWave(testFrameSize, testSampleRate, 1000)
	out := make([]int16, 2*testFrameSize)

	allocs := testing.AllocsPerRun(100, func() {
		e.processStream(in, out)
		_, _ = r.TakeReady()
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in stream callback, got %.1f", allocs)
	}
}

func TestStopWithoutStart(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.NoError(t, e.Stop())
	assert.NoError(t, e.Close())
}

func BenchmarkCallback(b *testing.B) {
	r, _ := ring.New(testFrameSize)
	e := &Engine{config: testConfig(), ring: r}
	in := utils.GenerateSineWave(testFrameSize, testSampleRate, 1000)
	out := make([]int16, 2*testFrameSize)

	b.ReportAllocs()
	for bn := 0; bn < b.N; bn++ {
		e.processStream(in, out)
		_, _ = r.TakeReady()
	}
}
