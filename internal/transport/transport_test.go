// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonepipe/internal/analysis"
	"tonepipe/internal/log"
	"tonepipe/internal/pipeline"
	"tonepipe/pkg/utils"
)

func pressResult(sym analysis.Symbol) *pipeline.FrameResult {
	return &pipeline.FrameResult{
		Sequence:    41,
		Channel:     pipeline.ChannelLeft,
		Symbol:      sym,
		Held:        sym,
		Pressed:     sym,
		Frequencies: []float64{1218.75, 687.5},
	}
}

func TestSymbolPublisherSendsPressesOnly(t *testing.T) {
	mt := &utils.MockTransport{}
	pub := NewSymbolPublisher(mt)
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	pub.now = func() time.Time { return stamp }

	held := pressResult('5')
	held.Pressed = analysis.NoSymbol
	pub.Observe(held)
	pub.Observe(&pipeline.FrameResult{})
	assert.Equal(t, 0, mt.Len(), "frames without a new press are not published")

	res := pressResult('5')
	pub.Observe(res)
	require.Equal(t, 1, mt.Len())

	ev, ok := mt.Last().(SymbolEvent)
	require.True(t, ok, "got %T", mt.Last())
	assert.Equal(t, SymbolEvent{
		Time:        stamp,
		Sequence:    41,
		Channel:     "left",
		Symbol:      "5",
		Frequencies: []float64{1218.75, 687.5},
	}, ev)

	// The event must not alias the processor's scratch space.
	res.Frequencies[0] = 0
	assert.Equal(t, 1218.75, ev.Frequencies[0])
}

func TestLoggingTransport(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	prev := log.GetLevel()
	log.SetLevel(log.LevelInfo)
	t.Cleanup(func() { log.SetLevel(prev) })

	lt := NewLoggingTransport()
	require.NoError(t, lt.Send(NewSymbolEvent(pressResult('#'), time.Now())))
	assert.Contains(t, buf.String(), "Key # on left channel")

	buf.Reset()
	require.NoError(t, lt.Send([]float32{1, 2}))
	assert.Empty(t, buf.String(), "raw data is only logged at debug level")

	assert.NoError(t, lt.Close())
}
