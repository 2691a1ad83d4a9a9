// SPDX-License-Identifier: MIT
package pipeline

import "tonepipe/internal/analysis"

// channelWorkspace is the pre-allocated scratch for one analysed channel.
// Everything the processing step touches lives here or in workspace, so
// nothing is allocated per frame.
type channelWorkspace struct {
	channel   Channel
	spectrum  []complex64 // Transform input and output, n values
	mags      []float32   // Magnitude of every bin, n values
	detector  *analysis.PeakDetector
	folded    []analysis.Peak // Capacity topPeaks, full spectrum only
	freqs     []float64       // Capacity topPeaks
	debouncer analysis.Debouncer
	result    FrameResult
}

// workspace is owned by one FrameProcessor.
type workspace struct {
	left     []float32 // De-interleaved left samples
	right    []float32 // De-interleaved right samples
	channels []*channelWorkspace
}

func newWorkspace(n int, sampleRate float64, fold bool, topPeaks int, channels []Channel) *workspace {
	ws := &workspace{
		left:     make([]float32, n),
		right:    make([]float32, n),
		channels: make([]*channelWorkspace, len(channels)),
	}
	for i, ch := range channels {
		ws.channels[i] = &channelWorkspace{
			channel:  ch,
			spectrum: make([]complex64, n),
			mags:     make([]float32, n),
			detector: analysis.NewPeakDetector(n, sampleRate, fold),
			folded:   make([]analysis.Peak, 0, topPeaks),
			freqs:    make([]float64, 0, topPeaks),
		}
	}
	return ws
}

// deinterleave splits an interleaved left/right frame into the float
// channel buffers.
func (ws *workspace) deinterleave(frame []int16) {
	for i := range ws.left {
		ws.left[i] = float32(frame[2*i])
		ws.right[i] = float32(frame[2*i+1])
	}
}

// load fills cw.spectrum with the real-valued input for its channel.
func (ws *workspace) load(cw *channelWorkspace) {
	switch cw.channel {
	case ChannelLeft:
		for i, v := range ws.left {
			cw.spectrum[i] = complex(v, 0)
		}
	case ChannelRight:
		for i, v := range ws.right {
			cw.spectrum[i] = complex(v, 0)
		}
	default:
		for i, v := range ws.left {
			cw.spectrum[i] = complex(v+ws.right[i], 0)
		}
	}
}

// packBack writes the channel buffers into frame as 16-bit samples.
func (ws *workspace) packBack(frame []int16, scale float32) {
	for i := range ws.left {
		frame[2*i] = ToSample16(ws.left[i] * scale)
		frame[2*i+1] = ToSample16(ws.right[i] * scale)
	}
}
