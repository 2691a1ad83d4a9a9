// SPDX-License-Identifier: MIT
// Package transport publishes analysis results outside the process.
package transport

import (
	"time"

	"tonepipe/internal/analysis"
	"tonepipe/internal/pipeline"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// SymbolEvent is published once per accepted key press.
type SymbolEvent struct {
	Time        time.Time `json:"time"`
	Sequence    uint64    `json:"sequence"` // Frame the press was accepted on
	Channel     string    `json:"channel"`
	Symbol      string    `json:"symbol"`
	Frequencies []float64 `json:"frequencies"` // Hz, strongest first
}

// NewSymbolEvent builds the event for res. The frequencies are copied since
// the result aliases processor scratch space.
func NewSymbolEvent(res *pipeline.FrameResult, now time.Time) SymbolEvent {
	return SymbolEvent{
		Time:        now,
		Sequence:    res.Sequence,
		Channel:     res.Channel.String(),
		Symbol:      res.Pressed.String(),
		Frequencies: append([]float64(nil), res.Frequencies...),
	}
}

// SymbolPublisher is a pipeline observer that forwards key presses to a
// transport. Frames without a new press cost nothing.
type SymbolPublisher struct {
	t   Transport
	now func() time.Time
}

// NewSymbolPublisher returns an observer sending to t.
func NewSymbolPublisher(t Transport) *SymbolPublisher {
	return &SymbolPublisher{t: t, now: time.Now}
}

// Observe implements pipeline.Observer.
func (p *SymbolPublisher) Observe(res *pipeline.FrameResult) {
	if res.Pressed == analysis.NoSymbol {
		return
	}
	// Transports drop rather than block; an error here is not actionable
	// from the processing loop.
	_ = p.t.Send(NewSymbolEvent(res, p.now()))
}

var _ pipeline.Observer = (*SymbolPublisher)(nil)
