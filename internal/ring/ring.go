// SPDX-License-Identifier: MIT
/*
Package ring implements the triple-buffer hand-off between an acquisition
engine and the cooperative processing loop.

Three fixed sample buffers rotate through the roles Filling, Ready and
Draining. With ready index r:

	Ready    = r
	Filling  = (r+1) mod 3
	Draining = (r+2) mod 3

Every completion signal advances r by one, so the slot that was Filling
becomes Ready, Draining becomes Filling and Ready becomes Draining. No two
slots ever share a role.

Thread Safety:
- OnFrameComplete is the only writer of the ready index and may run
  concurrently with the processing loop
- The ready index and ready flag share one atomic word, so every read of
  the pair is consistent
- The overrun flag is sticky and only cleared by ResetOverrun
- Nothing allocates or blocks after New returns
*/
package ring

import (
	"fmt"
	"sync/atomic"
)

// Slots is the number of buffers in the ring.
const Slots = 3

// Layout of the state word: bit 0 is the ready flag, the bits above it
// hold the ready index.
const (
	readyBit   uint32 = 1
	indexShift        = 1
)

// initialIndex makes the first completion signal mark slot 0 ready.
const initialIndex = Slots - 1

// Stats is a snapshot of the ring counters.
type Stats struct {
	Frames   uint64 // Completion signals received
	Overruns uint64 // Completion signals that found the previous frame unclaimed
}

// BufferRing owns the three sample buffers and their rotation state.
type BufferRing struct {
	slots     [Slots][]int16
	frameSize int // Sample pairs per slot

	state   atomic.Uint32
	overrun atomic.Bool

	frames   atomic.Uint64
	overruns atomic.Uint64
}

// New allocates a ring of three interleaved stereo buffers holding
// frameSize sample pairs each.
func New(frameSize int) (*BufferRing, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("ring: frame size must be positive, got %d", frameSize)
	}

	r := &BufferRing{frameSize: frameSize}
	for i := range r.slots {
		r.slots[i] = make([]int16, 2*frameSize)
	}
	r.state.Store(pack(initialIndex, false))

	return r, nil
}

func pack(index int, ready bool) uint32 {
	w := uint32(index) << indexShift
	if ready {
		w |= readyBit
	}
	return w
}

func unpack(w uint32) (int, bool) {
	return int(w >> indexShift), w&readyBit != 0
}

// FrameSize returns the number of sample pairs per slot.
func (r *BufferRing) FrameSize() int {
	return r.frameSize
}

// Slot returns the interleaved left/right buffer of slot i. The acquisition
// engine may only write the Filling slot and software may only read the
// slot most recently marked ready.
func (r *BufferRing) Slot(i int) []int16 {
	return r.slots[i%Slots]
}

// OnFrameComplete is the completion-signal handler. It advances the ready
// index, latches overrun if the previous ready slot was never claimed and
// marks the new slot ready. O(1), non-blocking, allocation free.
func (r *BufferRing) OnFrameComplete() {
	for {
		old := r.state.Load()
		index, wasReady := unpack(old)
		next := pack((index+1)%Slots, true)
		if r.state.CompareAndSwap(old, next) {
			r.frames.Add(1)
			if wasReady {
				r.overrun.Store(true)
				r.overruns.Add(1)
			}
			return
		}
	}
}

// IsReady reports whether a frame is waiting to be processed.
func (r *BufferRing) IsReady() bool {
	_, ready := unpack(r.state.Load())
	return ready
}

// IsOverrun reports the sticky overrun flag.
func (r *BufferRing) IsOverrun() bool {
	return r.overrun.Load()
}

// ResetOverrun clears the overrun flag. Only external monitoring calls this.
func (r *BufferRing) ResetOverrun() {
	r.overrun.Store(false)
}

// TakeReady returns the ready slot index and clears the ready flag. The
// second result is false if no frame was ready, in which case the index is
// that of the last frame handed out. Overrun is not touched.
func (r *BufferRing) TakeReady() (int, bool) {
	for {
		old := r.state.Load()
		index, ready := unpack(old)
		if !ready {
			return index, false
		}
		if r.state.CompareAndSwap(old, pack(index, false)) {
			return index, true
		}
	}
}

// PeekReady returns the ready index and flag as one consistent pair
// without clearing anything.
func (r *BufferRing) PeekReady() (int, bool) {
	return unpack(r.state.Load())
}

// Release clears the ready flag after the slot returned by PeekReady has
// been processed. If a completion signal has advanced the ring in the
// meantime the newer frame stays ready and Release returns false; that
// signal has already latched overrun.
func (r *BufferRing) Release(index int) bool {
	for {
		old := r.state.Load()
		current, ready := unpack(old)
		if current != index || !ready {
			return false
		}
		if r.state.CompareAndSwap(old, pack(index, false)) {
			return true
		}
	}
}

// Filling returns the slot the acquisition engine writes next.
func (r *BufferRing) Filling() int {
	index, _ := unpack(r.state.Load())
	return (index + 1) % Slots
}

// Draining returns the slot the output engine plays back.
func (r *BufferRing) Draining() int {
	index, _ := unpack(r.state.Load())
	return (index + 2) % Slots
}

// Stats returns the frame and overrun counters.
func (r *BufferRing) Stats() Stats {
	return Stats{
		Frames:   r.frames.Load(),
		Overruns: r.overruns.Load(),
	}
}
