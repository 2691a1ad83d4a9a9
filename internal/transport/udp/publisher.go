// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"tonepipe/internal/log"
)

// MagnitudeSource provides copies of the latest magnitude spectrum. It is
// satisfied by pipeline.FrameProcessor.
type MagnitudeSource interface {
	MagnitudesInto(dst []float32) (uint64, error)
	MagnitudeBins() int
}

// HeaderSize is the length of the fixed packet header in bytes.
const HeaderSize = 4 + 8 + 8 + 2

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 16 * time.Millisecond

// UDPPublisher periodically fetches the latest magnitude spectrum, packs it
// into a binary packet and sends it with a UDPSender. It runs in a
// separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   *UDPSender      // The underlying UDP sender instance.
	source   MagnitudeSource // Where magnitudes come from.
	interval time.Duration   // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	sequenceNum uint32 // Monotonically increasing sequence number for packets.

	// Preallocated so that building a packet does not allocate.
	magBuffer    []float32
	packetBuffer *bytes.Buffer

	logger *log.Logger
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to DefaultInterval.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, source MagnitudeSource) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: magnitude source cannot be nil")
	}
	bins := source.MagnitudeBins()
	if bins <= 0 || bins > math.MaxUint16 {
		return nil, fmt.Errorf("UDPPublisher: cannot pack %d bins", bins)
	}

	logger := log.Component("udp")
	if interval <= 0 {
		interval = DefaultInterval
		logger.Warnf("Invalid interval provided, defaulting to %s", interval)
	}
	logger.Infof("Publisher initializing (Interval: %s, Bins: %d)", interval, bins)

	packet := new(bytes.Buffer)
	packet.Grow(HeaderSize + 4*bins)

	return &UDPPublisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		magBuffer:    make([]float32, bins),
		packetBuffer: packet,
		logger:       logger,
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		p.logger.Warnf("Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// The goroutine works on its own copies so Stop can clear the fields.
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.logger.Debugf("Publisher goroutine started")
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket(time.Now())
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to
// exit. It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Infof("Publisher stopped after %d packets", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Frame             | uint64         | 8            | Source frame sequence   |
| Magnitude Count   | uint16         | 2            | Number of floats (N)    |
| Magnitudes        | []float32      | N * 4        | Magnitude spectrum      |
+-----------------------------------------------------------------------------+
*/

// Packet is a decoded magnitude packet.
type Packet struct {
	Sequence   uint32
	Timestamp  time.Time
	Frame      uint64
	Magnitudes []float32
}

// buildAndSendPacket runs on every tick.
func (p *UDPPublisher) buildAndSendPacket(now time.Time) {
	packet, err := p.buildPacket(now)
	if err != nil {
		p.logger.Errorf("Error building packet: %v", err)
		return
	}

	// The sender logs its own failures.
	if err := p.sender.Send(packet); err == nil {
		p.logger.Debugf("Sent packet %d (%d bytes)", p.sequenceNum, len(packet))
	}
}

// buildPacket fetches the latest spectrum and packs it. The returned slice
// is only valid until the next call.
func (p *UDPPublisher) buildPacket(now time.Time) ([]byte, error) {
	frame, err := p.source.MagnitudesInto(p.magBuffer)
	if err != nil {
		return nil, err
	}

	p.sequenceNum++
	p.packetBuffer.Reset()

	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:], p.sequenceNum)
	binary.BigEndian.PutUint64(header[4:], uint64(now.UnixNano()))
	binary.BigEndian.PutUint64(header[12:], frame)
	binary.BigEndian.PutUint16(header[20:], uint16(len(p.magBuffer)))
	p.packetBuffer.Write(header[:])

	var word [4]byte
	for _, m := range p.magBuffer {
		binary.BigEndian.PutUint32(word[:], math.Float32bits(m))
		p.packetBuffer.Write(word[:])
	}

	return p.packetBuffer.Bytes(), nil
}

// DecodePacket parses a packet produced by the publisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("packet too short: %d bytes", len(b))
	}
	count := int(binary.BigEndian.Uint16(b[20:]))
	if len(b) != HeaderSize+4*count {
		return Packet{}, fmt.Errorf("packet length %d does not match %d magnitudes", len(b), count)
	}

	pkt := Packet{
		Sequence:   binary.BigEndian.Uint32(b[0:]),
		Timestamp:  time.Unix(0, int64(binary.BigEndian.Uint64(b[4:]))),
		Frame:      binary.BigEndian.Uint64(b[12:]),
		Magnitudes: make([]float32, count),
	}
	for i := range pkt.Magnitudes {
		pkt.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(b[HeaderSize+4*i:]))
	}
	return pkt, nil
}

// Close implements the io.Closer interface. It gracefully stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
