// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"tonepipe/internal/log"
)

// UDPSender writes datagrams to one fixed target. Spectrum packets are
// fire-and-forget: a failed write is counted and reported to the caller but
// never retried.
type UDPSender struct {
	target *net.UDPAddr

	mu   sync.Mutex // Guards conn; nil once closed
	conn *net.UDPConn

	sent   atomic.Uint64
	failed atomic.Uint64

	logger *log.Logger
}

// NewUDPSender connects a datagram socket to targetAddress ("host:port").
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	target, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, target)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	s := &UDPSender{
		target: target,
		conn:   conn,
		logger: log.Component("udp").With("target", target.String()),
	}
	s.logger.Infof("Sending magnitude snapshots from %s", conn.LocalAddr())
	return s, nil
}

// Send writes data as one datagram.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("UDP sender is closed")
	}
	if _, err := s.conn.Write(data); err != nil {
		// Only the first failure is logged; a missing listener makes every
		// write fail.
		if s.failed.Add(1) == 1 {
			s.logger.Warnf("Error sending packet: %v", err)
		}
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	s.sent.Add(1)
	return nil
}

// Target returns the resolved destination address.
func (s *UDPSender) Target() *net.UDPAddr {
	return s.target
}

// Counts returns the number of datagrams written and of failed writes.
func (s *UDPSender) Counts() (sent, failed uint64) {
	return s.sent.Load(), s.failed.Load()
}

// Close closes the socket. Later calls do nothing.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil

	sent, failed := s.Counts()
	s.logger.Infof("Closed after %d packets (%d failed)", sent, failed)
	if err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}
