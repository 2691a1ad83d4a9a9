// SPDX-License-Identifier: MIT
package transport

import (
	"tonepipe/internal/log"
)

// LoggingTransport implements the Transport interface by logging data to the console.
type LoggingTransport struct {
	logger *log.Logger
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{logger: log.Component("transport")}
	lt.logger.Debugf("Using LoggingTransport")
	return lt
}

// Send logs the received data. Symbol events are logged at info level,
// anything else at debug level.
func (lt *LoggingTransport) Send(data any) error {
	switch v := data.(type) {
	case SymbolEvent:
		lt.logger.Infof("Key %s on %s channel (frame %d, %.1f Hz)", v.Symbol, v.Channel, v.Sequence, v.Frequencies)
	default:
		lt.logger.Debugf("Received (%T): %+v", data, data)
	}
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.logger.Debugf("Close called")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
