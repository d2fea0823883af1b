// SPDX-License-Identifier: MIT
package transport

import (
	"deskviz/internal/audio"
	"deskviz/internal/log"
)

// LoggingTransport implements the Transport interface by logging snapshots
// at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received snapshot.
func (lt *LoggingTransport) Send(data any) error {
	snap, ok := data.(audio.Snapshot)
	if !ok {
		log.Debugf("LOG_TRANSPORT: Received (%T): %+v", data, data)
		return nil
	}
	if !snap.Available {
		log.Debugw("levels", "seq", snap.Seq, "available", false)
		return nil
	}
	log.Debugw("levels",
		"seq", snap.Seq,
		"device", snap.Device,
		"volume", snap.Volume,
		"bass", snap.Bass,
		"mid", snap.Mid,
		"treble", snap.Treble,
	)
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
