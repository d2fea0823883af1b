// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync"
	"time"

	"deskviz/internal/log"
)

// DefaultPublishInterval is the host read cadence for snapshots.
const DefaultPublishInterval = 50 * time.Millisecond

// Publisher periodically reads the latest snapshot from a Source and sends
// it to every transport. A snapshot is only forwarded once: ticks that find
// the same sequence number are skipped.
// It runs in a separate goroutine managed by Start and Stop methods.
type Publisher struct {
	source     Source
	transports []Transport
	interval   time.Duration

	ticker   *time.Ticker   // Ticker that triggers reads.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	lastSeq uint64
	sent    bool
}

// NewPublisher creates a Publisher. If the interval is invalid (<= 0), it
// defaults to DefaultPublishInterval.
func NewPublisher(interval time.Duration, source Source, transports ...Transport) *Publisher {
	if interval <= 0 {
		interval = DefaultPublishInterval
		log.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}
	return &Publisher{
		source:     source,
		transports: transports,
		interval:   interval,
	}
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("Publisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("Publisher: goroutine started (Interval: %s, Transports: %d)", p.interval, len(p.transports))
		for {
			select {
			case <-ticker.C:
				p.Tick()
			case <-doneChan:
				return
			}
		}
	}()
}

// Tick reads the source once and forwards the snapshot if it is new.
// It reports whether anything was sent.
func (p *Publisher) Tick() bool {
	snap := p.source.Snapshot()
	if p.sent && snap.Seq == p.lastSeq {
		return false
	}
	p.sent = true
	p.lastSeq = snap.Seq

	for _, t := range p.transports {
		if err := t.Send(snap); err != nil {
			log.Debugf("Publisher: send failed: %v", err)
		}
	}
	return true
}

// Stop gracefully signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *Publisher) Stop() error {
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
	log.Debugf("Publisher: goroutine finished.")
	return nil
}

// Close stops publishing and closes every transport.
func (p *Publisher) Close() error {
	err := p.Stop()
	for _, t := range p.transports {
		err = errors.Join(err, t.Close())
	}
	return err
}
