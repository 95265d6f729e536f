// Package transport moves serialized records from the watch to the phone.
// A payload is tagged with a logical path that both devices agree on; the
// watch sends with a Sender and the phone hands what it receives to a Handler.
package transport

import (
	"context"
	"crypto/sha256"
	"log"
	"sync"
)

// DefaultPath is the logical path records are sent on
const DefaultPath = "/bpm_record"

// Sender delivers a payload to the paired device, best effort
type Sender interface {
	Send(ctx context.Context, path string, payload []byte) error
}

// Handler consumes a payload received on path
type Handler interface {
	HandleMessage(ctx context.Context, path string, payload []byte) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, path string, payload []byte) error

// HandleMessage calls f(ctx, path, payload)
func (f HandlerFunc) HandleMessage(ctx context.Context, path string, payload []byte) error {
	return f(ctx, path, payload)
}

// Loopback is an in-process Sender that hands payloads straight to a Handler
type Loopback struct {
	handler Handler
}

// NewLoopback creates a loopback sender delivering to handler
func NewLoopback(handler Handler) *Loopback {
	return &Loopback{handler: handler}
}

// Send delivers a copy of payload to the handler and returns its error
func (l *Loopback) Send(ctx context.Context, path string, payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return l.handler.HandleMessage(ctx, path, buf)
}

// ConsecutiveDeduper drops a payload identical to the last one successfully
// handled on the same path.
type ConsecutiveDeduper struct {
	next   Handler
	logger *log.Logger

	mu      sync.Mutex
	last    map[string][sha256.Size]byte
	dropped int
}

// NewConsecutiveDeduper wraps next
func NewConsecutiveDeduper(next Handler, logger *log.Logger) *ConsecutiveDeduper {
	if logger == nil {
		logger = log.Default()
	}
	return &ConsecutiveDeduper{
		next:   next,
		logger: logger,
		last:   make(map[string][sha256.Size]byte),
	}
}

// HandleMessage forwards payload unless it repeats the previous one on path
func (d *ConsecutiveDeduper) HandleMessage(ctx context.Context, path string, payload []byte) error {
	sum := sha256.Sum256(payload)

	d.mu.Lock()
	prev, seen := d.last[path]
	if seen && prev == sum {
		d.dropped++
		d.mu.Unlock()
		d.logger.Printf("Transport: dropped repeated payload on %s (%d bytes)", path, len(payload))
		return nil
	}
	d.mu.Unlock()

	if err := d.next.HandleMessage(ctx, path, payload); err != nil {
		return err
	}

	d.mu.Lock()
	d.last[path] = sum
	d.mu.Unlock()
	return nil
}

// Dropped returns the number of payloads dropped as repeats
func (d *ConsecutiveDeduper) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}
