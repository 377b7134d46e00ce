// Package stream reads large result sets row by row with cooperative
// backpressure.
//
// A Stream pulls one row at a time from an open pgx cursor. Before each pull
// it waits on a Gate; consumers that cannot keep up pause the gate and
// resume it once they have drained. Every pause must be matched by a resume:
// the gate counts them, and rows flow again only when the count is back at
// zero.
package stream

import (
	"context"
	"sync"
)

// Gate is a pause counter shared by a producer and its consumers.
type Gate struct {
	mu      sync.Mutex
	pauses  int
	resumed chan struct{} // nil while open; closed when the last pause is released
}

// NewGate returns an open gate.
func NewGate() *Gate {
	return &Gate{}
}

// Pause closes the gate, or adds one more pause if it is already closed.
func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pauses == 0 {
		g.resumed = make(chan struct{})
	}
	g.pauses++
}

// Resume releases one pause. Extra resumes are ignored.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pauses == 0 {
		return
	}
	g.pauses--
	if g.pauses == 0 {
		close(g.resumed)
		g.resumed = nil
	}
}

// Paused reports whether at least one pause is outstanding.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pauses > 0
}

// Wait blocks while the gate is paused.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.resumed
	g.mu.Unlock()
	if ch == nil {
		return ctx.Err()
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
