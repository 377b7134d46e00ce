package export

import (
	"context"
	"sync"

	"github.com/atlekbai/interview_registry/internal/stream"
)

// sink queues rows for one export file. Pushing never blocks: a sink that
// holds more than high rows pauses the shared gate, and resumes it once its
// writer has drained it down to low. The producer waits on the gate, so it
// runs only while no sink is over its mark.
type sink struct {
	name string
	gate *stream.Gate
	high int
	low  int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []any
	closed bool
	done   bool
	paused bool
	rows   int64
}

func newSink(name string, gate *stream.Gate, high, low int) *sink {
	s := &sink{name: name, gate: gate, high: high, low: low}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// push queues v. It is a no-op once the writer has stopped.
func (s *sink) push(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || s.closed {
		return
	}
	s.queue = append(s.queue, v)
	if !s.paused && len(s.queue) >= s.high {
		s.paused = true
		s.gate.Pause()
	}
	s.cond.Signal()
}

// close marks the end of input; the writer drains what is queued.
func (s *sink) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// next pops the oldest row, waiting for one. ok is false once the sink is
// closed and empty, or ctx is done.
func (s *sink) next(ctx context.Context) (v any, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}
	if len(s.queue) == 0 || ctx.Err() != nil {
		return nil, false
	}

	v = s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	if s.paused && len(s.queue) <= s.low {
		s.paused = false
		s.gate.Resume()
	}
	return v, true
}

// stop releases the sink's pause, if any, and drops further input.
func (s *sink) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.queue = nil
	if s.paused {
		s.paused = false
		s.gate.Resume()
	}
}

// run writes rows to f until the sink is closed and drained.
func (s *sink) run(ctx context.Context, f *file) (err error) {
	stopWake := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stopWake()
	defer s.stop()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	for {
		v, ok := s.next(ctx)
		if !ok {
			return ctx.Err()
		}
		if err := f.enc.Encode(v); err != nil {
			return err
		}
		s.mu.Lock()
		s.rows++
		s.mu.Unlock()
	}
}

func (s *sink) written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}
