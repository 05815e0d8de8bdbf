package session

import (
	"context"
	"sync"
)

// Mailbox hands processed frames from the session loop to a renderer.
//
// It holds a single frame. Publish never blocks and overwrites an unread
// frame, counting it as dropped; Next blocks until a frame is available, the
// mailbox is closed or ctx is done. There is one consumer.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *Frame
	closed bool

	lastConsumedSeq  uint64
	consecutiveDrops uint64
	totalDrops       uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores f, replacing any unread frame.
func (m *Mailbox) Publish(f *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.frame != nil {
		m.consecutiveDrops++
		m.totalDrops++
	}
	m.frame = f
	m.cond.Signal()
}

// Next returns the latest unread frame. It returns nil, nil once the mailbox
// is closed and nil, ctx.Err() when ctx ends first.
func (m *Mailbox) Next(ctx context.Context) (*Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}

	if m.closed {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := m.frame
	m.frame = nil
	m.lastConsumedSeq = f.Seq
	m.consecutiveDrops = 0
	return f, nil
}

// Drops returns the current and lifetime counts of frames replaced unread.
func (m *Mailbox) Drops() (consecutive, total uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveDrops, m.totalDrops
}

// LastConsumed returns the sequence number of the last frame read.
func (m *Mailbox) LastConsumed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastConsumedSeq
}

// Close wakes the consumer; later Publish calls are ignored. Idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.frame = nil
	m.cond.Broadcast()
}
