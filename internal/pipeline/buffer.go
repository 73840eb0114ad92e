package pipeline

import (
	"sync"
	"time"

	"github.com/crimson-sun/densefeat/internal/model"
)

// streamBuffer accumulates messages and signals a flush when its timer fires
// or it reaches maxSize.
type streamBuffer struct {
	window  time.Duration
	maxSize int // 0 means unlimited

	mu      sync.Mutex
	pending []*model.Message
	timer   *time.Timer
}

func newStreamBuffer(window time.Duration, maxSize int) *streamBuffer {
	return &streamBuffer{window: window, maxSize: maxSize}
}

// add appends a message. The first message starts the flush timer.
// Returns true if the buffer is full and needs flushing.
func (b *streamBuffer) add(msg *model.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, msg)
	if len(b.pending) == 1 {
		b.timer = time.NewTimer(b.window)
	}
	return b.maxSize > 0 && len(b.pending) >= b.maxSize
}

// flushCh returns the timer's channel, or nil if no timer is active.
func (b *streamBuffer) flushCh() <-chan time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		return nil
	}
	return b.timer.C
}

// flush empties the buffer, stops the timer, and returns what was pending.
func (b *streamBuffer) flush() []*model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return msgs
}
