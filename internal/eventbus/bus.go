package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the engine.
const (
	TaskCreated     = "task.created"
	TaskOverwritten = "task.overwritten"
	TaskToggled     = "task.toggled"
	TaskDeleted     = "task.deleted"
	AlarmFired      = "alarm.fired"
	TimerStarted    = "timer.started"
	TimerPaused     = "timer.paused"
	TimerReset      = "timer.reset"
	TimerMode       = "timer.mode"
	TimerCompleted  = "timer.completed"
	NotifySent      = "notify.sent"
	NotifyFailed    = "notify.failed"
	NotifyDropped   = "notify.dropped"
	NotifyDeduped   = "notify.deduped"
	ConfigReloaded  = "config.reloaded"
)

// Event is a small in-memory signal used to decouple components.
//
// Contract:
//   - Publish never blocks.
//   - Subscribers get buffered channels; slow subscribers drop events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Publisher is the narrow side handed to components that only emit.
type Publisher interface {
	Publish(e Event)
}

type Bus interface {
	Publisher
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// Publish is a nil-safe helper for optional publishers.
func Publish(p Publisher, typ string, data any) {
	if p == nil {
		return
	}
	p.Publish(Event{Type: typ, Time: time.Now(), Data: data})
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memory{subs: map[uint64]chan Event{}}
}

type memory struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memory) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Deliver under the read lock; unsubscribe takes the write lock before
	// closing, so a send never races a close.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memory) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}
