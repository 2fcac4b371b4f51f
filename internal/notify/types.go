package notify

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled      = errors.New("notifier disabled")
	ErrNotPermitted  = errors.New("notification permission not granted")
	ErrQueueFull     = errors.New("notifier queue full")
	ErrStopped       = errors.New("notifier stopped")
	ErrUnknownSink   = errors.New("unknown notification sink")
	ErrSinkNotConfig = errors.New("notification sink not configured")
)

// PermissionState is the user's answer to "may we show notifications".
type PermissionState int

const (
	Undetermined PermissionState = iota
	Granted
	Denied
)

func parsePermission(s string) PermissionState {
	switch s {
	case "granted":
		return Granted
	case "denied":
		return Denied
	default:
		return Undetermined
	}
}

func (p PermissionState) String() string {
	switch p {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "undetermined"
	}
}

// PermissionKey is the storage key holding the last permission answer.
const PermissionKey = "zenflow_notify_permission"

// Dispatcher is the notification capability the alarm engine calls into.
type Dispatcher interface {
	PermissionState() PermissionState
	// RequestPermission asks once and returns the resulting state. Once the
	// state is determined it is returned without asking again.
	RequestPermission(ctx context.Context) PermissionState
	Notify(ctx context.Context, m Message) error
}

// Message is one notification. Key scopes dedup; when empty, messages
// with the same title and body are treated as duplicates.
type Message struct {
	Title string
	Body  string
	Key   string
}

// Sink delivers messages to one destination.
type Sink interface {
	Name() string
	// Probe reports whether the destination is reachable and willing to
	// accept notifications. It backs the permission request.
	Probe(ctx context.Context) error
	Send(ctx context.Context, m Message) error
	Close() error
}

// Config controls the async notification pipeline.
type Config struct {
	Enabled     bool
	QueueSize   int
	RatePerSec  float64
	RetryMax    int
	RetryBase   time.Duration
	DedupWindow time.Duration
	SendTimeout time.Duration
}

// Event is the payload of notify.* bus events.
type Event struct {
	Sink  string    `json:"sink"`
	Title string    `json:"title"`
	At    time.Time `json:"at"`
	Error string    `json:"error,omitempty"`
}
