// Package chime plays short audio cues. Playback is fire-and-forget:
// failures are logged at debug and never reach the caller.
package chime

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	logx "zenflow/pkg/logx"
)

// Player plays the sound named by ref. It must not block.
type Player interface {
	Play(ref string)
}

// Nop discards every chime.
type Nop struct{}

func (Nop) Play(string) {}

// Bell writes the terminal bell character.
type Bell struct {
	mu sync.Mutex
	w  io.Writer
}

func NewBell(w io.Writer) *Bell { return &Bell{w: w} }

func (b *Bell) Play(string) {
	if b == nil || b.w == nil {
		return
	}
	b.mu.Lock()
	_, _ = b.w.Write([]byte{'\a'})
	b.mu.Unlock()
}

// Command runs an external player, e.g. "paplay" or "afplay", with the
// sound ref appended as the last argument. At most one playback runs at a
// time; a chime requested while one is playing is dropped.
type Command struct {
	argv    []string
	timeout time.Duration
	log     logx.Logger

	mu      sync.Mutex
	playing bool
	wg      sync.WaitGroup
}

func NewCommand(command string, timeout time.Duration, log logx.Logger) *Command {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Command{argv: strings.Fields(command), timeout: timeout, log: log}
}

func (c *Command) Play(ref string) {
	if len(c.argv) == 0 {
		return
	}
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		c.log.Debug("chime skipped; already playing", logx.String("ref", ref))
		return
	}
	c.playing = true
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			c.playing = false
			c.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		args := append(append([]string(nil), c.argv[1:]...), ref)
		if ref == "" {
			args = args[:len(args)-1]
		}
		if err := exec.CommandContext(ctx, c.argv[0], args...).Run(); err != nil {
			c.log.Debug("chime failed", logx.String("ref", ref), logx.Err(err))
		}
	}()
}

// Wait blocks until the current playback, if any, has finished.
func (c *Command) Wait() { c.wg.Wait() }

// Config selects a player.
type Config struct {
	Kind    string // none | bell | command
	Command string
	Timeout time.Duration
}

// New builds the player described by cfg. Unknown kinds fall back to Nop.
func New(cfg Config, bell io.Writer, log logx.Logger) Player {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "bell":
		return NewBell(bell)
	case "command":
		if strings.TrimSpace(cfg.Command) == "" {
			return Nop{}
		}
		return NewCommand(cfg.Command, cfg.Timeout, log)
	default:
		return Nop{}
	}
}

// Recorder keeps every ref it is asked to play. Tests use it as a fake.
type Recorder struct {
	mu   sync.Mutex
	refs []string
}

func (r *Recorder) Play(ref string) {
	r.mu.Lock()
	r.refs = append(r.refs, ref)
	r.mu.Unlock()
}

func (r *Recorder) Plays() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.refs...)
}
