package chime

import (
	"bytes"
	"testing"
	"time"

	logx "zenflow/pkg/logx"
)

func TestBellWritesBEL(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	NewBell(&buf).Play("any")
	if buf.String() != "\a" {
		t.Fatalf("bell wrote %q", buf.String())
	}
}

func TestNewSelectsPlayer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "empty", cfg: Config{}, want: "chime.Nop"},
		{name: "bell", cfg: Config{Kind: "bell"}, want: "*chime.Bell"},
		{name: "command without argv", cfg: Config{Kind: "command"}, want: "chime.Nop"},
		{name: "command", cfg: Config{Kind: "command", Command: "true"}, want: "*chime.Command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg, &bytes.Buffer{}, logx.Nop())
			if got := typeName(p); got != tt.want {
				t.Fatalf("player = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCommandMissingBinaryIsSwallowed(t *testing.T) {
	t.Parallel()
	c := NewCommand("zenflow-definitely-missing-player", time.Second, logx.Nop())
	c.Play("chime.wav")
	c.Wait()
	c.Play("chime.wav")
	c.Wait()
}

func TestRecorder(t *testing.T) {
	t.Parallel()
	var r Recorder
	r.Play("a")
	r.Play("b")
	if got := r.Plays(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("plays = %v", got)
	}
}

func typeName(p Player) string {
	switch p.(type) {
	case Nop:
		return "chime.Nop"
	case *Bell:
		return "*chime.Bell"
	case *Command:
		return "*chime.Command"
	default:
		return "unknown"
	}
}
