// Package console is the line-oriented front end for the running engine.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"zenflow/internal/focus"
	"zenflow/internal/task"
	logx "zenflow/pkg/logx"
)

var (
	ErrUsage      = errors.New("usage")
	ErrNoSuchTask = errors.New("no such task")
	ErrAmbiguous  = errors.New("ambiguous task id")
	errQuit       = errors.New("quit")
)

type Deps struct {
	Tasks  *task.Store
	Editor *task.DraftEditor
	Timer  *focus.Timer
	Log    logx.Logger
	Now    func() time.Time
}

type command struct {
	name    string
	aliases []string
	usage   string
	desc    string
	handle  func(ctx context.Context, args []string) error
}

// Console reads commands line by line and writes replies to out.
type Console struct {
	deps  Deps
	out   io.Writer
	cmds  map[string]*command
	order []*command
}

func New(deps Deps, out io.Writer) *Console {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	c := &Console{deps: deps, out: out, cmds: map[string]*command{}}
	c.register(
		&command{name: "add", usage: `add "text" [--at 9:15pm] [--on 2026-03-02] --for 25m`, desc: "create a task", handle: c.add},
		&command{name: "overwrite", usage: "overwrite", desc: "replace the conflicting tasks with the pending draft", handle: c.overwrite},
		&command{name: "cancel", usage: "cancel", desc: "discard the pending draft", handle: c.cancel},
		&command{name: "list", aliases: []string{"ls"}, usage: "list [all|active|completed]", desc: "show tasks", handle: c.list},
		&command{name: "done", usage: "done <id>", desc: "toggle a task's completed flag", handle: c.done},
		&command{name: "rm", aliases: []string{"delete"}, usage: "rm <id>", desc: "delete a task", handle: c.remove},
		&command{name: "timer", usage: "timer [start|pause|toggle|reset|status|mode <focus|short|long>]", desc: "control the focus timer", handle: c.timer},
		&command{name: "sound", usage: "sound on|off", desc: "mute or unmute the timer chime", handle: c.sound},
		&command{name: "help", aliases: []string{"?"}, usage: "help", desc: "list commands", handle: c.help},
		&command{name: "quit", aliases: []string{"exit"}, usage: "quit", desc: "stop the engine", handle: func(context.Context, []string) error { return errQuit }},
	)
	return c
}

func (c *Console) register(cmds ...*command) {
	for _, cmd := range cmds {
		c.cmds[cmd.name] = cmd
		for _, a := range cmd.aliases {
			c.cmds[a] = cmd
		}
		c.order = append(c.order, cmd)
	}
}

// Run serves commands from in until EOF, "quit" or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if quit := c.Exec(ctx, line); quit {
				return nil
			}
			c.prompt()
		}
	}
}

func (c *Console) prompt() { fmt.Fprint(c.out, "> ") }

// Exec runs one line and reports whether the user asked to quit.
func (c *Console) Exec(ctx context.Context, line string) (quit bool) {
	args := tokenize(line)
	if len(args) == 0 {
		return false
	}
	cmd, ok := c.cmds[strings.ToLower(args[0])]
	if !ok {
		fmt.Fprintf(c.out, "unknown command %q; try help\n", args[0])
		return false
	}
	err := cmd.handle(ctx, args[1:])
	switch {
	case err == nil:
	case errors.Is(err, errQuit):
		return true
	case errors.Is(err, ErrUsage):
		fmt.Fprintf(c.out, "usage: %s\n", cmd.usage)
	default:
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
	c.deps.Log.Debug("console command", logx.String("cmd", cmd.name), logx.Bool("ok", err == nil))
	return false
}

func (c *Console) add(ctx context.Context, args []string) error {
	pos, flags := splitFlags(args)
	if len(pos) == 0 {
		return ErrUsage
	}
	f, err := BuildFields(strings.Join(pos, " "), flags["at"], flags["on"], flags["for"], c.deps.Now().In(c.deps.Tasks.Location()))
	if err != nil {
		return err
	}
	ed := c.deps.Editor
	ed.SetFields(f)
	ed.Flush()
	t, err := ed.Submit(ctx)
	var ce *task.ConflictError
	if errors.As(err, &ce) {
		fmt.Fprintln(c.out, "conflicts with:")
		for _, x := range ce.Conflicts {
			fmt.Fprintln(c.out, "  "+FormatTask(x))
		}
		fmt.Fprintln(c.out, `type "overwrite" to replace them or "cancel" to discard`)
		return nil
	}
	if err != nil {
		ed.Reset()
		return err
	}
	fmt.Fprintln(c.out, "added "+FormatTask(t))
	return nil
}

func (c *Console) overwrite(ctx context.Context, _ []string) error {
	ed := c.deps.Editor
	if ed.Draft().Text == "" && ed.Draft().DurationSeconds == 0 {
		return errors.New("no pending draft")
	}
	ed.Flush()
	removed := ed.Conflicts()
	t, err := ed.Overwrite(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "replaced %d task(s) with %s\n", len(removed), FormatTask(t))
	return nil
}

func (c *Console) cancel(context.Context, []string) error {
	c.deps.Editor.Reset()
	fmt.Fprintln(c.out, "draft discarded")
	return nil
}

func (c *Console) list(_ context.Context, args []string) error {
	filter := task.FilterAll
	if len(args) > 0 {
		filter = task.ParseFilter(args[0])
	}
	tasks := c.deps.Tasks.List(filter)
	if len(tasks) == 0 {
		fmt.Fprintln(c.out, "no tasks")
		return nil
	}
	for _, t := range tasks {
		fmt.Fprintln(c.out, FormatTask(t))
	}
	return nil
}

func (c *Console) done(ctx context.Context, args []string) error {
	id, err := c.resolve(args)
	if err != nil {
		return err
	}
	c.deps.Tasks.ToggleComplete(ctx, id)
	if t, ok := c.deps.Tasks.Get(id); ok {
		fmt.Fprintln(c.out, FormatTask(t))
	}
	return nil
}

func (c *Console) remove(ctx context.Context, args []string) error {
	id, err := c.resolve(args)
	if err != nil {
		return err
	}
	c.deps.Tasks.Delete(ctx, id)
	fmt.Fprintln(c.out, "deleted "+ShortID(id))
	return nil
}

func (c *Console) resolve(args []string) (string, error) {
	if len(args) != 1 {
		return "", ErrUsage
	}
	return ResolveID(c.deps.Tasks, args[0])
}

func (c *Console) timer(_ context.Context, args []string) error {
	tm := c.deps.Timer
	sub := "status"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	switch sub {
	case "start":
		tm.Start()
	case "pause":
		tm.Pause()
	case "toggle":
		tm.Toggle()
	case "reset":
		tm.Reset()
	case "mode":
		if len(args) != 2 {
			return ErrUsage
		}
		m, err := focus.ParseMode(args[1])
		if err != nil {
			return err
		}
		tm.SwitchMode(m)
	case "status":
	default:
		return ErrUsage
	}
	fmt.Fprintln(c.out, FormatTimer(tm.Snapshot()))
	return nil
}

func (c *Console) sound(_ context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	switch strings.ToLower(args[0]) {
	case "on":
		c.deps.Timer.SetSoundEnabled(true)
	case "off":
		c.deps.Timer.SetSoundEnabled(false)
	default:
		return ErrUsage
	}
	fmt.Fprintf(c.out, "timer sound %s\n", strings.ToLower(args[0]))
	return nil
}

func (c *Console) help(context.Context, []string) error {
	cmds := append([]*command(nil), c.order...)
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].name < cmds[j].name })
	for _, cmd := range cmds {
		fmt.Fprintf(c.out, "  %-60s %s\n", cmd.usage, cmd.desc)
	}
	return nil
}

// ResolveID finds the task whose id equals or starts with prefix.
func ResolveID(store *task.Store, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrUsage
	}
	var match string
	for _, t := range store.Snapshot() {
		if t.ID == prefix {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrNoSuchTask, prefix)
	}
	return match, nil
}
