package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"zenflow/internal/app"
	"zenflow/internal/console"
	"zenflow/internal/task"
)

func newTaskCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks in the persisted store",
	}
	cmd.AddCommand(
		newTaskAddCmd(flags),
		newTaskListCmd(flags),
		newTaskIDCmd(flags, "done", "Toggle a task's completed flag", func(a *app.App, cmd *cobra.Command, id string) {
			a.Tasks().ToggleComplete(cmd.Context(), id)
		}),
		newTaskIDCmd(flags, "rm", "Delete a task", func(a *app.App, cmd *cobra.Command, id string) {
			a.Tasks().Delete(cmd.Context(), id)
		}),
	)
	return cmd
}

// withApp opens the store for a one-shot command without starting the
// background services.
func withApp(flags *rootFlags, fn func(a *app.App) error) error {
	a, err := app.New(flags.configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newTaskAddCmd(flags *rootFlags) *cobra.Command {
	var (
		at, on    string
		dur       time.Duration
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Create a task, optionally scheduled at a clock time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(a *app.App) error {
				store := a.Tasks()
				now := time.Now().In(store.Location())
				f, err := console.BuildFields(strings.Join(args, " "), at, on, dur.String(), now)
				if err != nil {
					return err
				}
				d := f.Draft(store.Location())
				t, err := store.Create(cmd.Context(), d)
				var ce *task.ConflictError
				if errors.As(err, &ce) && overwrite {
					t, err = store.Overwrite(cmd.Context(), ce.IDs(), d)
				}
				if errors.As(err, &ce) {
					for _, c := range ce.Conflicts {
						fmt.Fprintln(cmd.ErrOrStderr(), "  "+console.FormatTask(c))
					}
					return fmt.Errorf("%w (use --overwrite to replace)", err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), console.FormatTask(t))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "start time, e.g. 9:15pm or 21:15")
	cmd.Flags().StringVar(&on, "on", "", "start date YYYY-MM-DD (default today)")
	cmd.Flags().DurationVar(&dur, "for", 25*time.Minute, "task duration")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace conflicting tasks")
	return cmd
}

func newTaskListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "list [all|active|completed]",
		Aliases:   []string{"ls"},
		Short:     "List tasks, newest first",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"all", "active", "completed"},
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := task.FilterAll
			if len(args) == 1 {
				filter = task.ParseFilter(args[0])
			}
			return withApp(flags, func(a *app.App) error {
				for _, t := range a.Tasks().List(filter) {
					fmt.Fprintln(cmd.OutOrStdout(), console.FormatTask(t))
				}
				return nil
			})
		},
	}
}

func newTaskIDCmd(flags *rootFlags, use, short string, apply func(a *app.App, cmd *cobra.Command, id string)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(a *app.App) error {
				id, err := console.ResolveID(a.Tasks(), args[0])
				if err != nil {
					return err
				}
				apply(a, cmd, id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", use, console.ShortID(id))
				return nil
			})
		},
	}
}
