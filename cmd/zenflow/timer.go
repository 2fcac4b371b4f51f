package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"zenflow/internal/app"
	"zenflow/internal/console"
	"zenflow/internal/eventbus"
	"zenflow/internal/focus"
)

func newTimerCmd(flags *rootFlags) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Run one focus or break countdown in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := focus.ParseMode(mode)
			if err != nil {
				return err
			}
			return withApp(flags, func(a *app.App) error {
				done, unsubscribe := a.Bus().Subscribe(8)
				defer unsubscribe()

				tm := a.Timer()
				tm.SwitchMode(m)
				tm.Start()
				out := cmd.OutOrStdout()
				refresh := time.NewTicker(time.Second)
				defer refresh.Stop()
				for {
					fmt.Fprintf(out, "\r%s ", console.FormatTimer(tm.Snapshot()))
					select {
					case <-cmd.Context().Done():
						fmt.Fprintln(out)
						return nil
					case e := <-done:
						if e.Type == eventbus.TimerCompleted {
							fmt.Fprintf(out, "\r%s\n", console.FormatTimer(tm.Snapshot()))
							return nil
						}
					case <-refresh.C:
					}
				}
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(focus.Focus), "focus, short or long")
	return cmd
}
