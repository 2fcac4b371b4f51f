package main

import (
	"context"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"zenflow/internal/app"
	"zenflow/internal/console"
	logx "zenflow/pkg/logx"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine: alarm scan, focus timer and an interactive console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := app.New(flags.configPath)
			if err != nil {
				return err
			}
			log := a.Log()
			if err := a.Start(ctx); err != nil {
				_ = a.Close()
				return err
			}
			sdNotify(log, daemon.SdNotifyReady)

			if headless {
				select {
				case <-ctx.Done():
				case <-a.Done():
				}
			} else {
				runCtx, cancel := context.WithCancel(ctx)
				go func() {
					<-a.Done()
					cancel()
				}()
				c := console.New(console.Deps{
					Tasks:  a.Tasks(),
					Editor: a.Editor(),
					Timer:  a.Timer(),
					Log:    log,
				}, cmd.OutOrStdout())
				if err := c.Run(runCtx, os.Stdin); err != nil {
					log.Warn("console stopped", logx.Err(err))
				}
				cancel()
			}

			sdNotify(log, daemon.SdNotifyStopping)
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			fatal := a.Err()
			if err := a.Stop(stopCtx); err != nil {
				log.Warn("shutdown incomplete", logx.Err(err))
			}
			return fatal
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "no console; run until signaled (for service managers)")
	return cmd
}

// sdNotify tells systemd about state changes when running as a
// Type=notify unit. Outside systemd it is a no-op.
func sdNotify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	case sent:
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}
