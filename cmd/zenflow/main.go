package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "zenflow",
		Short:         "Time-boxed tasks, one-shot reminders and a focus timer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath(), "path to config (json or yaml)")

	root.AddCommand(
		newRunCmd(flags),
		newTaskCmd(flags),
		newTimerCmd(flags),
	)
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("ZENFLOW_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "zenflow.yaml"
	}
	return dir + string(os.PathSeparator) + "zenflow" + string(os.PathSeparator) + "config.yaml"
}
