package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run only the offer letter worker",
	Long:  "Drain the offer letter queue: render each letter to PDF and mail it. Run several for throughput.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		d, err := connect(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()
		return d.worker().Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
}
