package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"offerdesk/offer-service/internal/notify"
)

var redriveCmd = &cobra.Command{
	Use:   "redrive",
	Short: "Move dead-lettered offer letters back onto the queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := connect(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer d.Close()

		moved, err := notify.NewQueue(d.rdb, notify.WithQueueLogger(d.log)).Redrive(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "redrove %d letter(s)\n", moved)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redriveCmd)
}
