package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var reprocessTypes []string

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-run handlers for stored events of the given types",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(reprocessTypes) == 0 {
			return fmt.Errorf("at least one --type is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.dispatcher.Reprocess(ctx, reprocessTypes)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "reprocessed %d events: %d rows written, %d failed\n",
			res.Envelopes, res.Rows, res.Failed)
		return nil
	},
}

func init() {
	reprocessCmd.Flags().StringSliceVar(&reprocessTypes, "type", nil, "event types to reprocess (repeatable or comma separated)")
}
