package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the import progress of every known journal file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		progress, err := s.List(ctx)
		if err != nil {
			return err
		}

		return printStatus(cmd.OutOrStdout(), progress)
	},
}

func printStatus(out io.Writer, progress []domain.Progress) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tCREATED\tLINES\tCOMPLETED\tUPDATED")
	for _, p := range progress {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n",
			p.Filename,
			p.CreatedAt.Local().Format(time.DateTime),
			p.LinesImported,
			p.Completed,
			p.UpdatedAt.Local().Format(time.DateTime),
		)
	}
	return tw.Flush()
}
