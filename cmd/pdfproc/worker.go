package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the processing workers until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.engine.RunWorkers(cmd.Context())
			st := a.engine.Executor().Stats()
			a.logger.Info("worker shutdown complete",
				slog.Int64("processed", st.Processed),
				slog.Int64("completed", st.Completed),
				slog.Int64("failed", st.Failed),
				slog.Int64("skipped", st.Skipped),
				slog.Int64("faults", st.Faults),
			)
			return err
		},
	}
}
