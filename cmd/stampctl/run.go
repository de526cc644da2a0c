package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/animus-labs/stamps/internal/domain"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect validation runs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a validation run with its data and status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := a.openService(cmd.Context(), a.cfg, a.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer closeFn()

			run, err := svc.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.cfg.Output.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			return printRun(cmd.OutOrStdout(), run)
		},
	})
	return cmd
}

func printRun(w io.Writer, run domain.ValidationRun) error {
	fmt.Fprintf(w, "run:     %s (#%d)\n", run.ID, run.RunOrder)
	fmt.Fprintf(w, "build:   %s\n", run.BuildID)
	fmt.Fprintf(w, "stamp:   %s\n", run.StampID)
	fmt.Fprintf(w, "created: %s by %s\n", run.Signature.Time.Format(time.RFC3339), run.Signature.User)
	if run.Data != nil {
		value, err := json.Marshal(run.Data.Value)
		if err != nil {
			return fmt.Errorf("encode run data: %w", err)
		}
		fmt.Fprintf(w, "data:    %s %s\n", run.Data.TypeID, value)
	}
	fmt.Fprintln(w, "history:")
	for _, status := range run.Statuses {
		line := fmt.Sprintf("  %3d  %s  %-13s  %s", status.Seq, status.Signature.Time.Format(time.RFC3339), colorStatus(status.Status), status.Signature.User)
		if status.Description != "" {
			line += "  " + status.Description
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
