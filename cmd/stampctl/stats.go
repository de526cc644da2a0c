package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/animus-labs/stamps/internal/domain"
	"github.com/animus-labs/stamps/internal/service/validation"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		stampID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show compliance statistics over the recent runs of a stamp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be >= 1, got %d", limit)
			}
			svc, closeFn, err := a.openService(cmd.Context(), a.cfg, a.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := svc.StampStats(cmd.Context(), stampID, limit)
			if err != nil {
				return err
			}
			if a.cfg.Output.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printStats(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&stampID, "stamp", "", "Validation stamp id")
	cmd.Flags().IntVar(&limit, "limit", 100, "Number of most recent runs to aggregate")
	_ = cmd.MarkFlagRequired("stamp")
	return cmd
}

func printStats(w io.Writer, s validation.StampStats) {
	typeID := s.TypeID
	if typeID == "" {
		typeID = "no data type"
	}
	c := s.Compliance
	fmt.Fprintf(w, "stamp:       %s (%s)\n", s.StampID, typeID)
	fmt.Fprintf(w, "runs:        %d, %d with a value\n", c.Total, c.Count)
	if c.Count > 0 {
		fmt.Fprintf(w, "compliance:  min %s (x%d)  avg %s  max %s (x%d)\n",
			formatFloat(*c.Min), c.MinCount, formatFloat(*c.Avg), formatFloat(*c.Max), c.MaxCount)
	} else {
		fmt.Fprintln(w, "compliance:  no values")
	}

	statuses := make([]domain.StatusID, 0, len(s.Statuses))
	for status := range s.Statuses {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%s %d", colorStatus(status), s.Statuses[status]))
	}
	if len(parts) == 0 {
		parts = append(parts, "none")
	}
	fmt.Fprintf(w, "statuses:    %s\n", strings.Join(parts, ", "))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
