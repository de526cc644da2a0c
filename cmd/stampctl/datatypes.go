package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/animus-labs/stamps/internal/datatype"
)

func newDataTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "data-types",
		Short: "List the registered validation data types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types := datatype.Builtin().Types()
			if a.cfg.Output.Format == "json" {
				type item struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				}
				items := make([]item, 0, len(types))
				for _, dt := range types {
					items = append(items, item{ID: dt.ID(), Name: dt.Name()})
				}
				return writeJSON(cmd.OutOrStdout(), items)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, dt := range types {
				fmt.Fprintf(tw, "%s\t%s\n", dt.ID(), dt.Name())
			}
			return tw.Flush()
		},
	}
}
