package commands

import (
	"pubfisher/lib/records"
	"pubfisher/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(citesCmd)
}

var citesCmd = &cobra.Command{
	Use:   "cites <citation-id>",
	Short: "Walks the publications citing a given work, by its citation id.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		r := newRunner(ctx)
		defer r.store.Close()

		tr, err := r.fish.LookForCitationsOf(records.Publication{CitedByID: args[0]})
		if err != nil {
			serviceutil.Fatal("failed to start citation query", err)
		}
		printRecords(r.collect(ctx, tr))
	},
}
