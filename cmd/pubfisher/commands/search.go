package commands

import (
	"strings"

	"pubfisher/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <keywords...>",
	Short: "Walks the result pages of a keyword search.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		r := newRunner(ctx)
		defer r.store.Close()

		tr := r.fish.LookForKeywords(strings.Join(args, " "))
		printRecords(r.collect(ctx, tr))
	},
}
