package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pubfisher",
	Short: "pubfisher walks scholarly search results, surviving verification challenges.",
}

var (
	flagDb          *string
	flagProfile     *string
	flagJson        *bool
	flagMax         *int
	flagDelay       *time.Duration
	flagBibtex      *bool
	flagInteractive *bool
	flagNotify      *bool
	flagDump        *string
)

func init() {
	pf := rootCmd.PersistentFlags()
	flagDb = pf.String("db", "pubfisher.db", "The database holding saved sessions (path or libsql:// URL).")
	flagProfile = pf.String("profile", "default", "The session profile to load and save.")
	flagJson = pf.Bool("json", false, "Print records as JSON instead of a table.")
	flagMax = pf.Int("max", 0, "Stop after this many records. 0 walks every page.")
	flagDelay = pf.Duration("delay", 4*time.Second, "Mean pause between page fetches, jittered. 0 disables.")
	flagBibtex = pf.Bool("bibtex", false, "Fetch the BibTeX entry for every record. Slow, one extra round trip each.")
	flagInteractive = pf.Bool("interactive", false, "Open a browser window to let you solve verification challenges.")
	flagNotify = pf.Bool("notify", false, "Email the operator (per pubfisher.json5) when a challenge pauses the run.")
	flagDump = pf.String("dump", "", "Directory to dump request/response transcripts into, for debugging extraction.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
