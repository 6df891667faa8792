package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"pubfisher/lib/configutil"
	"pubfisher/lib/cookiestore"
	"pubfisher/lib/fetcher"
	"pubfisher/lib/fisher"
	"pubfisher/lib/interactive"
	"pubfisher/lib/notify"
	"pubfisher/lib/records"
	"pubfisher/lib/restyutil"
	"pubfisher/lib/scholar"
	"pubfisher/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
)

type Config struct {
	Smtp     notify.SmtpConfig `json:"smtp"`
	NotifyTo string            `json:"notify_to"`
}

// runner wires the session store, transport and source together for one
// CLI invocation.
type runner struct {
	store  *cookiestore.Store
	fish   *fisher.Fisher
	fetch  *fetcher.Client
	source scholar.Source
}

func newRunner(ctx context.Context) *runner {
	store, err := cookiestore.Open(*flagDb)
	if err != nil {
		serviceutil.Fatal("failed to open session database", err)
	}

	sess, err := store.Load(ctx, *flagProfile)
	if err != nil {
		serviceutil.Fatal("failed to load session profile", err)
	}

	var output restyutil.Output
	if *flagDump != "" {
		output = restyutil.NewFilesystemOutput(*flagDump)
	}
	client := fetcher.NewClient(fetcher.Options{Output: output})

	source := scholar.Source{}
	fish := fisher.New(fisher.Options{
		Session:   sess,
		Fetcher:   client,
		Source:    source,
		MeanDelay: *flagDelay,
	})
	return &runner{store: store, fish: fish, fetch: client, source: source}
}

// collect drains the traversal, pausing for challenges along the way, and
// returns the records it yielded. The session is saved back to the store
// regardless of how the traversal ended.
func (r *runner) collect(ctx context.Context, tr *fisher.Traversal) []records.Publication {
	var notifier *notify.Notifier
	if *flagNotify {
		cfg, err := configutil.ReadConfig[Config]("pubfisher.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config for --notify", err)
		}
		notifier = notify.NewNotifier(cfg.Smtp, cfg.NotifyTo)
	}

	var out []records.Publication
	for {
		rec, ok := tr.Next(ctx)
		if !ok {
			if tr.State() == fisher.StatePaused {
				if r.handleChallenge(ctx, tr, notifier) {
					continue
				}
			}
			break
		}

		if *flagBibtex {
			err := r.source.EnrichBibTeX(ctx, r.fetch, r.fish.Session(), &rec)
			if err != nil && !errors.Is(err, scholar.ErrNoSourceID) {
				slog.Warn("failed to fetch bibtex", "id", rec.ID, "err", err)
			}
		}
		out = append(out, rec)
		if *flagMax > 0 && len(out) >= *flagMax {
			break
		}
	}

	if err := r.store.Save(ctx, *flagProfile, r.fish.Session()); err != nil {
		slog.Error("failed to save session", "err", err)
	}
	if err := tr.Err(); err != nil {
		slog.Error("traversal failed", "err", err, "records_before_failure", len(out))
	}
	if skipped := tr.Skipped(); skipped > 0 {
		slog.Warn("some result rows could not be parsed", "count", skipped)
	}
	return out
}

// handleChallenge reports true when the traversal was resumed and the caller
// should keep pulling.
func (r *runner) handleChallenge(ctx context.Context, tr *fisher.Traversal, notifier *notify.Notifier) bool {
	chal := tr.PendingChallenge()
	if chal == nil {
		return false
	}

	if notifier != nil {
		if err := notifier.ChallengePaused(ctx, tr.Query(), chal); err != nil {
			slog.Error("failed to send challenge notification", "err", err)
		}
	}
	if !*flagInteractive {
		slog.Info("paused on a verification challenge",
			"url", chal.PageURL,
			"token", chal.Token,
		)
		fmt.Fprintf(os.Stderr,
			"verification required. rerun with --interactive to solve it in a browser.\n")
		return false
	}

	slog.Info("waiting for you to solve the challenge in the browser", "url", chal.PageURL)
	solution, err := interactive.SolveChallenge(ctx, r.fish.Session(), chal, interactive.Options{})
	if err != nil {
		slog.Error("challenge left unsolved", "err", err)
		return false
	}
	if err := tr.Resume(chal.Token, solution); err != nil {
		slog.Error("failed to resume traversal", "err", err)
		return false
	}
	return true
}

func printRecords(recs []records.Publication) {
	if *flagJson {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(recs); err != nil {
			serviceutil.Fatal("failed to encode records", err)
		}
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Year", "Cited by", "Title", "Authors"})
	for _, rec := range recs {
		t.AppendRow(table.Row{
			rec.ID,
			rec.Year,
			rec.CitationCount,
			truncate(rec.Title, 60),
			truncate(rec.Authors, 40),
		})
	}
	t.Render()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
