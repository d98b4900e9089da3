package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cachebuster/pkg/cloudflare"
	"cachebuster/pkg/commands"
	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
	"cachebuster/pkg/purge"
	"cachebuster/pkg/report"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <url>...",
	Short: "Purge URLs without going through Discord",
	Long: `Purge one or more URLs with the same prefix rule and API client the bot uses.
Purges run concurrently, up to dispatch.workers at a time.

Examples:
  cachebuster purge https://cdn.example.com/app.js https://cdn.example.com/app.css`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runPurge,
}

// purgeLine is the rendered result of one URL.
type purgeLine struct {
	url      string
	status   string
	response commands.Response
	err      error
}

func runPurge(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logger.ToLoggerConfig())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	action := purge.NewAction(log, cfg, cloudflare.NewFromConfig(log, cfg))
	reporter := report.NewReporter(log)

	lines := purgeURLs(ctx, action, reporter, args, cfg.Dispatch.Workers)
	failed := writePurgeLines(cmd.OutOrStdout(), lines)
	if failed > 0 {
		return fmt.Errorf("%d of %d purges did not succeed", failed, len(lines))
	}
	return nil
}

// purgeURLs purges every URL, at most limit at a time, and returns the
// results in argument order.
func purgeURLs(ctx context.Context, action *purge.Action, reporter *report.Reporter, urls []string, limit int) []purgeLine {
	lines := make([]purgeLine, len(urls))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, url := range urls {
		g.Go(func() error {
			out := action.Purge(ctx, url)
			resp, err := reporter.RenderOutcome(nil, out)
			lines[i] = purgeLine{url: url, status: outcomeStatus(out), response: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return lines
}

func outcomeStatus(out purge.Outcome) string {
	switch o := out.(type) {
	case purge.Completed:
		if o.Result.Success {
			return "ok"
		}
		return "failed"
	case purge.ValidationFailed:
		return "rejected"
	default:
		return "error"
	}
}

// writePurgeLines prints the results and returns how many did not succeed.
func writePurgeLines(w io.Writer, lines []purgeLine) int {
	failed := 0
	for _, line := range lines {
		if line.status != "ok" {
			failed++
		}

		if line.err != nil {
			fmt.Fprintf(w, "[%s] %s: %v\n", line.status, line.url, line.err)
			continue
		}
		for _, embed := range line.response.Embeds {
			fmt.Fprintf(w, "[%s] %s: %s %s\n", line.status, line.url, embed.Title, embed.Description)
			for _, field := range embed.Fields {
				fmt.Fprintf(w, "    %s: %s\n", field.Name, field.Value)
			}
		}
	}
	return failed
}
