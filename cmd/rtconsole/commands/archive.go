package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/haivivi/rtconsole/pkg/cli"
	"github.com/haivivi/rtconsole/pkg/console"
	"github.com/haivivi/rtconsole/pkg/kv"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect recorded event histories",
	Long: `Inspect the event histories recorded by the console.

Each console session is archived as a run. The archive of a context lives in
~/.rtconsole/rtconsole/archive/<context> unless archive_dir is configured.

Examples:
  rtconsole archive list
  rtconsole archive dump 20261018T093000-1a2b3c4d
  rtconsole archive dump latest --jq 'select(.type == "response.done") | .response.output'
  rtconsole archive delete 20261018T093000-1a2b3c4d`,
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs",
	RunE:  runArchiveList,
}

var archiveDumpCmd = &cobra.Command{
	Use:   "dump <run|latest>",
	Short: "Print the events of a run, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveDump,
}

var archiveDeleteCmd = &cobra.Command{
	Use:   "delete <run|latest>",
	Short: "Delete a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveDelete,
}

var (
	archiveDir   string
	archiveJQ    string
	archiveFull  bool
	archiveLimit int
)

func init() {
	archiveCmd.PersistentFlags().StringVar(&archiveDir, "archive-dir", "", "archive directory (default: from the context)")
	archiveDumpCmd.Flags().StringVar(&archiveJQ, "jq", "", "jq expression applied to each event")
	archiveDumpCmd.Flags().BoolVar(&archiveFull, "records", false, "print archive records (time, origin, seq) instead of bare events")
	archiveDumpCmd.Flags().IntVar(&archiveLimit, "limit", 0, "stop after this many events (0: all)")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveDumpCmd)
	archiveCmd.AddCommand(archiveDeleteCmd)
}

// openArchiveForCommand opens the archive selected by --archive-dir or the
// context.
func openArchiveForCommand() (*console.Archive, error) {
	dir := archiveDir
	ctxName := ""
	if dir == "" {
		if ctx, err := getContext(); err == nil {
			dir = ctx.GetExtra(cli.ExtraArchiveDir)
			ctxName = ctx.Name
		}
	}
	if dir == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, err
		}
		dir = paths.ArchiveDir(ctxName)
	}
	printVerbose("Archive: %s", dir)

	store, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return console.NewArchive(store), nil
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	a, err := openArchiveForCommand()
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.Runs(cmd.Context())
	if err != nil {
		return err
	}
	return outputResult(runTable(runs), cli.FormatTable)
}

func runTable(runs []console.RunInfo) *cli.Table {
	t := &cli.Table{Headers: []string{"RUN", "STARTED", "DURATION", "EVENTS", "SIZE"}}
	for _, r := range runs {
		t.Rows = append(t.Rows, []string{
			r.ID,
			r.Started.Local().Format(time.DateTime),
			cli.FormatDuration(r.Span()),
			strconv.FormatUint(r.Events, 10),
			cli.FormatBytes(r.Bytes),
		})
	}
	return t
}

// resolveRun maps "latest" to the most recent run.
func resolveRun(ctx context.Context, a *console.Archive, run string) (string, error) {
	if run != "latest" {
		return run, nil
	}
	runs, err := a.Runs(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("archive is empty")
	}
	latest := runs[0]
	for _, r := range runs[1:] {
		if !r.Started.Before(latest.Started) {
			latest = r
		}
	}
	return latest.ID, nil
}

func runArchiveDump(cmd *cobra.Command, args []string) error {
	var query *gojq.Query
	if archiveJQ != "" {
		q, err := gojq.Parse(archiveJQ)
		if err != nil {
			return fmt.Errorf("invalid jq expression: %w", err)
		}
		query = q
	}

	a, err := openArchiveForCommand()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	run, err := resolveRun(ctx, a, args[0])
	if err != nil {
		return err
	}

	items, err := dumpRun(ctx, a, run, query, archiveFull, archiveLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printVerbose("No events in run %s", run)
	}
	return outputResult(items, cli.FormatJSONL)
}

// dumpRun collects the events of run as generic JSON values, through query
// when one is given.
func dumpRun(ctx context.Context, a *console.Archive, run string, query *gojq.Query, records bool, limit int) ([]any, error) {
	var items []any
	n := 0
	for rec, err := range a.Events(ctx, run) {
		if err != nil {
			return nil, err
		}
		if limit > 0 && n >= limit {
			break
		}
		n++

		var ev any
		if err := json.Unmarshal(rec.Raw, &ev); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", rec.Seq, err)
		}
		var item any = ev
		if records {
			item = map[string]any{
				"seq":    int(rec.Seq),
				"time":   rec.Time.Format(time.RFC3339Nano),
				"origin": rec.Origin,
				"event":  ev,
			}
		}
		if query == nil {
			items = append(items, item)
			continue
		}

		iter := query.RunWithContext(ctx, item)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, ok := v.(error); ok {
				return nil, fmt.Errorf("jq: %w", err)
			}
			items = append(items, v)
		}
	}
	return items, nil
}

// findRun returns the run named by run, which may be "latest".
func findRun(ctx context.Context, a *console.Archive, run string) (console.RunInfo, error) {
	id, err := resolveRun(ctx, a, run)
	if err != nil {
		return console.RunInfo{}, err
	}
	runs, err := a.Runs(ctx)
	if err != nil {
		return console.RunInfo{}, err
	}
	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	return console.RunInfo{}, fmt.Errorf("run %q: %w", id, kv.ErrNotFound)
}

func runArchiveDelete(cmd *cobra.Command, args []string) error {
	a, err := openArchiveForCommand()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	run, err := findRun(ctx, a, args[0])
	if err != nil {
		return err
	}
	cli.PrintWarning("Deleting run '%s' (%d events, %s)", run.ID, run.Events, cli.FormatBytes(run.Bytes))
	if err := a.Delete(ctx, run.ID); err != nil {
		return err
	}
	cli.PrintSuccess("Run '%s' deleted", run.ID)
	return nil
}
