package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/rollcall/internal/engine"
	"github.com/lazypower/rollcall/internal/store"
)

var sweepDryRun bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the inactivity sweep now",
	Long: "Evaluates every tracked group and warns or removes inactive members, " +
		"exactly like the daily scheduled sweep. With --dry-run, only prints what would happen.",
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "print the plan without messaging or removing anyone")
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	today := engine.Today(time.Now())

	if sweepDryRun {
		eng, err := engine.New(st, nil, cfg.Moderation, logger)
		if err != nil {
			return err
		}
		plans, err := eng.Plan(ctx, today)
		if err != nil {
			return err
		}
		printPlans(out, plans)
		return nil
	}

	client, err := newTelegramClient(ctx, cfg)
	if err != nil {
		return err
	}
	eng, err := engine.New(st, client, cfg.Moderation, logger)
	if err != nil {
		return err
	}
	results, err := eng.Sweep(ctx, today)
	if err != nil {
		return err
	}
	printResults(out, results)
	return nil
}

func recordName(rec store.ActivityRecord) string {
	if rec.DisplayName != "" {
		return rec.DisplayName
	}
	return strconv.FormatInt(rec.MemberID, 10)
}

func printPlans(w io.Writer, plans []engine.Plan) {
	if len(plans) == 0 {
		fmt.Fprintln(w, "no tracked chats")
		return
	}
	for _, p := range plans {
		fmt.Fprintf(w, "chat %d: %d to warn, %d to remove\n", p.ConversationID, len(p.ToWarn), len(p.ToRemove))
		for _, rec := range p.ToWarn {
			fmt.Fprintf(w, "  warn    %s (last active %s)\n", recordName(rec), rec.LastActive.Format(store.DateLayout))
		}
		for _, rec := range p.ToRemove {
			fmt.Fprintf(w, "  remove  %s (last active %s)\n", recordName(rec), rec.LastActive.Format(store.DateLayout))
		}
	}
}

func printResults(w io.Writer, results []engine.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no tracked chats")
		return
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "chat %d: skipped: %v\n", r.ConversationID, r.Err)
			continue
		}
		fmt.Fprintf(w, "chat %d: warned %d, removed %d, failed %d\n",
			r.ConversationID, len(r.Warned), len(r.Removed), len(r.Failed()))
		for _, o := range r.Failed() {
			fmt.Fprintf(w, "  %s %d: %v\n", o.Action, o.MemberID, o.Err)
		}
		if r.BroadcastErr != nil {
			fmt.Fprintf(w, "  summary: %v\n", r.BroadcastErr)
		}
	}
}
