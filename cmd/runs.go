package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bookgen/internal/model"
	"github.com/sells-group/bookgen/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect generation run history",
	Long:  "Commands for listing and viewing past book-generation runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run, including its stage history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		stages, err := st.ListStages(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show stages")
		}

		out := struct {
			*model.Run
			StageHistory []model.StageRecord `json:"stage_history,omitempty"`
		}{Run: run, StageHistory: stages}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, complete, failed, dry_run)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROBLEM\tSTATUS\tCHAPTERS\tCREATED\tDURATION")
	for _, r := range runs {
		problem := r.Problem
		if len(problem) > 40 {
			problem = problem[:37] + "..."
		}
		chapters := "-"
		if r.Result != nil {
			chapters = fmt.Sprintf("%d", r.Result.Chapters)
		}
		dur := "-"
		if r.Status == model.RunStatusComplete || r.Status == model.RunStatusFailed {
			dur = r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			problem,
			r.Status,
			chapters,
			r.CreatedAt.Format(time.RFC3339),
			dur,
		)
	}
	_ = w.Flush()
}
