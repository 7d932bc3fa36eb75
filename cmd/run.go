package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bookgen/internal/model"
)

var (
	runProblem        string
	runOutDir         string
	runPages          int
	runWordsPerPage   int
	runSampleChapters int
	runMaxWorkers     int
	runResume         bool
	runDryRun         bool
	runStrictJSON     bool
	runOffline        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a book from a problem statement",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		book := cfg.Book
		if runOutDir != "" {
			book.OutDir = runOutDir
		}
		if runPages > 0 {
			book.PagesTotal = runPages
		}
		if runWordsPerPage > 0 {
			book.WordsPerPage = runWordsPerPage
		}
		if runMaxWorkers > 0 {
			book.MaxWorkers = runMaxWorkers
		}
		if cmd.Flags().Changed("sample-chapters") {
			book.SampleChapters = runSampleChapters
		}
		if runResume {
			book.Resume = true
		}
		if runDryRun {
			book.DryRun = true
		}
		if runStrictJSON {
			book.StrictJSON = true
		}

		env, err := initPipeline(ctx, book, runOffline)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Store.CreateRun(ctx, runProblem)
		if err != nil {
			return eris.Wrap(err, "create run")
		}
		if err := env.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			return eris.Wrap(err, "mark run running")
		}

		state, result, runErr := env.Pipeline.Run(ctx, run.ID, runProblem)

		status := model.RunStatusComplete
		switch {
		case runErr != nil:
			status = model.RunStatusFailed
		case book.DryRun:
			status = model.RunStatusDryRun
		}
		if err := env.Store.UpdateRunResult(ctx, run.ID, status, result); err != nil {
			zap.L().Warn("persisting run result failed", zap.Error(err))
		}

		if runErr != nil {
			return eris.Wrapf(runErr, "run %s", run.ID)
		}

		zap.L().Info("book generation complete",
			zap.String("run_id", run.ID),
			zap.Int("chapters", result.Chapters),
			zap.Int("drafted_ok", result.DraftedOK),
			zap.Int("drafts_failed", result.DraftsFailed),
			zap.Int("image_prompts", len(state.ImagePrompts)),
			zap.String("output", result.OutputPath),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runProblem, "problem", "", "problem statement to write the book about (required)")
	runCmd.Flags().StringVar(&runOutDir, "out", "", "output directory (default from config)")
	runCmd.Flags().IntVar(&runPages, "pages", 0, "target total page count")
	runCmd.Flags().IntVar(&runWordsPerPage, "words-per-page", 0, "words per page for draft budgets")
	runCmd.Flags().IntVar(&runSampleChapters, "sample-chapters", 0, "draft only the first N chapters")
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "draft worker pool size")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "resume from checkpoints in the output directory")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "stop after image prompts, skipping drafts and assembly")
	runCmd.Flags().BoolVar(&runStrictJSON, "strict-json", false, "reject stage output that fails schema validation")
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "use stub backends instead of live APIs")
	_ = runCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(runCmd)
}
