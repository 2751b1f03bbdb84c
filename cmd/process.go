package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/internal/types"
	"github.com/xhad/quotes/pkg/pipeline"
	"github.com/xhad/quotes/pkg/questionnaire"
	"github.com/xhad/quotes/pkg/state"
)

var (
	processCategory string
	processRetries  int
	processLocal    bool
	processTimeout  time.Duration
)

var processCmd = &cobra.Command{
	Use:   "process FILE[=CATEGORY]...",
	Short: "Process quote PDFs one at a time and keep the parsed results",
	Long: `Process uploads each quote in order and saves the parsed documents to the
local state file. A category can be given per file as FILE=CATEGORY
(current, renegotiated or alternative); otherwise --category applies.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processCategory, "category", "alternative", "Category for files without one")
	processCmd.Flags().IntVar(&processRetries, "retry", 0, "Retry failed files up to this many times")
	processCmd.Flags().BoolVar(&processLocal, "local", false, "Process in this process instead of through the API")
	processCmd.Flags().DurationVar(&processTimeout, "timeout", 0, "Per-file timeout (default from config)")
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// parseUploads turns FILE or FILE=CATEGORY arguments into uploads.
func parseUploads(args []string, fallback models.Category) ([]pipeline.Upload, error) {
	uploads := make([]pipeline.Upload, 0, len(args))
	for _, arg := range args {
		path, category := arg, fallback
		if i := strings.LastIndex(arg, "="); i > 0 {
			c, err := models.ParseCategory(arg[i+1:])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", arg, err)
			}
			path, category = arg[:i], c
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil, fmt.Errorf("%s: only PDF documents are supported", path)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		uploads = append(uploads, pipeline.FileUpload(path, category))
	}
	return uploads, nil
}

func newProcessor(ctx context.Context) (types.DocumentProcessor, func(), error) {
	if processLocal {
		svc, cleanup, err := newDocumentService(ctx, nil)
		if err != nil {
			return nil, nil, err
		}
		return svc, cleanup, nil
	}
	c, err := newClient()
	if err != nil {
		return nil, nil, err
	}
	return c, func() {}, nil
}

// batchRun processes one set of uploads against the saved state and the questionnaire session.
type batchRun struct {
	Processor  types.DocumentProcessor
	State      *state.Store
	Session    *questionnaire.Session
	Timeout    time.Duration
	Retries    int
	Logger     *zap.Logger
	OnProgress func(pipeline.Progress)
	OnRetry    func(attempt, failed int)
}

// run returns the final summary and every document saved so far, including earlier runs.
func (b *batchRun) run(ctx context.Context, uploads []pipeline.Upload) (*pipeline.Summary, []models.ParsedBenefitsDocument, error) {
	mode, err := b.State.UploadMode()
	if err != nil {
		return nil, nil, err
	}
	if mode == state.UploadModeSingle && len(uploads) > 1 {
		return nil, nil, fmt.Errorf("upload mode is %q; switch with 'quotes state mode multiple' to process %d files", mode, len(uploads))
	}

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Processor:   b.Processor,
		FileTimeout: b.Timeout,
		Logger:      b.Logger,
		OnProgress:  b.OnProgress,
	})
	if err != nil {
		return nil, nil, err
	}

	b.Session.ProcessingStarted()
	summary := runner.Run(ctx, uploads)
	for attempt := 1; attempt <= b.Retries && len(summary.Failed()) > 0 && ctx.Err() == nil; attempt++ {
		if b.OnRetry != nil {
			b.OnRetry(attempt, len(summary.Failed()))
		}
		summary = runner.Retry(ctx, summary)
	}
	b.Session.ProcessingFinished(summary)

	docs, err := b.State.AppendDocuments(summary.Documents()...)
	if err != nil {
		return summary, nil, fmt.Errorf("failed to save parsed documents: %w", err)
	}
	return summary, docs, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	fallback, err := models.ParseCategory(processCategory)
	if err != nil {
		return err
	}
	uploads, err := parseUploads(args, fallback)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc, cleanup, err := newProcessor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	st := openState()
	session, err := questionnaire.NewSession(questionnaire.SessionConfig{Store: st, Logger: logger})
	if err != nil {
		return err
	}

	timeout := processTimeout
	if timeout == 0 {
		timeout = cfg.Processor.FileTimeout
	}

	bar := getProgressBar(len(uploads), "Processing quotes")
	batch := &batchRun{
		Processor:  proc,
		State:      st,
		Session:    session,
		Timeout:    timeout,
		Retries:    processRetries,
		Logger:     logger,
		OnProgress: func(p pipeline.Progress) { showProgress(bar, p) },
		OnRetry: func(attempt, failed int) {
			_ = bar.Finish()
			fmt.Println()
			color.Yellow("Retrying %d failed file(s), attempt %d of %d", failed, attempt, processRetries)
			bar = getProgressBar(failed, "Retrying")
		},
	}

	summary, docs, err := batch.run(ctx, uploads)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	printSummary(summary)
	fmt.Printf("\n%d document(s) saved to %s\n", len(docs), st.Path())
	if session.Ready() {
		color.Green("Questionnaire is complete; run 'quotes questionnaire finalize' for the recommendation.")
	}

	if summary.Status == pipeline.StatusFailed {
		return fmt.Errorf("no document could be processed")
	}
	return nil
}

func showProgress(bar *progressbar.ProgressBar, p pipeline.Progress) {
	if p.Status == pipeline.FileProcessing {
		desc := fmt.Sprintf("%s (%d/%d)", p.FileName, p.Index+1, p.Total)
		if p.Remaining > 0 {
			desc += fmt.Sprintf(" ~%s left", p.Remaining)
		}
		bar.Describe(color.BlueString(desc))
		return
	}

	_ = bar.Clear()
	switch p.Status {
	case pipeline.FileSucceeded:
		color.Green("✓ %s", p.FileName)
	case pipeline.FileCancelled:
		color.Yellow("- %s: %s", p.FileName, p.Message)
	default:
		color.Red("✗ %s: %s", p.FileName, p.Message)
	}
	_ = bar.Add(1)
}

func printSummary(summary *pipeline.Summary) {
	fmt.Println()
	fmt.Printf("Processed %d of %d file(s) in %s\n", summary.Succeeded(), len(summary.Results), summary.Elapsed.Round(time.Second))
	for _, r := range summary.Results {
		if r.Status != pipeline.FileSucceeded {
			continue
		}
		fmt.Printf("  %-30s %-14s %-20s $%.2f/month\n",
			r.FileName, r.Category, r.Document.Carrier, r.Document.TotalMonthlyPremium)
	}
	for _, r := range summary.Failed() {
		color.Red("  %-30s %s", r.FileName, r.Message)
	}

	switch summary.Status {
	case pipeline.StatusCompleted:
		color.Green("All files processed")
	case pipeline.StatusCompletedWithErrors:
		color.Yellow("Some files failed; rerun them with --retry or process them again")
	case pipeline.StatusFailed:
		color.Red("No file could be processed")
	}
}
