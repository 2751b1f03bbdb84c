package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/internal/types"
)

// ErrTimeout marks a file that did not finish within the per-file timeout.
var ErrTimeout = errors.New("processing timed out")

// ErrCancelled marks files that were never attempted because the run was cancelled.
var ErrCancelled = errors.New("processing cancelled")

const DefaultFileTimeout = 8 * time.Minute

// Lifecycle is the processing state the questionnaire waits on.
type Lifecycle string

const (
	StatusIdle                Lifecycle = "idle"
	StatusProcessing          Lifecycle = "processing"
	StatusCompleted           Lifecycle = "completed"
	StatusCompletedWithErrors Lifecycle = "completed_with_errors"
	StatusFailed              Lifecycle = "failed"
)

// Finished reports whether results can be shown.
func (l Lifecycle) Finished() bool {
	return l == StatusCompleted || l == StatusCompletedWithErrors || l == StatusFailed
}

type FileStatus string

const (
	FilePending    FileStatus = "pending"
	FileProcessing FileStatus = "processing"
	FileSucceeded  FileStatus = "succeeded"
	FileFailed     FileStatus = "failed"
	FileCancelled  FileStatus = "cancelled"
)

// Upload is one file queued for processing.
type Upload struct {
	FileName string
	Category models.Category
	Open     func() (io.ReadCloser, error)
}

// FileUpload queues a file from disk.
func FileUpload(path string, category models.Category) Upload {
	return Upload{
		FileName: filepath.Base(path),
		Category: category,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

type FileResult struct {
	Upload   Upload                         `json:"-"`
	FileName string                         `json:"file_name"`
	Category models.Category                `json:"category"`
	Status   FileStatus                     `json:"status"`
	Document *models.ParsedBenefitsDocument `json:"document,omitempty"`
	Err      error                          `json:"-"`
	Message  string                         `json:"error,omitempty"`
	TimedOut bool                           `json:"timed_out,omitempty"`
	Duration time.Duration                  `json:"duration"`
}

// Progress is reported before and after every file.
type Progress struct {
	Index     int           `json:"index"`
	Total     int           `json:"total"`
	FileName  string        `json:"file_name"`
	Status    FileStatus    `json:"status"`
	Message   string        `json:"message,omitempty"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Remaining time.Duration `json:"remaining"`
}

type Summary struct {
	Results []FileResult  `json:"results"`
	Status  Lifecycle     `json:"status"`
	Elapsed time.Duration `json:"elapsed"`
}

func (s *Summary) Documents() []models.ParsedBenefitsDocument {
	var docs []models.ParsedBenefitsDocument
	for _, r := range s.Results {
		if r.Status == FileSucceeded && r.Document != nil {
			docs = append(docs, *r.Document)
		}
	}
	return docs
}

func (s *Summary) Failed() []FileResult {
	var failed []FileResult
	for _, r := range s.Results {
		if r.Status == FileFailed || r.Status == FileCancelled {
			failed = append(failed, r)
		}
	}
	return failed
}

func (s *Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == FileSucceeded {
			n++
		}
	}
	return n
}

type RunnerConfig struct {
	Processor   types.DocumentProcessor
	FileTimeout time.Duration
	OnProgress  func(Progress)
	Logger      *zap.Logger
}

// Runner processes files one at a time; a failed file never stops the batch.
type Runner struct {
	config RunnerConfig
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	status Lifecycle
}

func NewRunner(config RunnerConfig) (*Runner, error) {
	if config.Processor == nil {
		return nil, fmt.Errorf("pipeline runner needs a document processor")
	}
	if config.FileTimeout == 0 {
		config.FileTimeout = DefaultFileTimeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Runner{
		config: config,
		logger: config.Logger,
		now:    time.Now,
		status: StatusIdle,
	}, nil
}

func (r *Runner) Status() Lifecycle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) setStatus(s Lifecycle) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// EstimateRemaining is remaining files times the average time of the files done so far.
func EstimateRemaining(done int, elapsed time.Duration, remaining int) time.Duration {
	if done <= 0 || remaining <= 0 {
		return 0
	}
	avg := elapsed.Seconds() / float64(done)
	return time.Duration(avg * float64(remaining) * float64(time.Second)).Round(time.Second)
}

// Run processes uploads strictly in order.
func (r *Runner) Run(ctx context.Context, uploads []Upload) *Summary {
	r.setStatus(StatusProcessing)
	start := r.now()

	results := make([]FileResult, len(uploads))
	for i, up := range uploads {
		results[i] = FileResult{Upload: up, FileName: up.FileName, Category: up.Category, Status: FilePending}
	}

	var spent time.Duration
	done, failed := 0, 0

	for i := range results {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(results); j++ {
				results[j].Status = FileCancelled
				results[j].Err = ErrCancelled
				results[j].Message = ErrCancelled.Error()
			}
			r.logger.Info("Batch cancelled", zap.Int("remaining", len(results)-i))
			break
		}

		results[i].Status = FileProcessing
		r.report(Progress{
			Index:     i,
			Total:     len(results),
			FileName:  results[i].FileName,
			Status:    FileProcessing,
			Completed: done,
			Failed:    failed,
			Remaining: EstimateRemaining(done, spent, len(results)-i),
		})

		r.processOne(ctx, &results[i])
		spent += results[i].Duration
		done++
		if results[i].Status != FileSucceeded {
			failed++
		}

		r.report(Progress{
			Index:     i,
			Total:     len(results),
			FileName:  results[i].FileName,
			Status:    results[i].Status,
			Message:   results[i].Message,
			Completed: done,
			Failed:    failed,
			Remaining: EstimateRemaining(done, spent, len(results)-i-1),
		})
	}

	summary := &Summary{Results: results, Elapsed: r.now().Sub(start)}
	summary.Status = lifecycleOf(summary)
	r.setStatus(summary.Status)
	return summary
}

// Retry re-runs failed and cancelled files of a previous run, keeping successes as they were.
func (r *Runner) Retry(ctx context.Context, previous *Summary) *Summary {
	var uploads []Upload
	var positions []int
	for i, res := range previous.Results {
		if res.Status == FileFailed || res.Status == FileCancelled {
			uploads = append(uploads, res.Upload)
			positions = append(positions, i)
		}
	}

	merged := &Summary{Results: append([]FileResult(nil), previous.Results...)}
	if len(uploads) == 0 {
		merged.Status = lifecycleOf(merged)
		r.setStatus(merged.Status)
		return merged
	}

	rerun := r.Run(ctx, uploads)
	for k, pos := range positions {
		merged.Results[pos] = rerun.Results[k]
	}
	merged.Elapsed = rerun.Elapsed
	merged.Status = lifecycleOf(merged)
	r.setStatus(merged.Status)
	return merged
}

func (r *Runner) processOne(ctx context.Context, res *FileResult) {
	start := r.now()
	defer func() { res.Duration = r.now().Sub(start) }()

	fctx, cancel := context.WithTimeout(ctx, r.config.FileTimeout)
	defer cancel()

	doc, err := r.process(fctx, res.Upload)
	if err == nil {
		res.Status = FileSucceeded
		res.Document = doc
		r.logger.Info("File processed", zap.String("file", res.FileName), zap.String("carrier", doc.Carrier))
		return
	}

	res.Status = FileFailed
	switch {
	case ctx.Err() != nil:
		res.Status = FileCancelled
		res.Err = ErrCancelled
		res.Message = ErrCancelled.Error()
	case errors.Is(fctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		res.TimedOut = true
		res.Err = fmt.Errorf("%w after %s", ErrTimeout, r.config.FileTimeout)
		res.Message = res.Err.Error()
	case errors.Is(err, ErrTimeout):
		// the processor gave up on its own deadline
		res.TimedOut = true
		res.Err = err
		res.Message = err.Error()
	default:
		res.Err = err
		res.Message = err.Error()
	}
	r.logger.Warn("File failed", zap.String("file", res.FileName), zap.Bool("timed_out", res.TimedOut), zap.Error(res.Err))
}

func (r *Runner) process(ctx context.Context, up Upload) (*models.ParsedBenefitsDocument, error) {
	if up.Open == nil {
		return nil, fmt.Errorf("no content for %s", up.FileName)
	}
	rc, err := up.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", up.FileName, err)
	}
	defer rc.Close()

	return r.config.Processor.ProcessDocument(ctx, up.FileName, rc, up.Category)
}

func (r *Runner) report(p Progress) {
	if r.config.OnProgress != nil {
		r.config.OnProgress(p)
	}
}

func lifecycleOf(s *Summary) Lifecycle {
	if len(s.Results) == 0 {
		return StatusCompleted
	}
	ok := s.Succeeded()
	switch {
	case ok == len(s.Results):
		return StatusCompleted
	case ok == 0:
		return StatusFailed
	default:
		return StatusCompletedWithErrors
	}
}
