package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/pkg/pipeline"
	"github.com/xhad/quotes/pkg/questionnaire"
	"github.com/xhad/quotes/pkg/state"
)

func TestParseUploads(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "sunlife.pdf")
	b := filepath.Join(dir, "Manulife.PDF")
	for _, p := range []string{a, b} {
		require.NoError(t, os.WriteFile(p, []byte("%PDF-1.7"), 0644))
	}

	uploads, err := parseUploads([]string{a + "=current", b}, models.CategoryAlternative)
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "sunlife.pdf", uploads[0].FileName)
	assert.Equal(t, models.CategoryCurrent, uploads[0].Category)
	assert.Equal(t, "Manulife.PDF", uploads[1].FileName)
	assert.Equal(t, models.CategoryAlternative, uploads[1].Category)

	rc, err := uploads[0].Open()
	require.NoError(t, err)
	rc.Close()
}

func TestParseUploadsRejects(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0644))

	_, err := parseUploads([]string{txt}, models.CategoryCurrent)
	assert.ErrorContains(t, err, "only PDF documents are supported")

	_, err = parseUploads([]string{filepath.Join(dir, "missing.pdf")}, models.CategoryCurrent)
	assert.Error(t, err)

	_, err = parseUploads([]string{filepath.Join(dir, "a.pdf") + "=cheapest"}, models.CategoryCurrent)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Sun Life", truncate("Sun Life", 10))
	assert.Equal(t, "Canada Li…", truncate("Canada Life Assurance", 10))
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"process"},
		{"compare"},
		{"questionnaire", "finalize"},
		{"report", "share"},
		{"state", "reset"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

// scriptedProcessor fails a file as many times as listed in failures, then succeeds.
type scriptedProcessor struct {
	failures map[string]int
	session  *questionnaire.Session
	calls    []string
	seen     []pipeline.Lifecycle
}

func (p *scriptedProcessor) ProcessDocument(ctx context.Context, fileName string, r io.Reader, category models.Category) (*models.ParsedBenefitsDocument, error) {
	p.calls = append(p.calls, fileName)
	if p.session != nil {
		p.seen = append(p.seen, p.session.Lifecycle())
	}
	if p.failures[fileName] > 0 {
		p.failures[fileName]--
		return nil, errors.New("AI parsing failed: bad json")
	}
	return &models.ParsedBenefitsDocument{
		ID:                  "id-" + fileName,
		FileName:            fileName,
		Carrier:             "Carrier " + fileName,
		Category:            category,
		TotalMonthlyPremium: 100,
	}, nil
}

func memoryUpload(name string, category models.Category) pipeline.Upload {
	return pipeline.Upload{
		FileName: name,
		Category: category,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte("%PDF-1.7"))), nil
		},
	}
}

func newBatch(t *testing.T, st *state.Store, proc *scriptedProcessor, retries int) *batchRun {
	t.Helper()
	session, err := questionnaire.NewSession(questionnaire.SessionConfig{Store: st})
	require.NoError(t, err)
	proc.session = session
	return &batchRun{Processor: proc, State: st, Session: session, Timeout: time.Second, Retries: retries}
}

func TestBatchRunSingleModeRefusesSeveralFiles(t *testing.T) {
	st := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, st.SetUploadMode(state.UploadModeSingle))
	proc := &scriptedProcessor{}
	b := newBatch(t, st, proc, 0)

	_, _, err := b.run(context.Background(), []pipeline.Upload{
		memoryUpload("a.pdf", models.CategoryCurrent),
		memoryUpload("b.pdf", models.CategoryAlternative),
	})
	assert.ErrorContains(t, err, "upload mode")
	assert.Empty(t, proc.calls)
	assert.Equal(t, pipeline.StatusIdle, b.Session.Lifecycle())

	summary, docs, err := b.run(context.Background(), []pipeline.Upload{memoryUpload("a.pdf", models.CategoryCurrent)})
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, summary.Status)
	assert.Len(t, docs, 1)
}

func TestBatchRunRetriesFailedFiles(t *testing.T) {
	st := state.Open(filepath.Join(t.TempDir(), "state.json"))
	proc := &scriptedProcessor{failures: map[string]int{"b.pdf": 2}}
	b := newBatch(t, st, proc, 2)
	var retries []int
	b.OnRetry = func(attempt, failed int) { retries = append(retries, attempt) }

	summary, docs, err := b.run(context.Background(), []pipeline.Upload{
		memoryUpload("a.pdf", models.CategoryCurrent),
		memoryUpload("b.pdf", models.CategoryAlternative),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "b.pdf", "b.pdf"}, proc.calls)
	assert.Equal(t, []int{1, 2}, retries)
	assert.Equal(t, pipeline.StatusCompleted, summary.Status)
	assert.Len(t, docs, 2)

	for _, l := range proc.seen {
		assert.Equal(t, pipeline.StatusProcessing, l)
	}
	assert.Equal(t, pipeline.StatusCompleted, b.Session.Lifecycle())
}

func TestBatchRunStopsRetryingAfterLimit(t *testing.T) {
	st := state.Open(filepath.Join(t.TempDir(), "state.json"))
	proc := &scriptedProcessor{failures: map[string]int{"b.pdf": 5}}
	b := newBatch(t, st, proc, 1)

	summary, docs, err := b.run(context.Background(), []pipeline.Upload{
		memoryUpload("a.pdf", models.CategoryCurrent),
		memoryUpload("b.pdf", models.CategoryAlternative),
	})
	require.NoError(t, err)
	assert.Len(t, proc.calls, 3)
	assert.Equal(t, pipeline.StatusCompletedWithErrors, summary.Status)
	assert.Equal(t, pipeline.StatusCompletedWithErrors, b.Session.Lifecycle())
	require.Len(t, summary.Failed(), 1)
	assert.Equal(t, "b.pdf", summary.Failed()[0].FileName)
	assert.Len(t, docs, 1)
}

func TestBatchRunAccumulatesAcrossRuns(t *testing.T) {
	st := state.Open(filepath.Join(t.TempDir(), "state.json"))

	_, docs, err := newBatch(t, st, &scriptedProcessor{}, 0).run(context.Background(),
		[]pipeline.Upload{memoryUpload("sunlife.pdf", models.CategoryCurrent)})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, docs, err = newBatch(t, st, &scriptedProcessor{}, 0).run(context.Background(), []pipeline.Upload{
		memoryUpload("beneva.pdf", models.CategoryAlternative),
		memoryUpload("sunlife.pdf", models.CategoryCurrent),
	})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	saved, err := st.Documents()
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestBatchRunAllFailed(t *testing.T) {
	st := state.Open(filepath.Join(t.TempDir(), "state.json"))
	b := newBatch(t, st, &scriptedProcessor{failures: map[string]int{"a.pdf": 1}}, 0)

	summary, docs, err := b.run(context.Background(), []pipeline.Upload{memoryUpload("a.pdf", models.CategoryCurrent)})
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, summary.Status)
	assert.Equal(t, pipeline.StatusFailed, b.Session.Lifecycle())
	assert.Empty(t, docs)
}
