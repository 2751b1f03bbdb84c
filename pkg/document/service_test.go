package document

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/pkg/extractor"
	"github.com/xhad/quotes/pkg/metrics"
	"github.com/xhad/quotes/pkg/processor"
)

type fakeExtractor struct {
	err  error
	seen string
}

func (f *fakeExtractor) Extract(ctx context.Context, fileName string, r io.Reader) (*extractor.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(r)
	f.seen = string(data)
	return &extractor.Extraction{
		FileName: fileName,
		Text:     "Sun Life renewal. Dental premium is 1200 per month. Life premium is 300 per month.",
	}, nil
}

type fakeParser struct {
	doc *models.ParsedBenefitsDocument
	err error
}

func (f *fakeParser) Parse(ctx context.Context, ext *extractor.Extraction, category models.Category) (*models.ParsedBenefitsDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.FileName = ext.FileName
	doc.Category = category
	doc.RawText = ext.Text
	return &doc, nil
}

type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type fakeVectorStore struct {
	stored []models.DocumentChunk
}

func (f *fakeVectorStore) Store(ctx context.Context, chunks []models.DocumentChunk) error {
	f.stored = append(f.stored, chunks...)
	return nil
}

func (f *fakeVectorStore) Query(ctx context.Context, embedding []float32, limit int) ([]models.DocumentChunk, error) {
	if limit > len(f.stored) {
		limit = len(f.stored)
	}
	return f.stored[:limit], nil
}

func (f *fakeVectorStore) Close() {}

func sampleDoc() *models.ParsedBenefitsDocument {
	return &models.ParsedBenefitsDocument{
		ID:      "doc-1",
		Carrier: " Sun  Life ",
		PlanOptions: []models.PlanOption{{
			Name: "Renewal",
			Coverages: []models.Coverage{
				{Name: "Dental", MonthlyPremium: 1200},
				{Name: "Basic Life", MonthlyPremium: 300},
			},
		}},
	}
}

func TestProcessDocument(t *testing.T) {
	ext := &fakeExtractor{}
	store := &fakeVectorStore{}
	svc, err := NewService(ServiceConfig{
		Extractor:   ext,
		Parser:      &fakeParser{doc: sampleDoc()},
		Processor:   processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 40, ChunkOverlap: 5, MinChunkLength: 5}),
		Embedder:    &fakeEmbedder{},
		VectorStore: store,
		Metrics:     metrics.New(),
	})
	require.NoError(t, err)

	doc, err := svc.ProcessDocument(context.Background(), "sunlife.pdf", strings.NewReader("%PDF"), models.CategoryCurrent)
	require.NoError(t, err)

	assert.Equal(t, "%PDF", ext.seen)
	assert.Equal(t, "Sun Life", doc.Carrier)
	assert.Equal(t, models.CategoryCurrent, doc.Category)
	assert.Equal(t, 1500.0, doc.TotalMonthlyPremium)
	assert.Equal(t, "Dental", doc.PlanOptions[0].Coverages[0].Category)

	require.NotEmpty(t, store.stored)
	assert.Equal(t, "doc-1", store.stored[0].DocumentID)
	assert.NotNil(t, store.stored[0].Embedding)

	results, err := svc.Search(context.Background(), "dental premium", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestProcessDocumentStageFailures(t *testing.T) {
	tests := []struct {
		name    string
		ext     *fakeExtractor
		parser  *fakeParser
		wantErr string
	}{
		{"extraction", &fakeExtractor{err: errors.New("service down")}, &fakeParser{doc: sampleDoc()}, "extraction failed: service down"},
		{"parsing", &fakeExtractor{}, &fakeParser{err: errors.New("bad json")}, "AI parsing failed: bad json"},
		{"empty", &fakeExtractor{}, &fakeParser{doc: &models.ParsedBenefitsDocument{}}, processor.ErrEmptyDocument.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(ServiceConfig{Extractor: tt.ext, Parser: tt.parser})
			require.NoError(t, err)

			_, err = svc.ProcessDocument(context.Background(), "x.pdf", strings.NewReader(""), models.CategoryAlternative)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIndexFailureDoesNotFailProcessing(t *testing.T) {
	svc, err := NewService(ServiceConfig{
		Extractor:   &fakeExtractor{},
		Parser:      &fakeParser{doc: sampleDoc()},
		Processor:   processor.NewWithConfig(processor.ProcessorConfig{}),
		Embedder:    &fakeEmbedder{err: errors.New("ollama down")},
		VectorStore: &fakeVectorStore{},
	})
	require.NoError(t, err)

	doc, err := svc.ProcessDocument(context.Background(), "x.pdf", strings.NewReader(""), models.CategoryCurrent)
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestSearchDisabled(t *testing.T) {
	svc, err := NewService(ServiceConfig{Extractor: &fakeExtractor{}, Parser: &fakeParser{doc: sampleDoc()}})
	require.NoError(t, err)

	_, err = svc.Search(context.Background(), "dental", 5)
	assert.ErrorIs(t, err, ErrSearchDisabled)

	_, err = NewService(ServiceConfig{})
	assert.Error(t, err)
}
