package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/internal/types"
	"github.com/xhad/quotes/pkg/extractor"
	"github.com/xhad/quotes/pkg/llm"
	"github.com/xhad/quotes/pkg/metrics"
	"github.com/xhad/quotes/pkg/processor"
)

// ErrSearchDisabled is returned by Search when no vector index is configured.
var ErrSearchDisabled = errors.New("document search is not enabled")

type Extractor interface {
	Extract(ctx context.Context, fileName string, r io.Reader) (*extractor.Extraction, error)
}

type Parser interface {
	Parse(ctx context.Context, ext *extractor.Extraction, category models.Category) (*models.ParsedBenefitsDocument, error)
}

type ServiceConfig struct {
	Extractor Extractor
	Parser    Parser
	Processor processor.Processor

	// Optional search index
	Embedder    types.Embedder
	VectorStore types.VectorStore

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Service runs one quote document through extraction, AI parsing and normalization.
type Service struct {
	config ServiceConfig
	logger *zap.Logger
}

func NewService(config ServiceConfig) (*Service, error) {
	if config.Extractor == nil || config.Parser == nil {
		return nil, fmt.Errorf("document service needs an extractor and a parser")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Service{config: config, logger: config.Logger}, nil
}

func (s *Service) ProcessDocument(ctx context.Context, fileName string, r io.Reader, category models.Category) (*models.ParsedBenefitsDocument, error) {
	start := time.Now()

	ext, err := s.config.Extractor.Extract(ctx, fileName, r)
	if err != nil {
		s.config.Metrics.DocumentProcessed("extract_failed")
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	s.config.Metrics.ObserveStage("extract", time.Since(start))

	parseStart := time.Now()
	doc, err := s.config.Parser.Parse(ctx, ext, category)
	if err != nil {
		s.config.Metrics.DocumentProcessed("parse_failed")
		return nil, fmt.Errorf("AI parsing failed: %w", err)
	}
	s.config.Metrics.ObserveStage("parse", time.Since(parseStart))

	if err := processor.Normalize(doc); err != nil {
		s.config.Metrics.DocumentProcessed("empty")
		return nil, err
	}

	if s.searchEnabled() {
		if err := s.index(ctx, doc); err != nil {
			// Search is a convenience; the parsed quote is still returned.
			s.logger.Warn("Failed to index document", zap.String("file", fileName), zap.Error(err))
		}
	}

	s.config.Metrics.DocumentProcessed("success")
	s.config.Metrics.ObserveStage("total", time.Since(start))
	s.logger.Info("Document processed",
		zap.String("file", fileName),
		zap.String("carrier", doc.Carrier),
		zap.String("category", string(category)),
		zap.Int("plan_options", len(doc.PlanOptions)),
		zap.Duration("took", time.Since(start)))

	return doc, nil
}

func (s *Service) searchEnabled() bool {
	return s.config.Embedder != nil && s.config.VectorStore != nil
}

func (s *Service) index(ctx context.Context, doc *models.ParsedBenefitsDocument) error {
	chunks := s.config.Processor.ChunkDocument(doc)
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := s.config.Embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	return s.config.VectorStore.Store(ctx, chunks)
}

// Search returns the indexed chunks closest to the query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.DocumentChunk, error) {
	if !s.searchEnabled() {
		return nil, ErrSearchDisabled
	}

	embeddings, err := s.config.Embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to create query embeddings: %w", err)
	}
	return s.config.VectorStore.Query(ctx, llm.FlattenEmbeddings(embeddings), limit)
}
