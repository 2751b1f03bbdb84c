package types

import (
	"context"
	"io"
	"time"

	"github.com/xhad/quotes/internal/models"
)

// Core interfaces
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, fileName string, r io.Reader, category models.Category) (*models.ParsedBenefitsDocument, error)
}

type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	Get(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, ownerID string) ([]models.Report, error)
	Update(ctx context.Context, report *models.Report) error
	Delete(ctx context.Context, id string) error
	SetShareToken(ctx context.Context, id, token string, until *time.Time) error
	GetByShareToken(ctx context.Context, token string) (*models.Report, error)
}

type VectorStore interface {
	Store(ctx context.Context, chunks []models.DocumentChunk) error
	Query(ctx context.Context, embedding []float32, limit int) ([]models.DocumentChunk, error)
	Close()
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
