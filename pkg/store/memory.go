package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xhad/quotes/internal/models"
)

// MemoryReportStore is a ReportStore for tests and local runs without Postgres.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports map[string]*models.Report
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[string]*models.Report)}
}

func (m *MemoryReportStore) Create(ctx context.Context, report *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[report.ID]; ok {
		return fmt.Errorf("report %s already exists", report.ID)
	}
	c, err := clone(report)
	if err != nil {
		return err
	}
	m.reports[report.ID] = c
	return nil
}

func (m *MemoryReportStore) Get(ctx context.Context, id string) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r)
}

func (m *MemoryReportStore) List(ctx context.Context, ownerID string) ([]models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reports := []models.Report{}
	for _, r := range m.reports {
		if r.OwnerID != ownerID {
			continue
		}
		c, err := clone(r)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *c)
	}
	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].CreatedAt.After(reports[j].CreatedAt)
		}
		return reports[i].ID < reports[j].ID
	})
	return reports, nil
}

// Update replaces the editable fields. Ownership and sharing are left alone.
func (m *MemoryReportStore) Update(ctx context.Context, report *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.reports[report.ID]
	if !ok {
		return ErrNotFound
	}
	c, err := clone(report)
	if err != nil {
		return err
	}
	existing.Title = c.Title
	existing.ClientName = c.ClientName
	existing.Notes = c.Notes
	existing.Documents = c.Documents
	existing.Comparison = c.Comparison
	existing.UpdatedAt = c.UpdatedAt
	return nil
}

func (m *MemoryReportStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[id]; !ok {
		return ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *MemoryReportStore) SetShareToken(ctx context.Context, id, token string, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reports[id]
	if !ok {
		return ErrNotFound
	}
	r.ShareToken = token
	r.SharedUntil = nil
	if token != "" && until != nil {
		u := *until
		r.SharedUntil = &u
	}
	return nil
}

func (m *MemoryReportStore) GetByShareToken(ctx context.Context, token string) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if token == "" {
		return nil, ErrNotFound
	}
	for _, r := range m.reports {
		if r.ShareToken == token {
			return clone(r)
		}
	}
	return nil, ErrNotFound
}

// clone deep copies through JSON so callers never share slices with the store.
func clone(r *models.Report) (*models.Report, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var c models.Report
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	// not serialized
	c.ShareToken = r.ShareToken
	return &c, nil
}
