package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/internal/types"
	"github.com/xhad/quotes/pkg/store"
)

func newReport(owner, title string, created time.Time) *models.Report {
	return &models.Report{
		ID:      uuid.NewString(),
		OwnerID: owner,
		Title:   title,
		Documents: []models.ParsedBenefitsDocument{
			{ID: "doc-1", FileName: "current.pdf", Carrier: "Sun Life", Category: models.CategoryCurrent, TotalMonthlyPremium: 1500},
		},
		Comparison: &models.Comparison{Columns: []models.ComparisonColumn{{DocumentID: "doc-1", Carrier: "Sun Life", MonthlyTotal: 1500}}},
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

// testReportStore runs the same checks against every ReportStore implementation.
func testReportStore(t *testing.T, s types.ReportStore) {
	ctx := context.Background()
	owner := uuid.NewString()
	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	older := newReport(owner, "Q1 renewal", base)
	newer := newReport(owner, "Q2 marketing", base.Add(time.Hour))
	other := newReport(uuid.NewString(), "Someone else", base.Add(2*time.Hour))
	for _, r := range []*models.Report{older, newer, other} {
		require.NoError(t, s.Create(ctx, r))
	}

	got, err := s.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q1 renewal", got.Title)
	assert.Equal(t, "Sun Life", got.Documents[0].Carrier)
	require.NotNil(t, got.Comparison)
	assert.Equal(t, 1500.0, got.Comparison.Columns[0].MonthlyTotal)
	assert.True(t, base.Equal(got.CreatedAt))

	list, err := s.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	empty, err := s.List(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)

	got.Title = "Q1 renewal (final)"
	got.Notes = "client prefers lower deductible"
	got.UpdatedAt = base.Add(3 * time.Hour)
	require.NoError(t, s.Update(ctx, got))
	updated, err := s.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q1 renewal (final)", updated.Title)
	assert.Equal(t, "client prefers lower deductible", updated.Notes)
	assert.Equal(t, owner, updated.OwnerID)

	until := base.Add(24 * time.Hour)
	token := uuid.NewString()
	require.NoError(t, s.SetShareToken(ctx, older.ID, token, &until))
	shared, err := s.GetByShareToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, older.ID, shared.ID)
	assert.Equal(t, token, shared.ShareToken)
	require.NotNil(t, shared.SharedUntil)
	assert.True(t, until.Equal(*shared.SharedUntil))

	require.NoError(t, s.SetShareToken(ctx, older.ID, "", nil))
	_, err = s.GetByShareToken(ctx, token)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetByShareToken(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Delete(ctx, older.ID))
	_, err = s.Get(ctx, older.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	missing := newReport(owner, "missing", base)
	assert.ErrorIs(t, s.Update(ctx, missing), store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, missing.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.SetShareToken(ctx, missing.ID, "x", nil), store.ErrNotFound)
}

func TestMemoryReportStore(t *testing.T) {
	testReportStore(t, store.NewMemoryReportStore())
}

func TestMemoryReportStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryReportStore()
	r := newReport("owner", "Copy check", time.Now().UTC())
	require.NoError(t, s.Create(ctx, r))

	r.Documents[0].Carrier = "changed"
	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sun Life", got.Documents[0].Carrier)

	got.Title = "changed"
	again, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Copy check", again.Title)

	assert.Error(t, s.Create(ctx, r))
}

func TestPostgresReportStore(t *testing.T) {
	s, err := store.NewReportStore(context.Background(), store.ReportStoreConfig{
		ConnString: testDatabaseURL(t),
		TableName:  "test_reports",
	})
	require.NoError(t, err)
	defer s.Close()

	testReportStore(t, s)
}
