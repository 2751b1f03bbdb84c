package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/quotes/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "nested", "state.json"))
}

func TestEmptyStore(t *testing.T) {
	s := newStore(t)

	docs, err := s.Documents()
	require.NoError(t, err)
	assert.Empty(t, docs)

	data, err := s.QuestionnaireData()
	require.NoError(t, err)
	assert.Nil(t, data)

	results, err := s.QuestionnaireResults()
	require.NoError(t, err)
	assert.Nil(t, results)

	mode, err := s.UploadMode()
	require.NoError(t, err)
	assert.Equal(t, UploadModeMultiple, mode)
}

func TestRoundTrip(t *testing.T) {
	s := newStore(t)

	docs := []models.ParsedBenefitsDocument{
		{ID: "1", FileName: "a.pdf", Carrier: "Sun Life", Category: models.CategoryCurrent, TotalMonthlyPremium: 1200},
	}
	require.NoError(t, s.SaveDocuments(docs))
	require.NoError(t, s.SaveQuestionnaireData(&models.QuestionnaireData{CompanyName: "Acme", EmployeeCount: 12}))
	require.NoError(t, s.SaveQuestionnaireResults(&models.QuestionnaireResults{
		DocumentIDs: []string{"1"},
		CompletedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}))
	require.NoError(t, s.SetUploadMode(UploadModeSingle))

	// A fresh handle reads what the previous one wrote.
	reopened := Open(s.Path())

	gotDocs, err := reopened.Documents()
	require.NoError(t, err)
	assert.Equal(t, docs[0].Carrier, gotDocs[0].Carrier)
	assert.Equal(t, 1200.0, gotDocs[0].TotalMonthlyPremium)

	data, err := reopened.QuestionnaireData()
	require.NoError(t, err)
	assert.Equal(t, "Acme", data.CompanyName)

	results, err := reopened.QuestionnaireResults()
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, results.DocumentIDs)

	mode, err := reopened.UploadMode()
	require.NoError(t, err)
	assert.Equal(t, UploadModeSingle, mode)
}

func TestAppendDocumentsReplacesSameFile(t *testing.T) {
	s := newStore(t)

	_, err := s.AppendDocuments(
		models.ParsedBenefitsDocument{ID: "1", FileName: "a.pdf", Category: models.CategoryCurrent},
		models.ParsedBenefitsDocument{ID: "2", FileName: "b.pdf", Category: models.CategoryAlternative},
	)
	require.NoError(t, err)

	all, err := s.AppendDocuments(
		models.ParsedBenefitsDocument{ID: "3", FileName: "a.pdf", Category: models.CategoryCurrent},
		models.ParsedBenefitsDocument{ID: "4", FileName: "a.pdf", Category: models.CategoryRenegotiated},
	)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ID)
	assert.Equal(t, "2", all[1].ID)
	assert.Equal(t, "4", all[2].ID)
}

func TestCorruptFileAndReset(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	_, err := s.Documents()
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.ErrorIs(t, s.SaveDocuments(nil), ErrCorrupt)

	require.NoError(t, s.Reset(KeyParsedDocuments))
	docs, err := s.Documents()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestNullFileIsCorrupt(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("null"), 0o644))

	assert.ErrorIs(t, s.SetUploadMode(UploadModeSingle), ErrCorrupt)
	_, err := s.AppendDocuments(models.ParsedBenefitsDocument{FileName: "a.pdf"})
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = s.Documents()
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, s.Reset(KeyUploadMode))
	require.NoError(t, s.SetUploadMode(UploadModeSingle))
	mode, err := s.UploadMode()
	require.NoError(t, err)
	assert.Equal(t, UploadModeSingle, mode)
}

func TestCorruptEntry(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"parsedBenefitsDocuments": "oops", "uploadMode": "sideways"}`), 0o644))

	_, err := s.Documents()
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), KeyParsedDocuments)

	_, err = s.UploadMode()
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, s.Reset())
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, s.Reset())
}

func TestResetSingleKeyKeepsOthers(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SetUploadMode(UploadModeSingle))
	require.NoError(t, s.SaveQuestionnaireData(&models.QuestionnaireData{CompanyName: "Acme"}))

	require.NoError(t, s.Reset(KeyQuestionnaireData))

	data, err := s.QuestionnaireData()
	require.NoError(t, err)
	assert.Nil(t, data)

	mode, err := s.UploadMode()
	require.NoError(t, err)
	assert.Equal(t, UploadModeSingle, mode)

	assert.Error(t, s.Reset("somethingElse"))
}

func TestSetUploadModeRejectsUnknown(t *testing.T) {
	s := newStore(t)
	assert.Error(t, s.SetUploadMode("bulk"))
}
