package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xhad/quotes/internal/models"
)

// Keys of the persisted state file.
const (
	KeyParsedDocuments      = "parsedBenefitsDocuments"
	KeyQuestionnaireResults = "quoteQuestionnaireResults"
	KeyQuestionnaireData    = "quoteQuestionnaireData"
	KeyUploadMode           = "uploadMode"
)

var Keys = []string{KeyParsedDocuments, KeyQuestionnaireResults, KeyQuestionnaireData, KeyUploadMode}

// ErrCorrupt is returned when the state file or one of its entries cannot be decoded.
var ErrCorrupt = errors.New("stored state is corrupt")

type UploadMode string

const (
	UploadModeSingle   UploadMode = "single"
	UploadModeMultiple UploadMode = "multiple"
)

// Store persists quoting progress between runs as a JSON object of raw entries.
type Store struct {
	path string
	mu   sync.Mutex
}

func Open(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) readAll() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := map[string]json.RawMessage{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	// a top-level null decodes without error into a nil map
	if entries == nil {
		return nil, fmt.Errorf("%w: %s: not a JSON object", ErrCorrupt, s.path)
	}
	return entries, nil
}

func (s *Store) writeAll(entries map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// get decodes one key into v and reports whether it was present.
func (s *Store) get(key string, v interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return false, err
	}
	raw, ok := entries[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: key %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func (s *Store) set(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return err
	}
	entries[key] = raw
	return s.writeAll(entries)
}

// Reset removes the given keys, or the whole file when no key is given.
// It also recovers from a corrupt file.
func (s *Store) Reset(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	for _, k := range keys {
		if !validKey(k) {
			return fmt.Errorf("unknown state key %q", k)
		}
	}

	entries, err := s.readAll()
	if errors.Is(err, ErrCorrupt) {
		entries = map[string]json.RawMessage{}
	} else if err != nil {
		return err
	}
	for _, k := range keys {
		delete(entries, k)
	}
	return s.writeAll(entries)
}

func validKey(k string) bool {
	for _, known := range Keys {
		if k == known {
			return true
		}
	}
	return false
}

func (s *Store) Documents() ([]models.ParsedBenefitsDocument, error) {
	var docs []models.ParsedBenefitsDocument
	_, err := s.get(KeyParsedDocuments, &docs)
	return docs, err
}

func (s *Store) SaveDocuments(docs []models.ParsedBenefitsDocument) error {
	return s.set(KeyParsedDocuments, docs)
}

// AppendDocuments adds docs to the stored list, replacing entries with the same file name and category.
func (s *Store) AppendDocuments(docs ...models.ParsedBenefitsDocument) ([]models.ParsedBenefitsDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	var existing []models.ParsedBenefitsDocument
	if raw, ok := entries[KeyParsedDocuments]; ok {
		if err := json.Unmarshal(raw, &existing); err != nil {
			return nil, fmt.Errorf("%w: key %s: %v", ErrCorrupt, KeyParsedDocuments, err)
		}
	}

	for _, d := range docs {
		replaced := false
		for i := range existing {
			if existing[i].FileName == d.FileName && existing[i].Category == d.Category {
				existing[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, d)
		}
	}

	raw, err := json.Marshal(existing)
	if err != nil {
		return nil, err
	}
	entries[KeyParsedDocuments] = raw
	return existing, s.writeAll(entries)
}

func (s *Store) QuestionnaireData() (*models.QuestionnaireData, error) {
	var data models.QuestionnaireData
	ok, err := s.get(KeyQuestionnaireData, &data)
	if err != nil || !ok {
		return nil, err
	}
	return &data, nil
}

func (s *Store) SaveQuestionnaireData(data *models.QuestionnaireData) error {
	return s.set(KeyQuestionnaireData, data)
}

func (s *Store) QuestionnaireResults() (*models.QuestionnaireResults, error) {
	var results models.QuestionnaireResults
	ok, err := s.get(KeyQuestionnaireResults, &results)
	if err != nil || !ok {
		return nil, err
	}
	return &results, nil
}

func (s *Store) SaveQuestionnaireResults(results *models.QuestionnaireResults) error {
	return s.set(KeyQuestionnaireResults, results)
}

// UploadMode defaults to multiple when nothing was stored.
func (s *Store) UploadMode() (UploadMode, error) {
	var mode UploadMode
	ok, err := s.get(KeyUploadMode, &mode)
	if err != nil {
		return "", err
	}
	if !ok {
		return UploadModeMultiple, nil
	}
	if mode != UploadModeSingle && mode != UploadModeMultiple {
		return "", fmt.Errorf("%w: key %s: unknown upload mode %q", ErrCorrupt, KeyUploadMode, mode)
	}
	return mode, nil
}

func (s *Store) SetUploadMode(mode UploadMode) error {
	if mode != UploadModeSingle && mode != UploadModeMultiple {
		return fmt.Errorf("invalid upload mode %q", mode)
	}
	return s.set(KeyUploadMode, mode)
}
