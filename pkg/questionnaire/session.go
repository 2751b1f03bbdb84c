package questionnaire

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/pkg/comparison"
	"github.com/xhad/quotes/pkg/pipeline"
)

var (
	ErrProcessingPending = errors.New("document processing has not finished")
	ErrProcessingFailed  = errors.New("no document could be processed")
)

// Persister keeps answers across runs. *state.Store satisfies it.
type Persister interface {
	QuestionnaireData() (*models.QuestionnaireData, error)
	SaveQuestionnaireData(*models.QuestionnaireData) error
	SaveQuestionnaireResults(*models.QuestionnaireResults) error
}

type SessionConfig struct {
	Store  Persister
	Logger *zap.Logger
	Now    func() time.Time
}

// Session walks a broker through the questionnaire while documents are processed.
// Results can only be finalized once processing has finished with at least one document.
type Session struct {
	config SessionConfig
	logger *zap.Logger

	mu        sync.Mutex
	data      models.QuestionnaireData
	lifecycle pipeline.Lifecycle
	documents []models.ParsedBenefitsDocument
	failed    []string
}

func NewSession(config SessionConfig) (*Session, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	s := &Session{config: config, logger: config.Logger, lifecycle: pipeline.StatusIdle}
	if config.Store != nil {
		saved, err := config.Store.QuestionnaireData()
		if err != nil {
			return nil, fmt.Errorf("failed to load questionnaire answers: %w", err)
		}
		if saved != nil {
			s.data = *saved
		}
	}
	if _, ok := ParseStep(s.data.CurrentStep); !ok {
		s.data.CurrentStep = string(StepCompany)
	}
	return s, nil
}

func (s *Session) Data() models.QuestionnaireData {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.data
	data.Priorities = append([]string(nil), s.data.Priorities...)
	return data
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Step(s.data.CurrentStep)
}

// Update applies fn to the answers and saves them. The current step is not changed.
func (s *Session) Update(fn func(*models.QuestionnaireData)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.data.CurrentStep
	fn(&s.data)
	s.data.CurrentStep = step
	return s.save()
}

// Next validates the current step and moves forward when it is valid.
func (s *Session) Next() (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := Step(s.data.CurrentStep)
	if errs := ValidateStep(step, &s.data, s.hasCurrentDocument()); len(errs) > 0 {
		return step, errs
	}
	i := stepIndex(step)
	if i < len(Steps)-1 {
		s.data.CurrentStep = string(Steps[i+1])
	}
	return Step(s.data.CurrentStep), s.save()
}

func (s *Session) Back() (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := stepIndex(Step(s.data.CurrentStep)); i > 0 {
		s.data.CurrentStep = string(Steps[i-1])
	}
	return Step(s.data.CurrentStep), s.save()
}

func (s *Session) Lifecycle() pipeline.Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifecycle
}

func (s *Session) ProcessingStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifecycle = pipeline.StatusProcessing
}

// ProcessingFinished records the outcome of a batch run.
func (s *Session) ProcessingFinished(summary *pipeline.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lifecycle = summary.Status
	s.documents = summary.Documents()
	s.failed = nil
	for _, f := range summary.Failed() {
		s.failed = append(s.failed, f.FileName)
	}
	s.logger.Debug("Processing finished",
		zap.String("status", string(summary.Status)),
		zap.Int("documents", len(s.documents)),
		zap.Int("failed", len(s.failed)))
}

// UseDocuments resumes from documents processed in an earlier run.
func (s *Session) UseDocuments(docs []models.ParsedBenefitsDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents = append([]models.ParsedBenefitsDocument(nil), docs...)
	s.failed = nil
	if len(docs) > 0 {
		s.lifecycle = pipeline.StatusCompleted
	} else {
		s.lifecycle = pipeline.StatusIdle
	}
}

// Ready reports whether Finalize would succeed.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readiness() == nil
}

func (s *Session) readiness() error {
	switch s.lifecycle {
	case pipeline.StatusCompleted, pipeline.StatusCompletedWithErrors:
	case pipeline.StatusFailed:
		return ErrProcessingFailed
	default:
		return ErrProcessingPending
	}
	if errs := Validate(&s.data, s.hasCurrentDocument()); len(errs) > 0 {
		return errs
	}
	return nil
}

// Finalize produces the questionnaire results and saves them.
func (s *Session) Finalize() (*models.QuestionnaireResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readiness(); err != nil {
		return nil, err
	}

	s.data.CurrentStep = string(StepReview)
	results := &models.QuestionnaireResults{
		Data:             s.data,
		ProcessingStatus: string(s.lifecycle),
		FailedFiles:      append([]string(nil), s.failed...),
		Recommendation:   Recommend(comparison.Build(s.documents), &s.data),
		CompletedAt:      s.config.Now().UTC(),
	}
	for _, d := range s.documents {
		results.DocumentIDs = append(results.DocumentIDs, d.ID)
	}

	if err := s.save(); err != nil {
		return nil, err
	}
	if s.config.Store != nil {
		if err := s.config.Store.SaveQuestionnaireResults(results); err != nil {
			return nil, fmt.Errorf("failed to save questionnaire results: %w", err)
		}
	}
	s.logger.Info("Questionnaire completed", zap.String("company", s.data.CompanyName), zap.Int("documents", len(results.DocumentIDs)))
	return results, nil
}

func (s *Session) hasCurrentDocument() bool {
	for _, d := range s.documents {
		if d.Category == models.CategoryCurrent {
			return true
		}
	}
	return false
}

func (s *Session) save() error {
	if s.config.Store == nil {
		return nil
	}
	data := s.data
	if err := s.config.Store.SaveQuestionnaireData(&data); err != nil {
		return fmt.Errorf("failed to save questionnaire answers: %w", err)
	}
	return nil
}
