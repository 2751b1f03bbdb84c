package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/internal/types"
	"github.com/xhad/quotes/internal/validation"
	"github.com/xhad/quotes/pkg/comparison"
	"github.com/xhad/quotes/pkg/metrics"
	"github.com/xhad/quotes/pkg/store"
)

var (
	ErrForbidden    = errors.New("report belongs to another user")
	ErrInvalidToken = errors.New("share link is invalid")
	ErrShareExpired = errors.New("share link has expired")
)

const (
	MaxTitleLength  = 200
	DefaultShareTTL = 30 * 24 * time.Hour
	sharePath       = "/api/share/"
)

// Input holds the fields a broker can set on a report.
type Input struct {
	Title      string                          `json:"title"`
	ClientName string                          `json:"client_name"`
	Notes      string                          `json:"notes"`
	Documents  []models.ParsedBenefitsDocument `json:"documents"`
}

func (in *Input) Validate() validation.Errors {
	var errs validation.Errors
	title := strings.TrimSpace(in.Title)
	if title == "" {
		errs.Add("title", "title is required")
	} else if utf8.RuneCountInString(title) > MaxTitleLength {
		errs.Add("title", "title must be at most %d characters", MaxTitleLength)
	}
	if len(in.Documents) == 0 {
		errs.Add("documents", "at least one document is required")
	}
	errs = append(errs, comparison.ValidateDocuments(in.Documents)...)
	return errs
}

type ServiceConfig struct {
	Store     types.ReportStore
	Secret    string
	TTL       time.Duration
	PublicURL string
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Now       func() time.Time
}

// Service manages saved reports on behalf of their owners and hands out share links.
type Service struct {
	config ServiceConfig
	logger *zap.Logger
}

type shareClaims struct {
	ReportID string `json:"rid"`
	jwt.RegisteredClaims
}

func NewService(config ServiceConfig) (*Service, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("report service needs a store")
	}
	if config.Secret == "" {
		return nil, fmt.Errorf("report service needs a share secret")
	}
	if config.TTL == 0 {
		config.TTL = DefaultShareTTL
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	config.PublicURL = strings.TrimRight(config.PublicURL, "/")
	return &Service{config: config, logger: config.Logger}, nil
}

func (s *Service) now() time.Time {
	return s.config.Now().UTC().Truncate(time.Microsecond)
}

func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*models.Report, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return nil, errs
	}

	now := s.now()
	r := &models.Report{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      strings.TrimSpace(in.Title),
		ClientName: strings.TrimSpace(in.ClientName),
		Notes:      in.Notes,
		Documents:  in.Documents,
		Comparison: comparison.Build(in.Documents),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.config.Store.Create(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("Report created", zap.String("report_id", r.ID), zap.String("owner", ownerID), zap.Int("documents", len(r.Documents)))
	return r, nil
}

// Get returns the report when ownerID owns it.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*models.Report, error) {
	r, err := s.config.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]models.Report, error) {
	return s.config.Store.List(ctx, ownerID)
}

func (s *Service) Update(ctx context.Context, ownerID, id string, in Input) (*models.Report, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return nil, errs
	}
	r, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	r.Title = strings.TrimSpace(in.Title)
	r.ClientName = strings.TrimSpace(in.ClientName)
	r.Notes = in.Notes
	r.Documents = in.Documents
	r.Comparison = comparison.Build(in.Documents)
	r.UpdatedAt = s.now()
	if err := s.config.Store.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.config.Store.Delete(ctx, id)
}

// Share issues a new share link. Any earlier link of the report stops working.
func (s *Service) Share(ctx context.Context, ownerID, id string) (*models.ShareLink, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}

	now := s.now()
	expires := now.Add(s.config.TTL)
	claims := shareClaims{
		ReportID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign share token: %w", err)
	}

	if err := s.config.Store.SetShareToken(ctx, id, token, &expires); err != nil {
		return nil, err
	}
	s.config.Metrics.ReportShared()
	s.logger.Info("Report shared", zap.String("report_id", id), zap.Time("expires_at", expires))

	return &models.ShareLink{
		Token:     token,
		URL:       s.config.PublicURL + sharePath + token,
		ExpiresAt: expires,
	}, nil
}

// Unshare revokes the report's share link.
func (s *Service) Unshare(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.config.Store.SetShareToken(ctx, id, "", nil)
}

// Shared resolves a share token to its report. The token must be validly signed,
// unexpired, and still the report's active token.
func (s *Service) Shared(ctx context.Context, token string) (*models.Report, error) {
	var claims shareClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(s.config.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.config.Now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrShareExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case claims.ReportID == "":
		return nil, ErrInvalidToken
	}

	r, err := s.config.Store.GetByShareToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		// revoked or replaced by a newer link
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if r.ID != claims.ReportID {
		return nil, ErrInvalidToken
	}
	return r, nil
}
