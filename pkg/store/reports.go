package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xhad/quotes/internal/models"
)

// ErrNotFound is returned when no report matches the id or share token.
var ErrNotFound = errors.New("report not found")

type ReportStoreConfig struct {
	ConnString string
	TableName  string
}

// ReportStore keeps saved comparison reports in Postgres. Documents and the
// comparison table are stored as JSONB.
type ReportStore struct {
	config ReportStoreConfig
	pool   *pgxpool.Pool
}

func NewReportStore(ctx context.Context, config ReportStoreConfig) (*ReportStore, error) {
	if config.TableName == "" {
		config.TableName = "reports"
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	rs := &ReportStore{config: config, pool: pool}
	if err := rs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return rs, nil
}

func (rs *ReportStore) initialize(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			client_name TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			documents JSONB NOT NULL,
			comparison JSONB,
			share_token TEXT UNIQUE,
			shared_until TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, rs.config.TableName)
	if _, err := rs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_owner_idx ON %s (owner_id, created_at DESC)`,
		rs.config.TableName, rs.config.TableName)
	if _, err := rs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

const reportColumns = `id, owner_id, title, client_name, notes, documents, comparison, share_token, shared_until, created_at, updated_at`

func (rs *ReportStore) Create(ctx context.Context, report *models.Report) error {
	documents, comparison, err := encodeReport(report)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rs.config.TableName, reportColumns)
	_, err = rs.pool.Exec(ctx, stmt,
		report.ID, report.OwnerID, report.Title, report.ClientName, report.Notes,
		documents, comparison, nullable(report.ShareToken), report.SharedUntil,
		report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (rs *ReportStore) Get(ctx context.Context, id string) (*models.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, reportColumns, rs.config.TableName)
	return scanReport(rs.pool.QueryRow(ctx, query, id))
}

// List returns the owner's reports, newest first.
func (rs *ReportStore) List(ctx context.Context, ownerID string) ([]models.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1 ORDER BY created_at DESC, id`,
		reportColumns, rs.config.TableName)
	rows, err := rs.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func (rs *ReportStore) Update(ctx context.Context, report *models.Report) error {
	documents, comparison, err := encodeReport(report)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf(`
		UPDATE %s SET title = $2, client_name = $3, notes = $4, documents = $5, comparison = $6, updated_at = $7
		WHERE id = $1`, rs.config.TableName)
	tag, err := rs.pool.Exec(ctx, stmt,
		report.ID, report.Title, report.ClientName, report.Notes, documents, comparison, report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (rs *ReportStore) Delete(ctx context.Context, id string) error {
	tag, err := rs.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, rs.config.TableName), id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetShareToken stores the active share token. An empty token revokes sharing.
func (rs *ReportStore) SetShareToken(ctx context.Context, id, token string, until *time.Time) error {
	if token == "" {
		until = nil
	}
	stmt := fmt.Sprintf(`UPDATE %s SET share_token = $2, shared_until = $3 WHERE id = $1`, rs.config.TableName)
	tag, err := rs.pool.Exec(ctx, stmt, id, nullable(token), until)
	if err != nil {
		return fmt.Errorf("failed to update share token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (rs *ReportStore) GetByShareToken(ctx context.Context, token string) (*models.Report, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE share_token = $1`, reportColumns, rs.config.TableName)
	return scanReport(rs.pool.QueryRow(ctx, query, token))
}

func (rs *ReportStore) Close() {
	if rs.pool != nil {
		rs.pool.Close()
	}
}

func encodeReport(report *models.Report) ([]byte, []byte, error) {
	docs := report.Documents
	if docs == nil {
		docs = []models.ParsedBenefitsDocument{}
	}
	documents, err := json.Marshal(docs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode documents: %w", err)
	}
	var comparison []byte
	if report.Comparison != nil {
		if comparison, err = json.Marshal(report.Comparison); err != nil {
			return nil, nil, fmt.Errorf("failed to encode comparison: %w", err)
		}
	}
	return documents, comparison, nil
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var (
		r          models.Report
		documents  []byte
		comparison []byte
		token      *string
	)
	err := row.Scan(&r.ID, &r.OwnerID, &r.Title, &r.ClientName, &r.Notes,
		&documents, &comparison, &token, &r.SharedUntil, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	if err := json.Unmarshal(documents, &r.Documents); err != nil {
		return nil, fmt.Errorf("failed to decode documents of report %s: %w", r.ID, err)
	}
	if len(comparison) > 0 {
		r.Comparison = &models.Comparison{}
		if err := json.Unmarshal(comparison, r.Comparison); err != nil {
			return nil, fmt.Errorf("failed to decode comparison of report %s: %w", r.ID, err)
		}
	}
	if token != nil {
		r.ShareToken = *token
	}
	return &r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
