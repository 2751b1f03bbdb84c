package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/pkg/pipeline"
	"github.com/xhad/quotes/pkg/report"
)

const userHeader = "X-User-ID"

// APIError is a non-2xx answer from the quotes API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quotes API returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets a server-side timeout match pipeline.ErrTimeout.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusGatewayTimeout {
		return pipeline.ErrTimeout
	}
	return nil
}

type ClientConfig struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the quotes HTTP API on behalf of one broker.
type Client struct {
	config ClientConfig
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

func NewWithConfig(config ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", config.BaseURL)
	}
	if config.HTTPClient == nil {
		// per-file timeouts come from the caller's context
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Client{config: config, base: base, http: config.HTTPClient, logger: config.Logger}, nil
}

// ProcessDocument uploads one quote for processing. Failures of the document
// itself come back as *APIError carrying the server's message.
func (c *Client) ProcessDocument(ctx context.Context, fileName string, r io.Reader, category models.Category) (*models.ParsedBenefitsDocument, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("category", string(category)); err != nil {
		return nil, err
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/process-document", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result models.ProcessResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "unreadable response: " + err.Error()}
	}
	if !result.Success || result.Document == nil {
		msg := result.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	c.logger.Debug("Document processed remotely", zap.String("file", fileName), zap.Duration("took", time.Since(start)))
	return result.Document, nil
}

// ProcessFile uploads a quote from disk.
func (c *Client) ProcessFile(ctx context.Context, path string, category models.Category) (*models.ParsedBenefitsDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.ProcessDocument(ctx, filepath.Base(path), f, category)
}

func (c *Client) Compare(ctx context.Context, docs []models.ParsedBenefitsDocument) (*models.Comparison, error) {
	var cmp models.Comparison
	err := c.doJSON(ctx, http.MethodPost, "/api/comparisons", map[string]interface{}{"documents": docs}, &cmp)
	return &cmp, err
}

func (c *Client) CreateReport(ctx context.Context, in report.Input) (*models.Report, error) {
	var r models.Report
	if err := c.doJSON(ctx, http.MethodPost, "/api/reports", in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListReports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	err := c.doJSON(ctx, http.MethodGet, "/api/reports", nil, &reports)
	return reports, err
}

func (c *Client) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	if err := c.doJSON(ctx, http.MethodGet, "/api/reports/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) UpdateReport(ctx context.Context, id string, in report.Input) (*models.Report, error) {
	var r models.Report
	if err := c.doJSON(ctx, http.MethodPut, "/api/reports/"+url.PathEscape(id), in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) DeleteReport(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/reports/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ShareReport(ctx context.Context, id string) (*models.ShareLink, error) {
	var link models.ShareLink
	if err := c.doJSON(ctx, http.MethodPost, "/api/reports/"+url.PathEscape(id)+"/share", nil, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *Client) UnshareReport(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/reports/"+url.PathEscape(id)+"/share", nil, nil)
}

func (c *Client) SharedReport(ctx context.Context, token string) (*models.Report, error) {
	var r models.Report
	if err := c.doJSON(ctx, http.MethodGet, "/api/share/"+url.PathEscape(token), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, err
	}
	if c.config.UserID != "" {
		req.Header.Set(userHeader, c.config.UserID)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
