package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ExtractorConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64 // requests per second
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Extraction is what the document understanding service returns for one file.
type Extraction struct {
	FileName string
	Text     string
	Pages    int
	Tables   [][][]string
}

// ServiceError is returned when the extraction service answers with a non-2xx status.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("extraction service returned status %d: %s", e.StatusCode, e.Body)
}

type extractResponse struct {
	Text  string `json:"text"`
	HTML  string `json:"html"`
	Pages int    `json:"pages"`
}

type Extractor struct {
	config  ExtractorConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewWithConfig(config ExtractorConfig) (*Extractor, error) {
	if config.Timeout == 0 {
		config.Timeout = 8 * time.Minute
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("extractor base URL must be absolute: %q", config.BaseURL)
	}

	return &Extractor{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  config.Logger,
	}, nil
}

func New(baseURL string) *Extractor {
	e, _ := NewWithConfig(ExtractorConfig{
		BaseURL: baseURL,
	})
	return e
}

// Extract uploads a file to the document understanding service and returns its text and tables.
func (e *Extractor) Extract(ctx context.Context, fileName string, r io.Reader) (*Extraction, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(e.config.BaseURL, "/") + "/v1/extract"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}

	extraction := &Extraction{
		FileName: fileName,
		Text:     cleanContent(out.Text),
		Pages:    out.Pages,
	}
	if out.HTML != "" {
		tables, err := ParseTables(out.HTML)
		if err != nil {
			return nil, fmt.Errorf("failed to parse extracted tables: %w", err)
		}
		extraction.Tables = tables
		if extraction.Text == "" {
			extraction.Text = htmlText(out.HTML)
		}
	}

	e.logger.Debug("Document extracted",
		zap.String("file", fileName),
		zap.Int("pages", extraction.Pages),
		zap.Int("tables", len(extraction.Tables)),
		zap.Duration("took", time.Since(start)))

	return extraction, nil
}

// ParseTables turns every <table> of an HTML fragment into rows of trimmed cell text.
func ParseTables(html string) ([][][]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var tables [][][]string
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, cleanContent(cell.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		if len(rows) > 0 {
			tables = append(tables, rows)
		}
	})

	return tables, nil
}

func htmlText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return cleanContent(doc.Text())
}

func cleanContent(content string) string {
	// Remove extra whitespace
	content = strings.Join(strings.Fields(content), " ")

	// Remove common page furniture
	noisePatterns := []string{
		"Page intentionally left blank",
		"This page intentionally left blank",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

// FormatTables renders tables as pipe separated lines for prompting.
func FormatTables(tables [][][]string) string {
	var b strings.Builder
	for i, table := range tables {
		fmt.Fprintf(&b, "Table %d:\n", i+1)
		for _, row := range table {
			b.WriteString(strings.Join(row, " | "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
