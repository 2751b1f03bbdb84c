package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/pkg/extractor"
	"github.com/xhad/quotes/pkg/processor"
)

// ErrInvalidResponse is returned when the model answer holds no usable JSON document.
var ErrInvalidResponse = errors.New("model returned no valid benefits JSON")

const maxPromptText = 24000

const defaultSystemTemplate = `You read group benefits insurance quotes and return JSON only.
Return one object with this shape:
{"carrier": string, "effective_date": "YYYY-MM-DD" or "",
 "total_monthly_premium": number,
 "plan_options": [{"name": string, "coverages": [
   {"name": string, "volume": number, "rate": number, "rate_basis": number,
    "monthly_premium": number, "details": string}]}]}
Use numbers without currency symbols. Use 0 when a value is not stated.
List every plan option in the order it appears in the quote.`

// ParserConfig represents the configuration for the benefits parser.
type ParserConfig struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
	BaseURL        string // Ollama server URL
	Logger         *zap.Logger
}

// Parser turns extracted quote text into structured benefits data using an LLM.
type Parser struct {
	config ParserConfig
	llm    llms.Model
	logger *zap.Logger
	now    func() time.Time
}

// NewWithConfig creates a Parser backed by an Ollama model in JSON mode.
func NewWithConfig(config ParserConfig) (*Parser, error) {
	if err := applyParserDefaults(&config); err != nil {
		return nil, err
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
		ollama.WithFormat("json"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, llm)
}

// NewWithModel creates a Parser around an already constructed model.
func NewWithModel(config ParserConfig, model llms.Model) (*Parser, error) {
	if err := applyParserDefaults(&config); err != nil {
		return nil, err
	}
	return &Parser{
		config: config,
		llm:    model,
		logger: config.Logger,
		now:    time.Now,
	}, nil
}

func applyParserDefaults(config *ParserConfig) error {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return nil
}

// Parse asks the model for the benefits structure of one extracted document.
func (p *Parser) Parse(ctx context.Context, ext *extractor.Extraction, category models.Category) (*models.ParsedBenefitsDocument, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, p.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, buildPrompt(ext)),
	}

	response, err := p.llm.GenerateContent(ctx, content,
		llms.WithTemperature(p.config.Temperature),
		llms.WithMaxTokens(p.config.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return nil, ErrInvalidResponse
	}

	answer := response.Choices[0].Content
	parsed, err := decodeAnswer(answer)
	if err != nil {
		p.logger.Warn("Unusable model answer",
			zap.String("file", ext.FileName),
			zap.Int("answer_len", len(answer)),
			zap.Error(err))
		return nil, err
	}

	doc := parsed.toDocument()
	doc.ID = uuid.NewString()
	doc.FileName = ext.FileName
	doc.Category = category
	doc.RawText = ext.Text
	doc.ProcessedAt = p.now().UTC()

	return doc, nil
}

func buildPrompt(ext *extractor.Extraction) string {
	text := ext.Text
	if len(text) > maxPromptText {
		cut := maxPromptText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n\nExtracted text:\n%s\n", ext.FileName, text)
	if len(ext.Tables) > 0 {
		b.WriteString("\nExtracted tables:\n")
		b.WriteString(extractor.FormatTables(ext.Tables))
	}
	return b.String()
}

// amount accepts both JSON numbers and money strings.
type amount float64

func (a *amount) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*a = amount(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		if string(data) == "null" {
			*a = 0
			return nil
		}
		return err
	}
	v, err := processor.ParseMoney(s)
	if err != nil {
		// Free text such as "included" carries no amount.
		v = 0
	}
	*a = amount(v)
	return nil
}

type answerCoverage struct {
	Name           string `json:"name"`
	Volume         amount `json:"volume"`
	Rate           amount `json:"rate"`
	RateBasis      amount `json:"rate_basis"`
	MonthlyPremium amount `json:"monthly_premium"`
	Details        string `json:"details"`
}

type answerPlan struct {
	Name      string           `json:"name"`
	Coverages []answerCoverage `json:"coverages"`
}

type answerDocument struct {
	Carrier             string       `json:"carrier"`
	EffectiveDate       string       `json:"effective_date"`
	TotalMonthlyPremium amount       `json:"total_monthly_premium"`
	PlanOptions         []answerPlan `json:"plan_options"`
}

func (a answerDocument) toDocument() *models.ParsedBenefitsDocument {
	doc := &models.ParsedBenefitsDocument{
		Carrier:             a.Carrier,
		EffectiveDate:       a.EffectiveDate,
		TotalMonthlyPremium: float64(a.TotalMonthlyPremium),
	}
	for _, plan := range a.PlanOptions {
		option := models.PlanOption{Name: plan.Name}
		for _, c := range plan.Coverages {
			option.Coverages = append(option.Coverages, models.Coverage{
				Name:           c.Name,
				Volume:         float64(c.Volume),
				Rate:           float64(c.Rate),
				RateBasis:      float64(c.RateBasis),
				MonthlyPremium: float64(c.MonthlyPremium),
				Details:        c.Details,
			})
		}
		doc.PlanOptions = append(doc.PlanOptions, option)
	}
	return doc
}

// decodeAnswer finds the outermost JSON object in the answer, ignoring fences or prose around it.
func decodeAnswer(answer string) (*answerDocument, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return nil, ErrInvalidResponse
	}

	var doc answerDocument
	if err := json.Unmarshal([]byte(answer[start:end+1]), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &doc, nil
}
