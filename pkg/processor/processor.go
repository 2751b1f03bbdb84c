package processor

import (
	"strings"

	"github.com/xhad/quotes/internal/models"
)

type ProcessorConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
}

// Processor prepares extracted quote text for the search index.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 50
	}

	return Processor{
		config: config,
	}
}

// ChunkDocument splits the raw text of a parsed document into indexable chunks.
func (p *Processor) ChunkDocument(doc *models.ParsedBenefitsDocument) []models.DocumentChunk {
	var chunks []models.DocumentChunk
	for i, text := range p.Chunk(doc.RawText) {
		chunks = append(chunks, models.DocumentChunk{
			DocumentID: doc.ID,
			FileName:   doc.FileName,
			Carrier:    doc.Carrier,
			Index:      i,
			Content:    text,
		})
	}
	return chunks
}

func (p *Processor) Chunk(text string) []string {
	return p.splitIntoChunks(cleanText(text))
}

func cleanText(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string

	sentences := splitIntoSentences(text)
	current := strings.Builder{}

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence) > p.config.ChunkSize {
			chunk := strings.TrimSpace(current.String())
			if len(chunk) >= p.config.MinChunkLength {
				chunks = append(chunks, chunk)
			}

			// Carry the tail of the previous chunk over
			current.Reset()
			if p.config.ChunkOverlap > 0 && len(chunk) > p.config.ChunkOverlap {
				current.WriteString(chunk[len(chunk)-p.config.ChunkOverlap:])
				current.WriteString(" ")
			}
		}

		current.WriteString(sentence)
		current.WriteString(" ")
	}

	if chunk := strings.TrimSpace(current.String()); len(chunk) >= p.config.MinChunkLength {
		chunks = append(chunks, chunk)
	}

	return chunks
}

func splitIntoSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
