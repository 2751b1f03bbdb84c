package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/pkg/comparison"
	"github.com/xhad/quotes/pkg/pipeline"
)

var pdfMagic = []byte("%PDF-")

const defaultSearchLimit = 5

// handleProcessDocument runs one uploaded quote through the processing chain.
// Failures of the document itself are reported in the ProcessResult body.
func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.ContentLength > s.config.MaxUploadBytes {
		writeErrorMessage(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d MiB upload limit", s.config.MaxUploadBytes>>20))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d MiB upload limit", s.config.MaxUploadBytes>>20))
			return
		}
		writeErrorMessage(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	category, err := models.ParseCategory(r.FormValue("category"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	body := bufio.NewReader(file)
	head, _ := body.Peek(len(pdfMagic))
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") || !bytes.Equal(head, pdfMagic) {
		writeErrorMessage(w, http.StatusUnsupportedMediaType, "only PDF documents are supported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.FileTimeout)
	defer cancel()

	doc, err := s.config.Documents.ProcessDocument(ctx, header.Filename, body, category)
	result := models.ProcessResult{DurationMS: time.Since(start).Milliseconds()}
	if err == nil {
		result.Success = true
		result.Document = doc
		writeJSON(w, http.StatusOK, result)
		return
	}

	status := http.StatusUnprocessableEntity
	result.Error = err.Error()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
		result.Error = fmt.Sprintf("%s after %s", pipeline.ErrTimeout, s.config.FileTimeout)
	}
	s.logger.Warn("Document processing failed", zap.String("file", header.Filename), zap.Error(err))
	writeJSON(w, status, result)
}

type compareRequest struct {
	Documents []models.ParsedBenefitsDocument `json:"documents"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		writeErrorMessage(w, http.StatusBadRequest, "at least one document is required")
		return
	}
	if errs := comparison.ValidateDocuments(req.Documents); len(errs) > 0 {
		s.writeError(w, r, errs)
		return
	}
	writeJSON(w, http.StatusOK, comparison.Build(req.Documents))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeErrorMessage(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			writeErrorMessage(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	chunks, err := s.config.Documents.Search(r.Context(), query, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if chunks == nil {
		chunks = []models.DocumentChunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}
