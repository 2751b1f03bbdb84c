package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/pkg/pipeline"
)

const maxBatchFiles = 50

// BatchRequest is sent by the client: one "file" message per document, then "run".
type BatchRequest struct {
	Type     string `json:"type"`
	FileName string `json:"file_name,omitempty"`
	Category string `json:"category,omitempty"`
	Content  []byte `json:"content,omitempty"`
}

// BatchMessage is sent by the server while a batch runs.
type BatchMessage struct {
	Type     string             `json:"type"`
	Progress *pipeline.Progress `json:"progress,omitempty"`
	Summary  *pipeline.Summary  `json:"summary,omitempty"`
	Error    string             `json:"error,omitempty"`
}

const (
	BatchFile     = "file"
	BatchRun      = "run"
	BatchProgress = "progress"
	BatchSummary  = "summary"
	BatchError    = "error"
)

// handleBatch processes a batch of files sequentially and streams progress over a websocket.
// Closing the connection cancels the files not yet processed.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// base64 inflates uploads by a third
	conn.SetReadLimit(s.config.MaxUploadBytes*4/3 + 4096)

	uploads, err := s.readBatch(conn)
	if err != nil {
		s.send(conn, BatchMessage{Type: BatchError, Error: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Any read after "run" means the client went away or broke protocol.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Processor:   s.config.Documents,
		FileTimeout: s.config.FileTimeout,
		Logger:      s.logger,
		OnProgress: func(p pipeline.Progress) {
			s.send(conn, BatchMessage{Type: BatchProgress, Progress: &p})
		},
	})
	if err != nil {
		s.send(conn, BatchMessage{Type: BatchError, Error: err.Error()})
		return
	}

	summary := runner.Run(ctx, uploads)
	s.send(conn, BatchMessage{Type: BatchSummary, Summary: summary})
	s.logger.Info("Batch finished", zap.String("user", userID(r)), zap.String("status", string(summary.Status)), zap.Int("files", len(uploads)))

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch finished"),
		time.Now().Add(time.Second))
	conn.Close()
	<-readerDone
}

func (s *Server) readBatch(conn *websocket.Conn) ([]pipeline.Upload, error) {
	var uploads []pipeline.Upload
	for {
		var req BatchRequest
		if err := conn.ReadJSON(&req); err != nil {
			return nil, fmt.Errorf("invalid batch message: %w", err)
		}

		switch req.Type {
		case BatchRun:
			if len(uploads) == 0 {
				return nil, fmt.Errorf("batch has no files")
			}
			return uploads, nil
		case BatchFile:
			if len(uploads) == maxBatchFiles {
				return nil, fmt.Errorf("batch is limited to %d files", maxBatchFiles)
			}
			if req.FileName == "" {
				return nil, fmt.Errorf("file message without file_name")
			}
			category, err := models.ParseCategory(req.Category)
			if err != nil {
				return nil, err
			}
			if !bytes.HasPrefix(req.Content, pdfMagic) {
				return nil, fmt.Errorf("%s: only PDF documents are supported", req.FileName)
			}
			content := req.Content
			uploads = append(uploads, pipeline.Upload{
				FileName: req.FileName,
				Category: category,
				Open: func() (io.ReadCloser, error) {
					return io.NopCloser(bytes.NewReader(content)), nil
				},
			})
		default:
			return nil, fmt.Errorf("unknown batch message type %q", req.Type)
		}
	}
}

func (s *Server) send(conn *websocket.Conn, msg BatchMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("Failed to send batch message", zap.String("type", msg.Type), zap.Error(err))
	}
}
