package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/types"
	"github.com/xhad/quotes/pkg/document"
	"github.com/xhad/quotes/pkg/extractor"
	"github.com/xhad/quotes/pkg/llm"
	"github.com/xhad/quotes/pkg/metrics"
	"github.com/xhad/quotes/pkg/processor"
	"github.com/xhad/quotes/pkg/report"
	"github.com/xhad/quotes/pkg/store"
	"github.com/xhad/quotes/server"
)

var serveMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the quotes HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Keep reports in memory instead of PostgreSQL")
}

// newDocumentService wires extraction, parsing and the optional search index.
// The returned cleanup closes whatever was opened.
func newDocumentService(ctx context.Context, m *metrics.Metrics) (*document.Service, func(), error) {
	ext, err := extractor.NewWithConfig(extractor.ExtractorConfig{
		BaseURL:   cfg.Extractor.URL,
		APIKey:    cfg.Extractor.APIKey,
		RateLimit: cfg.Extractor.RateLimit,
		Timeout:   cfg.Extractor.Timeout,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	parser, err := llm.NewWithConfig(llm.ParserConfig{
		Model:       cfg.LLM.Model,
		Temperature: *cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize parser: %w", err)
	}

	svcConfig := document.ServiceConfig{
		Extractor: ext,
		Parser:    parser,
		Processor: processor.NewWithConfig(processor.ProcessorConfig{
			ChunkSize:    cfg.Processor.ChunkSize,
			ChunkOverlap: cfg.Processor.ChunkOverlap,
		}),
		Metrics: m,
		Logger:  logger,
	}

	cleanup := func() {}
	if cfg.Processor.IndexChunks && cfg.Database.URL != "" {
		embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
			Model:   cfg.LLM.EmbeddingModel,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
			BatchSize:  cfg.Database.BatchSize,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		svcConfig.Embedder = embedder
		svcConfig.VectorStore = vectorStore
		cleanup = vectorStore.Close
	}

	svc, err := document.NewService(svcConfig)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func newReportStore(ctx context.Context) (types.ReportStore, func(), error) {
	if serveMemory || cfg.Database.URL == "" {
		logger.Warn("Reports are kept in memory and lost on restart")
		return store.NewMemoryReportStore(), func() {}, nil
	}
	rs, err := store.NewReportStore(ctx, store.ReportStoreConfig{ConnString: cfg.Database.URL})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize report store: %w", err)
	}
	return rs, rs.Close, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Share.Secret == "" {
		return errors.New("share.secret (or SHARE_SECRET) is required to serve the API")
	}

	m := metrics.New()

	docs, closeDocs, err := newDocumentService(ctx, m)
	if err != nil {
		return err
	}
	defer closeDocs()

	reportStore, closeReports, err := newReportStore(ctx)
	if err != nil {
		return err
	}
	defer closeReports()

	reports, err := report.NewService(report.ServiceConfig{
		Store:     reportStore,
		Secret:    cfg.Share.Secret,
		TTL:       cfg.Share.TTL,
		PublicURL: cfg.Server.PublicURL,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Documents:      docs,
		Reports:        reports,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		FileTimeout:    cfg.Processor.FileTimeout,
		Metrics:        m,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Processor.FileTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Quotes API listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	color.Green("Quotes API listening on %s", httpServer.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("Shutting down quotes API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
