// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/QDev-Technolab/document-reader-ai/internal/config"
	"github.com/QDev-Technolab/document-reader-ai/internal/conversation"
	"github.com/QDev-Technolab/document-reader-ai/internal/embedding"
	"github.com/QDev-Technolab/document-reader-ai/internal/events"
	"github.com/QDev-Technolab/document-reader-ai/internal/extract"
	"github.com/QDev-Technolab/document-reader-ai/internal/handler"
	"github.com/QDev-Technolab/document-reader-ai/internal/ingest"
	"github.com/QDev-Technolab/document-reader-ai/internal/llm"
	"github.com/QDev-Technolab/document-reader-ai/internal/middleware"
	"github.com/QDev-Technolab/document-reader-ai/internal/orchestrator"
	"github.com/QDev-Technolab/document-reader-ai/internal/retriever"
	"github.com/QDev-Technolab/document-reader-ai/internal/store/sqlite"
	"github.com/QDev-Technolab/document-reader-ai/pkg/logger"
	"github.com/QDev-Technolab/document-reader-ai/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting document reader API")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "document-reader-ai", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	st, err := sqlite.New(cfg.DataDir)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	embedder, err := embedding.New(cfg)
	if err != nil {
		log.Error("failed to create embedder", zap.Error(err))
		os.Exit(1)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}

	// NATS is optional; the publisher is nil-safe when eventing is off.
	var publisher *events.Publisher
	if cfg.NATSEnabled {
		publisher, err = events.Connect(ctx, events.Config{
			URL:   cfg.NATSURL,
			Token: cfg.NATSToken,
		}, log.Logger)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer publisher.Close()
	}

	ret := retriever.New(st, embedder, retriever.DefaultSynonyms())
	convs := conversation.NewManager(st)
	ingestSvc := ingest.NewService(st, extract.NewPlainText(), embedder, publisher, cfg.DefaultChunkSize, log.Logger)
	orch := orchestrator.New(st, convs, ret, llmClient, publisher, orchestrator.Options{
		DefaultTopK:     cfg.DefaultTopK,
		NumCtx:          cfg.NumCtx,
		MaxContextChars: cfg.MaxContextChars,
	}, log.Logger)

	healthHandler := handler.NewHealthHandler(embedder)
	chatHandler := handler.NewChatHandler(orch, embedder, cfg.LLMProvider, cfg.LLMModel, log)
	documentHandler := handler.NewDocumentHandler(ingestSvc, st, orch, log)
	conversationHandler := handler.NewConversationHandler(convs, log)
	streamHandler := handler.NewStreamHandler(orch, cfg.SSETimeout, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/chat", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/upload", documentHandler.Upload)
		r.Post("/ask", chatHandler.Ask)
		r.Post("/ask-stream", streamHandler.AskStream)
		r.Get("/status", chatHandler.Status)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", documentHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", documentHandler.Delete)
				r.Post("/ask", documentHandler.AskDocument)
			})
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/thread", conversationHandler.Thread)
				r.Get("/thread-from/{msgId}", conversationHandler.ThreadFrom)
				r.Get("/messages/{msgId}/siblings", conversationHandler.Siblings)
				r.Delete("/", conversationHandler.Delete)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
