// Package main provides the entry point for the raged API server
//
// @title raged API
// @version 1.0.0
// @description Retrieval service for AI agents: ingestion, hybrid search, enrichment queue
// @BasePath /
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token (format: "Bearer <token>")
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/ragedhq/raged/domain/chunks"
	"github.com/ragedhq/raged/domain/documents"
	"github.com/ragedhq/raged/domain/enrichment"
	"github.com/ragedhq/raged/domain/graph"
	"github.com/ragedhq/raged/domain/health"
	"github.com/ragedhq/raged/domain/ingest"
	"github.com/ragedhq/raged/domain/query"
	"github.com/ragedhq/raged/internal/config"
	"github.com/ragedhq/raged/internal/database"
	"github.com/ragedhq/raged/internal/server"
	"github.com/ragedhq/raged/internal/storage"
	"github.com/ragedhq/raged/pkg/auth"
	"github.com/ragedhq/raged/pkg/embeddings"
	"github.com/ragedhq/raged/pkg/logger"
)

func main() {
	// Load .env files if present (for local development)
	// Order matters: .env.local overrides .env
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		server.Module,
		storage.Module,

		// Auth module
		auth.Module,

		// Embeddings module (provides embedding client)
		embeddings.Module,

		// Domain modules
		health.Module,
		documents.Module,
		chunks.Module,
		ingest.Module,
		query.Module,
		enrichment.Module,
		graph.Module,
	).Run()
}
