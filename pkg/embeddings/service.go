package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/ragedhq/raged/internal/config"
	"github.com/ragedhq/raged/pkg/apperror"
	"github.com/ragedhq/raged/pkg/embeddings/genai"
	"github.com/ragedhq/raged/pkg/embeddings/vertex"
	"github.com/ragedhq/raged/pkg/logger"
)

// Module provides the embeddings fx.Module
var Module = fx.Module("embeddings",
	fx.Provide(NewService),
)

// Service wraps a provider client with batch concurrency bounds and
// vector shape validation. A failed request fails the whole batch.
type Service struct {
	client      Client
	log         *slog.Logger
	dim         int
	concurrency int
	enabled     bool
}

// NewNoopService creates a service with a noop client (for testing)
func NewNoopService(log *slog.Logger, dim int) *Service {
	return &Service{
		client:      NewNoopClient(),
		log:         log,
		dim:         dim,
		concurrency: 1,
		enabled:     false,
	}
}

// NewService creates the embeddings service. The provider client is
// initialised at startup so that credential failures do not crash boot;
// the service degrades to noop and ingestion surfaces upstream errors.
func NewService(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) *Service {
	embCfg := cfg.Embeddings
	log = log.With(logger.Scope("embeddings"))

	svc := &Service{
		client:      NewNoopClient(),
		log:         log,
		dim:         embCfg.Dimension,
		concurrency: embCfg.Concurrency,
		enabled:     false,
	}

	if !embCfg.IsEnabled() {
		log.Info("embeddings disabled - no provider configured")
		return svc
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			switch embCfg.Provider {
			case config.EmbedProviderVertex:
				log.Info("initializing Vertex AI embeddings client",
					slog.String("project", embCfg.GCPProjectID),
					slog.String("location", embCfg.VertexLocation),
					slog.String("model", embCfg.Model),
				)
				client, err := vertex.NewClient(ctx, vertex.Config{
					ProjectID: embCfg.GCPProjectID,
					Location:  embCfg.VertexLocation,
					Model:     embCfg.Model,
				}, vertex.WithLogger(log))
				if err != nil {
					log.Error("failed to initialize Vertex AI client", logger.Error(err))
					return nil
				}
				svc.client = client
				svc.enabled = true

			case config.EmbedProviderGenAI:
				log.Info("initializing Generative AI embeddings client",
					slog.String("model", embCfg.Model),
				)
				client, err := genai.NewClient(ctx, genai.Config{
					APIKey:    embCfg.GoogleAPIKey,
					Model:     embCfg.Model,
					Dimension: embCfg.Dimension,
				}, genai.WithLogger(log))
				if err != nil {
					log.Error("failed to initialize Generative AI client", logger.Error(err))
					return nil
				}
				svc.client = client
				svc.enabled = true

			default:
				log.Warn("unknown embedding provider", slog.String("provider", embCfg.Provider))
			}
			return nil
		},
	})

	return svc
}

// IsEnabled returns true if a provider client is active
func (s *Service) IsEnabled() bool {
	return s.enabled
}

// Dimension returns the configured embedding dimension
func (s *Service) Dimension() int {
	return s.dim
}

// EmbedQuery generates a validated embedding for a single query
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := s.client.EmbedQuery(ctx, query)
	if err != nil {
		return nil, apperror.NewUpstream("embedding backend failed", err)
	}
	if vec == nil {
		return nil, nil
	}
	if err := s.validate(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedDocuments embeds texts preserving index order. In-flight provider
// calls are bounded by the configured concurrency; the first failure
// cancels the batch.
func (s *Service) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	if len(documents) == 0 {
		return [][]float32{}, nil
	}
	if !s.enabled {
		return nil, nil
	}

	concurrency := s.concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	// One slot per document; slot size keeps provider batching inside the
	// client while this level caps parallel requests.
	const sliceSize = 32
	results := make([][]float32, len(documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(documents); start += sliceSize {
		start := start
		end := start + sliceSize
		if end > len(documents) {
			end = len(documents)
		}
		g.Go(func() error {
			vecs, err := s.client.EmbedDocuments(gctx, documents[start:end])
			if err != nil {
				return apperror.NewUpstream("embedding backend failed", err)
			}
			if len(vecs) != end-start {
				return apperror.NewUpstream(
					fmt.Sprintf("embedding backend returned %d vectors for %d texts", len(vecs), end-start), nil)
			}
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, vec := range results {
		if err := s.validate(vec); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}

	return results, nil
}

// validate checks the vector shape: configured dimension, finite values.
func (s *Service) validate(vec []float32) error {
	if s.dim > 0 && len(vec) != s.dim {
		return apperror.ErrVectorDimMismatch.WithMessage(
			fmt.Sprintf("expected %d dimensions, got %d", s.dim, len(vec)))
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return apperror.NewUpstream("embedding contains non-finite values", nil)
		}
	}
	return nil
}
