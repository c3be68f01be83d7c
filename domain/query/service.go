package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ragedhq/raged/domain/chunks"
	"github.com/ragedhq/raged/domain/documents"
	"github.com/ragedhq/raged/internal/storage"
	"github.com/ragedhq/raged/pkg/apperror"
	"github.com/ragedhq/raged/pkg/embeddings"
	"github.com/ragedhq/raged/pkg/logger"
	"github.com/ragedhq/raged/pkg/mathutil"
)

const (
	defaultTopK = 8
	maxTopK     = 100
)

// Service dispatches queries to a strategy and shapes the unified
// response.
type Service struct {
	repo     *Repository
	embedder *embeddings.Service
	docs     *documents.Repository
	chunks   *chunks.Repository
	blob     *storage.Service
	log      *slog.Logger
}

// NewService creates a new query service
func NewService(
	repo *Repository,
	embedder *embeddings.Service,
	docs *documents.Repository,
	chunkRepo *chunks.Repository,
	blob *storage.Service,
	log *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		embedder: embedder,
		docs:     docs,
		chunks:   chunkRepo,
		blob:     blob,
		log:      log.With(logger.Scope("query-service")),
	}
}

// Run executes a query request end to end.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	strategy, confidence, err := resolveStrategy(req, s.embedder.IsEnabled())
	if err != nil {
		return nil, err
	}

	filter, err := Compile(req.Filter, filterOffset(strategy))
	if err != nil {
		return nil, err
	}

	collection := collectionOr(req.Collection)
	topK := mathutil.ClampLimit(req.TopK, defaultTopK, maxTopK)

	var (
		results []Result
		method  string
	)

	switch strategy {
	case StrategySemantic:
		results, err = s.runSemantic(ctx, collection, req, filter, topK)
		method = "knn-cosine"
	case StrategyMetadata:
		results, err = s.repo.Metadata(ctx, collection, filter, topK)
		method = "filter-scan"
	case StrategyFulltext:
		results, method, err = s.repo.Fulltext(ctx, collection, strings.TrimSpace(req.Query), filter, topK)
	}
	if err != nil {
		return nil, err
	}

	s.log.Debug("query executed",
		"strategy", strategy,
		"collection", collection,
		"results", len(results),
	)

	return &Response{
		OK:      true,
		Results: results,
		Routing: &Routing{
			Strategy:   strategy,
			Method:     method,
			Confidence: confidence,
			Ms:         time.Since(start).Milliseconds(),
		},
	}, nil
}

func (s *Service) runSemantic(ctx context.Context, collection string, req Request, filter *Compiled, topK int) ([]Result, error) {
	text := strings.TrimSpace(req.Query)

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	results, err := s.repo.Semantic(ctx, collection, vector, filter, topK)
	if err != nil {
		return nil, err
	}

	minScore := autoMinScore(text)
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	kept := results[:0]
	for _, res := range results {
		if res.Score >= minScore {
			kept = append(kept, res)
		}
	}
	return kept, nil
}

// resolveStrategy picks the strategy from the request or by rule. An
// explicit choice is honoured except that semantic degrades to
// full-text when no embedding backend is configured.
func resolveStrategy(req Request, embedderEnabled bool) (string, float64, error) {
	text := strings.TrimSpace(req.Query)

	if req.Strategy != "" {
		switch req.Strategy {
		case StrategySemantic, StrategyFulltext:
			if text == "" {
				return "", 0, apperror.ErrEmptyQuery
			}
			if req.Strategy == StrategySemantic && !embedderEnabled {
				return StrategyFulltext, 0.5, nil
			}
			return req.Strategy, 1.0, nil
		case StrategyMetadata:
			return StrategyMetadata, 1.0, nil
		default:
			return "", 0, apperror.NewBadRequest("unknown strategy: " + req.Strategy)
		}
	}

	if text == "" {
		if len(req.Filter) > 0 {
			return StrategyMetadata, 0.9, nil
		}
		return "", 0, apperror.ErrEmptyQuery
	}

	if !embedderEnabled {
		return StrategyFulltext, 0.7, nil
	}
	return StrategySemantic, 0.8, nil
}

// filterOffset is the first positional parameter available to the
// compiled filter, after the strategy's own leading parameters.
func filterOffset(strategy string) int {
	switch strategy {
	case StrategyMetadata:
		// $1 collection
		return 2
	default:
		// $1 vector or query text, $2 collection
		return 3
	}
}

// autoMinScore derives the semantic score floor from the term count.
// Short queries embed noisily, so the floor rises with specificity.
func autoMinScore(query string) float64 {
	switch terms := len(strings.Fields(query)); {
	case terms <= 1:
		return 0.3
	case terms == 2:
		return 0.4
	case terms <= 4:
		return 0.5
	default:
		return 0.6
	}
}

// Download is the payload of the download-first endpoint.
type Download struct {
	BaseID      string
	Source      string
	ContentType string
	Data        []byte
}

// DownloadFirst runs the query and returns the raw bytes of the
// top-ranked document.
func (s *Service) DownloadFirst(ctx context.Context, req Request) (*Download, error) {
	doc, err := s.topDocument(ctx, req)
	if err != nil {
		return nil, err
	}

	contentType := "application/octet-stream"
	if doc.MimeType != nil && *doc.MimeType != "" {
		contentType = *doc.MimeType
	}

	if len(doc.RawData) > 0 {
		return &Download{BaseID: doc.BaseID, Source: doc.Source, ContentType: contentType, Data: doc.RawData}, nil
	}

	if doc.RawKey != nil && *doc.RawKey != "" {
		if !s.blob.Enabled() {
			return nil, apperror.ErrBlobUnavailable.WithMessage("document payload is in blob storage but no blob store is configured")
		}
		data, err := s.blob.Get(ctx, *doc.RawKey)
		if err != nil {
			return nil, apperror.ErrBlobUnavailable.WithInternal(err)
		}
		return &Download{BaseID: doc.BaseID, Source: doc.Source, ContentType: contentType, Data: data}, nil
	}

	return nil, apperror.NewNotFound("raw payload for document", doc.BaseID)
}

// FulltextDocument is the payload of the fulltext-first endpoint.
type FulltextDocument struct {
	BaseID string `json:"baseId"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// FulltextFirst runs the query and returns the concatenated chunk text
// of the top-ranked document.
func (s *Service) FulltextFirst(ctx context.Context, req Request) (*FulltextDocument, error) {
	doc, err := s.topDocument(ctx, req)
	if err != nil {
		return nil, err
	}

	texts, err := s.chunks.TextsForDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, apperror.NewNotFound("chunk text for document", doc.BaseID)
	}

	return &FulltextDocument{
		BaseID: doc.BaseID,
		Source: doc.Source,
		Text:   strings.Join(texts, "\n\n"),
	}, nil
}

func (s *Service) topDocument(ctx context.Context, req Request) (*documents.Document, error) {
	req.TopK = 1
	resp, err := s.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, apperror.ErrNotFound.WithMessage("no matching documents")
	}

	top := resp.Results[0]
	return s.docs.GetByBaseID(ctx, top.Collection, top.BaseID)
}

func collectionOr(collection string) string {
	if collection == "" {
		return "default"
	}
	return collection
}
