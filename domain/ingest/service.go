package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"unicode/utf8"

	"github.com/ragedhq/raged/domain/chunks"
	"github.com/ragedhq/raged/domain/documents"
	"github.com/ragedhq/raged/domain/enrichment"
	"github.com/ragedhq/raged/internal/config"
	"github.com/ragedhq/raged/internal/storage"
	"github.com/ragedhq/raged/pkg/apperror"
	"github.com/ragedhq/raged/pkg/embeddings"
	"github.com/ragedhq/raged/pkg/fetch"
	"github.com/ragedhq/raged/pkg/logger"
	"github.com/ragedhq/raged/pkg/textsplitter"
)

// DefaultCollection is used when the request names none.
const DefaultCollection = "default"

// Service orchestrates the ingestion pipeline: resolve, classify,
// chunk, embed, upsert, enqueue.
type Service struct {
	cfg      *config.Config
	docs     *documents.Repository
	chunks   *chunks.Repository
	embedder *embeddings.Service
	fetcher  *fetch.Fetcher
	blob     *storage.Service
	enricher *enrichment.Service
	splitter textsplitter.Config
	log      *slog.Logger
}

// NewService creates the ingestion service
func NewService(
	cfg *config.Config,
	docs *documents.Repository,
	chunkRepo *chunks.Repository,
	embedder *embeddings.Service,
	blob *storage.Service,
	enricher *enrichment.Service,
	log *slog.Logger,
) *Service {
	fetchCfg := fetch.Config{
		Timeout:      cfg.Fetch.Timeout(),
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		Concurrency:  cfg.Fetch.Concurrency,
	}

	return &Service{
		cfg:      cfg,
		docs:     docs,
		chunks:   chunkRepo,
		embedder: embedder,
		fetcher:  fetch.NewFetcher(fetchCfg, log),
		blob:     blob,
		enricher: enricher,
		splitter: textsplitter.DefaultConfig(),
		log:      log.With(logger.Scope("ingest")),
	}
}

// Ingest runs the pipeline for one request. Item failures populate the
// response's errors list; only request-level faults (bad doc type,
// embedding backend down, dimension mismatch) abort the batch.
func (s *Service) Ingest(ctx context.Context, req Request) (*Response, error) {
	if len(req.Items) == 0 {
		return nil, apperror.NewBadRequest("items must not be empty")
	}

	collection := req.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	for _, item := range req.Items {
		if item.DocType != "" && !IsKnownDocType(item.DocType) {
			return nil, apperror.ErrDocType.WithMessage(
				fmt.Sprintf("unknown doc type %q", item.DocType))
		}
	}

	resp := &Response{OK: true, Errors: []ItemError{}}

	fetched := s.fetchURLItems(ctx, req.Items, resp)

	for _, item := range req.Items {
		resolved, itemErr := s.resolveItem(item, fetched)
		if itemErr != nil {
			if itemErr.Reason != reasonAlreadyReported {
				resp.Errors = append(resp.Errors, *itemErr)
			}
			continue
		}

		if err := s.ingestItem(ctx, collection, req, resolved, resp); err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// resolvedItem is an item after URL resolution.
type resolvedItem struct {
	item        Item
	text        string
	source      string
	contentType string
	raw         []byte
}

// reasonAlreadyReported marks fetch failures that are already in the
// response error list.
const reasonAlreadyReported = "_reported"

func (s *Service) fetchURLItems(ctx context.Context, items []Item, resp *Response) map[string]fetch.Result {
	var urls []string
	for _, item := range items {
		if item.URL != "" && item.Text == "" {
			urls = append(urls, item.URL)
		}
	}
	if len(urls) == 0 {
		return nil
	}

	results, failures := s.fetcher.FetchAll(ctx, urls)

	byURL := make(map[string]fetch.Result, len(results))
	for _, r := range results {
		byURL[r.URL] = r
	}
	for _, f := range failures {
		resp.Errors = append(resp.Errors, ItemError{
			URL:     f.URL,
			Reason:  f.Reason,
			Message: f.Detail,
		})
	}
	return byURL
}

func (s *Service) resolveItem(item Item, fetched map[string]fetch.Result) (*resolvedItem, *ItemError) {
	if item.URL != "" && item.Text == "" {
		result, ok := fetched[item.URL]
		if !ok {
			return nil, &ItemError{URL: item.URL, Reason: reasonAlreadyReported}
		}
		if !utf8.Valid(result.Body) {
			return nil, &ItemError{URL: item.URL, Reason: "fetch_failed",
				Message: "body is not valid UTF-8 text"}
		}
		source := item.Source
		if source == "" {
			source = item.URL
		}
		return &resolvedItem{
			item:        item,
			text:        string(result.Body),
			source:      source,
			contentType: result.ContentType,
			raw:         result.Body,
		}, nil
	}

	if item.Text == "" {
		return nil, &ItemError{Source: item.Source, URL: item.URL,
			Reason: "empty_text", Message: "item has neither text nor url"}
	}
	source := item.Source
	if source == "" {
		return nil, &ItemError{Reason: "missing_source", Message: "text item requires a source"}
	}

	return &resolvedItem{
		item:   item,
		text:   item.Text,
		source: source,
		raw:    []byte(item.Text),
	}, nil
}

func (s *Service) ingestItem(ctx context.Context, collection string, req Request, r *resolvedItem, resp *Response) error {
	identityKey := IdentityKey(r.source)

	existing, err := s.docs.GetByIdentity(ctx, collection, identityKey)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return err
	}

	// A known document without overwrite only refreshes last_seen.
	if existing != nil && !req.Overwrite {
		if err := s.docs.Touch(ctx, existing.ID); err != nil {
			return err
		}
		resp.Refreshed++
		return nil
	}

	docType := ClassifyDocType(r.item.DocType, r.source, r.contentType, r.raw)
	tier1 := Tier1Meta(docType, r.source, r.contentType, r.text)
	lang, _ := tier1["lang"].(string)

	pieces := textsplitter.Split(r.text, s.splitter)

	var vectors [][]float32
	if s.embedder.IsEnabled() {
		vectors, err = s.embedder.EmbedDocuments(ctx, pieces)
		if err != nil {
			return err
		}
	}

	rawData, rawKey, warning := s.storeRaw(ctx, collection, identityKey, r.raw)
	if warning != "" {
		resp.Warnings = append(resp.Warnings, warning)
	}

	baseID := r.item.BaseID
	if baseID == "" {
		baseID = r.source
	}

	doc, err := s.docs.Upsert(ctx, documents.UpsertParams{
		BaseID:      baseID,
		Collection:  collection,
		Source:      r.source,
		IdentityKey: identityKey,
		DocType:     &docType,
		MimeType:    optional(r.contentType),
		RawData:     rawData,
		RawKey:      rawKey,
		Overwrite:   req.Overwrite,
	})
	if err != nil {
		return err
	}

	status := chunks.EnrichmentNone
	if req.Enrich && s.cfg.Enrichment.Enabled {
		status = chunks.EnrichmentPending
	}

	items := make([]chunks.Chunk, len(pieces))
	for i, text := range pieces {
		var embedding []float32
		if vectors != nil {
			embedding = vectors[i]
		}
		items[i] = chunks.Chunk{
			DocumentID:       doc.ID,
			ChunkIndex:       i,
			Text:             text,
			Embedding:        embedding,
			DocType:          docType,
			Source:           r.source,
			Path:             pathOf(r.source),
			Lang:             lang,
			ItemURL:          r.item.URL,
			Tier1Meta:        tier1,
			EnrichmentStatus: status,
		}
	}

	if err := s.chunks.ReplaceForDocument(ctx, doc.ID, items); err != nil {
		return err
	}

	resp.Upserted++
	resp.Chunks += len(items)

	if status == chunks.EnrichmentPending {
		enqueued, err := s.enricher.EnqueueForDocument(ctx, doc)
		if err != nil {
			// The upsert stays committed; enqueue failure is a warning.
			s.log.Warn("enqueue failed", slog.String("document_id", doc.ID.String()), logger.Error(err))
			resp.Warnings = append(resp.Warnings,
				fmt.Sprintf("enrichment enqueue failed for %s: %v", r.source, err))
		} else {
			resp.Enqueued += enqueued
		}
	}

	return nil
}

// storeRaw decides between inline and blob storage for the raw payload.
func (s *Service) storeRaw(ctx context.Context, collection, identityKey string, raw []byte) ([]byte, *string, string) {
	if !s.blob.Enabled() || int64(len(raw)) <= s.cfg.Blob.ThresholdBytes {
		return raw, nil, ""
	}

	key := storage.RawKey(collection, identityKey)
	if err := s.blob.Put(ctx, key, raw, "application/octet-stream"); err != nil {
		// Keep the payload inline rather than lose it.
		return raw, nil, fmt.Sprintf("blob store unavailable, stored %s inline: %v", identityKey, err)
	}
	return nil, &key, ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func pathOf(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Path
	}
	return source
}
