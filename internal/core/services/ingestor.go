package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/core/ports/driving"
	"github.com/custodia-labs/protosmith/internal/logger"
)

var tracer = otel.Tracer("github.com/custodia-labs/protosmith/internal/core/services")

// Ensure Ingestor implements the interface.
var _ driving.IngestService = (*Ingestor)(nil)

// chunkKeywordsKey is where the keywords post-processor leaves its terms.
const chunkKeywordsKey = "keywords"

// Ingestor turns one source into embedded ContextItems.
type Ingestor struct {
	normalisers driven.NormaliserRegistry
	chunker     driven.PostProcessorPipeline
	embedder    driven.EmbeddingService
	store       driven.EmbeddingStore
	concurrency int
	dedupe      bool
	now         func() time.Time
}

// NewIngestor creates an ingestor. Fan-out and dedupe follow settings.
func NewIngestor(
	normalisers driven.NormaliserRegistry,
	chunker driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	store driven.EmbeddingStore,
	settings domain.PipelineSettings,
) *Ingestor {
	settings = settings.WithDefaults()
	return &Ingestor{
		normalisers: normalisers,
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		concurrency: settings.EmbedConcurrency,
		dedupe:      settings.DedupeSources,
		now:         time.Now,
	}
}

// Ingest normalises, chunks, embeds and stores one source.
func (i *Ingestor) Ingest(ctx context.Context, src domain.Source) ([]domain.ContextItem, error) {
	ctx, span := tracer.Start(ctx, "ingest", trace.WithAttributes(
		attribute.String("protocol_id", src.ProtocolID),
		attribute.String("source", src.Name),
		attribute.String("format", src.NormalisedFormat()),
	))
	defer span.End()

	items, err := i.ingest(ctx, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	return items, nil
}

func (i *Ingestor) ingest(ctx context.Context, src domain.Source) ([]domain.ContextItem, error) {
	fail := func(retryable bool, err error) error {
		return &domain.IngestionError{SourceName: src.Name, Retryable: retryable, Err: err}
	}

	if err := src.Validate(); err != nil {
		return nil, fail(false, err)
	}
	if i.embedder == nil {
		return nil, fail(false, domain.ErrEmbeddingUnavailable)
	}
	if i.store == nil {
		return nil, fail(true, domain.ErrStoreUnavailable)
	}

	logger.Section("Ingest")
	logger.Debug("Source: %s (%s, %s)", src.Name, src.Type, src.NormalisedFormat())

	doc, confidence, err := i.normalisers.Normalise(ctx, &src)
	if err != nil {
		return nil, fail(false, err)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fail(false, fmt.Errorf("%w: source has no text", domain.ErrInvalidInput))
	}

	hash := contentHash(doc.Content)
	if i.dedupe {
		seen, err := i.store.HasContentHash(ctx, src.ProtocolID, hash)
		if err != nil {
			return nil, fail(true, err)
		}
		if seen {
			logger.Info("Skipping %s: identical content already ingested", src.Name)
			return nil, fail(false, fmt.Errorf("%w: content hash %s", domain.ErrAlreadyExists, hash[:12]))
		}
	}

	chunks, err := i.chunker.Process(ctx, doc)
	if err != nil {
		return nil, fail(false, err)
	}
	logger.Debug("Chunks: %d", len(chunks))

	if err := i.embed(ctx, chunks); err != nil {
		return nil, fail(true, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err))
	}

	now := i.now()
	items := make([]domain.ContextItem, len(chunks))
	for n, c := range chunks {
		keywords, _ := c.Metadata[chunkKeywordsKey].([]string)
		items[n] = domain.ContextItem{
			ID:         uuid.New().String(),
			ProtocolID: src.ProtocolID,
			SourceType: src.Type,
			RawContent: c.Content,
			ChunkIndex: c.Position,
			Embedding:  c.Embedding,
			Metadata: domain.ContextMetadata{
				SourceName:  src.Name,
				Size:        len(c.Content),
				Confidence:  confidence,
				Keywords:    keywords,
				ContentHash: hash,
			},
			CreatedAt: now,
		}
	}

	if err := i.store.Add(ctx, items); err != nil {
		return nil, fail(errors.Is(err, domain.ErrStoreUnavailable), err)
	}

	logger.Info("Ingested %s: %d context items for protocol %s", src.Name, len(items), src.ProtocolID)
	return items, nil
}

// embed fills each chunk's Embedding with at most i.concurrency calls in
// flight. Retries happen inside the guarded embedding service.
func (i *Ingestor) embed(ctx context.Context, chunks []domain.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)

	for n := range chunks {
		g.Go(func() error {
			vec, err := i.embedder.Embed(gctx, chunks[n].Content)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", n, err)
			}
			chunks[n].Embedding = vec
			return nil
		})
	}
	return g.Wait()
}

// Remove deletes one ContextItem from a protocol.
func (i *Ingestor) Remove(ctx context.Context, protocolID, itemID string) error {
	if protocolID == "" || itemID == "" {
		return domain.ErrInvalidInput
	}
	return i.store.DeleteItem(ctx, protocolID, itemID)
}

// DeleteAll deletes every ContextItem owned by a protocol.
func (i *Ingestor) DeleteAll(ctx context.Context, protocolID string) error {
	if protocolID == "" {
		return domain.ErrInvalidInput
	}
	logger.Info("Deleting context for protocol %s", protocolID)
	return i.store.Delete(ctx, protocolID)
}

// Count returns how many ContextItems a protocol owns.
func (i *Ingestor) Count(ctx context.Context, protocolID string) (int, error) {
	return i.store.Count(ctx, protocolID)
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
