package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/domain/embedding"
	"github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/domain/vector"
	"github.com/shopvec/shopvec/internal/config"
)

const (
	// maxDescriptionLength caps stored descriptions so oversized vendor
	// text does not bloat payloads.
	maxDescriptionLength = 500

	// imageEmbedWorkers bounds concurrent image downloads per batch.
	imageEmbedWorkers = 4

	// deleteScrollPageSize is the scroll page size for bulk deletes.
	deleteScrollPageSize = 100
)

// Indexing orchestrates the pipeline from catalog items to indexed
// points: compose text, embed, build points, upsert. It is bound to one
// collection for its lifetime.
type Indexing struct {
	store      vector.Store
	generator  embedding.Generator
	collection string
	logger     *slog.Logger
}

// NewIndexing creates an Indexing service bound to the named collection.
func NewIndexing(store vector.Store, generator embedding.Generator, collection string, logger *slog.Logger) *Indexing {
	if collection == "" {
		collection = config.DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexing{
		store:      store,
		generator:  generator,
		collection: collection,
		logger:     logger,
	}
}

// Collection returns the collection this service indexes into.
func (s *Indexing) Collection() string { return s.collection }

func (s *Indexing) schema() (vector.CollectionSchema, error) {
	schema, err := vector.ProductSchema(s.collection, s.generator.TextDimension(), s.generator.ImageDimension())
	if err != nil {
		return vector.CollectionSchema{}, fmt.Errorf("build schema: %w", err)
	}
	return schema, nil
}

// EnsureCollection creates the product collection when it does not
// exist yet. An existing collection is never touched; changing
// dimensions requires an explicit RecreateCollection.
func (s *Indexing) EnsureCollection(ctx context.Context) error {
	exists, err := s.store.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	schema, err := s.schema()
	if err != nil {
		return err
	}
	if err := s.store.CreateCollection(ctx, schema, false); err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}

	s.logger.Info("created collection",
		slog.String("collection", s.collection),
		slog.Int("text_dimension", s.generator.TextDimension()),
		slog.Int("image_dimension", s.generator.ImageDimension()),
	)
	return nil
}

// RecreateCollection drops the collection and creates it fresh from the
// generator's current dimensions. All indexed points are lost.
func (s *Indexing) RecreateCollection(ctx context.Context) error {
	schema, err := s.schema()
	if err != nil {
		return err
	}
	if err := s.store.CreateCollection(ctx, schema, true); err != nil {
		return fmt.Errorf("recreate collection %s: %w", s.collection, err)
	}
	s.logger.Info("recreated collection", slog.String("collection", s.collection))
	return nil
}

// Info returns backend statistics for the named collection, defaulting
// to the configured one.
func (s *Indexing) Info(ctx context.Context, name string) (vector.CollectionInfo, error) {
	if name == "" {
		name = s.collection
	}
	return s.store.Info(ctx, name)
}

// SyncParams configures one direct connector-to-index run.
type SyncParams struct {
	// BatchSize is the number of items per fetch/embed/upsert cycle.
	BatchSize int

	// Category restricts the pull to one platform category.
	Category string

	// WithImages enables per-item image embedding when the generator
	// supports it.
	WithImages bool

	// Progress, when set, is invoked after every processed batch.
	Progress sync.ProgressFunc
}

// SyncFromConnector pulls the connector's catalog batch by batch and
// indexes each batch before fetching the next. On failure the
// accumulated statistics are returned together with the error, so
// callers can see how far the run got.
func (s *Indexing) SyncFromConnector(ctx context.Context, conn catalog.Connector, params SyncParams) (sync.Stats, error) {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}

	stats := sync.NewStats(time.Now())

	if err := s.EnsureCollection(ctx); err != nil {
		return stats.Finish(time.Now()), err
	}

	it := conn.FetchBatches(ctx, batchSize, params.Category)
	for it.Next(ctx) {
		items := it.Batch()
		indexed, failed, err := s.IndexItems(ctx, items, params.WithImages)
		stats = stats.AddBatch(len(items), indexed, failed)
		if err != nil {
			return stats.Finish(time.Now()), fmt.Errorf("index batch: %w", err)
		}
		if params.Progress != nil {
			params.Progress(stats)
		}
	}
	if err := it.Err(); err != nil {
		return stats.Finish(time.Now()), fmt.Errorf("fetch %s catalog: %w", conn.Platform(), err)
	}

	stats = stats.Finish(time.Now())
	s.logger.Info("connector sync finished",
		slog.String("platform", conn.Platform()),
		slog.Int("fetched", stats.TotalFetched()),
		slog.Int("indexed", stats.TotalIndexed()),
		slog.Int("failed", stats.TotalFailed()),
		slog.Duration("elapsed", stats.Elapsed()),
	)
	return stats, nil
}

// IndexItems embeds one batch of items and upserts the resulting
// points. Text embedding is a single upstream call for the whole batch;
// image embedding runs per item with bounded parallelism and is
// best-effort. Returns how many items were indexed and how many failed.
func (s *Indexing) IndexItems(ctx context.Context, items []catalog.Item, withImages bool) (int, int, error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = embedding.ComposeText(item)
	}
	textVectors, err := s.generator.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, len(items), fmt.Errorf("embed texts: %w", err)
	}
	if len(textVectors) != len(items) {
		return 0, len(items), fmt.Errorf("embed texts: got %d vectors for %d items", len(textVectors), len(items))
	}

	imageVectors, err := s.embedImages(ctx, items, withImages)
	if err != nil {
		return 0, len(items), err
	}

	points := make([]vector.Point, 0, len(items))
	for i, item := range items {
		vectors := vector.VectorSet{vector.SpaceText: textVectors[i]}
		if len(imageVectors[i]) > 0 {
			vectors[vector.SpaceImage] = imageVectors[i]
		}
		points = append(points, vector.NewPoint(
			vector.PointID(item.Platform(), item.ExternalID()),
			vectors,
			itemPayload(item),
		))
	}

	succeeded, err := s.store.Upsert(ctx, s.collection, points)
	if err != nil {
		return 0, len(items), fmt.Errorf("upsert points: %w", err)
	}

	failed := len(items) - succeeded
	if failed > 0 {
		s.logger.Warn("partial batch upsert",
			slog.String("collection", s.collection),
			slog.Int("indexed", succeeded),
			slog.Int("failed", failed),
		)
	}
	return succeeded, failed, nil
}

// embedImages returns image vectors aligned with items. Items without
// an image URL, or whose image the generator could not process, get a
// nil entry. Only context cancellation aborts the batch.
func (s *Indexing) embedImages(ctx context.Context, items []catalog.Item, withImages bool) ([][]float64, error) {
	vectors := make([][]float64, len(items))
	if !withImages || s.generator.ImageDimension() <= 0 {
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageEmbedWorkers)
	for i, item := range items {
		if item.ImageURL() == "" {
			continue
		}
		g.Go(func() error {
			vec, err := s.generator.EmbedImage(gctx, item.ImageURL())
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed images: %w", err)
	}
	return vectors, nil
}

// DeleteByPlatform removes every point tagged with the platform,
// scrolling in pages, and returns how many points were deleted. A
// collection that does not exist yet counts as zero.
func (s *Indexing) DeleteByPlatform(ctx context.Context, platform string) (int, error) {
	filter := vector.NewFilter().Eq("platform", platform)

	deleted := 0
	var cursor *vector.Cursor
	for {
		points, next, err := s.store.Scroll(ctx, s.collection, deleteScrollPageSize, cursor, filter)
		if err != nil {
			if errors.Is(err, vector.ErrCollectionNotFound) {
				return 0, nil
			}
			return deleted, fmt.Errorf("scroll platform %s: %w", platform, err)
		}
		if len(points) > 0 {
			ids := make([]string, len(points))
			for i, p := range points {
				ids[i] = p.ID()
			}
			if err := s.store.DeleteByIDs(ctx, s.collection, ids); err != nil {
				return deleted, fmt.Errorf("delete points: %w", err)
			}
			deleted += len(ids)
		}
		if next == nil {
			break
		}
		cursor = next
	}

	if deleted > 0 {
		s.logger.Info("deleted platform points",
			slog.String("platform", platform),
			slog.Int("deleted", deleted),
		)
	}
	return deleted, nil
}

// itemPayload builds the payload stored alongside an item's vectors.
func itemPayload(item catalog.Item) vector.Payload {
	return vector.Payload{
		"external_id": item.ExternalID(),
		"title":       item.Title(),
		"description": truncate(item.Description(), maxDescriptionLength),
		"price":       item.Price(),
		"category":    item.Category(),
		"image_url":   item.ImageURL(),
		"platform":    item.Platform(),
		"rating":      item.Rating(),
		"in_stock":    item.InStock(),
	}
}

// truncate caps a string at limit runes without splitting a multi-byte
// character.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
