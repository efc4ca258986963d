package shopvec_test

import (
	"context"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shopvec "github.com/shopvec/shopvec"
	"github.com/shopvec/shopvec/application/service"
	domainsync "github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/domain/task"
	"github.com/shopvec/shopvec/infrastructure/provider"
	"github.com/shopvec/shopvec/internal/config"
)

const (
	testPollPeriod = 50 * time.Millisecond
	testDimension  = 16
)

// hashEmbedder is a deterministic offline stand-in for a real embedding
// provider. Words hash into fixed buckets and the vector is normalized,
// so texts sharing words score high under cosine similarity.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	texts := req.Texts()
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = embedWords(text)
	}
	return provider.NewEmbeddingResponse(vectors, provider.NewUsage(0, 0)), nil
}

func (hashEmbedder) Close() error { return nil }

func embedWords(text string) []float64 {
	vec := make([]float64, testDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%testDimension]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

const seedCatalog = `products:
  - external_id: "1"
    title: Espresso Machine
    description: Stainless steel espresso machine with milk frother
    price: 349.00
    category: kitchen
    brand: Brewline
    rating: 4.6
    rating_count: 112
  - external_id: "2"
    title: Trail Running Shoes
    description: Lightweight trail running shoes with aggressive grip
    price: 129.50
    category: footwear
    brand: Ridgefoot
    in_stock: false
  - external_id: "3"
    title: Noise Cancelling Headphones
    description: Over-ear wireless headphones with active noise cancelling
    price: 199.99
    category: audio
    brand: Quietude
    attributes:
      color: black
`

// newSeedClient builds a client backed by SQLite, the YAML seed
// connector, and the deterministic test embedder.
func newSeedClient(t *testing.T, extra ...shopvec.Option) *shopvec.Client {
	t.Helper()

	tmpDir := t.TempDir()
	seedPath := filepath.Join(tmpDir, "catalog.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedCatalog), 0o644))

	connectors := config.NewConnectorsConfig().
		WithSeed(config.NewSeedConfig(seedPath))

	opts := []shopvec.Option{
		shopvec.WithSQLite(filepath.Join(tmpDir, "test.db")),
		shopvec.WithDataDir(filepath.Join(tmpDir, "data")),
		shopvec.WithEmbeddingProvider(hashEmbedder{}),
		shopvec.WithTextDimension(testDimension),
		shopvec.WithConnectorsConfig(connectors),
		shopvec.WithWorkerPollPeriod(testPollPeriod),
	}
	opts = append(opts, extra...)

	client, err := shopvec.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// waitForTasks waits until the queue stays empty for a stability
// window. Tasks are deleted when dequeued, so a single empty poll does
// not prove the in-flight task finished.
func waitForTasks(ctx context.Context, t *testing.T, client *shopvec.Client, timeout time.Duration) {
	t.Helper()

	const (
		pollInterval   = 100 * time.Millisecond
		stableRequired = 4
	)

	deadline := time.Now().Add(timeout)
	stableCount := 0

	for time.Now().Before(deadline) {
		tasks, err := client.Tasks.List(ctx, nil)
		require.NoError(t, err)

		if len(tasks) == 0 {
			stableCount++
			if stableCount >= stableRequired {
				return
			}
		} else {
			stableCount = 0
		}

		time.Sleep(pollInterval)
	}

	tasks, _ := client.Tasks.List(ctx, nil)
	t.Fatalf("timeout waiting for tasks to complete, %d remaining", len(tasks))
}

func TestNew_RequiresDatabase(t *testing.T) {
	t.Parallel()

	_, err := shopvec.New()
	assert.ErrorIs(t, err, shopvec.ErrNoDatabase)
}

func TestClient_Close_Twice(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	client := newSeedClient(t)

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Close(), shopvec.ErrClientClosed)
}

func TestIntegration_SyncPlatform_IndexesAndSearches(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	client := newSeedClient(t)
	ctx := context.Background()

	result, err := client.Sync.SyncPlatform(ctx, service.SyncPlatformParams{Platform: "seed"})
	require.NoError(t, err)
	assert.Equal(t, domainsync.StateCompleted, result.State())
	assert.Equal(t, 3, result.Stats().TotalFetched())
	assert.Equal(t, 3, result.Stats().TotalIndexed())
	assert.Zero(t, result.Stats().TotalFailed())
	assert.Greater(t, result.LastProcessedID(), int64(0))

	count, err := client.Records.Count(ctx, "seed")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	cp, err := client.Sync.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.LastProcessedID(), cp.LastProcessedID())

	// Plain semantic search ranks the matching product first.
	results, err := client.Index.SearchProducts(ctx, "espresso machine", service.WithLimit(5))
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Espresso Machine", results[0].Payload().String("title"))
	assert.Equal(t, "seed", results[0].Payload().String("platform"))

	// Category filter excludes everything but audio.
	results, err = client.Index.SearchProducts(ctx, "headphones",
		service.WithCategory("audio"),
	)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Noise Cancelling Headphones", results[0].Payload().String("title"))

	// Price ceiling drops the espresso machine.
	results, err = client.Index.SearchProducts(ctx, "machine shoes headphones",
		service.WithMaxPrice(250),
	)
	require.NoError(t, err)
	for _, res := range results {
		assert.LessOrEqual(t, res.Payload().Float("price"), 250.0)
	}

	// Stock filter drops the out-of-stock shoes.
	results, err = client.Index.SearchProducts(ctx, "trail running shoes",
		service.WithInStockOnly(),
	)
	require.NoError(t, err)
	for _, res := range results {
		assert.NotEqual(t, "Trail Running Shoes", res.Payload().String("title"))
	}

	// Hybrid search blends lexical overlap into the ranking.
	results, err = client.Index.HybridSearchProducts(ctx, "espresso", 5, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Espresso Machine", results[0].Payload().String("title"))
}

func TestIntegration_SyncResume_SkipsCommittedRecords(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	client := newSeedClient(t)
	ctx := context.Background()

	first, err := client.Sync.SyncPlatform(ctx, service.SyncPlatformParams{Platform: "seed"})
	require.NoError(t, err)
	require.Equal(t, domainsync.StateCompleted, first.State())

	// A bare indexing run finds nothing past the checkpoint.
	second, err := client.Sync.Run(ctx, service.RunParams{})
	require.NoError(t, err)
	assert.Equal(t, domainsync.StateCompleted, second.State())
	assert.Zero(t, second.Stats().TotalFetched())
	assert.Equal(t, first.LastProcessedID(), second.LastProcessedID())

	// Re-pulling the platform upserts in place: no new record rows, no
	// re-indexing of committed batches.
	third, err := client.Sync.SyncPlatform(ctx, service.SyncPlatformParams{Platform: "seed"})
	require.NoError(t, err)
	assert.Equal(t, domainsync.StateCompleted, third.State())
	assert.Zero(t, third.Stats().TotalIndexed())

	count, err := client.Records.Count(ctx, "seed")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Reset re-indexes the full catalog from record zero.
	fourth, err := client.Sync.Run(ctx, service.RunParams{Reset: true})
	require.NoError(t, err)
	assert.Equal(t, domainsync.StateCompleted, fourth.State())
	assert.Equal(t, 3, fourth.Stats().TotalIndexed())
}

func TestIntegration_DeleteByPlatform_RemovesPoints(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	client := newSeedClient(t)
	ctx := context.Background()

	_, err := client.Sync.SyncPlatform(ctx, service.SyncPlatformParams{Platform: "seed"})
	require.NoError(t, err)

	deleted, err := client.Index.DeleteByPlatform(ctx, "seed")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	results, err := client.Index.SearchProducts(ctx, "espresso machine")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIntegration_QueuedSyncTask_WorkerProcesses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	client := newSeedClient(t)
	ctx := context.Background()

	err := client.Tasks.EnqueueOperation(ctx, task.OperationSyncPlatform,
		task.PriorityUserInitiated, map[string]any{"platform": "seed"})
	require.NoError(t, err)

	waitForTasks(ctx, t, client, 30*time.Second)

	count, err := client.Records.Count(ctx, "seed")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	statuses, err := client.Statuses.FindByTrackable(ctx, task.TrackableTypePlatform, "seed")
	require.NoError(t, err)
	assert.NotEmpty(t, statuses, "worker should report sync progress")
}
