package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	shopvec "github.com/shopvec/shopvec"
	"github.com/shopvec/shopvec/infrastructure/api"
	"github.com/shopvec/shopvec/infrastructure/provider"
	"github.com/shopvec/shopvec/internal/config"
)

const (
	testAPIKey     = "e2e-secret-key"
	testDimension  = 16
	testPollPeriod = 50 * time.Millisecond
)

// wordEmbedder hashes words into fixed buckets and normalizes, so texts
// sharing words score high under cosine similarity without a model.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	texts := req.Texts()
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
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
		} else {
			norm = math.Sqrt(norm)
			for j := range vec {
				vec[j] /= norm
			}
		}
		vectors[i] = vec
	}
	return provider.NewEmbeddingResponse(vectors, provider.NewUsage(0, 0)), nil
}

func (wordEmbedder) Close() error { return nil }

const seedCatalog = `products:
  - external_id: "1"
    title: Espresso Machine
    description: Stainless steel espresso machine with milk frother
    price: 349.00
    category: kitchen
  - external_id: "2"
    title: Trail Running Shoes
    description: Lightweight trail running shoes with aggressive grip
    price: 129.50
    category: footwear
    in_stock: false
  - external_id: "3"
    title: Noise Cancelling Headphones
    description: Over-ear wireless headphones with active noise cancelling
    price: 199.99
    category: audio
`

// TestServer wraps the full HTTP API for end to end testing.
type TestServer struct {
	t          *testing.T
	client     *shopvec.Client
	httpServer *httptest.Server
}

// NewTestServer builds a client backed by SQLite and the seed connector,
// mounts the full API surface, and serves it over httptest.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	tmpDir := t.TempDir()
	seedPath := filepath.Join(tmpDir, "catalog.yaml")
	if err := os.WriteFile(seedPath, []byte(seedCatalog), 0o644); err != nil {
		t.Fatalf("write seed catalog: %v", err)
	}

	client, err := shopvec.New(
		shopvec.WithSQLite(filepath.Join(tmpDir, "test.db")),
		shopvec.WithDataDir(filepath.Join(tmpDir, "data")),
		shopvec.WithEmbeddingProvider(wordEmbedder{}),
		shopvec.WithTextDimension(testDimension),
		shopvec.WithConnectorsConfig(config.NewConnectorsConfig().WithSeed(config.NewSeedConfig(seedPath))),
		shopvec.WithWorkerPollPeriod(testPollPeriod),
		shopvec.WithAPIKeys(testAPIKey),
	)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	apiServer := api.NewAPIServer(client, client.APIKeys())
	httpServer := httptest.NewServer(apiServer.Handler())

	ts := &TestServer{
		t:          t,
		client:     client,
		httpServer: httpServer,
	}

	t.Cleanup(func() {
		ts.httpServer.Close()
		_ = ts.client.Close()
	})

	return ts
}

// URL returns the base URL of the test server.
func (ts *TestServer) URL() string {
	return ts.httpServer.URL
}

// GET performs a GET request and returns the response.
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()
	resp, err := http.Get(ts.URL() + path)
	if err != nil {
		ts.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with JSON body and the API key set.
func (ts *TestServer) POST(path string, body any) *http.Response {
	ts.t.Helper()
	jsonBody, err := json.Marshal(body)
	if err != nil {
		ts.t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL()+path, bytes.NewReader(jsonBody))
	if err != nil {
		ts.t.Fatalf("create POST request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// DELETE performs a DELETE request with the API key set.
func (ts *TestServer) DELETE(path string) *http.Response {
	ts.t.Helper()
	req, err := http.NewRequest(http.MethodDelete, ts.URL()+path, nil)
	if err != nil {
		ts.t.Fatalf("create DELETE request: %v", err)
	}
	req.Header.Set("X-API-KEY", testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("DELETE %s: %v", path, err)
	}
	return resp
}

// DecodeJSON decodes the response body as JSON into v.
func (ts *TestServer) DecodeJSON(resp *http.Response, v any) {
	ts.t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		ts.t.Fatalf("decode response: %v", err)
	}
}

// ReadBody reads and returns the response body as a string.
func (ts *TestServer) ReadBody(resp *http.Response) string {
	ts.t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ts.t.Fatalf("read body: %v", err)
	}
	return string(body)
}

// WaitForQueue polls the queue endpoint until it stays empty for a
// stability window. Tasks are deleted on dequeue, so a single empty poll
// does not prove the in-flight task finished.
func (ts *TestServer) WaitForQueue(timeout time.Duration) {
	ts.t.Helper()

	const (
		pollInterval   = 100 * time.Millisecond
		stableRequired = 4
	)

	deadline := time.Now().Add(timeout)
	stableCount := 0

	for time.Now().Before(deadline) {
		var body struct {
			Data []json.RawMessage `json:"data"`
		}
		resp := ts.GET("/api/v1/queue/")
		ts.DecodeJSON(resp, &body)

		if len(body.Data) == 0 {
			stableCount++
			if stableCount >= stableRequired {
				return
			}
		} else {
			stableCount = 0
		}

		time.Sleep(pollInterval)
	}

	ts.t.Fatal("timeout waiting for queue to drain")
}
