package e2e_test

import (
	"net/http"
	"testing"
	"time"
)

type searchResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Title    string  `json:"title"`
			Platform string  `json:"platform"`
			Price    float64 `json:"price"`
			Category string  `json:"category"`
			Score    float64 `json:"score"`
		} `json:"attributes"`
	} `json:"data"`
}

type platformListResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Records    int64    `json:"records"`
			Categories []string `json:"categories"`
		} `json:"attributes"`
	} `json:"data"`
}

type collectionResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Points     int    `json:"points"`
			Status     string `json:"status"`
			Checkpoint int64  `json:"checkpoint"`
		} `json:"attributes"`
	} `json:"data"`
}

type productListResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Platform   string `json:"platform"`
			ExternalID string `json:"external_id"`
			Title      string `json:"title"`
		} `json:"attributes"`
	} `json:"data"`
	Meta map[string]any `json:"meta"`
}

func (ts *TestServer) syncSeed() {
	ts.t.Helper()

	resp := ts.POST("/api/v1/platforms/seed/sync", map[string]any{})
	if resp.StatusCode != http.StatusAccepted {
		ts.t.Fatalf("sync: status = %d, want %d; body: %s", resp.StatusCode, http.StatusAccepted, ts.ReadBody(resp))
	}
	_ = resp.Body.Close()

	ts.WaitForQueue(30 * time.Second)
}

func TestE2E_SyncThenSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ts := NewTestServer(t)
	ts.syncSeed()

	// All three seed products are stored.
	var products productListResponse
	ts.DecodeJSON(ts.GET("/api/v1/products/"), &products)
	if len(products.Data) != 3 {
		t.Fatalf("expected 3 products, got %d", len(products.Data))
	}

	// The platform listing reports the record count.
	var platforms platformListResponse
	ts.DecodeJSON(ts.GET("/api/v1/platforms/"), &platforms)
	if len(platforms.Data) != 1 {
		t.Fatalf("expected 1 platform, got %d", len(platforms.Data))
	}
	if platforms.Data[0].ID != "seed" {
		t.Errorf("platform = %q, want seed", platforms.Data[0].ID)
	}
	if platforms.Data[0].Attributes.Records != 3 {
		t.Errorf("records = %d, want 3", platforms.Data[0].Attributes.Records)
	}

	// The collection shows indexed points and an advanced checkpoint.
	var collection collectionResponse
	ts.DecodeJSON(ts.GET("/api/v1/collections/products"), &collection)
	if collection.Data.Attributes.Points != 3 {
		t.Errorf("points = %d, want 3", collection.Data.Attributes.Points)
	}
	if collection.Data.Attributes.Checkpoint == 0 {
		t.Error("expected checkpoint to advance past zero")
	}

	// Semantic search ranks the matching product first.
	var results searchResponse
	ts.DecodeJSON(ts.POST("/api/v1/search/", map[string]any{
		"data": map[string]any{
			"type": "search",
			"attributes": map[string]any{
				"query": "espresso machine",
				"limit": 5,
			},
		},
	}), &results)
	if len(results.Data) == 0 {
		t.Fatal("expected search results")
	}
	if results.Data[0].Attributes.Title != "Espresso Machine" {
		t.Errorf("top result = %q, want Espresso Machine", results.Data[0].Attributes.Title)
	}

	// A category filter narrows to the single audio product.
	var filtered searchResponse
	ts.DecodeJSON(ts.POST("/api/v1/search/", map[string]any{
		"data": map[string]any{
			"type": "search",
			"attributes": map[string]any{
				"query":   "headphones",
				"filters": map[string]any{"category": "audio"},
			},
		},
	}), &filtered)
	if len(filtered.Data) != 1 {
		t.Fatalf("expected 1 filtered result, got %d", len(filtered.Data))
	}
	if filtered.Data[0].Attributes.Category != "audio" {
		t.Errorf("category = %q, want audio", filtered.Data[0].Attributes.Category)
	}

	// Hybrid search also surfaces the matching product.
	var hybrid searchResponse
	ts.DecodeJSON(ts.POST("/api/v1/search/", map[string]any{
		"data": map[string]any{
			"type": "search",
			"attributes": map[string]any{
				"query":  "espresso",
				"hybrid": true,
				"alpha":  0.5,
			},
		},
	}), &hybrid)
	if len(hybrid.Data) == 0 {
		t.Fatal("expected hybrid search results")
	}
	if hybrid.Data[0].Attributes.Title != "Espresso Machine" {
		t.Errorf("top hybrid result = %q, want Espresso Machine", hybrid.Data[0].Attributes.Title)
	}
}

func TestE2E_SecondSyncIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ts := NewTestServer(t)
	ts.syncSeed()
	ts.syncSeed()

	var products productListResponse
	ts.DecodeJSON(ts.GET("/api/v1/products/"), &products)
	if len(products.Data) != 3 {
		t.Fatalf("expected 3 products after re-sync, got %d", len(products.Data))
	}
}

func TestE2E_DeletePlatformRemovesEverything(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ts := NewTestServer(t)
	ts.syncSeed()

	resp := ts.DELETE("/api/v1/platforms/seed")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("delete: status = %d, want %d; body: %s", resp.StatusCode, http.StatusAccepted, ts.ReadBody(resp))
	}
	_ = resp.Body.Close()

	ts.WaitForQueue(30 * time.Second)

	var results searchResponse
	ts.DecodeJSON(ts.POST("/api/v1/search/", map[string]any{
		"data": map[string]any{
			"type": "search",
			"attributes": map[string]any{
				"query": "espresso machine",
			},
		},
	}), &results)
	if len(results.Data) != 0 {
		t.Errorf("expected no results after platform delete, got %d", len(results.Data))
	}
}

func TestE2E_ProductLookupByExternalID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ts := NewTestServer(t)
	ts.syncSeed()

	var product struct {
		Data struct {
			Attributes struct {
				Platform   string  `json:"platform"`
				ExternalID string  `json:"external_id"`
				Title      string  `json:"title"`
				Price      float64 `json:"price"`
			} `json:"attributes"`
		} `json:"data"`
	}
	ts.DecodeJSON(ts.GET("/api/v1/products/seed/1"), &product)
	if product.Data.Attributes.Title != "Espresso Machine" {
		t.Errorf("title = %q, want Espresso Machine", product.Data.Attributes.Title)
	}
	if product.Data.Attributes.Price != 349 {
		t.Errorf("price = %f, want 349", product.Data.Attributes.Price)
	}
}
