package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/shopvec/shopvec/domain/vector"
	"github.com/shopvec/shopvec/internal/config"
	"github.com/stretchr/testify/require"
)

// recordedRequest captures one API call for assertions.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// requestLog collects requests across goroutines.
type requestLog struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (l *requestLog) add(r recordedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, r)
}

func (l *requestLog) all() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.requests...)
}

func (l *requestLog) last() recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests[len(l.requests)-1]
}

func (l *requestLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// fakeQdrantServer returns an httptest.Server that records every request
// in the log and responds with whatever the handler returns for it.
func fakeQdrantServer(t *testing.T, log *requestLog, handler func(r recordedRequest) (int, string)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		}
		log.add(rec)

		status, response := handler(rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
}

// productsInfoJSON builds a GET /collections/products response for a
// products collection with the default payload indexes.
func productsInfoJSON(points, textDim, imageDim int) string {
	vectors := fmt.Sprintf(`{"text":{"size":%d,"distance":"Cosine"}`, textDim)
	if imageDim > 0 {
		vectors += fmt.Sprintf(`,"image":{"size":%d,"distance":"Cosine"}`, imageDim)
	}
	vectors += "}"
	return fmt.Sprintf(`{
		"result": {
			"status": "green",
			"points_count": %d,
			"config": {"params": {"vectors": %s}},
			"payload_schema": {
				"category": {"data_type": "keyword"},
				"platform": {"data_type": "keyword"},
				"price": {"data_type": "float"},
				"in_stock": {"data_type": "bool"}
			}
		},
		"status": "ok"
	}`, points, vectors)
}

const collectionMissingJSON = `{"status":{"error":"Not found: Collection products doesn't exist!"},"time":0}`

func newTestQdrant(srvURL string) *Qdrant {
	return NewQdrant(config.NewQdrantConfig().WithQdrantURL(srvURL).WithQdrantAPIKey("test-key"))
}

func TestQdrant_CreateCollection(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		switch {
		case r.Method == http.MethodGet && r.Path == "/collections/products":
			return http.StatusNotFound, collectionMissingJSON
		case r.Method == http.MethodPut && r.Path == "/collections/products":
			return http.StatusOK, `{"result":true,"status":"ok"}`
		case r.Method == http.MethodPut && r.Path == "/collections/products/index":
			return http.StatusOK, `{"result":{"status":"acknowledged"},"status":"ok"}`
		default:
			return http.StatusNotFound, `{}`
		}
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	err := store.CreateCollection(context.Background(), mustProductSchema(t, "products", 3, 4), false)
	require.NoError(t, err)

	requests := log.all()
	require.Equal(t, "test-key", requests[0].Header.Get("api-key"))

	var createBody struct {
		Vectors map[string]struct {
			Size     int    `json:"size"`
			Distance string `json:"distance"`
		} `json:"vectors"`
	}
	var created bool
	indexed := map[string]string{}
	for _, r := range requests {
		switch {
		case r.Method == http.MethodPut && r.Path == "/collections/products":
			require.NoError(t, json.Unmarshal(r.Body, &createBody))
			created = true
		case r.Method == http.MethodPut && r.Path == "/collections/products/index":
			var body struct {
				FieldName   string `json:"field_name"`
				FieldSchema string `json:"field_schema"`
			}
			require.NoError(t, json.Unmarshal(r.Body, &body))
			indexed[body.FieldName] = body.FieldSchema
		}
	}

	require.True(t, created)
	require.Len(t, createBody.Vectors, 2)
	require.Equal(t, 3, createBody.Vectors["text"].Size)
	require.Equal(t, "Cosine", createBody.Vectors["text"].Distance)
	require.Equal(t, 4, createBody.Vectors["image"].Size)

	require.Equal(t, map[string]string{
		"category": "keyword",
		"platform": "keyword",
		"price":    "float",
		"in_stock": "bool",
	}, indexed)
}

func TestQdrant_CreateCollection_DimensionDrift(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		return http.StatusOK, productsInfoJSON(100, 5, 0)
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	err := store.CreateCollection(context.Background(), mustProductSchema(t, "products", 3, 0), false)
	require.ErrorIs(t, err, vector.ErrDimensionMismatch)

	// No create or index call may follow a failed check.
	for _, r := range log.all() {
		require.Equal(t, http.MethodGet, r.Method)
	}
}

func TestQdrant_Upsert(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		switch {
		case r.Method == http.MethodGet && r.Path == "/collections/products":
			return http.StatusOK, productsInfoJSON(0, 3, 0)
		case r.Method == http.MethodPut && r.Path == "/collections/products/points":
			return http.StatusOK, `{"result":{"operation_id":1,"status":"completed"},"status":"ok"}`
		default:
			return http.StatusNotFound, `{}`
		}
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	points := []vector.Point{
		vector.NewPoint(vector.PointID("fakestore", "1"),
			vector.VectorSet{vector.SpaceText: {1, 0, 0}},
			vector.Payload{"title": "Red Shirt"}),
	}
	written, err := store.Upsert(context.Background(), "products", points)
	require.NoError(t, err)
	require.Equal(t, 1, written)

	last := log.last()
	require.Equal(t, http.MethodPut, last.Method)
	require.Equal(t, "/collections/products/points", last.Path)
	require.Equal(t, "true", last.Query.Get("wait"))

	var body struct {
		Points []struct {
			ID      string               `json:"id"`
			Vector  map[string][]float64 `json:"vector"`
			Payload map[string]any       `json:"payload"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(last.Body, &body))
	require.Len(t, body.Points, 1)
	require.Equal(t, points[0].ID(), body.Points[0].ID)
	require.Equal(t, []float64{1, 0, 0}, body.Points[0].Vector["text"])
	require.Equal(t, "Red Shirt", body.Points[0].Payload["title"])
}

func TestQdrant_Upsert_ValidatesBeforeSending(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		return http.StatusOK, productsInfoJSON(0, 3, 0)
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	bad := vector.NewPoint("p1", vector.VectorSet{vector.SpaceText: {1, 0}}, nil)
	_, err := store.Upsert(context.Background(), "products", []vector.Point{bad})
	require.ErrorIs(t, err, vector.ErrDimensionMismatch)

	for _, r := range log.all() {
		require.NotEqual(t, "/collections/products/points", r.Path)
	}
}

func TestQdrant_Search(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		switch {
		case r.Method == http.MethodGet && r.Path == "/collections/products":
			return http.StatusOK, productsInfoJSON(3, 3, 0)
		case r.Method == http.MethodPost && r.Path == "/collections/products/points/search":
			return http.StatusOK, `{
				"result": [
					{"id": "11111111-1111-1111-1111-111111111111", "score": 0.93, "payload": {"title": "Red Shirt"}},
					{"id": "22222222-2222-2222-2222-222222222222", "score": 0.71, "payload": {"title": "Blue Shirt"}}
				],
				"status": "ok"
			}`
		default:
			return http.StatusNotFound, `{}`
		}
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	filter := vector.NewFilter().Eq("category", "clothing").Gte("price", 5).Lte("price", 50)
	results, err := store.Search(context.Background(), "products", []float64{1, 0, 0}, vector.SpaceText, 5, filter)
	require.NoError(t, err)

	require.Len(t, results, 2)
	require.Equal(t, "11111111-1111-1111-1111-111111111111", results[0].ID())
	require.InDelta(t, 0.93, results[0].Score(), 1e-9)
	require.Equal(t, "Red Shirt", results[0].Payload()["title"])

	last := log.last()
	var body struct {
		Vector struct {
			Name   string    `json:"name"`
			Vector []float64 `json:"vector"`
		} `json:"vector"`
		Limit       int  `json:"limit"`
		WithPayload bool `json:"with_payload"`
		Filter      struct {
			Must []struct {
				Key   string `json:"key"`
				Match *struct {
					Value any `json:"value"`
				} `json:"match"`
				Range *struct {
					Gte *float64 `json:"gte"`
					Lte *float64 `json:"lte"`
				} `json:"range"`
			} `json:"must"`
		} `json:"filter"`
	}
	require.NoError(t, json.Unmarshal(last.Body, &body))
	require.Equal(t, "text", body.Vector.Name)
	require.Equal(t, []float64{1, 0, 0}, body.Vector.Vector)
	require.Equal(t, 5, body.Limit)
	require.True(t, body.WithPayload)
	require.Len(t, body.Filter.Must, 3)
	require.Equal(t, "category", body.Filter.Must[0].Key)
	require.Equal(t, "clothing", body.Filter.Must[0].Match.Value)
	require.NotNil(t, body.Filter.Must[1].Range.Gte)
	require.InDelta(t, 5, *body.Filter.Must[1].Range.Gte, 1e-9)
	require.NotNil(t, body.Filter.Must[2].Range.Lte)
	require.InDelta(t, 50, *body.Filter.Must[2].Range.Lte, 1e-9)
}

func TestQdrant_Search_RejectsUnindexedFilterField(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		return http.StatusOK, productsInfoJSON(3, 3, 0)
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	_, err := store.Search(context.Background(), "products", []float64{1, 0, 0}, vector.SpaceText, 5,
		vector.NewFilter().Eq("color", "red"))
	require.ErrorIs(t, err, vector.ErrUnindexedField)
}

func TestQdrant_HybridSearch_FetchesDoubleLimit(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		switch {
		case r.Method == http.MethodGet && r.Path == "/collections/products":
			return http.StatusOK, productsInfoJSON(3, 3, 0)
		case r.Method == http.MethodPost && r.Path == "/collections/products/points/search":
			return http.StatusOK, `{
				"result": [
					{"id": "11111111-1111-1111-1111-111111111111", "score": 0.95, "payload": {"title": "Blue Shirt"}},
					{"id": "22222222-2222-2222-2222-222222222222", "score": 0.90, "payload": {"title": "Red Hat"}}
				],
				"status": "ok"
			}`
		default:
			return http.StatusNotFound, `{}`
		}
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	results, err := store.HybridSearch(context.Background(), "products", []float64{1, 0, 0}, "red", vector.SpaceText, 1, 1)
	require.NoError(t, err)

	// Lexical rerank puts the hat first; the limit trims the shirt.
	require.Len(t, results, 1)
	require.Equal(t, "Red Hat", results[0].Payload()["title"])

	last := log.last()
	var body struct {
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(last.Body, &body))
	require.Equal(t, 2, body.Limit)
}

func TestQdrant_Scroll(t *testing.T) {
	firstPageJSON := `{
		"result": {
			"points": [
				{"id": "11111111-1111-1111-1111-111111111111", "payload": {"platform": "fakestore"}},
				{"id": "22222222-2222-2222-2222-222222222222", "payload": {"platform": "fakestore"}}
			],
			"next_page_offset": "33333333-3333-3333-3333-333333333333"
		},
		"status": "ok"
	}`
	lastPageJSON := `{
		"result": {
			"points": [
				{"id": "33333333-3333-3333-3333-333333333333", "payload": {"platform": "fakestore"}}
			],
			"next_page_offset": null
		},
		"status": "ok"
	}`

	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		switch {
		case r.Method == http.MethodGet && r.Path == "/collections/products":
			return http.StatusOK, productsInfoJSON(3, 3, 0)
		case r.Method == http.MethodPost && r.Path == "/collections/products/points/scroll":
			var req struct {
				Offset json.RawMessage `json:"offset"`
			}
			if err := json.Unmarshal(r.Body, &req); err == nil && len(req.Offset) > 0 {
				return http.StatusOK, lastPageJSON
			}
			return http.StatusOK, firstPageJSON
		default:
			return http.StatusNotFound, `{}`
		}
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	ctx := context.Background()
	filter := vector.NewFilter().Eq("platform", "fakestore")

	page1, cursor, err := store.Scroll(ctx, "products", 2, nil, filter)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, cursor)
	require.Equal(t, "fakestore", page1[0].Payload()["platform"])

	page2, cursor, err := store.Scroll(ctx, "products", 2, cursor, filter)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.Nil(t, cursor)
	require.Equal(t, "33333333-3333-3333-3333-333333333333", page2[0].ID())

	// The second request must carry the server's offset token verbatim.
	last := log.last()
	var body struct {
		Offset json.RawMessage `json:"offset"`
		Filter *struct {
			Must []struct {
				Key string `json:"key"`
			} `json:"must"`
		} `json:"filter"`
	}
	require.NoError(t, json.Unmarshal(last.Body, &body))
	require.JSONEq(t, `"33333333-3333-3333-3333-333333333333"`, string(body.Offset))
	require.NotNil(t, body.Filter)
	require.Equal(t, "platform", body.Filter.Must[0].Key)
}

func TestQdrant_Count(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		if r.Method == http.MethodPost && r.Path == "/collections/products/points/count" {
			return http.StatusOK, `{"result":{"count":42},"status":"ok"}`
		}
		return http.StatusNotFound, `{}`
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	count, err := store.Count(context.Background(), "products")
	require.NoError(t, err)
	require.Equal(t, 42, count)

	var body struct {
		Exact bool `json:"exact"`
	}
	require.NoError(t, json.Unmarshal(log.last().Body, &body))
	require.True(t, body.Exact)
}

func TestQdrant_DeleteByIDs(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		return http.StatusOK, `{"result":{"status":"completed"},"status":"ok"}`
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	ids := []string{"11111111-1111-1111-1111-111111111111", "22222222-2222-2222-2222-222222222222"}
	require.NoError(t, store.DeleteByIDs(context.Background(), "products", ids))

	last := log.last()
	require.Equal(t, "/collections/products/points/delete", last.Path)
	require.Equal(t, "true", last.Query.Get("wait"))

	var body struct {
		Points []string `json:"points"`
	}
	require.NoError(t, json.Unmarshal(last.Body, &body))
	require.Equal(t, ids, body.Points)

	// Empty batches never hit the server.
	before := log.len()
	require.NoError(t, store.DeleteByIDs(context.Background(), "products", nil))
	require.Equal(t, before, log.len())
}

func TestQdrant_MissingCollection(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		if r.Method == http.MethodDelete {
			return http.StatusOK, `{"result":false,"status":"ok"}`
		}
		return http.StatusNotFound, collectionMissingJSON
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	ctx := context.Background()

	exists, err := store.CollectionExists(ctx, "products")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = store.Search(ctx, "products", []float64{1, 0, 0}, vector.SpaceText, 5, vector.NewFilter())
	require.ErrorIs(t, err, vector.ErrCollectionNotFound)

	_, err = store.Count(ctx, "products")
	require.ErrorIs(t, err, vector.ErrCollectionNotFound)

	err = store.DeleteCollection(ctx, "products")
	require.ErrorIs(t, err, vector.ErrCollectionNotFound)
}

func TestQdrant_ServerErrorSurfacesMessage(t *testing.T) {
	log := &requestLog{}
	srv := fakeQdrantServer(t, log, func(r recordedRequest) (int, string) {
		return http.StatusInternalServerError, `{"status":{"error":"service unavailable: out of memory"}}`
	})
	defer srv.Close()

	store := newTestQdrant(srv.URL)
	_, err := store.Count(context.Background(), "products")
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of memory")
}
