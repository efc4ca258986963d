package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/shopvec/shopvec/domain/vector"
	"github.com/shopvec/shopvec/internal/config"
)

// Qdrant implements vector.Store against a Qdrant server over its REST
// API. Collections use named vector spaces; payload indexes are created
// per schema so filtered search stays fast.
type Qdrant struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu      sync.RWMutex
	schemas map[string]vector.CollectionSchema
}

// NewQdrant creates a Qdrant-backed store from the given configuration.
func NewQdrant(cfg config.QdrantConfig) *Qdrant {
	return &Qdrant{
		baseURL:    strings.TrimSuffix(cfg.URL(), "/"),
		apiKey:     cfg.APIKey(),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		schemas:    make(map[string]vector.CollectionSchema),
	}
}

type qdrantVectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type qdrantCreateCollectionRequest struct {
	Vectors map[string]qdrantVectorParams `json:"vectors"`
}

type qdrantCreateIndexRequest struct {
	FieldName   string `json:"field_name"`
	FieldSchema string `json:"field_schema"`
}

type qdrantCollectionInfo struct {
	Status      string `json:"status"`
	PointsCount int    `json:"points_count"`
	Config      struct {
		Params struct {
			Vectors map[string]qdrantVectorParams `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
	PayloadSchema map[string]struct {
		DataType string `json:"data_type"`
	} `json:"payload_schema"`
}

type qdrantPointStruct struct {
	ID      string           `json:"id"`
	Vector  vector.VectorSet `json:"vector"`
	Payload vector.Payload   `json:"payload,omitempty"`
}

type qdrantUpsertRequest struct {
	Points []qdrantPointStruct `json:"points"`
}

type qdrantDeletePointsRequest struct {
	Points []string `json:"points"`
}

type qdrantNamedVector struct {
	Name   string    `json:"name"`
	Vector []float64 `json:"vector"`
}

type qdrantSearchRequest struct {
	Vector      qdrantNamedVector `json:"vector"`
	Limit       int               `json:"limit"`
	Filter      *qdrantFilter     `json:"filter,omitempty"`
	WithPayload bool              `json:"with_payload"`
}

type qdrantScoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload vector.Payload `json:"payload"`
}

type qdrantScrollRequest struct {
	Limit       int             `json:"limit"`
	Offset      json.RawMessage `json:"offset,omitempty"`
	Filter      *qdrantFilter   `json:"filter,omitempty"`
	WithPayload bool            `json:"with_payload"`
}

type qdrantRetrievedPoint struct {
	ID      string         `json:"id"`
	Payload vector.Payload `json:"payload"`
}

type qdrantScrollResult struct {
	Points         []qdrantRetrievedPoint `json:"points"`
	NextPageOffset json.RawMessage        `json:"next_page_offset"`
}

type qdrantCountRequest struct {
	Exact bool `json:"exact"`
}

type qdrantCountResult struct {
	Count int `json:"count"`
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must,omitempty"`
}

type qdrantCondition struct {
	Key   string       `json:"key"`
	Match *qdrantMatch `json:"match,omitempty"`
	Range *qdrantRange `json:"range,omitempty"`
}

type qdrantMatch struct {
	Value any `json:"value"`
}

type qdrantRange struct {
	Gte *float64 `json:"gte,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
}

// CreateCollection creates the collection with one named vector per
// space plus payload indexes. Without recreate an existing collection
// is checked for dimension drift and otherwise left as is.
func (q *Qdrant) CreateCollection(ctx context.Context, schema vector.CollectionSchema, recreate bool) error {
	existing, err := q.fetchSchema(ctx, schema.Name())
	switch {
	case err == nil:
		if !recreate {
			return compareSpaces(schema, existing)
		}
		if err := q.DeleteCollection(ctx, schema.Name()); err != nil {
			return err
		}
	case errors.Is(err, vector.ErrCollectionNotFound):
		// Fresh create.
	default:
		return err
	}

	request := qdrantCreateCollectionRequest{Vectors: make(map[string]qdrantVectorParams, len(schema.Spaces()))}
	for _, space := range schema.Spaces() {
		request.Vectors[space.Name()] = qdrantVectorParams{
			Size:     space.Dimension(),
			Distance: qdrantDistance(space.Metric()),
		}
	}
	if err := q.doRequest(ctx, http.MethodPut, "/collections/"+schema.Name(), request, nil); err != nil {
		return fmt.Errorf("create collection %q: %w", schema.Name(), err)
	}

	for _, idx := range schema.PayloadIndexes() {
		request := qdrantCreateIndexRequest{
			FieldName:   idx.Field(),
			FieldSchema: qdrantIndexSchema(idx.Kind()),
		}
		if err := q.doRequest(ctx, http.MethodPut, "/collections/"+schema.Name()+"/index", request, nil); err != nil {
			return fmt.Errorf("create payload index %q on %q: %w", idx.Field(), schema.Name(), err)
		}
	}

	q.mu.Lock()
	q.schemas[schema.Name()] = schema
	q.mu.Unlock()
	return nil
}

// CollectionExists reports whether the collection exists on the server.
func (q *Qdrant) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := q.collectionInfo(ctx, name)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteCollection drops the collection and all its points.
func (q *Qdrant) DeleteCollection(ctx context.Context, name string) error {
	var deleted bool
	err := q.doRequest(ctx, http.MethodDelete, "/collections/"+name, nil, &deleted)
	if err != nil {
		if errors.Is(err, vector.ErrCollectionNotFound) {
			return fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
		}
		return fmt.Errorf("delete collection %q: %w", name, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
	}

	q.mu.Lock()
	delete(q.schemas, name)
	q.mu.Unlock()
	return nil
}

// Info returns collection statistics.
func (q *Qdrant) Info(ctx context.Context, name string) (vector.CollectionInfo, error) {
	info, err := q.collectionInfo(ctx, name)
	if err != nil {
		return vector.CollectionInfo{}, err
	}
	return vector.NewCollectionInfo(name, info.PointsCount, info.Status), nil
}

// Upsert writes points with wait=true so they are immediately visible
// to search.
func (q *Qdrant) Upsert(ctx context.Context, collection string, points []vector.Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	schema, err := q.getSchema(ctx, collection)
	if err != nil {
		return 0, err
	}
	for _, p := range points {
		if err := p.Vectors().Validate(schema); err != nil {
			return 0, err
		}
	}

	request := qdrantUpsertRequest{Points: make([]qdrantPointStruct, 0, len(points))}
	for _, p := range points {
		request.Points = append(request.Points, qdrantPointStruct{
			ID:      p.ID(),
			Vector:  p.Vectors(),
			Payload: p.Payload(),
		})
	}
	if err := q.doRequest(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", request, nil); err != nil {
		return 0, fmt.Errorf("upsert points: %w", err)
	}
	return len(points), nil
}

// DeleteByIDs removes points by ID. Missing IDs are not an error.
func (q *Qdrant) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	request := qdrantDeletePointsRequest{Points: ids}
	if err := q.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", request, nil); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

// Search returns the limit nearest points in the named space.
func (q *Qdrant) Search(ctx context.Context, collection string, queryVector []float64, space string, limit int, filter vector.Filter) ([]vector.Result, error) {
	schema, err := q.getSchema(ctx, collection)
	if err != nil {
		return nil, err
	}

	spaceSchema, ok := schema.Space(space)
	if !ok {
		return nil, fmt.Errorf("%w: space %q not declared on collection %q", vector.ErrUnknownSpace, space, collection)
	}
	if len(queryVector) != spaceSchema.Dimension() {
		return nil, fmt.Errorf("%w: space %q expects %d dimensions, got %d",
			vector.ErrDimensionMismatch, space, spaceSchema.Dimension(), len(queryVector))
	}
	if err := filter.Validate(schema); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	request := qdrantSearchRequest{
		Vector:      qdrantNamedVector{Name: space, Vector: queryVector},
		Limit:       limit,
		Filter:      qdrantFilterFrom(filter),
		WithPayload: true,
	}
	var scored []qdrantScoredPoint
	if err := q.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/search", request, &scored); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	results := make([]vector.Result, 0, len(scored))
	for _, point := range scored {
		results = append(results, vector.NewResult(point.ID, qdrantSimilarity(spaceSchema.Metric(), point.Score), point.Payload))
	}
	return results, nil
}

// HybridSearch fetches candidates at twice the limit by vector and
// re-ranks them by blended vector and lexical score.
func (q *Qdrant) HybridSearch(ctx context.Context, collection string, queryVector []float64, queryText, space string, limit int, alpha float64) ([]vector.Result, error) {
	if limit <= 0 {
		limit = 10
	}
	candidates, err := q.Search(ctx, collection, queryVector, space, limit*2, vector.NewFilter())
	if err != nil {
		return nil, err
	}
	reranked := vector.Rerank(candidates, queryText, alpha)
	if len(reranked) > limit {
		reranked = reranked[:limit]
	}
	return reranked, nil
}

// Scroll enumerates points page by page. The cursor token carries
// Qdrant's next_page_offset verbatim.
func (q *Qdrant) Scroll(ctx context.Context, collection string, limit int, cursor *vector.Cursor, filter vector.Filter) ([]vector.Point, *vector.Cursor, error) {
	schema, err := q.getSchema(ctx, collection)
	if err != nil {
		return nil, nil, err
	}
	if err := filter.Validate(schema); err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	request := qdrantScrollRequest{
		Limit:       limit,
		Filter:      qdrantFilterFrom(filter),
		WithPayload: true,
	}
	if cursor != nil {
		request.Offset = json.RawMessage(cursor.Token())
	}

	var result qdrantScrollResult
	if err := q.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", request, &result); err != nil {
		return nil, nil, fmt.Errorf("scroll points: %w", err)
	}

	points := make([]vector.Point, 0, len(result.Points))
	for _, p := range result.Points {
		points = append(points, vector.NewPoint(p.ID, nil, p.Payload))
	}

	offset := string(result.NextPageOffset)
	if offset == "" || offset == "null" {
		return points, nil, nil
	}
	return points, vector.NewCursor(offset), nil
}

// Count returns the exact number of points in the collection.
func (q *Qdrant) Count(ctx context.Context, collection string) (int, error) {
	request := qdrantCountRequest{Exact: true}
	var result qdrantCountResult
	if err := q.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/count", request, &result); err != nil {
		if errors.Is(err, vector.ErrCollectionNotFound) {
			return 0, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
		}
		return 0, fmt.Errorf("count points: %w", err)
	}
	return result.Count, nil
}

// getSchema returns the cached collection schema, reconstructing it
// from the server on first use.
func (q *Qdrant) getSchema(ctx context.Context, name string) (vector.CollectionSchema, error) {
	q.mu.RLock()
	schema, ok := q.schemas[name]
	q.mu.RUnlock()
	if ok {
		return schema, nil
	}

	schema, err := q.fetchSchema(ctx, name)
	if err != nil {
		return vector.CollectionSchema{}, err
	}

	q.mu.Lock()
	q.schemas[name] = schema
	q.mu.Unlock()
	return schema, nil
}

// fetchSchema rebuilds a collection schema from the server's collection
// info so validation works even for collections created elsewhere.
func (q *Qdrant) fetchSchema(ctx context.Context, name string) (vector.CollectionSchema, error) {
	info, err := q.collectionInfo(ctx, name)
	if err != nil {
		return vector.CollectionSchema{}, err
	}

	spaceNames := make([]string, 0, len(info.Config.Params.Vectors))
	for spaceName := range info.Config.Params.Vectors {
		spaceNames = append(spaceNames, spaceName)
	}
	sort.Strings(spaceNames)

	spaces := make([]vector.SpaceSchema, 0, len(spaceNames))
	for _, spaceName := range spaceNames {
		params := info.Config.Params.Vectors[spaceName]
		space, err := vector.NewSpaceSchema(spaceName, params.Size, qdrantMetric(params.Distance))
		if err != nil {
			return vector.CollectionSchema{}, fmt.Errorf("collection %q: %w", name, err)
		}
		spaces = append(spaces, space)
	}

	fields := make([]string, 0, len(info.PayloadSchema))
	for field := range info.PayloadSchema {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	indexes := make([]vector.PayloadIndex, 0, len(fields))
	for _, field := range fields {
		indexes = append(indexes, vector.NewPayloadIndex(field, qdrantIndexKind(info.PayloadSchema[field].DataType)))
	}

	return vector.NewCollectionSchema(name, spaces, indexes)
}

func (q *Qdrant) collectionInfo(ctx context.Context, name string) (qdrantCollectionInfo, error) {
	var info qdrantCollectionInfo
	err := q.doRequest(ctx, http.MethodGet, "/collections/"+name, nil, &info)
	if err != nil {
		if errors.Is(err, vector.ErrCollectionNotFound) {
			return qdrantCollectionInfo{}, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
		}
		return qdrantCollectionInfo{}, fmt.Errorf("get collection %q: %w", name, err)
	}
	return info, nil
}

// doRequest sends one API call and decodes the result envelope into
// result when non-nil. A 404 maps to vector.ErrCollectionNotFound since
// every path here addresses a collection.
func (q *Qdrant) doRequest(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return vector.ErrCollectionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return qdrantAPIError(resp.StatusCode, respBody)
	}

	if result == nil {
		return nil
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func qdrantAPIError(statusCode int, body []byte) error {
	var envelope struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status.Error != "" {
		return fmt.Errorf("qdrant: %s (status %d)", envelope.Status.Error, statusCode)
	}
	return fmt.Errorf("qdrant: unexpected status %d", statusCode)
}

func qdrantFilterFrom(filter vector.Filter) *qdrantFilter {
	if filter.Empty() {
		return nil
	}
	must := make([]qdrantCondition, 0, len(filter.Conditions()))
	for _, c := range filter.Conditions() {
		switch c.Op() {
		case vector.OpGte:
			value, _ := c.Value().(float64)
			must = append(must, qdrantCondition{Key: c.Field(), Range: &qdrantRange{Gte: &value}})
		case vector.OpLte:
			value, _ := c.Value().(float64)
			must = append(must, qdrantCondition{Key: c.Field(), Range: &qdrantRange{Lte: &value}})
		default:
			must = append(must, qdrantCondition{Key: c.Field(), Match: &qdrantMatch{Value: c.Value()}})
		}
	}
	return &qdrantFilter{Must: must}
}

func qdrantDistance(metric vector.Metric) string {
	switch metric {
	case vector.MetricEuclidean:
		return "Euclid"
	case vector.MetricDot:
		return "Dot"
	default:
		return "Cosine"
	}
}

func qdrantMetric(distance string) vector.Metric {
	switch distance {
	case "Euclid":
		return vector.MetricEuclidean
	case "Dot":
		return vector.MetricDot
	default:
		return vector.MetricCosine
	}
}

// qdrantSimilarity converts a Qdrant score to a similarity. Cosine and
// dot scores already are similarities; euclidean scores are distances.
func qdrantSimilarity(metric vector.Metric, score float64) float64 {
	if metric == vector.MetricEuclidean {
		return 1.0 / (1.0 + score)
	}
	return score
}

func qdrantIndexSchema(kind vector.IndexKind) string {
	switch kind {
	case vector.IndexFloat:
		return "float"
	case vector.IndexBool:
		return "bool"
	default:
		return "keyword"
	}
}

func qdrantIndexKind(dataType string) vector.IndexKind {
	switch dataType {
	case "float":
		return vector.IndexFloat
	case "bool":
		return vector.IndexBool
	default:
		return vector.IndexKeyword
	}
}
