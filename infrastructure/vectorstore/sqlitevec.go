package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopvec/shopvec/domain/vector"
	"github.com/shopvec/shopvec/internal/database"
	"gorm.io/gorm"
)

// CollectionModel holds one collection's declared schema. The point and
// vector tables themselves are created per collection.
type CollectionModel struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string          `gorm:"column:name;type:varchar(255);uniqueIndex;not null"`
	Schema    json.RawMessage `gorm:"column:schema;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name.
func (CollectionModel) TableName() string {
	return "vector_collections"
}

// schemaDoc is the JSON persistence shape of a collection schema.
type schemaDoc struct {
	Spaces   []spaceDoc `json:"spaces"`
	Indexes  []indexDoc `json:"indexes"`
	Pgvector bool       `json:"pgvector,omitempty"`
}

type spaceDoc struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
}

type indexDoc struct {
	Field string `json:"field"`
	Kind  string `json:"kind"`
}

// identPattern restricts collection, space, and payload field names to
// safe SQL identifiers, since they become table and column names.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Column names every points table reserves for itself.
var reservedColumns = map[string]struct{}{
	"id":       {},
	"point_id": {},
	"payload":  {},
}

// SQLiteVec implements vector.Store on the relational database. Vectors
// are stored as JSON columns and ranked in memory, which works on both
// SQLite and PostgreSQL. On PostgreSQL with the pgvector extension
// available, vector columns and similarity ranking are pushed down to
// the database instead.
type SQLiteVec struct {
	db     database.Database
	logger *slog.Logger

	mu      sync.RWMutex
	schemas map[string]vector.CollectionSchema
}

// NewSQLiteVec creates a SQLiteVec store, eagerly migrating the
// collection metadata table.
func NewSQLiteVec(db database.Database, logger *slog.Logger) (*SQLiteVec, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.GORM().AutoMigrate(&CollectionModel{}); err != nil {
		return nil, fmt.Errorf("migrate vector collections: %w", err)
	}
	return &SQLiteVec{
		db:      db,
		logger:  logger,
		schemas: make(map[string]vector.CollectionSchema),
	}, nil
}

// CreateCollection creates the collection's point and vector tables.
// Without recreate an existing collection is left untouched, but its
// stored spaces are checked against the requested schema so dimension
// drift surfaces immediately.
func (s *SQLiteVec) CreateCollection(ctx context.Context, schema vector.CollectionSchema, recreate bool) error {
	if err := validateSchemaIdentifiers(schema); err != nil {
		return err
	}

	existing, err := s.loadSchema(ctx, schema.Name())
	switch {
	case err == nil:
		if !recreate {
			return compareSpaces(schema, existing)
		}
		if err := s.dropCollection(ctx, existing); err != nil {
			return err
		}
	case errors.Is(err, vector.ErrCollectionNotFound):
		// Fresh create.
	default:
		return err
	}

	pgvectorEnabled := false
	if s.db.IsPostgres() {
		if err := s.db.Session(ctx).Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error; err != nil {
			s.logger.Warn("pgvector extension unavailable, storing vectors as JSON", "error", err)
		} else {
			pgvectorEnabled = true
		}
	}

	doc := toSchemaDoc(schema)
	doc.Pgvector = pgvectorEnabled
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode collection schema: %w", err)
	}

	err = s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&CollectionModel{Name: schema.Name(), Schema: raw}).Error; err != nil {
			return err
		}
		if err := tx.Exec(s.pointsTableDDL(schema)).Error; err != nil {
			return err
		}
		for _, ddl := range s.pointsIndexDDL(schema) {
			if err := tx.Exec(ddl).Error; err != nil {
				return err
			}
		}
		for _, space := range schema.Spaces() {
			if err := tx.Exec(s.spaceTableDDL(schema.Name(), space, pgvectorEnabled)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create collection %q: %w", schema.Name(), err)
	}

	s.mu.Lock()
	s.schemas[schema.Name()] = schema
	s.mu.Unlock()
	return nil
}

// CollectionExists reports whether the collection exists.
func (s *SQLiteVec) CollectionExists(ctx context.Context, name string) (bool, error) {
	var count int64
	result := s.db.Session(ctx).Model(&CollectionModel{}).Where("name = ?", name).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("check collection %q: %w", name, result.Error)
	}
	return count > 0, nil
}

// DeleteCollection drops the collection and all its points.
func (s *SQLiteVec) DeleteCollection(ctx context.Context, name string) error {
	schema, err := s.loadSchema(ctx, name)
	if err != nil {
		return err
	}
	return s.dropCollection(ctx, schema)
}

// Info returns collection statistics.
func (s *SQLiteVec) Info(ctx context.Context, name string) (vector.CollectionInfo, error) {
	count, err := s.Count(ctx, name)
	if err != nil {
		return vector.CollectionInfo{}, err
	}
	return vector.NewCollectionInfo(name, count, "green"), nil
}

// Upsert writes points idempotently by point ID.
func (s *SQLiteVec) Upsert(ctx context.Context, collection string, points []vector.Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	schema, err := s.getSchema(ctx, collection)
	if err != nil {
		return 0, err
	}
	pgvectorEnabled := s.pgvectorFlag(ctx, collection)

	for _, p := range points {
		if err := p.Vectors().Validate(schema); err != nil {
			return 0, err
		}
	}

	err = s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range points {
			if err := s.upsertPoint(tx, schema, pgvectorEnabled, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert points: %w", err)
	}
	return len(points), nil
}

func (s *SQLiteVec) upsertPoint(tx *gorm.DB, schema vector.CollectionSchema, pgvectorEnabled bool, p vector.Point) error {
	payloadJSON, err := json.Marshal(p.Payload())
	if err != nil {
		return fmt.Errorf("encode payload for point %s: %w", p.ID(), err)
	}

	columns := []string{"point_id", "payload"}
	args := []any{p.ID(), string(payloadJSON)}
	for _, idx := range schema.PayloadIndexes() {
		columns = append(columns, idx.Field())
		args = append(args, indexedValue(idx, p.Payload()))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	assignments := make([]string, 0, len(columns)-1)
	for _, col := range columns[1:] {
		assignments = append(assignments, col+" = excluded."+col)
	}

	upsert := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (point_id) DO UPDATE SET %s`,
		pointsTable(schema.Name()), strings.Join(columns, ", "), placeholders, strings.Join(assignments, ", "),
	)
	if err := tx.Exec(upsert, args...).Error; err != nil {
		return err
	}

	for name, vec := range p.Vectors() {
		var embedding any
		if pgvectorEnabled {
			embedding = database.NewPgVector(vec)
		} else {
			embedding = Float64Slice(vec)
		}
		upsert := fmt.Sprintf(
			`INSERT INTO %s (point_id, embedding) VALUES (?, ?) ON CONFLICT (point_id) DO UPDATE SET embedding = excluded.embedding`,
			spaceTable(schema.Name(), name),
		)
		if err := tx.Exec(upsert, p.ID(), embedding).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteByIDs removes points by ID. Missing IDs are not an error.
func (s *SQLiteVec) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	schema, err := s.getSchema(ctx, collection)
	if err != nil {
		return err
	}

	err = s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		for _, space := range schema.Spaces() {
			del := fmt.Sprintf(`DELETE FROM %s WHERE point_id IN ?`, spaceTable(collection, space.Name()))
			if err := tx.Exec(del, ids).Error; err != nil {
				return err
			}
		}
		del := fmt.Sprintf(`DELETE FROM %s WHERE point_id IN ?`, pointsTable(collection))
		return tx.Exec(del, ids).Error
	})
	if err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

// Search returns the limit nearest points in the named space.
func (s *SQLiteVec) Search(ctx context.Context, collection string, queryVector []float64, space string, limit int, filter vector.Filter) ([]vector.Result, error) {
	schema, err := s.getSchema(ctx, collection)
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

	if s.pgvectorFlag(ctx, collection) {
		return s.searchPgvector(ctx, schema, spaceSchema, queryVector, limit, filter)
	}
	return s.searchInMemory(ctx, schema, spaceSchema, queryVector, limit, filter)
}

// searchInMemory loads filter-matching candidates and ranks them in Go.
func (s *SQLiteVec) searchInMemory(ctx context.Context, schema vector.CollectionSchema, space vector.SpaceSchema, queryVector []float64, limit int, filter vector.Filter) ([]vector.Result, error) {
	where, args := filterSQL(filter, "p.")

	query := fmt.Sprintf(
		`SELECT p.point_id AS point_id, p.payload AS payload, v.embedding AS embedding
		 FROM %s v JOIN %s p ON p.point_id = v.point_id`,
		spaceTable(schema.Name(), space.Name()), pointsTable(schema.Name()),
	)
	if where != "" {
		query += " WHERE " + where
	}

	var rows []struct {
		PointID   string       `gorm:"column:point_id"`
		Payload   []byte       `gorm:"column:payload"`
		Embedding Float64Slice `gorm:"column:embedding"`
	}
	if err := s.db.Session(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	results := make([]vector.Result, 0, len(rows))
	for _, row := range rows {
		if len(row.Embedding) == 0 {
			s.logger.Warn("skipping point with empty embedding", "point_id", row.PointID)
			continue
		}
		payload, err := decodePayload(row.Payload)
		if err != nil {
			return nil, err
		}
		score := Similarity(space.Metric(), queryVector, row.Embedding)
		results = append(results, vector.NewResult(row.PointID, score, payload))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// searchPgvector ranks with the pgvector cosine operator in the database.
func (s *SQLiteVec) searchPgvector(ctx context.Context, schema vector.CollectionSchema, space vector.SpaceSchema, queryVector []float64, limit int, filter vector.Filter) ([]vector.Result, error) {
	where, args := filterSQL(filter, "p.")

	query := fmt.Sprintf(
		`SELECT p.point_id AS point_id, p.payload AS payload, (v.embedding <=> ?) AS score
		 FROM %s v JOIN %s p ON p.point_id = v.point_id`,
		spaceTable(schema.Name(), space.Name()), pointsTable(schema.Name()),
	)
	queryArgs := []any{database.NewPgVector(queryVector).String()}
	if where != "" {
		query += " WHERE " + where
		queryArgs = append(queryArgs, args...)
	}
	query += " ORDER BY score ASC LIMIT ?"
	queryArgs = append(queryArgs, limit)

	var rows []struct {
		PointID string  `gorm:"column:point_id"`
		Payload []byte  `gorm:"column:payload"`
		Score   float64 `gorm:"column:score"`
	}
	if err := s.db.Session(ctx).Raw(query, queryArgs...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}

	results := make([]vector.Result, 0, len(rows))
	for _, row := range rows {
		payload, err := decodePayload(row.Payload)
		if err != nil {
			return nil, err
		}
		// <=> is cosine distance; similarity = 1 - distance keeps scores
		// identical to the in-memory path.
		results = append(results, vector.NewResult(row.PointID, 1.0-row.Score, payload))
	}
	return results, nil
}

// HybridSearch fetches candidates at twice the limit by vector and
// re-ranks them by blended vector and lexical score.
func (s *SQLiteVec) HybridSearch(ctx context.Context, collection string, queryVector []float64, queryText, space string, limit int, alpha float64) ([]vector.Result, error) {
	if limit <= 0 {
		limit = 10
	}
	candidates, err := s.Search(ctx, collection, queryVector, space, limit*2, vector.NewFilter())
	if err != nil {
		return nil, err
	}
	reranked := vector.Rerank(candidates, queryText, alpha)
	if len(reranked) > limit {
		reranked = reranked[:limit]
	}
	return reranked, nil
}

// Scroll enumerates points in row-id order. Vectors are not loaded;
// scrolled points carry IDs and payloads only.
func (s *SQLiteVec) Scroll(ctx context.Context, collection string, limit int, cursor *vector.Cursor, filter vector.Filter) ([]vector.Point, *vector.Cursor, error) {
	schema, err := s.getSchema(ctx, collection)
	if err != nil {
		return nil, nil, err
	}
	if err := filter.Validate(schema); err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	afterID := int64(0)
	if cursor != nil {
		afterID, err = strconv.ParseInt(cursor.Token(), 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid scroll cursor %q: %w", cursor.Token(), err)
		}
	}

	where, args := filterSQL(filter, "")
	query := fmt.Sprintf(`SELECT id, point_id, payload FROM %s WHERE id > ?`, pointsTable(collection))
	queryArgs := []any{afterID}
	if where != "" {
		query += " AND " + where
		queryArgs = append(queryArgs, args...)
	}
	query += " ORDER BY id ASC LIMIT ?"
	queryArgs = append(queryArgs, limit)

	var rows []struct {
		ID      int64  `gorm:"column:id"`
		PointID string `gorm:"column:point_id"`
		Payload []byte `gorm:"column:payload"`
	}
	if err := s.db.Session(ctx).Raw(query, queryArgs...).Scan(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("scroll points: %w", err)
	}

	points := make([]vector.Point, 0, len(rows))
	for _, row := range rows {
		payload, err := decodePayload(row.Payload)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, vector.NewPoint(row.PointID, nil, payload))
	}

	if len(rows) < limit {
		return points, nil, nil
	}
	next := vector.NewCursor(strconv.FormatInt(rows[len(rows)-1].ID, 10))
	return points, next, nil
}

// Count returns the number of points in the collection.
func (s *SQLiteVec) Count(ctx context.Context, collection string) (int, error) {
	if _, err := s.getSchema(ctx, collection); err != nil {
		return 0, err
	}
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pointsTable(collection))
	if err := s.db.Session(ctx).Raw(query).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return int(count), nil
}

// getSchema returns the cached collection schema, loading it from the
// metadata table on first use.
func (s *SQLiteVec) getSchema(ctx context.Context, name string) (vector.CollectionSchema, error) {
	s.mu.RLock()
	schema, ok := s.schemas[name]
	s.mu.RUnlock()
	if ok {
		return schema, nil
	}

	schema, err := s.loadSchema(ctx, name)
	if err != nil {
		return vector.CollectionSchema{}, err
	}

	s.mu.Lock()
	s.schemas[name] = schema
	s.mu.Unlock()
	return schema, nil
}

func (s *SQLiteVec) loadSchema(ctx context.Context, name string) (vector.CollectionSchema, error) {
	var model CollectionModel
	result := s.db.Session(ctx).Where("name = ?", name).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return vector.CollectionSchema{}, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
		}
		return vector.CollectionSchema{}, fmt.Errorf("load collection %q: %w", name, result.Error)
	}
	return decodeSchema(name, model.Schema)
}

// pgvectorFlag reports whether the collection was created with pgvector
// columns. Reads the stored schema doc, not the cache, since the cache
// holds only the domain schema.
func (s *SQLiteVec) pgvectorFlag(ctx context.Context, name string) bool {
	if !s.db.IsPostgres() {
		return false
	}
	var model CollectionModel
	if err := s.db.Session(ctx).Where("name = ?", name).First(&model).Error; err != nil {
		return false
	}
	var doc schemaDoc
	if err := json.Unmarshal(model.Schema, &doc); err != nil {
		return false
	}
	return doc.Pgvector
}

func (s *SQLiteVec) dropCollection(ctx context.Context, schema vector.CollectionSchema) error {
	err := s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		for _, space := range schema.Spaces() {
			drop := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, spaceTable(schema.Name(), space.Name()))
			if err := tx.Exec(drop).Error; err != nil {
				return err
			}
		}
		drop := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, pointsTable(schema.Name()))
		if err := tx.Exec(drop).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", schema.Name()).Delete(&CollectionModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("drop collection %q: %w", schema.Name(), err)
	}

	s.mu.Lock()
	delete(s.schemas, schema.Name())
	s.mu.Unlock()
	return nil
}

func (s *SQLiteVec) pointsTableDDL(schema vector.CollectionSchema) string {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	payloadType := "json"
	if s.db.IsPostgres() {
		idColumn = "id BIGSERIAL PRIMARY KEY"
		payloadType = "jsonb"
	}

	columns := []string{
		idColumn,
		"point_id VARCHAR(255) NOT NULL UNIQUE",
		"payload " + payloadType,
	}
	for _, idx := range schema.PayloadIndexes() {
		columns = append(columns, idx.Field()+" "+indexColumnType(idx.Kind()))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		pointsTable(schema.Name()), strings.Join(columns, ",\n    "))
}

func (s *SQLiteVec) pointsIndexDDL(schema vector.CollectionSchema) []string {
	table := pointsTable(schema.Name())
	ddl := make([]string, 0, len(schema.PayloadIndexes()))
	for _, idx := range schema.PayloadIndexes() {
		ddl = append(ddl, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)`,
			table, idx.Field(), table, idx.Field()))
	}
	return ddl
}

func (s *SQLiteVec) spaceTableDDL(collection string, space vector.SpaceSchema, pgvectorEnabled bool) string {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	embeddingType := "json NOT NULL"
	if s.db.IsPostgres() {
		idColumn = "id BIGSERIAL PRIMARY KEY"
		embeddingType = "jsonb NOT NULL"
	}
	if pgvectorEnabled {
		embeddingType = fmt.Sprintf("VECTOR(%d) NOT NULL", space.Dimension())
	}

	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s,
    point_id VARCHAR(255) NOT NULL UNIQUE,
    embedding %s
)`, spaceTable(collection, space.Name()), idColumn, embeddingType)
}

func pointsTable(collection string) string {
	return "vec_" + collection + "_points"
}

func spaceTable(collection, space string) string {
	return "vec_" + collection + "_" + space
}

func indexColumnType(kind vector.IndexKind) string {
	switch kind {
	case vector.IndexFloat:
		return "DOUBLE PRECISION"
	case vector.IndexBool:
		return "BOOLEAN"
	default:
		return "VARCHAR(255)"
	}
}

// indexedValue extracts the typed column value for one payload index.
// Missing or mistyped payload fields store NULL.
func indexedValue(idx vector.PayloadIndex, payload vector.Payload) any {
	value, ok := payload[idx.Field()]
	if !ok {
		return nil
	}
	switch idx.Kind() {
	case vector.IndexFloat:
		switch n := value.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
		return nil
	case vector.IndexBool:
		if b, ok := value.(bool); ok {
			return b
		}
		return nil
	default:
		if s, ok := value.(string); ok {
			return s
		}
		return nil
	}
}

// filterSQL renders a validated filter as a SQL conjunction. Field names
// were identifier-checked when the collection was created.
func filterSQL(filter vector.Filter, columnPrefix string) (string, []any) {
	conditions := filter.Conditions()
	if len(conditions) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(conditions))
	args := make([]any, 0, len(conditions))
	for _, c := range conditions {
		column := columnPrefix + c.Field()
		switch c.Op() {
		case vector.OpGte:
			clauses = append(clauses, column+" >= ?")
		case vector.OpLte:
			clauses = append(clauses, column+" <= ?")
		default:
			clauses = append(clauses, column+" = ?")
		}
		args = append(args, c.Value())
	}
	return strings.Join(clauses, " AND "), args
}

func decodePayload(raw []byte) (vector.Payload, error) {
	if len(raw) == 0 {
		return vector.Payload{}, nil
	}
	var payload vector.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

func toSchemaDoc(schema vector.CollectionSchema) schemaDoc {
	doc := schemaDoc{}
	for _, space := range schema.Spaces() {
		doc.Spaces = append(doc.Spaces, spaceDoc{
			Name:      space.Name(),
			Dimension: space.Dimension(),
			Metric:    string(space.Metric()),
		})
	}
	for _, idx := range schema.PayloadIndexes() {
		doc.Indexes = append(doc.Indexes, indexDoc{
			Field: idx.Field(),
			Kind:  string(idx.Kind()),
		})
	}
	return doc
}

func decodeSchema(name string, raw []byte) (vector.CollectionSchema, error) {
	var doc schemaDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return vector.CollectionSchema{}, fmt.Errorf("decode schema for collection %q: %w", name, err)
	}

	spaces := make([]vector.SpaceSchema, 0, len(doc.Spaces))
	for _, sd := range doc.Spaces {
		space, err := vector.NewSpaceSchema(sd.Name, sd.Dimension, vector.Metric(sd.Metric))
		if err != nil {
			return vector.CollectionSchema{}, fmt.Errorf("collection %q: %w", name, err)
		}
		spaces = append(spaces, space)
	}
	indexes := make([]vector.PayloadIndex, 0, len(doc.Indexes))
	for _, id := range doc.Indexes {
		indexes = append(indexes, vector.NewPayloadIndex(id.Field, vector.IndexKind(id.Kind)))
	}
	return vector.NewCollectionSchema(name, spaces, indexes)
}

// validateSchemaIdentifiers rejects collection, space, and field names
// that cannot safely become SQL identifiers.
func validateSchemaIdentifiers(schema vector.CollectionSchema) error {
	if !identPattern.MatchString(schema.Name()) {
		return fmt.Errorf("invalid collection name %q", schema.Name())
	}
	for _, space := range schema.Spaces() {
		if !identPattern.MatchString(space.Name()) {
			return fmt.Errorf("invalid space name %q", space.Name())
		}
		if space.Name() == "points" {
			return fmt.Errorf("space name %q is reserved", space.Name())
		}
	}
	for _, idx := range schema.PayloadIndexes() {
		if !identPattern.MatchString(idx.Field()) {
			return fmt.Errorf("invalid payload field %q", idx.Field())
		}
		if _, reserved := reservedColumns[idx.Field()]; reserved {
			return fmt.Errorf("payload field %q is reserved", idx.Field())
		}
	}
	return nil
}

// compareSpaces checks a requested schema against the stored one when a
// collection already exists. Mismatched dimensions fail fast instead of
// producing silently broken upserts later.
func compareSpaces(requested, existing vector.CollectionSchema) error {
	for _, want := range requested.Spaces() {
		have, ok := existing.Space(want.Name())
		if !ok {
			return fmt.Errorf("%w: space %q not declared on collection %q",
				vector.ErrUnknownSpace, want.Name(), existing.Name())
		}
		if have.Dimension() != want.Dimension() {
			return fmt.Errorf("%w: space %q has %d dimensions, requested %d",
				vector.ErrDimensionMismatch, want.Name(), have.Dimension(), want.Dimension())
		}
	}
	return nil
}
