package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"gorm.io/gorm/clause"

	"github.com/shopvec/shopvec/internal/database"
)

// cacheEntry is a cached HTTP response row, keyed by request digest.
type cacheEntry struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Key        string `gorm:"column:key;type:varchar(64);uniqueIndex;not null"`
	StatusCode int    `gorm:"not null"`
	Header     []byte
	Body       []byte
}

// TableName returns the table name for cache entries.
func (cacheEntry) TableName() string { return "http_cache_entries" }

// CachingTransport is an http.RoundTripper that caches POST request/response
// pairs in a SQLite database, keyed by the SHA-256 of method + URL + request
// body. Only 2xx responses are cached. Cache read/write errors are non-fatal —
// they silently fall through to the inner transport.
type CachingTransport struct {
	inner http.RoundTripper
	db    database.Database
}

// NewCachingTransport creates a CachingTransport that stores cached responses
// in a SQLite database under dir. If inner is nil, http.DefaultTransport is used.
func NewCachingTransport(dir string, inner http.RoundTripper) (*CachingTransport, error) {
	if inner == nil {
		inner = http.DefaultTransport
	}

	db, err := database.NewDatabase(context.Background(), "sqlite:///"+filepath.Join(dir, "http-cache.db"))
	if err != nil {
		return nil, fmt.Errorf("open http cache database: %w", err)
	}
	if err := db.GORM().AutoMigrate(&cacheEntry{}); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("migrate http cache: %w", err), errClose)
	}

	return &CachingTransport{inner: inner, db: db}, nil
}

// Close closes the cache database.
func (t *CachingTransport) Close() error {
	return t.db.Close()
}

// RoundTrip implements http.RoundTripper.
func (t *CachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	key := cacheKey(req.Method, req.URL.String(), body)

	if resp, ok := t.readCache(req.Context(), key, req); ok {
		return resp, nil
	}

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()

	t.writeCache(req.Context(), key, resp.StatusCode, resp.Header, respBody)

	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	return resp, nil
}

func cacheKey(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte("\n"))
	h.Write([]byte(url))
	h.Write([]byte("\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (t *CachingTransport) readCache(ctx context.Context, key string, req *http.Request) (*http.Response, bool) {
	var entry cacheEntry
	if err := t.db.Session(ctx).Where("`key` = ?", key).First(&entry).Error; err != nil {
		return nil, false
	}

	var header http.Header
	if err := json.Unmarshal(entry.Header, &header); err != nil {
		return nil, false
	}

	resp := &http.Response{
		StatusCode: entry.StatusCode,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(entry.Body)),
		Request:    req,
	}
	return resp, true
}

func (t *CachingTransport) writeCache(ctx context.Context, key string, statusCode int, header http.Header, body []byte) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return
	}
	entry := cacheEntry{
		Key:        key,
		StatusCode: statusCode,
		Header:     headerJSON,
		Body:       body,
	}
	_ = t.db.Session(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
}
