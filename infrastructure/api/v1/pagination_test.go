package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePagination_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)

	params := ParsePagination(req)

	if params.Page() != 1 {
		t.Errorf("Page() = %d, want 1", params.Page())
	}
	if params.PageSize() != DefaultPageSize {
		t.Errorf("PageSize() = %d, want %d", params.PageSize(), DefaultPageSize)
	}
	if params.Offset() != 0 {
		t.Errorf("Offset() = %d, want 0", params.Offset())
	}
}

func TestParsePagination_ClampsPageSize(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?page=3&page_size=5000", nil)

	params := ParsePagination(req)

	if params.Page() != 3 {
		t.Errorf("Page() = %d, want 3", params.Page())
	}
	if params.PageSize() != MaxPageSize {
		t.Errorf("PageSize() = %d, want %d", params.PageSize(), MaxPageSize)
	}
	if params.Offset() != 2*MaxPageSize {
		t.Errorf("Offset() = %d, want %d", params.Offset(), 2*MaxPageSize)
	}
}

func TestParsePagination_IgnoresInvalidValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?page=-1&page_size=abc", nil)

	params := ParsePagination(req)

	if params.Page() != 1 {
		t.Errorf("Page() = %d, want 1", params.Page())
	}
	if params.PageSize() != DefaultPageSize {
		t.Errorf("PageSize() = %d, want %d", params.PageSize(), DefaultPageSize)
	}
}

func TestPaginationLinks(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?page=2&page_size=10", nil)
	params := ParsePagination(req)

	links := PaginationLinks(req, params, 35)

	if links.Prev == "" {
		t.Error("expected prev link on page 2")
	}
	if links.Next == "" {
		t.Error("expected next link with 4 total pages")
	}
	if links.Last == "" {
		t.Error("expected last link")
	}
}

func TestPaginationMeta(t *testing.T) {
	params := NewPaginationParams()

	meta := PaginationMeta(params, 45)

	if (*meta)["total_pages"] != 3 {
		t.Errorf("total_pages = %v, want 3", (*meta)["total_pages"])
	}
	if (*meta)["total_count"] != int64(45) {
		t.Errorf("total_count = %v, want 45", (*meta)["total_count"])
	}
}
