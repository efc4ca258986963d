package database

import (
	"strings"
	"testing"
)

func TestTruncateSQL_ShortPassesThrough(t *testing.T) {
	sql := "SELECT * FROM catalog_records WHERE platform = ?"
	if got := truncateSQL(sql); got != sql {
		t.Errorf("truncateSQL() = %q, want unchanged", got)
	}
}

func TestTruncateSQL_LongGetsEllipsis(t *testing.T) {
	sql := "INSERT INTO catalog_records (" + strings.Repeat("col,", 100) + ")"
	got := truncateSQL(sql)

	if len(got) > maxSQLLength {
		t.Errorf("truncated length = %d, want <= %d", len(got), maxSQLLength)
	}
	if !strings.Contains(got, "...") {
		t.Errorf("expected ellipsis in %q", got)
	}
	if !strings.HasPrefix(got, "INSERT INTO") {
		t.Errorf("expected prefix preserved, got %q", got)
	}
}
