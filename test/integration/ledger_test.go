// Package integration contains tests that exercise the PostgreSQL-backed
// components against a real database. They skip themselves when no database
// is reachable.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Hussein-Mohammed/ScriptSight/internal/analytics"
	"github.com/Hussein-Mohammed/ScriptSight/internal/analytics/aggregator"
	"github.com/Hussein-Mohammed/ScriptSight/internal/export"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/config"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/postgres"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "scriptsight_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "scriptsight"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// TestLedgerRecordAndRecent verifies that export runs round-trip through the
// ledger table and come back newest-first, filtered by collection.
func TestLedgerRecordAndRecent(t *testing.T) {
	db := skipIfNoPostgres(t)
	ledger, err := export.NewLedger(t.Context(), db)
	if err != nil {
		t.Fatalf("creating ledger: %v", err)
	}

	collection := fmt.Sprintf("it-%d", time.Now().UnixNano())
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		run := &export.Run{
			ID:           fmt.Sprintf("%s-%d", collection, i),
			Collection:   collection,
			Query:        "implement:pen score>=0.80",
			Folder:       fmt.Sprintf("pen_conf-0.80_size-0.00_%02d.01.2026", i+1),
			PagesTotal:   10 + i,
			PagesCopied:  9 + i,
			PagesSkipped: 1,
			StartedAt:    base.Add(time.Duration(i) * time.Second),
			Duration:     1500 * time.Millisecond,
			Status:       "completed",
		}
		if err := ledger.Record(t.Context(), run); err != nil {
			t.Fatalf("recording run %d: %v", i, err)
		}
	}

	runs, err := ledger.Recent(t.Context(), collection, 10)
	if err != nil {
		t.Fatalf("listing runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != collection+"-2" {
		t.Errorf("expected newest run first, got %q", runs[0].ID)
	}
	if runs[0].PagesCopied != 11 {
		t.Errorf("expected pages_copied=11, got %d", runs[0].PagesCopied)
	}
	if runs[0].Duration != 1500*time.Millisecond {
		t.Errorf("expected duration 1.5s, got %v", runs[0].Duration)
	}

	limited, err := ledger.Recent(t.Context(), collection, 2)
	if err != nil {
		t.Fatalf("listing limited runs: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit to cap results at 2, got %d", len(limited))
	}
}

// TestLedgerRecentAllCollections verifies that an empty collection filter
// returns runs across collections.
func TestLedgerRecentAllCollections(t *testing.T) {
	db := skipIfNoPostgres(t)
	ledger, err := export.NewLedger(t.Context(), db)
	if err != nil {
		t.Fatalf("creating ledger: %v", err)
	}

	suffix := time.Now().UnixNano()
	for _, name := range []string{fmt.Sprintf("alpha-%d", suffix), fmt.Sprintf("beta-%d", suffix)} {
		run := &export.Run{
			ID:         fmt.Sprintf("%s-run", name),
			Collection: name,
			Query:      "all",
			Folder:     "all_conf-0.50_size-0.00_01.01.2026",
			StartedAt:  time.Now().UTC(),
			Status:     "completed",
		}
		if err := ledger.Record(t.Context(), run); err != nil {
			t.Fatalf("recording run for %s: %v", name, err)
		}
	}

	runs, err := ledger.Recent(t.Context(), "", 200)
	if err != nil {
		t.Fatalf("listing all runs: %v", err)
	}
	seen := make(map[string]bool)
	for _, r := range runs {
		seen[r.Collection] = true
	}
	for _, name := range []string{fmt.Sprintf("alpha-%d", suffix), fmt.Sprintf("beta-%d", suffix)} {
		if !seen[name] {
			t.Errorf("expected run for collection %q in unfiltered listing", name)
		}
	}
}

// TestSnapshotStoreRoundTrip verifies that aggregated analytics snapshots
// persist and the latest one can be read back.
func TestSnapshotStoreRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	store, err := aggregator.NewStore(t.Context(), db)
	if err != nil {
		t.Fatalf("creating snapshot store: %v", err)
	}

	stats := analytics.AggregatedStats{
		TotalQueries:    42,
		TotalExports:    3,
		CacheHits:       30,
		CacheMisses:     12,
		ZeroResultCount: 5,
		PagesExported:   120,
		AvgLatencyMs:    18.5,
		ByCollection:    map[string]int64{"herbar": 40, "codices": 2},
	}
	if err := store.SaveSnapshot(t.Context(), stats); err != nil {
		t.Fatalf("saving snapshot: %v", err)
	}

	got, err := store.LatestSnapshot(t.Context())
	if err != nil {
		t.Fatalf("reading latest snapshot: %v", err)
	}
	if got.TotalQueries != 42 {
		t.Errorf("expected 42 queries, got %d", got.TotalQueries)
	}
	if got.ByCollection["herbar"] != 40 {
		t.Errorf("expected herbar count 40, got %d", got.ByCollection["herbar"])
	}

	list, err := store.ListSnapshots(t.Context(), 5)
	if err != nil {
		t.Fatalf("listing snapshots: %v", err)
	}
	if len(list) == 0 {
		t.Error("expected at least one snapshot in listing")
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
