package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
	"github.com/tellingsounds/lama/internal/services/catalog/storage/sqlite"
)

func openSource(t *testing.T, entities ...*document.Entity) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.OpenProjections(ctx, filepath.Join(t.TempDir(), "projections.sqlite"))
	if err != nil {
		t.Fatalf("open projections: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	for _, e := range entities {
		if err := store.InsertDocument(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return store
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestSearchOrdersByUsageAndFoldsAccents(t *testing.T) {
	source := openSource(t,
		&document.Entity{ID: "_Person_a", Type: "Person", Label: "Wolfgang Ambros", UsageCount: 1},
		&document.Entity{ID: "_Person_b", Type: "Person", Label: "Wolfgang Amadeus Mozart", UsageCount: 9},
		&document.Entity{ID: "_Person_c", Type: "Person", Label: "Hans Müller", UsageCount: 3},
	)
	index := NewMemoryIndex(source, nil)
	ctx := context.Background()

	got, err := index.Search(ctx, "wolf", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if want := []string{"_Person_b", "_Person_a"}; len(got) != 2 || got[0].ID != want[0] || got[1].ID != want[1] {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}

	got, err = index.Search(ctx, "MUELLER", 0)
	if err != nil || len(got) != 1 || got[0].ID != "_Person_c" {
		t.Fatalf("expected folded match for Müller, got %v, %v", ids(got), err)
	}
	got, _ = index.Search(ctx, "wolfgang ambros", 0)
	if len(got) != 1 || got[0].ID != "_Person_a" {
		t.Fatalf("expected all tokens to match, got %v", ids(got))
	}
	got, _ = index.Search(ctx, "", 2)
	if len(got) != 2 {
		t.Fatalf("expected limit to apply, got %v", ids(got))
	}
}

func TestMemoryIndexInvalidate(t *testing.T) {
	ctx := context.Background()
	source := openSource(t, &document.Entity{ID: "_Topic_x", Type: "Topic", Label: "Jazz"})
	index := NewMemoryIndex(source, nil)
	if err := index.EnsureBuilt(ctx); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := source.InsertDocument(ctx, &document.Entity{ID: "_Topic_y", Type: "Topic", Label: "Jazzrock"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, _ := index.Search(ctx, "jazz", 0)
	if len(got) != 1 {
		t.Fatalf("expected stale cached result, got %v", ids(got))
	}
	if err := index.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	got, _ = index.Search(ctx, "jazz", 0)
	if len(got) != 2 {
		t.Fatalf("expected rebuilt result, got %v", ids(got))
	}
}

func TestRedisIndexCachesAndInvalidates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	source := openSource(t, &document.Entity{ID: "_Topic_x", Type: "Topic", Label: "Jazz"})
	index := NewRedisIndex(source, client, "", time.Hour, nil)

	if mr.Exists(DefaultRedisKey) {
		t.Fatal("expected no cache before first lookup")
	}
	if err := index.EnsureBuilt(ctx); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !mr.Exists(DefaultRedisKey) {
		t.Fatal("expected cached index in redis")
	}
	if ttl := mr.TTL(DefaultRedisKey); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	// A second index sharing the server reuses the cache.
	other := NewRedisIndex(openSource(t), client, "", time.Hour, nil)
	got, err := other.Search(ctx, "jazz", 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected shared cached entry, got %v, %v", ids(got), err)
	}

	if err := other.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(DefaultRedisKey) {
		t.Fatal("expected invalidate to delete the key")
	}
}

func TestRedisIndexRecoversFromCorruptCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if err := mr.Set("idx", "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	index := NewRedisIndex(openSource(t, &document.Entity{ID: "_Topic_x", Type: "Topic", Label: "Jazz"}), client, "idx", 0, nil)
	got, err := index.Search(context.Background(), "jazz", 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected rebuild after corrupt cache, got %v, %v", ids(got), err)
	}
}

// interleavingSource runs during once, in the middle of the first list.
type interleavingSource struct {
	storage.DocumentReader
	during func()
}

func (s *interleavingSource) ListDocuments(ctx context.Context, kind document.Kind) ([]document.Document, error) {
	docs, err := s.DocumentReader.ListDocuments(ctx, kind)
	if s.during != nil {
		during := s.during
		s.during = nil
		during()
	}
	return docs, err
}

func TestBuildDoesNotCacheOverNewerInvalidation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name string
		new  func(storage.DocumentReader) *Index
	}{
		{name: "memory", new: func(s storage.DocumentReader) *Index { return NewMemoryIndex(s, nil) }},
		{name: "redis", new: func(s storage.DocumentReader) *Index { return NewRedisIndex(s, client, "race", 0, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := openSource(t, &document.Entity{ID: "_Topic_x", Type: "Topic", Label: "Jazz"})
			source := &interleavingSource{DocumentReader: store}
			index := tt.new(source)
			source.during = func() {
				if err := store.InsertDocument(ctx, &document.Entity{ID: "_Topic_y", Type: "Topic", Label: "Jazzrock"}); err != nil {
					t.Fatalf("insert: %v", err)
				}
				if err := index.Invalidate(ctx); err != nil {
					t.Fatalf("invalidate: %v", err)
				}
			}

			got, err := index.Search(ctx, "jazz", 0)
			if err != nil || len(got) != 1 {
				t.Fatalf("expected the build's own view, got %v, %v", ids(got), err)
			}
			got, err = index.Search(ctx, "jazz", 0)
			if err != nil || len(got) != 2 {
				t.Fatalf("expected stale build to be discarded, got %v, %v", ids(got), err)
			}
			got, _ = index.Search(ctx, "jazz", 0)
			if len(got) != 2 {
				t.Fatalf("expected fresh build to be cached, got %v", ids(got))
			}
		})
	}
}
