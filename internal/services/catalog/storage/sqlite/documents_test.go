package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

func seedClip(t *testing.T, store *Store, id, platform string, collections ...string) {
	t.Helper()
	clip := &document.Clip{
		ID: id, Type: "Clip", Title: id, URL: "https://example.org/" + id,
		Platform: platform, Collections: collections, FileType: "v",
	}
	if err := store.InsertDocument(context.Background(), clip); err != nil {
		t.Fatalf("insert clip: %v", err)
	}
}

func TestDocumentCRUD(t *testing.T) {
	store := openTestProjectionStore(t)
	ctx := context.Background()

	entity := &document.Entity{ID: "_Person_wolfgang-ambros", Type: "Person", Label: "Wolfgang Ambros"}
	if err := store.InsertDocument(ctx, entity); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.InsertDocument(ctx, entity); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := storage.GetAs[document.Entity](ctx, store, entity.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Label != "Wolfgang Ambros" {
		t.Fatalf("unexpected entity %+v", got)
	}
	if _, err := storage.GetAs[document.Clip](ctx, store, entity.ID); !errors.Is(err, storage.ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}

	got.Description = "singer"
	if err := store.PutDocument(ctx, got); err != nil {
		t.Fatalf("put: %v", err)
	}
	again, err := storage.GetAs[document.Entity](ctx, store, entity.ID)
	if err != nil || again.Description != "singer" {
		t.Fatalf("expected updated description, got %+v, %v", again, err)
	}

	missing := &document.Entity{ID: "_Person_nobody", Type: "Person", Label: "Nobody"}
	if err := store.PutDocument(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on put, got %v", err)
	}

	if err := store.DeleteDocument(ctx, entity.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteDocument(ctx, entity.ID); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, err := store.GetDocument(ctx, entity.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	exists, err := store.DocumentExists(ctx, entity.ID)
	if err != nil || exists {
		t.Fatalf("expected no document, got %v, %v", exists, err)
	}
}

func TestFindDocumentsMatchesScalarsAndArrays(t *testing.T) {
	store := openTestProjectionStore(t)
	ctx := context.Background()
	seedClip(t, store, "_Clip_1", "_Platform_youtube", "_Collection_a", "_Collection_b")
	seedClip(t, store, "_Clip_2", "_Platform_youtube", "_Collection_b")
	seedClip(t, store, "_Clip_3", "_Platform_okto")

	byPlatform, err := storage.FindAs[document.Clip](ctx, store, document.KindClip, "platform", "_Platform_youtube")
	if err != nil {
		t.Fatalf("find by platform: %v", err)
	}
	if len(byPlatform) != 2 || byPlatform[0].ID != "_Clip_1" || byPlatform[1].ID != "_Clip_2" {
		t.Fatalf("unexpected platform matches %+v", byPlatform)
	}

	n, err := store.CountDocuments(ctx, document.KindClip, "collections", "_Collection_b")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 clips in collection, got %d, %v", n, err)
	}
	n, err = store.CountDocuments(ctx, document.KindAnnotation, "platform", "_Platform_youtube")
	if err != nil || n != 0 {
		t.Fatalf("expected kind filter, got %d, %v", n, err)
	}
	if _, err := store.FindDocuments(ctx, document.KindClip, "platform') OR 1=1 --", "x"); err == nil {
		t.Fatal("expected invalid field name error")
	}
}

func TestSetDocumentField(t *testing.T) {
	store := openTestProjectionStore(t)
	ctx := context.Background()
	seedClip(t, store, "_Clip_1", "_Platform_youtube")
	seedClip(t, store, "_Clip_2", "_Platform_youtube")

	n, err := store.SetDocumentField(ctx, document.KindClip, "", "shelfmark", []byte(`"unset"`))
	if err != nil || n != 2 {
		t.Fatalf("expected 2 rows, got %d, %v", n, err)
	}
	n, err = store.SetDocumentField(ctx, document.KindClip, "_Clip_2", "shelfmark", []byte(`"B-17"`))
	if err != nil || n != 1 {
		t.Fatalf("expected 1 row, got %d, %v", n, err)
	}
	clips, err := storage.ListAs[document.Clip](ctx, store, document.KindClip)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if clips[0].Shelfmark != "unset" || clips[1].Shelfmark != "B-17" {
		t.Fatalf("unexpected shelfmarks %q %q", clips[0].Shelfmark, clips[1].Shelfmark)
	}
	if _, err := store.SetDocumentField(ctx, document.KindClip, "", "shelfmark", []byte(`{bad`)); err == nil {
		t.Fatal("expected invalid JSON error")
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	store := openTestProjectionStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.InTx(ctx, func(tx storage.DocumentStore) error {
		if err := tx.InsertDocument(ctx, &document.Entity{ID: "_Person_a", Type: "Person", Label: "A"}); err != nil {
			return err
		}
		exists, err := tx.DocumentExists(ctx, "_Person_a")
		if err != nil || !exists {
			t.Fatalf("expected staged insert visible in tx, got %v, %v", exists, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	exists, err := store.DocumentExists(ctx, "_Person_a")
	if err != nil || exists {
		t.Fatalf("expected rollback, got %v, %v", exists, err)
	}

	if err := store.InTx(ctx, func(tx storage.DocumentStore) error {
		return tx.InsertDocument(ctx, &document.Entity{ID: "_Person_b", Type: "Person", Label: "B"})
	}); err != nil {
		t.Fatalf("commit tx: %v", err)
	}
	exists, err = store.DocumentExists(ctx, "_Person_b")
	if err != nil || !exists {
		t.Fatalf("expected committed document, got %v, %v", exists, err)
	}
}

func TestResetAndClear(t *testing.T) {
	store := openTestProjectionStore(t)
	ctx := context.Background()
	seedClip(t, store, "_Clip_1", "_Platform_youtube")
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	docs, err := store.ListDocuments(ctx, document.KindClip)
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected empty projection after reset, got %d, %v", len(docs), err)
	}
	seedClip(t, store, "_Clip_2", "_Platform_youtube")
	if err := store.ClearDocuments(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if exists, _ := store.DocumentExists(ctx, "_Clip_2"); exists {
		t.Fatal("expected clear to remove documents")
	}
}
