package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

func TestAppendAssignsIDAndTruncates(t *testing.T) {
	store := openTestEventsStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.FixedZone("CET", 3600))
	stored, err := store.AppendEvent(ctx, testEvent(ts, event.TypeEntityCreated, "_Person_a"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if stored.ID != 1 {
		t.Fatalf("expected id 1, got %d", stored.ID)
	}
	if want := ts.UTC().Truncate(time.Millisecond); !stored.Timestamp.Equal(want) || stored.Timestamp.Location() != time.UTC {
		t.Fatalf("expected %v UTC, got %v", want, stored.Timestamp)
	}

	latest, err := store.LatestEvent(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != stored.ID || string(latest.Data) != string(stored.Data) || latest.PreviousData != nil {
		t.Fatalf("unexpected latest event %+v", latest)
	}
}

func TestAppendRejectsIncompleteEvents(t *testing.T) {
	store := openTestEventsStore(t)
	ctx := context.Background()
	if _, err := store.AppendEvent(ctx, event.Event{Timestamp: time.Now()}); !errors.Is(err, event.ErrTypeRequired) {
		t.Fatalf("expected ErrTypeRequired, got %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{Type: event.TypeClipCreated}); err == nil {
		t.Fatal("expected timestamp error")
	}
}

func TestAppendDuplicateIDFails(t *testing.T) {
	store := openTestEventsStore(t)
	ctx := context.Background()
	evt := testEvent(time.Now(), event.TypeClipCreated, "_Clip_x")
	evt.ID = 7
	if _, err := store.AppendEvent(ctx, evt); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, evt); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestListEventsPagesByTimestampThenID(t *testing.T) {
	store := openTestEventsStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Ids are assigned in insertion order, timestamps are not.
	for _, offset := range []int{2, 0, 1, 1} {
		if _, err := store.AppendEvent(ctx, testEvent(base.Add(time.Duration(offset)*time.Millisecond), event.TypeEntityCreated, "_Person_a")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var got []int64
	cursor := event.Cursor{}
	for {
		page, err := store.ListEvents(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, evt := range page {
			got = append(got, evt.ID)
		}
		cursor = page[len(page)-1].Cursor()
	}
	want := []int64{2, 3, 4, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if _, err := store.ListEvents(ctx, event.Cursor{}, 0); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestListEventsByType(t *testing.T) {
	store := openTestEventsStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inputs := []struct {
		typ     event.Type
		subject string
	}{
		{event.TypeEntityRelationAdded, "_Person_a"},
		{event.TypeEntityCreated, "_Person_a"},
		{event.TypeEntityRelationRemoved, "_Person_a"},
		{event.TypeEntityRelationAdded, "_Person_b"},
	}
	for i, in := range inputs {
		if _, err := store.AppendEvent(ctx, testEvent(base.Add(time.Duration(i)*time.Millisecond), in.typ, in.subject)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	types := []event.Type{event.TypeEntityRelationAdded, event.TypeEntityRelationRemoved}
	all, err := store.ListEventsByType(ctx, types, "")
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 relation events, got %d", len(all))
	}
	forA, err := store.ListEventsByType(ctx, types, "_Person_a")
	if err != nil {
		t.Fatalf("list by subject: %v", err)
	}
	if len(forA) != 2 || forA[0].Type != event.TypeEntityRelationAdded || forA[1].Type != event.TypeEntityRelationRemoved {
		t.Fatalf("unexpected subject events %+v", forA)
	}
	none, err := store.ListEventsByType(ctx, nil, "")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no events for no types, got %d, %v", len(none), err)
	}
}

func TestReplaceEventsKeepsIDs(t *testing.T) {
	store := openTestEventsStore(t)
	ctx := context.Background()
	if _, err := store.AppendEvent(ctx, testEvent(time.Now(), event.TypeClipCreated, "_Clip_old")); err != nil {
		t.Fatalf("append: %v", err)
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	replacement := []event.Event{
		testEvent(base, event.TypeEntityCreated, "_Person_a"),
		testEvent(base.Add(time.Millisecond), event.TypeEntityUpdated, "_Person_a"),
	}
	replacement[0].ID = 10
	replacement[1].ID = 11
	replacement[1].PreviousData = []byte(`{"_id":"_Person_a"}`)
	if err := store.ReplaceEvents(ctx, replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}

	n, err := store.CountEvents(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 events, got %d, %v", n, err)
	}
	latest, err := store.LatestEvent(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != 11 || string(latest.PreviousData) != `{"_id":"_Person_a"}` {
		t.Fatalf("unexpected latest %+v", latest)
	}
	next, err := store.AppendEvent(ctx, testEvent(time.Now(), event.TypeClipCreated, "_Clip_new"))
	if err != nil {
		t.Fatalf("append after replace: %v", err)
	}
	if next.ID <= 11 {
		t.Fatalf("expected id after 11, got %d", next.ID)
	}
}

func TestReplaceEventsIsAtomic(t *testing.T) {
	store := openTestEventsStore(t)
	ctx := context.Background()
	if _, err := store.AppendEvent(ctx, testEvent(time.Now(), event.TypeClipCreated, "_Clip_keep")); err != nil {
		t.Fatalf("append: %v", err)
	}
	bad := []event.Event{
		testEvent(time.Now(), event.TypeEntityCreated, "_Person_a"),
		testEvent(time.Now(), event.TypeEntityCreated, "_Person_b"),
	}
	bad[0].ID = 5
	bad[1].ID = 5
	if err := store.ReplaceEvents(ctx, bad); err == nil {
		t.Fatal("expected duplicate id failure")
	}
	latest, err := store.LatestEvent(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.SubjectID != "_Clip_keep" {
		t.Fatalf("expected original log to survive, got %+v", latest)
	}
}

func TestLatestEventOfType(t *testing.T) {
	store := openTestEventsStore(t)
	ctx := context.Background()
	if _, err := store.LatestEvent(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty log, got %v", err)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, typ := range []event.Type{event.TypeProjectionSnapshotLoaded, event.TypeEntityCreated, event.TypeProjectionSnapshotLoaded, event.TypeClipCreated} {
		if _, err := store.AppendEvent(ctx, testEvent(base.Add(time.Duration(i)*time.Second), typ, "")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := store.LatestEventOfType(ctx, event.TypeProjectionSnapshotLoaded)
	if err != nil {
		t.Fatalf("latest of type: %v", err)
	}
	if got.ID != 3 {
		t.Fatalf("expected event 3, got %d", got.ID)
	}
	if _, err := store.LatestEventOfType(ctx, event.TypeLayerCreated); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
