package interchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

// ExportSnapshot writes the whole projection as indented JSON grouped by
// collection.
func ExportSnapshot(ctx context.Context, r storage.DocumentReader, w io.Writer) (int, error) {
	snap, err := storage.Snapshot(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("read projection: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}
	return snap.Len(), nil
}

// ReadSnapshot parses a snapshot written by ExportSnapshot.
func ReadSnapshot(r io.Reader) (*document.Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var snap document.Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return &snap, nil
}
