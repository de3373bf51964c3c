package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/replay"
	"github.com/tellingsounds/lama/internal/services/catalog/projection"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
	"github.com/tellingsounds/lama/internal/services/catalog/storage/sqlite"
)

// Mismatch kinds reported by Verify.
const (
	MismatchMissing  = "missing"
	MismatchExtra    = "extra"
	MismatchModified = "modified"
)

// Mismatch is one document where the live projection and a fresh replay disagree.
type Mismatch struct {
	ID string `json:"id"`
	// Kind is missing (only in the replay), extra (only live) or modified.
	Kind string `json:"kind"`
}

// VerifyReport summarizes an integrity check.
type VerifyReport struct {
	Replayed   replay.Result `json:"replayed"`
	Documents  int           `json:"documents"`
	Mismatches []Mismatch    `json:"mismatches"`
}

// OK reports whether the projection matched its replay.
func (v VerifyReport) OK() bool {
	return len(v.Mismatches) == 0
}

// Verify replays the log into a scratch projection and compares it with the
// live one document by document. The live projection is not modified.
func (r *Runtime) Verify(ctx context.Context) (VerifyReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := os.MkdirTemp("", "lama-verify-*")
	if err != nil {
		return VerifyReport{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scratch, err := sqlite.OpenProjections(ctx, filepath.Join(dir, "projections.db"))
	if err != nil {
		return VerifyReport{}, fmt.Errorf("open scratch projection: %w", err)
	}
	defer scratch.Close()

	applier, err := projection.New(projection.Config{
		Projection: scratch,
		Events:     r.eventTypes,
		Logger:     r.logger,
	})
	if err != nil {
		return VerifyReport{}, err
	}
	replayed, err := replay.Rebuild(ctx, r.events, scratch, applier, replay.Options{Logger: r.logger})
	if err != nil {
		return VerifyReport{}, fmt.Errorf("replay into scratch: %w", err)
	}

	live, err := documentBodies(ctx, r.projections)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("read live projection: %w", err)
	}
	want, err := documentBodies(ctx, scratch)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("read scratch projection: %w", err)
	}

	report := VerifyReport{Replayed: replayed, Documents: len(live), Mismatches: []Mismatch{}}
	for id, body := range want {
		got, ok := live[id]
		switch {
		case !ok:
			report.Mismatches = append(report.Mismatches, Mismatch{ID: id, Kind: MismatchMissing})
		case !bytes.Equal(got, body):
			report.Mismatches = append(report.Mismatches, Mismatch{ID: id, Kind: MismatchModified})
		}
	}
	for id := range live {
		if _, ok := want[id]; !ok {
			report.Mismatches = append(report.Mismatches, Mismatch{ID: id, Kind: MismatchExtra})
		}
	}
	sort.Slice(report.Mismatches, func(i, j int) bool {
		return report.Mismatches[i].ID < report.Mismatches[j].ID
	})

	entry := r.logger.WithField("documents", report.Documents).WithField("mismatches", len(report.Mismatches))
	if report.OK() {
		entry.Info("projection verified")
	} else {
		entry.Warn("projection differs from replay")
	}
	return report, nil
}

// documentBodies encodes every document keyed by id.
func documentBodies(ctx context.Context, r storage.DocumentReader) (map[string][]byte, error) {
	snap, err := storage.Snapshot(ctx, r)
	if err != nil {
		return nil, err
	}
	docs := snap.Documents()
	out := make(map[string][]byte, len(docs))
	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", doc.DocumentID(), err)
		}
		out[doc.DocumentID()] = body
	}
	return out, nil
}
