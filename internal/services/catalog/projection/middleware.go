package projection

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/effectiveid"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/usage"
	"github.com/tellingsounds/lama/internal/services/catalog/relations"
)

// withTimecodeUpgrade rewrites element, layer and segment payloads into the
// current timecode shape before the base handler reads them.
func withTimecodeUpgrade(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, ac *applyContext, evt *event.Event) error {
		upgraded, err := event.UpgradeTimecodes(*evt)
		if err != nil {
			return err
		}
		*evt = upgraded
		return next(ctx, ac, evt)
	}
}

// withEffectiveID derives the clip's effectiveId from its url.
func withEffectiveID(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, ac *applyContext, evt *event.Event) error {
		url := gjson.GetBytes(evt.Data, "url").String()
		var (
			data []byte
			err  error
		)
		if id := effectiveid.FromURL(url); id != "" {
			data, err = sjson.SetBytes(evt.Data, "effectiveId", id)
		} else {
			data, err = sjson.DeleteBytes(evt.Data, "effectiveId")
		}
		if err != nil {
			return fmt.Errorf("set effective id: %w", err)
		}
		evt.Data = data
		return next(ctx, ac, evt)
	}
}

// withUsageCounts recomputes the usage of every entity named at fields in
// the event's new or previous data. Replays defer this to one final pass.
func (a *Applier) withUsageCounts(fields ...string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ac *applyContext, evt *event.Event) error {
			if err := next(ctx, ac, evt); err != nil {
				return err
			}
			if ac.replaying {
				return nil
			}
			ids := usage.Referenced(fields, evt.Data, evt.PreviousData)
			return usage.Recompute(ctx, ac.docs, ids, ac.logger)
		}
	}
}

// withUsageRecount recomputes every entity's usage. It wraps events that can
// change reference fields or entity types across many documents at once.
func (a *Applier) withUsageRecount(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, ac *applyContext, evt *event.Event) error {
		if err := next(ctx, ac, evt); err != nil {
			return err
		}
		if ac.replaying {
			return nil
		}
		return usage.RecomputeAll(ctx, ac.docs)
	}
}

// withSearchInvalidation drops the search cache once the change commits.
func (a *Applier) withSearchInvalidation(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, ac *applyContext, evt *event.Event) error {
		if err := next(ctx, ac, evt); err != nil {
			return err
		}
		if a.search != nil && !ac.replaying {
			ac.onCommit(a.search.Invalidate)
		}
		return nil
	}
}

// withRelationMirror forwards relation events to the mirror after commit.
func (a *Applier) withRelationMirror(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, ac *applyContext, evt *event.Event) error {
		if err := next(ctx, ac, evt); err != nil {
			return err
		}
		if a.relations != nil && !ac.replaying {
			committed := *evt
			ac.onCommit(func(ctx context.Context) error {
				return relations.Feed(ctx, a.relations, committed)
			})
		}
		return nil
	}
}
