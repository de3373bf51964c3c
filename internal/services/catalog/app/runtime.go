package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
	"github.com/tellingsounds/lama/internal/platform/logging"
	"github.com/tellingsounds/lama/internal/platform/timeouts"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/command"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/engine"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/rules"
	"github.com/tellingsounds/lama/internal/services/catalog/projection"
	"github.com/tellingsounds/lama/internal/services/catalog/relations"
	"github.com/tellingsounds/lama/internal/services/catalog/search"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
	"github.com/tellingsounds/lama/internal/services/catalog/storage/sqlite"
)

// Options carries process-level seams for Open.
type Options struct {
	Logger logrus.FieldLogger
	// Now overrides the processor clock.
	Now func() time.Time
	// Privileges overrides the admin list from Config.
	Privileges rules.PrivilegeResolver
}

// Runtime owns the stores and the command pipeline built on them.
type Runtime struct {
	mu sync.Mutex

	cfg         Config
	logger      logrus.FieldLogger
	events      *sqlite.Store
	projections *sqlite.Store
	redis       *redis.Client

	commands   *command.Registry
	eventTypes *event.Registry
	search     *search.Index
	relations  *relations.Memory
	applier    *projection.Applier
	processor  *engine.Processor
}

// Open opens both stores at the configured paths and wires the pipeline.
func Open(ctx context.Context, cfg Config, opts Options) (rt *Runtime, err error) {
	logger := logging.OrDefault(opts.Logger)
	rt = &Runtime{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	if err := ensureParentDir(cfg.EventsDBPath); err != nil {
		return nil, err
	}
	if err := ensureParentDir(cfg.ProjectionsDBPath); err != nil {
		return nil, err
	}
	if rt.events, err = sqlite.OpenEvents(ctx, cfg.EventsDBPath); err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	if rt.projections, err = sqlite.OpenProjections(ctx, cfg.ProjectionsDBPath); err != nil {
		return nil, fmt.Errorf("open projections: %w", err)
	}

	if rt.commands, err = command.Catalog(); err != nil {
		return nil, fmt.Errorf("build command registry: %w", err)
	}
	if rt.eventTypes, err = event.Catalog(); err != nil {
		return nil, fmt.Errorf("build event registry: %w", err)
	}

	if cfg.SearchRedisAddr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:         cfg.SearchRedisAddr,
			DialTimeout:  timeouts.RedisDial,
			ReadTimeout:  timeouts.RedisRequest,
			WriteTimeout: timeouts.RedisRequest,
		})
		rt.search = search.NewRedisIndex(rt.projections, rt.redis, cfg.SearchRedisKey, cfg.SearchTTL, logger)
	} else {
		rt.search = search.NewMemoryIndex(rt.projections, logger)
	}
	rt.relations = relations.NewMemory()

	rt.applier, err = projection.New(projection.Config{
		Projection: rt.projections,
		Events:     rt.eventTypes,
		Search:     rt.search,
		Relations:  rt.relations,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build applier: %w", err)
	}

	privileges := opts.Privileges
	if privileges == nil {
		privileges = rules.NewStaticPrivileges(cfg.AdminActors)
	}
	rt.processor, err = engine.New(engine.Config{
		Commands:   rt.commands,
		Events:     rt.eventTypes,
		Journal:    rt.events,
		Projection: rt.projections,
		Checker:    rules.Checker{Docs: rt.projections, Privileges: privileges},
		Applier:    rt.applier,
		Now:        opts.Now,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build processor: %w", err)
	}
	return rt, nil
}

// Close releases the stores and the redis client, logging any failures.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			r.logger.WithError(err).Warn("close redis client")
		}
	}
	if err := r.projections.Close(); err != nil {
		r.logger.WithError(err).Warn("close projections")
	}
	if err := r.events.Close(); err != nil {
		r.logger.WithError(err).Warn("close event log")
	}
}

// ProcessCommand runs one command through the pipeline.
func (r *Runtime) ProcessCommand(ctx context.Context, cmd command.Command) (engine.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processor.Process(ctx, cmd)
}

// FindByID returns the projected document with id.
func (r *Runtime) FindByID(ctx context.Context, id string) (document.Document, error) {
	doc, err := r.projections.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound(id)
	}
	return doc, err
}

// SearchEntities looks entities up by label, most used first.
func (r *Runtime) SearchEntities(ctx context.Context, query string, limit int) ([]search.Entry, error) {
	return r.search.Search(ctx, query, limit)
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return nil
}
