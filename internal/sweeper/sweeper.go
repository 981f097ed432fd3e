// Package sweeper removes stored files that no document row references.
//
// Uploads write the object before the metadata row. When the row insert and
// the compensating delete both fail, the object is left behind. The sweeper
// finds those leftovers once they are older than a grace period, so in-flight
// uploads are never touched.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tcontas-backend/internal/shared/metrics"
	"tcontas-backend/internal/shared/storage/object"
	"tcontas-backend/internal/shared/telemetry"
)

const (
	DefaultGrace       = 15 * time.Minute
	DefaultConcurrency = 4
)

// Index answers whether a storage path is referenced by a document.
type Index interface {
	ExistsByStoragePath(ctx context.Context, storagePath string) (bool, error)
}

type Sweeper struct {
	Store       object.ObjectStore
	Index       Index
	Prefix      string
	Grace       time.Duration
	Concurrency int
	DryRun      bool
	Now         func() time.Time
}

// Result summarizes one pass.
type Result struct {
	Scanned int
	Orphans []string
	Removed int
	Failed  int
}

func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	if s == nil || s.Store == nil || s.Index == nil {
		return Result{}, errors.New("sweeper not configured")
	}
	objects, err := s.Store.List(ctx, s.Prefix)
	if err != nil {
		return Result{}, err
	}

	cutoff := s.now().Add(-s.grace())
	res := Result{Scanned: len(objects)}
	var candidates []object.ObjectInfo
	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			continue
		}
		candidates = append(candidates, obj)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for _, obj := range candidates {
		key := obj.Key
		g.Go(func() error {
			exists, err := s.Index.ExistsByStoragePath(gctx, key)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}
			mu.Lock()
			res.Orphans = append(res.Orphans, key)
			mu.Unlock()
			if s.DryRun {
				return nil
			}
			if err := s.Store.Delete(gctx, key); err != nil && !errors.Is(err, object.ErrObjectNotFound) {
				telemetry.Warn("sweeper.delete_failed", map[string]any{"storagePath": key, "error": err.Error()})
				mu.Lock()
				res.Failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			res.Removed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	metrics.AddOrphansRemoved(res.Removed)
	telemetry.Info("sweeper.pass", map[string]any{
		"scanned": res.Scanned,
		"orphans": len(res.Orphans),
		"removed": res.Removed,
		"failed":  res.Failed,
		"dryRun":  s.DryRun,
	})
	return res, nil
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Sweeper) grace() time.Duration {
	if s.Grace <= 0 {
		return DefaultGrace
	}
	return s.Grace
}

func (s *Sweeper) concurrency() int {
	if s.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return s.Concurrency
}
