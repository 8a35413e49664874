// Package persist writes a delta.Result to the graph store and search index
// with the fixed concurrency/batch table and dual-store policy of spec §4.10.
package persist

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/delta"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// phase names a write phase's concurrency ceiling and batch size.
type phase struct {
	concurrency int
	batch       int
}

var (
	deleteResourcesPhase     = phase{concurrency: 5, batch: 50}
	updateResourcesPhase     = phase{concurrency: 10, batch: 10}
	storeResourcesPhase      = phase{concurrency: 10, batch: 10}
	deleteRelationshipsPhase = phase{concurrency: 5, batch: 50}
	storeRelationshipsPhase  = phase{concurrency: 10, batch: 20}
)

// GraphStore is the subset of internal/graphstore's client the Persister needs.
type GraphStore interface {
	StoreResources(ctx context.Context, batch []resource.Projected) error
	UpdateResources(ctx context.Context, batch []delta.Update) error
	DeleteResources(ctx context.Context, ids []string) error
	StoreRelationships(ctx context.Context, batch []delta.Edge) error
	DeleteRelationships(ctx context.Context, batch []delta.Edge) error
}

// SearchIndex is the subset of internal/searchindex's client the Persister
// needs. Index/Update/Delete return the subset of ids the index rejected,
// per the dual-store policy: the graph-store mutation runs only for the
// accepted remainder.
type SearchIndex interface {
	Index(ctx context.Context, batch []resource.Projected) (unprocessed []string, err error)
	Update(ctx context.Context, batch []delta.Update) (unprocessed []string, err error)
	Delete(ctx context.Context, ids []string) (unprocessed []string, err error)
}

// Persister applies a delta.Result's node and edge sets to both stores.
type Persister struct {
	Graph GraphStore
	Index SearchIndex
}

func New(graph GraphStore, index SearchIndex) *Persister {
	return &Persister{Graph: graph, Index: index}
}

// Outcome records which resource ids failed to persist, for the
// orchestrator's reconciliation step (spec §4.10 "Reconciliation").
type Outcome struct {
	FailedStores  []string // never landed in either store
	FailedDeletes []string // still present in at least one store
}

// Apply persists result against both stores and returns the failed-id sets
// the orchestrator needs to reconcile the working resource set.
func (p *Persister) Apply(ctx context.Context, result delta.Result) (Outcome, error) {
	var outcome Outcome

	storeFailed, err := dualStoreUpsert(ctx, result.ResourcesToStore, storeResourcesPhase,
		p.Index.Index, p.Graph.StoreResources,
		func(r resource.Projected) string { return r.ID },
	)
	if err != nil {
		return outcome, err
	}
	outcome.FailedStores = append(outcome.FailedStores, storeFailed...)

	updateFailed, err := dualStoreUpsert(ctx, result.ResourcesToUpdate, updateResourcesPhase,
		p.Index.Update, p.Graph.UpdateResources,
		func(u delta.Update) string { return u.ID },
	)
	if err != nil {
		return outcome, err
	}
	outcome.FailedStores = append(outcome.FailedStores, updateFailed...)

	deleteFailed, err := p.dualStoreDelete(ctx, result.ResourceIDsToDelete, deleteResourcesPhase)
	if err != nil {
		return outcome, err
	}
	outcome.FailedDeletes = append(outcome.FailedDeletes, deleteFailed...)

	if err := runBatched(ctx, result.LinksToDelete, deleteRelationshipsPhase, p.Graph.DeleteRelationships); err != nil {
		return outcome, err
	}
	if err := runBatched(ctx, result.LinksToAdd, storeRelationshipsPhase, p.Graph.StoreRelationships); err != nil {
		return outcome, err
	}

	sort.Strings(outcome.FailedStores)
	sort.Strings(outcome.FailedDeletes)
	return outcome, nil
}

// dualStoreUpsert runs the search-index mutation first; the graph-store
// mutation then runs only for the subset the index accepted (spec §4.10
// dual-store policy). Returns the ids the index rejected across every batch.
func dualStoreUpsert[T any](ctx context.Context, items []T, ph phase,
	indexFn func(context.Context, []T) ([]string, error),
	graphFn func(context.Context, []T) error,
	idOf func(T) string,
) ([]string, error) {
	batches := chunk(items, ph.batch)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ph.concurrency)

	var mu sync.Mutex
	var failed []string

	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			unprocessed, err := indexFn(ctx, batch)
			if err != nil {
				return err
			}
			rejected := make(map[string]bool, len(unprocessed))
			for _, id := range unprocessed {
				rejected[id] = true
			}
			accepted := make([]T, 0, len(batch))
			for _, item := range batch {
				if rejected[idOf(item)] {
					continue
				}
				accepted = append(accepted, item)
			}
			if len(accepted) > 0 {
				if err := graphFn(ctx, accepted); err != nil {
					return err
				}
			}
			mu.Lock()
			failed = append(failed, unprocessed...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return failed, nil
}

// dualStoreDelete mirrors dualStoreUpsert for id-only deletes.
func (p *Persister) dualStoreDelete(ctx context.Context, ids []string, ph phase) ([]string, error) {
	batches := chunk(ids, ph.batch)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ph.concurrency)

	var mu sync.Mutex
	var failed []string

	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			unprocessed, err := p.Index.Delete(ctx, batch)
			if err != nil {
				return err
			}
			rejected := make(map[string]bool, len(unprocessed))
			for _, id := range unprocessed {
				rejected[id] = true
			}
			accepted := make([]string, 0, len(batch))
			for _, id := range batch {
				if rejected[id] {
					continue
				}
				accepted = append(accepted, id)
			}
			if len(accepted) > 0 {
				if err := p.Graph.DeleteResources(ctx, accepted); err != nil {
					return err
				}
			}
			mu.Lock()
			failed = append(failed, unprocessed...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return failed, nil
}

func runBatched[T any](ctx context.Context, items []T, ph phase, fn func(context.Context, []T) error) error {
	batches := chunk(items, ph.batch)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ph.concurrency)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error { return fn(ctx, batch) })
	}
	return g.Wait()
}

// chunk splits items into batches of at most size; size <= 0 means one batch.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
