package persist

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/delta"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

type fakeGraph struct {
	mu      sync.Mutex
	stored  []string
	deleted []string
}

func (f *fakeGraph) StoreResources(ctx context.Context, batch []resource.Projected) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range batch {
		f.stored = append(f.stored, r.ID)
	}
	return nil
}
func (f *fakeGraph) UpdateResources(ctx context.Context, batch []delta.Update) error { return nil }
func (f *fakeGraph) DeleteResources(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
	return nil
}
func (f *fakeGraph) StoreRelationships(ctx context.Context, batch []delta.Edge) error   { return nil }
func (f *fakeGraph) DeleteRelationships(ctx context.Context, batch []delta.Edge) error  { return nil }

// fakeIndex rejects a fixed set of ids on Index/Delete, simulating a
// partial search-index failure (spec §4.10's UnprocessedSearchIndexResources).
type fakeIndex struct {
	rejectOnIndex map[string]bool
}

func (f *fakeIndex) Index(ctx context.Context, batch []resource.Projected) ([]string, error) {
	var rejected []string
	for _, r := range batch {
		if f.rejectOnIndex[r.ID] {
			rejected = append(rejected, r.ID)
		}
	}
	return rejected, nil
}
func (f *fakeIndex) Update(ctx context.Context, batch []delta.Update) ([]string, error) { return nil, nil }
func (f *fakeIndex) Delete(ctx context.Context, ids []string) ([]string, error)         { return nil, nil }

func TestApplyOnlyStoresIndexAcceptedSubset(t *testing.T) {
	graph := &fakeGraph{}
	index := &fakeIndex{rejectOnIndex: map[string]bool{"bad": true}}
	p := New(graph, index)

	result := delta.Result{
		ResourcesToStore: []resource.Projected{{ID: "good"}, {ID: "bad"}},
	}

	outcome, err := p.Apply(context.Background(), result)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"good"}, graph.stored)
	assert.Equal(t, []string{"bad"}, outcome.FailedStores)
}

func TestReconcileDropsFailedStoresAndRestoresFailedDeletes(t *testing.T) {
	working := map[string]resource.Resource{
		"new":  {ID: "new"},
		"bad":  {ID: "bad"},
		"gone": {ID: "gone-updated"},
	}
	preCrawl := map[string]resource.Resource{
		"gone": {ID: "gone-original"},
	}
	outcome := Outcome{FailedStores: []string{"bad"}, FailedDeletes: []string{"gone"}}

	reconciled := Reconcile(working, outcome, preCrawl)

	_, hasBad := reconciled["bad"]
	assert.False(t, hasBad)
	assert.Equal(t, "gone-original", reconciled["gone"].ID)
	assert.Equal(t, "new", reconciled["new"].ID)
}
