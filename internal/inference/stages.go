package inference

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

const stage2Concurrency = 30

// Stage1Handler is a batched inference handler run once per (account,
// region) with Promise.allSettled semantics: every handler's error is
// collected, none is fatal (spec §4.7 stage 1). It may return edges to
// attach to resources already present in the working set — batched
// handlers discover relationships (event source mappings, SNS
// subscriptions, TGW attachments) that no single resource's own
// RelationshipDescriptors can express, since the edge depends on a second
// SDK call keyed by the batch, not by one resource's configuration.
type Stage1Handler interface {
	Name() string
	Handle(ctx context.Context, lookups *LookupMaps, account, region string) ([]resource.Relationship, error)
}

// Stage1Error is one batch handler's collected failure.
type Stage1Error struct {
	Handler   string
	AccountID string
	Region    string
	Err       error
}

// Inferencer runs the full two-stage pipeline of spec §4.7 over an
// enriched working set.
type Inferencer struct {
	Stage1Handlers []Stage1Handler
	Descriptors    Registry
	SDKFetchers    map[string]SDKFetcher
}

// Scope is an (account, region) pair stage 1 batches over.
type Scope struct {
	AccountID string
	Region    string
}

// Run builds the lookup maps, runs stage 1 then stage 2, applies the
// post-passes, and returns the fully-inferred working set plus every
// collected stage-1 error.
func (inf *Inferencer) Run(ctx context.Context, working []resource.Resource, scopes []Scope) ([]resource.Resource, []Stage1Error) {
	lookups := BuildLookupMaps(working)

	edges, errs := inf.runStage1(ctx, lookups, scopes)
	working = applyStage1Edges(working, edges)

	evalCtx := &EvalContext{Lookups: lookups}
	working = inf.runStage2(ctx, evalCtx, working)

	working = normalizeRelationshipNames(working)
	working = backfillVPCInfo(working)

	return working, errs
}

func (inf *Inferencer) runStage1(ctx context.Context, lookups *LookupMaps, scopes []Scope) ([]resource.Relationship, []Stage1Error) {
	type outcome struct {
		edges []resource.Relationship
		err   *Stage1Error
	}
	g, ctx := errgroup.WithContext(ctx)
	outcomes := make([]outcome, len(scopes)*len(inf.Stage1Handlers))
	idx := 0
	for _, scope := range scopes {
		for _, h := range inf.Stage1Handlers {
			scope, h := scope, h
			i := idx
			idx++
			g.Go(func() error {
				edges, err := h.Handle(ctx, lookups, scope.AccountID, scope.Region)
				if err != nil {
					outcomes[i] = outcome{err: &Stage1Error{Handler: h.Name(), AccountID: scope.AccountID, Region: scope.Region, Err: err}}
					return nil
				}
				outcomes[i] = outcome{edges: edges}
				return nil
			})
		}
	}
	_ = g.Wait()

	var edges []resource.Relationship
	var errs []Stage1Error
	for _, o := range outcomes {
		edges = append(edges, o.edges...)
		if o.err != nil {
			errs = append(errs, *o.err)
		}
	}
	return edges, errs
}

// applyStage1Edges attaches each stage-1 edge to the resource named by its
// Source, in place. An edge whose source no longer exists in working (a
// handler raced a resource that was later filtered out) is dropped.
func applyStage1Edges(working []resource.Resource, edges []resource.Relationship) []resource.Resource {
	if len(edges) == 0 {
		return working
	}
	idxByID := make(map[string]int, len(working))
	for i, r := range working {
		idxByID[r.ID] = i
	}
	for _, e := range edges {
		if i, ok := idxByID[e.Source]; ok {
			working[i].Relationships = append(working[i].Relationships, e)
		}
	}
	return working
}

func (inf *Inferencer) runStage2(ctx context.Context, evalCtx *EvalContext, working []resource.Resource) []resource.Resource {
	out := make([]resource.Resource, len(working))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(stage2Concurrency)
	for i, r := range working {
		i, r := i, r
		g.Go(func() error {
			r = inf.Descriptors.Evaluate(evalCtx, r, inf.SDKFetchers)
			r = resolveRelationshipDescriptors(evalCtx, r)
			if handler, ok := HardCodedHandlers[r.Type]; ok {
				r = handler(evalCtx, r)
			}
			out[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return out
}
