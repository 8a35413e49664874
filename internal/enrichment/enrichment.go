// Package enrichment runs the three ordered tiers of spec §4.6 over the
// aggregator's filtered baseline, appending resources the aggregator does
// not reliably surface. Grounded on the teacher's
// providers/aws/resource_lister.go registry/dispatch pattern, generalized
// from a flat lister list to ordered, errgroup-bounded tiers.
package enrichment

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// HandlerError is one enrichment handler's failure, collected rather than
// propagated: a single handler's failure must not drop the rest of a tier.
type HandlerError struct {
	Handler   string
	AccountID string
	Region    string
	Err       error
}

// Scope is the (account, region) pair a Tier-A batch handler runs against.
type Scope struct {
	Account resource.Account
	Region  string
}

// BatchHandler is a Tier-A handler: it lists entities the aggregator does
// not reliably surface for one (account, region) pair.
type BatchHandler interface {
	Name() string
	Handle(ctx context.Context, scope Scope) ([]resource.Resource, error)
}

// FirstOrderHandler is a Tier-B handler keyed by the baseline resource type
// it enriches.
type FirstOrderHandler interface {
	Name() string
	ResourceType() string
	Handle(ctx context.Context, r resource.Resource) ([]resource.Resource, error)
}

// SecondOrderHandler is a Tier-C handler: it runs only over Tier-B output.
type SecondOrderHandler interface {
	Name() string
	ResourceType() string
	Handle(ctx context.Context, r resource.Resource) ([]resource.Resource, error)
}

const (
	tierBConcurrency = 15
	tierCConcurrency = 10
)

// Pipeline runs the three enrichment tiers in order, then synthesizes Tags
// (Tier D). Each tier's output is appended to the working set and visible
// to the next.
type Pipeline struct {
	BatchHandlers       []BatchHandler
	FirstOrderHandlers  []FirstOrderHandler
	SecondOrderHandlers []SecondOrderHandler
}

// Run executes all four tiers against baseline, given the resolved
// accounts-map scopes to run Tier A against, and returns the enriched
// working set (baseline + every tier's output) plus collected handler
// errors (never fatal — spec §4.6 "errors are collected per handler").
func (p *Pipeline) Run(ctx context.Context, baseline []resource.Resource, scopes []Scope) ([]resource.Resource, []HandlerError) {
	working := append([]resource.Resource(nil), baseline...)
	var errs []HandlerError

	tierA, tierAErrs := p.runTierA(ctx, scopes)
	working = append(working, tierA...)
	errs = append(errs, tierAErrs...)

	tierB, tierBErrs := p.runTierB(ctx, working)
	working = append(working, tierB...)
	errs = append(errs, tierBErrs...)

	tierC, tierCErrs := p.runTierC(ctx, tierB)
	working = append(working, tierC...)
	errs = append(errs, tierCErrs...)

	working = append(working, synthesizeTags(working)...)

	return working, errs
}

func (p *Pipeline) runTierA(ctx context.Context, scopes []Scope) ([]resource.Resource, []HandlerError) {
	type result struct {
		resources []resource.Resource
		errs      []HandlerError
	}
	g, ctx := errgroup.WithContext(ctx)
	results := make([]result, len(scopes)*len(p.BatchHandlers))
	idx := 0
	for _, scope := range scopes {
		for _, handler := range p.BatchHandlers {
			scope, handler := scope, handler
			i := idx
			idx++
			g.Go(func() error {
				resources, err := handler.Handle(ctx, scope)
				if err != nil {
					results[i] = result{errs: []HandlerError{{Handler: handler.Name(), AccountID: scope.Account.AccountID, Region: scope.Region, Err: err}}}
					return nil
				}
				results[i] = result{resources: resources}
				return nil
			})
		}
	}
	_ = g.Wait()

	var resources []resource.Resource
	var errs []HandlerError
	for _, r := range results {
		resources = append(resources, r.resources...)
		errs = append(errs, r.errs...)
	}
	return resources, errs
}

func (p *Pipeline) runTierB(ctx context.Context, working []resource.Resource) ([]resource.Resource, []HandlerError) {
	byType := make(map[string][]FirstOrderHandler, len(p.FirstOrderHandlers))
	for _, h := range p.FirstOrderHandlers {
		byType[h.ResourceType()] = append(byType[h.ResourceType()], h)
	}
	return runOverResources(ctx, working, byType, tierBConcurrency, func(h FirstOrderHandler, ctx context.Context, r resource.Resource) ([]resource.Resource, error) {
		return h.Handle(ctx, r)
	})
}

func (p *Pipeline) runTierC(ctx context.Context, tierBOutput []resource.Resource) ([]resource.Resource, []HandlerError) {
	byType := make(map[string][]SecondOrderHandler, len(p.SecondOrderHandlers))
	for _, h := range p.SecondOrderHandlers {
		byType[h.ResourceType()] = append(byType[h.ResourceType()], h)
	}
	return runOverResources(ctx, tierBOutput, byType, tierCConcurrency, func(h SecondOrderHandler, ctx context.Context, r resource.Resource) ([]resource.Resource, error) {
		return h.Handle(ctx, r)
	})
}

type namedHandler interface{ Name() string }

func runOverResources[H namedHandler](
	ctx context.Context,
	resources []resource.Resource,
	byType map[string][]H,
	concurrency int,
	invoke func(H, context.Context, resource.Resource) ([]resource.Resource, error),
) ([]resource.Resource, []HandlerError) {
	type job struct {
		handler H
		r       resource.Resource
	}
	var jobs []job
	for _, r := range resources {
		for _, h := range byType[r.Type] {
			jobs = append(jobs, job{handler: h, r: r})
		}
	}

	type result struct {
		resources []resource.Resource
		err       *HandlerError
	}
	results := make([]result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			out, err := invoke(j.handler, ctx, j.r)
			if err != nil {
				results[i] = result{err: &HandlerError{Handler: j.handler.Name(), AccountID: j.r.AccountID, Region: j.r.Region, Err: err}}
				return nil
			}
			results[i] = result{resources: out}
			return nil
		})
	}
	_ = g.Wait()

	var out []resource.Resource
	var errs []HandlerError
	for _, r := range results {
		out = append(out, r.resources...)
		if r.err != nil {
			errs = append(errs, *r.err)
		}
	}
	return out, errs
}
