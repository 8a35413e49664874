package aws

import (
	"context"
	"sync"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/enrichment"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// registryBatchHandler bridges a provider.Registry, built fresh against the
// scope's AdapterSet, into a Tier-A enrichment.BatchHandler. One of a
// registry's listers failing outright does not fail the whole handler call
// (spec §4.6's "errors are collected per handler, not per lister within a
// handler"); every lister failing does, since that signals the scope
// itself is unreachable.
type registryBatchHandler struct {
	name    string
	factory *AdapterFactory
	build   func(a *AdapterSet) *provider.Registry
}

func (h registryBatchHandler) Name() string { return h.name }

func (h registryBatchHandler) Handle(ctx context.Context, scope enrichment.Scope) ([]resource.Resource, error) {
	a, err := h.factory.Get(ctx, scope.Account.AccountID, scope.Region)
	if err != nil {
		return nil, err
	}
	reg := h.build(a)
	resources, errs := reg.ListAll(ctx, scope.Account.AccountID, scope.Region)
	if len(errs) > 0 && len(errs) == reg.Len() {
		return nil, errs[0]
	}
	return resources, nil
}

// globalBatchHandler runs its inner handler once per account: the first
// region scope to reach it wins, every later region scope for the same
// account is a no-op. Used for account-global inventories (e.g. managed
// policies) that the per-region Tier-A fan-out would otherwise repeat once
// per region for no benefit.
type globalBatchHandler struct {
	inner enrichment.BatchHandler
	seen  sync.Map // accountID -> struct{}
}

func (h *globalBatchHandler) Name() string { return h.inner.Name() }

func (h *globalBatchHandler) Handle(ctx context.Context, scope enrichment.Scope) ([]resource.Resource, error) {
	if _, loaded := h.seen.LoadOrStore(scope.Account.AccountID, struct{}{}); loaded {
		return nil, nil
	}
	return h.inner.Handle(ctx, scope)
}

// TierABatchHandlers returns every Tier-A handler spec §4.6 requires: the
// full base inventory (including the app-registry, media-flow and
// search-domain families the aggregator baseline misses), spot/spot-fleet
// requests, ELBv2 target groups, and the account-global managed-policy
// inventory.
func TierABatchHandlers(factory *AdapterFactory) []enrichment.BatchHandler {
	return []enrichment.BatchHandler{
		registryBatchHandler{
			name:    "aws.tierA.baseInventory",
			factory: factory,
			build:   func(a *AdapterSet) *provider.Registry { return NewBaseRegistry(a) },
		},
		registryBatchHandler{
			name:    "aws.tierA.spotRequests",
			factory: factory,
			build: func(a *AdapterSet) *provider.Registry {
				return provider.NewRegistry(SpotInstanceRequestLister{Adapters: a}, SpotFleetRequestLister{Adapters: a})
			},
		},
		registryBatchHandler{
			name:    "aws.tierA.targetGroups",
			factory: factory,
			build: func(a *AdapterSet) *provider.Registry {
				return provider.NewRegistry(ELBv2TargetGroupLister{Adapters: a})
			},
		},
		&globalBatchHandler{
			inner: registryBatchHandler{
				name:    "aws.tierA.managedPolicies",
				factory: factory,
				build: func(a *AdapterSet) *provider.Registry {
					return provider.NewRegistry(ManagedPolicyLister{Adapters: a})
				},
			},
		},
	}
}
