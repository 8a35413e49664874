// Package orchestrator sequences one discovery crawl end to end:
// Initializer -> AccountResolver -> AggregatorReader -> EnrichmentPipeline
// -> RelationshipInferencer -> DeltaEngine -> Persister ->
// RegionMetadataAggregator. In organization mode the account add/update/
// delete split is computed and logged; no account records are written to
// either store. Grounded on the teacher's reconciler.Reconcile sequencing
// style (named phases, each logged). A fatal errkind.Kind, or a failure to
// resolve accounts, read the baseline or pre-crawl snapshot, or persist the
// delta, aborts the run; enrichment and inference handler failures are
// logged and the run continues.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/configservice"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/accountresolver"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/aggregator"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/config"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/crawlwal"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/delta"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/enrichment"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/errkind"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/inference"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/initializer"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/persist"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/policy"
	provideraws "github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider/aws"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/regionmeta"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/snapshot"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/throttle"
)

// Deps bundles the constructed clients and pipeline stages a crawl needs.
// cmd/discovery wires these once at process start.
type Deps struct {
	Config *config.Config
	Logger zerolog.Logger

	OwnAdapters    *provideraws.AdapterSet
	AdapterFactory *provideraws.AdapterFactory
	Throttler      *throttle.Registry

	STSClient        *sts.Client
	OrgClient        *organizations.Client
	ECSClient        *ecs.Client
	ConfigClient     *configservice.Client
	AggregatorReader *aggregator.Reader

	Graph persist.GraphStore
	Index persist.SearchIndex

	Enrichment *enrichment.Pipeline
	Inference  *inference.Inferencer
	Policy     *policy.Engine

	WAL      *crawlwal.WAL
	Snapshot *snapshot.Store

	OwnTaskARN string
	IsOrgMode  bool
}

// Result is what a crawl produces for the caller's exit-code switch
// (spec §6/§7).
type Result struct {
	Skipped bool // true when DiscoveryAlreadyRunning was observed (non-fatal)
}

// Run executes one full crawl. A fatal errkind.Kind error aborts
// immediately; all other per-item failures are collected and logged.
func Run(ctx context.Context, d *Deps) (Result, error) {
	log := d.Logger

	log.Info().Msg("initializer: checking VPC reachability")
	if err := initializer.CheckReachability(ctx, d.Config, d.IsOrgMode); err != nil {
		return Result{}, err
	}

	if d.ECSClient != nil && d.Config.ClusterName != "" {
		log.Info().Msg("initializer: checking for a concurrent discovery run")
		if err := initializer.CheckNotAlreadyRunning(ctx, d.ECSClient, d.Config.ClusterName, "discovery", d.OwnTaskARN); err != nil {
			if errkind.Is(err, errkind.DiscoveryAlreadyRunning) {
				log.Warn().Err(err).Msg("discovery already running; skipping this invocation")
				return Result{Skipped: true}, nil
			}
			return Result{}, err
		}
	}

	if d.IsOrgMode {
		log.Info().Msg("initializer: validating organization aggregator")
		if err := initializer.ValidateAggregator(ctx, d.ConfigClient, d.Config.ConfigAggregatorName, true); err != nil {
			return Result{}, err
		}
	}

	log.Info().Msg("accountresolver: resolving accounts")
	resolver := accountresolver.NewResolver(d.Config, d.OrgClient, d.STSClient, d.Throttler)
	accounts, err := resolver.ResolveAccounts(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: resolve accounts: %w", err)
	}
	accountsMap := toAccountsMap(accounts)

	if d.AdapterFactory != nil {
		log.Info().Msg("accountresolver: assuming per-account discovery role")
		creds, err := resolver.AssumedCredentials(ctx, accounts)
		if err != nil {
			return Result{}, fmt.Errorf("orchestrator: assume per-account credentials: %w", err)
		}
		d.AdapterFactory.Refresh(creds)
	}

	log.Info().Int("accounts", len(accountsMap)).Msg("aggregator: reading baseline")
	baseline, err := d.AggregatorReader.ReadBaseline(ctx, nil, accountsMap)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: read aggregator baseline: %w", err)
	}

	preCrawl, err := readPreCrawlSnapshot(ctx, d)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: read pre-crawl snapshot: %w", err)
	}

	scopes := buildEnrichmentScopes(accountsMap)
	log.Info().Int("scopes", len(scopes)).Msg("enrichment: running tiers A-D")
	working, enrichErrs := d.Enrichment.Run(ctx, baseline, toEnrichmentScopes(scopes, accountsMap))
	for _, e := range enrichErrs {
		log.Warn().Str("handler", e.Handler).Str("account", e.AccountID).Str("region", e.Region).Err(e.Err).Msg("enrichment handler failed")
	}

	log.Info().Msg("inference: resolving relationships")
	working, inferErrs := d.Inference.Run(ctx, working, toInferenceScopes(scopes))
	for _, e := range inferErrs {
		log.Warn().Str("handler", e.Handler).Str("account", e.AccountID).Str("region", e.Region).Err(e.Err).Msg("stage-1 inference handler failed")
	}

	if d.Policy != nil {
		working = applyPolicy(ctx, d.Policy, log, working)
	}
	if d.WAL != nil {
		_ = d.WAL.Append(crawlwal.EntryObserved, "enrichment+inference", map[string]int{"resources": len(working)})
	}

	log.Info().Msg("delta: computing add/update/delete sets")
	dbResources, dbEdges := preCrawl.resources, preCrawl.edges
	result := delta.Compute(working, dbResources, dbEdges)

	log.Info().
		Int("toStore", len(result.ResourcesToStore)).
		Int("toUpdate", len(result.ResourcesToUpdate)).
		Int("toDelete", len(result.ResourceIDsToDelete)).
		Msg("persist: writing delta")
	if d.WAL != nil {
		_ = d.WAL.Append(crawlwal.EntryDiffed, "delta", map[string]int{
			"toStore": len(result.ResourcesToStore), "toUpdate": len(result.ResourcesToUpdate), "toDelete": len(result.ResourceIDsToDelete),
		})
		_ = d.WAL.Append(crawlwal.EntryPersisting, "persist", nil)
	}

	p := persist.New(d.Graph, d.Index)
	outcome, err := p.Apply(ctx, result)
	if err != nil {
		if d.WAL != nil {
			_ = d.WAL.AppendError("persist", nil, err)
		}
		return Result{}, fmt.Errorf("orchestrator: persist delta: %w", err)
	}
	if d.WAL != nil {
		_ = d.WAL.Append(crawlwal.EntryPersisted, "persist", map[string]int{
			"failedStores": len(outcome.FailedStores), "failedDeletes": len(outcome.FailedDeletes),
		})
	}

	workingByID := make(map[string]resource.Resource, len(working))
	for _, r := range working {
		workingByID[r.ID] = r
	}
	reconciled := persist.Reconcile(workingByID, outcome, preCrawl.preCrawlResources)

	reconciledList := make([]resource.Resource, 0, len(reconciled))
	for _, r := range reconciled {
		reconciledList = append(reconciledList, r)
	}
	regionmeta.Aggregate(reconciledList, accountsMap, time.Now())

	if d.IsOrgMode {
		toAdd, toUpdate, toDeleteIDs := regionmeta.SplitOrganizationAccounts(accounts, accountsMap)
		log.Info().Int("add", len(toAdd)).Int("update", len(toUpdate)).Int("delete", len(toDeleteIDs)).Msg("persist: account rollup")
	}

	if d.Snapshot != nil {
		refreshSnapshot(d.Snapshot, log, reconciledList)
	}

	log.Info().Msg("crawl complete")
	return Result{}, nil
}

// applyPolicy drops resources the discovery-inclusion policy excludes
// before they reach the DeltaEngine, logging each exclusion's reason.
func applyPolicy(ctx context.Context, eng *policy.Engine, log zerolog.Logger, working []resource.Resource) []resource.Resource {
	kept := working[:0]
	for _, r := range working {
		decision, err := eng.Evaluate(ctx, r)
		if err != nil {
			log.Warn().Str("resource", r.ID).Err(err).Msg("policy evaluation failed; keeping resource")
			kept = append(kept, r)
			continue
		}
		if !decision.Include {
			log.Debug().Str("resource", r.ID).Str("reason", decision.Reason).Msg("policy excluded resource")
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// refreshSnapshot overwrites the local pre-crawl cache with this crawl's
// reconciled working set, so the next crawl's DeltaEngine comparison and
// Reconcile restore-on-failed-delete source don't require a graph-store
// round trip.
func refreshSnapshot(store *snapshot.Store, log zerolog.Logger, reconciled []resource.Resource) {
	projected := make(map[string]resource.Projected, len(reconciled))
	edges := make(map[string]resource.Relationship)
	for _, r := range reconciled {
		projected[r.ID] = resource.Project(r)
		for _, rel := range r.Relationships {
			edges[rel.Source+"|"+rel.Label+"|"+rel.Target] = rel
		}
	}
	if err := store.ReplaceResources(projected); err != nil {
		log.Warn().Err(err).Msg("snapshot: failed to refresh resources")
	}
	if err := store.ReplaceRelationships(edges); err != nil {
		log.Warn().Err(err).Msg("snapshot: failed to refresh relationships")
	}
}

func toAccountsMap(accounts []resource.Account) map[string]resource.Account {
	out := make(map[string]resource.Account, len(accounts))
	for _, a := range accounts {
		out[a.AccountID] = a
	}
	return out
}

type scopeKey struct {
	accountID, region string
}

func buildEnrichmentScopes(accounts map[string]resource.Account) []scopeKey {
	var out []scopeKey
	for id, a := range accounts {
		if !a.IsIamRoleDeployed || a.ToDelete {
			continue
		}
		for _, r := range a.Regions {
			out = append(out, scopeKey{accountID: id, region: r.Name})
		}
	}
	return out
}

func toEnrichmentScopes(scopes []scopeKey, accounts map[string]resource.Account) []enrichment.Scope {
	out := make([]enrichment.Scope, len(scopes))
	for i, s := range scopes {
		out[i] = enrichment.Scope{Account: accounts[s.accountID], Region: s.region}
	}
	return out
}

func toInferenceScopes(scopes []scopeKey) []inference.Scope {
	out := make([]inference.Scope, len(scopes))
	for i, s := range scopes {
		out[i] = inference.Scope{AccountID: s.accountID, Region: s.region}
	}
	return out
}

type preCrawlSnapshot struct {
	resources         map[string]resource.Projected
	edges             map[string]delta.Edge
	preCrawlResources map[string]resource.Resource
}

// readPreCrawlSnapshot reads dbResourcesMap/dbRelationshipsMap at the start
// of the crawl from the local snapshot store, falling back to the graph
// store when the snapshot holds no resources — these are the DeltaEngine's
// comparison baseline and the Reconcile step's restore-on-failed-delete
// source.
func readPreCrawlSnapshot(ctx context.Context, d *Deps) (preCrawlSnapshot, error) {
	if d.Snapshot != nil {
		resources, err := d.Snapshot.Resources()
		if err != nil {
			return preCrawlSnapshot{}, fmt.Errorf("snapshot: read resources: %w", err)
		}
		if len(resources) > 0 {
			rels, err := d.Snapshot.Relationships()
			if err != nil {
				return preCrawlSnapshot{}, fmt.Errorf("snapshot: read relationships: %w", err)
			}
			edges := make(map[string]delta.Edge, len(rels))
			for key, rel := range rels {
				edges[key] = delta.Edge{Source: rel.Source, Target: rel.Target, Label: rel.Label}
			}
			return toPreCrawlSnapshot(resources, edges), nil
		}
	}
	return readGraphStoreSnapshot(ctx, d)
}

// readGraphStoreSnapshot bootstraps the local cache from the graph store
// directly — used only when the local snapshot is empty (first run, or
// after its data directory was wiped).
func readGraphStoreSnapshot(ctx context.Context, d *Deps) (preCrawlSnapshot, error) {
	type reader interface {
		ReadAllResources(ctx context.Context) (map[string]resource.Projected, error)
		ReadAllRelationshipEdges(ctx context.Context) (map[string]delta.Edge, error)
	}
	r, ok := d.Graph.(reader)
	if !ok {
		return preCrawlSnapshot{resources: map[string]resource.Projected{}, edges: map[string]delta.Edge{}}, nil
	}
	resources, err := r.ReadAllResources(ctx)
	if err != nil {
		return preCrawlSnapshot{}, err
	}
	edges, err := r.ReadAllRelationshipEdges(ctx)
	if err != nil {
		return preCrawlSnapshot{}, err
	}
	return toPreCrawlSnapshot(resources, edges), nil
}

func toPreCrawlSnapshot(resources map[string]resource.Projected, edges map[string]delta.Edge) preCrawlSnapshot {
	preCrawlResources := make(map[string]resource.Resource, len(resources))
	for id, p := range resources {
		preCrawlResources[id] = resource.Resource{ID: p.ID, Type: p.Type, AccountID: p.AccountID, Region: p.Region}
	}
	return preCrawlSnapshot{resources: resources, edges: edges, preCrawlResources: preCrawlResources}
}

// ExitCode maps a crawl error to the process exit status of spec §7: a
// fatal errkind.Kind aborts with a non-zero status carrying its message;
// anything else is an unexpected failure.
func ExitCode(result Result, err error) (int, string) {
	if err == nil {
		if result.Skipped {
			return 0, "discovery already running; exited without crawling"
		}
		return 0, ""
	}
	if kind, ok := errkind.As(err); ok {
		return 1, fmt.Sprintf("%s: %s", kind.Kind, kind.Error())
	}
	return 1, err.Error()
}
