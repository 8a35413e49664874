package persist

import "github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"

// Reconcile rebuilds the crawl's working resource set after Apply, per spec
// §4.10 "Reconciliation": ids that never landed in either store are dropped;
// ids whose delete failed are re-inserted with their pre-crawl value, since
// they are still present in at least one store.
func Reconcile(working map[string]resource.Resource, outcome Outcome, preCrawl map[string]resource.Resource) map[string]resource.Resource {
	reconciled := make(map[string]resource.Resource, len(working))
	for id, r := range working {
		reconciled[id] = r
	}
	for _, id := range outcome.FailedStores {
		delete(reconciled, id)
	}
	for _, id := range outcome.FailedDeletes {
		if r, ok := preCrawl[id]; ok {
			reconciled[id] = r
		}
	}
	return reconciled
}
