// Package provider defines the ProviderClient contract: rate-limited,
// paginated, retried adapters over the cloud provider's service APIs.
// Concrete AWS adapters live in internal/provider/aws.
package provider

import (
	"context"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// Credentials are the per-account, per-crawl assumed-role credentials an
// Adapter is constructed from. They never touch persistent storage.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Identity is the credentials-identity component of the shared-bucket
	// throttler key (spec §4.1): the assumed role ARN + session name, not
	// the raw account id.
	Identity string
}

// Lister is a handler that knows how to list one resource type (or a
// related family of types) for a given account/region. This mirrors the
// teacher's ResourceLister registry pattern, generalized from "critical vs
// optional" to the spec's three enrichment tiers.
type Lister interface {
	Name() string
	List(ctx context.Context, account, region string) ([]resource.Resource, error)
}

// Registry runs a fixed, ordered set of Listers, collecting per-handler
// errors rather than failing the whole tier (spec §4.6's "errors are
// collected per handler and logged").
type Registry struct {
	listers []Lister
}

// NewRegistry builds a registry over the given listers, run in the given
// order.
func NewRegistry(listers ...Lister) *Registry {
	return &Registry{listers: listers}
}

// Len reports how many listers this registry runs, so a caller wrapping
// ListAll's partial-failure results can tell "every lister failed" (total
// loss) from "one of several failed" (partial, still useful data).
func (r *Registry) Len() int {
	return len(r.listers)
}

// HandlerError captures one handler's failure without aborting the tier.
type HandlerError struct {
	HandlerName string
	AccountID   string
	Region      string
	Err         error
}

func (e HandlerError) Error() string {
	return e.HandlerName + " (" + e.AccountID + "/" + e.Region + "): " + e.Err.Error()
}

// ListAll runs every registered lister against (account, region) and
// returns the concatenated resources plus every per-handler error.
func (r *Registry) ListAll(ctx context.Context, account, region string) ([]resource.Resource, []HandlerError) {
	var resources []resource.Resource
	var errs []HandlerError

	for _, l := range r.listers {
		found, err := l.List(ctx, account, region)
		if err != nil {
			errs = append(errs, HandlerError{HandlerName: l.Name(), AccountID: account, Region: region, Err: err})
			continue
		}
		resources = append(resources, found...)
	}
	return resources, errs
}
