package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/throttle"
)

// AdapterFactory builds and caches one *AdapterSet per (account, region)
// pair a crawl touches, so the enrichment tiers can reach any discovered
// account/region without each handler re-deriving credentials. Grounded on
// the same per-account fan-out the accountresolver's AssumedCredentials
// already performs; this is its consumer on the listing side.
type AdapterFactory struct {
	userAgent string
	throttler *throttle.Registry

	mu    sync.Mutex
	creds map[string]provider.Credentials
	cache map[string]*AdapterSet
}

// NewAdapterFactory seeds the factory with the root account's own
// credentials (own is reused directly for its own account/region, never
// rebuilt). Cross-account credentials are added later through Refresh.
func NewAdapterFactory(own *AdapterSet, rootCreds provider.Credentials, userAgent string, throttler *throttle.Registry) *AdapterFactory {
	f := &AdapterFactory{
		userAgent: userAgent,
		throttler: throttler,
		creds:     map[string]provider.Credentials{own.AccountID: rootCreds},
		cache:     map[string]*AdapterSet{own.AccountID + "/" + own.Region: own},
	}
	return f
}

// Refresh merges newly-assumed per-account credentials into the factory and
// drops every cached AdapterSet of an account present in creds, so the next
// Get call for a refreshed account rebuilds its clients against the new
// session rather than an expired one. Cached sets of other accounts are kept.
func (f *AdapterFactory) Refresh(creds map[string]provider.Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for accountID, c := range creds {
		f.creds[accountID] = c
	}
	for key, a := range f.cache {
		if _, refreshed := creds[a.AccountID]; !refreshed {
			continue
		}
		delete(f.cache, key)
	}
}

// Get returns the cached AdapterSet for (accountID, region), building and
// caching one if this is the first request for that pair.
func (f *AdapterFactory) Get(ctx context.Context, accountID, region string) (*AdapterSet, error) {
	key := accountID + "/" + region

	f.mu.Lock()
	if a, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return a, nil
	}
	creds, ok := f.creds[accountID]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("aws: no credentials resolved for account %s", accountID)
	}

	a, err := NewAdapterSet(ctx, accountID, region, creds, f.userAgent, f.throttler)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[key] = a
	f.mu.Unlock()
	return a, nil
}
