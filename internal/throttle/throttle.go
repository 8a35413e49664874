// Package throttle implements the shared-bucket token throttler required by
// every ProviderClient adapter: a limiter memoized by
// (operation-class, credentials-identity, region) so that multiple adapters
// minted for the same principal share one bucket.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate is a limit/interval pair expressed the way the source throttle table
// is: N operations per interval.
type Rate struct {
	Limit    int
	Interval time.Duration
}

// Limiter returns the equivalent golang.org/x/time/rate parameters.
func (r Rate) limiter() *rate.Limiter {
	perSecond := float64(r.Limit) / r.Interval.Seconds()
	return rate.NewLimiter(rate.Limit(perSecond), r.Limit)
}

// key identifies a single shared bucket.
type key struct {
	operation string
	principal string
	region    string
}

// Registry memoizes limiters by (operation, principal, region).
type Registry struct {
	mu       sync.Mutex
	limiters map[key]*rate.Limiter
	rates    map[string]Rate
}

// NewRegistry builds a Registry seeded with the operation-class rate table.
func NewRegistry(rates map[string]Rate) *Registry {
	return &Registry{
		limiters: make(map[key]*rate.Limiter),
		rates:    rates,
	}
}

// Wait blocks until a token is available for (operationClass, principal,
// region), minting and memoizing the limiter on first use. An operation
// class with no configured rate is unthrottled.
func (reg *Registry) Wait(ctx context.Context, operationClass, principal, region string) error {
	lim := reg.get(operationClass, principal, region)
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}

func (reg *Registry) get(operationClass, principal, region string) *rate.Limiter {
	rt, ok := reg.rates[operationClass]
	if !ok {
		return nil
	}
	k := key{operation: operationClass, principal: principal, region: region}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if lim, ok := reg.limiters[k]; ok {
		return lim
	}
	lim := rt.limiter()
	reg.limiters[k] = lim
	return lim
}
