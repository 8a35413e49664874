package provider

import "context"

// Paginator adapts any AWS SDK v2 paginator (they all expose HasMorePages()
// and NextPage(ctx, ...optFns)) into the lazy, finite, non-restartable page
// sequence spec §4.1 requires, interleaved with a throttle wait before every
// NextPage call.
type Paginator[T any] struct {
	hasMore func() bool
	next    func(ctx context.Context) (T, error)
	wait    func(ctx context.Context) error
}

// NewPaginator wraps an SDK paginator's HasMorePages/NextPage pair. wait is
// called before every NextPage and should be the throttle registry's Wait
// for this operation's class.
func NewPaginator[T any](hasMore func() bool, next func(ctx context.Context) (T, error), wait func(ctx context.Context) error) *Paginator[T] {
	return &Paginator[T]{hasMore: hasMore, next: next, wait: wait}
}

// Next returns the next page, false when exhausted, or an error.
func (p *Paginator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if !p.hasMore() {
		return zero, false, nil
	}
	if p.wait != nil {
		if err := p.wait(ctx); err != nil {
			return zero, false, err
		}
	}
	page, err := p.next(ctx)
	if err != nil {
		return zero, false, err
	}
	return page, true, nil
}

// Drain collects every page via visit until the paginator is exhausted or
// visit/Next returns an error.
func Drain[T any](ctx context.Context, p *Paginator[T], visit func(T) error) error {
	for {
		page, ok, err := p.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := visit(page); err != nil {
			return err
		}
	}
}
