package graphstore

import (
	"context"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/delta"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/errkind"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

func (c *Client) StoreResources(ctx context.Context, batch []resource.Projected) error {
	input := make([]map[string]any, len(batch))
	for i, p := range batch {
		input[i] = projectedToInput(p)
	}
	return c.executeWithRetry(ctx, storeResourcesMutation, map[string]any{"input": input}, nil)
}

func (c *Client) UpdateResources(ctx context.Context, batch []delta.Update) error {
	input := make([]map[string]any, len(batch))
	for i, u := range batch {
		input[i] = updateToInput(u)
	}
	return c.executeWithRetry(ctx, updateResourcesMutation, map[string]any{"input": input}, nil)
}

func (c *Client) DeleteResources(ctx context.Context, ids []string) error {
	return c.executeWithRetry(ctx, deleteResourcesMutation, map[string]any{"ids": ids}, nil)
}

func (c *Client) StoreRelationships(ctx context.Context, batch []delta.Edge) error {
	input := make([]map[string]any, len(batch))
	for i, e := range batch {
		input[i] = edgeToInput(e)
	}
	return c.executeWithRetry(ctx, storeRelationshipsMutation, map[string]any{"input": input}, nil)
}

func (c *Client) DeleteRelationships(ctx context.Context, batch []delta.Edge) error {
	input := make([]map[string]any, len(batch))
	for i, e := range batch {
		input[i] = edgeToInput(e)
	}
	return c.executeWithRetry(ctx, deleteRelationshipsMutation, map[string]any{"input": input}, nil)
}

// executeWithRetry implements the recoverable-error probe of spec §4.2: a
// ConnectionClosedPrematurely signal gets exactly one automatic retry;
// PayloadTooLarge and ResolverCodeSize bail immediately to the caller, who
// is expected to shrink the batch (the adaptive paginator does this for
// reads; writers simply surface the error, since the Persister already
// batches at a fixed, known-safe size).
func (c *Client) executeWithRetry(ctx context.Context, doc string, variables map[string]any, out any) error {
	err := c.execute(ctx, doc, variables, out)
	if err == nil {
		return nil
	}
	if errkind.Is(err, errkind.ConnectionClosedPrematurely) {
		return c.execute(ctx, doc, variables, out)
	}
	return err
}
