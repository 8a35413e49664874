package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitIsUnthrottledForUnknownOperation(t *testing.T) {
	reg := NewRegistry(map[string]Rate{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, reg.Wait(ctx, "unused.op", "role-a", "us-east-1"))
}

func TestSharedBucketAcrossAdapters(t *testing.T) {
	reg := NewRegistry(map[string]Rate{
		"organizations.list": {Limit: 1, Interval: time.Hour},
	})
	ctx := context.Background()

	require := assert.New(t)
	require.NoError(reg.Wait(ctx, "organizations.list", "role-a", "us-east-1"))

	lim1 := reg.get("organizations.list", "role-a", "us-east-1")
	lim2 := reg.get("organizations.list", "role-a", "us-east-1")
	require.Same(lim1, lim2, "two adapters for the same principal must share one limiter")

	lim3 := reg.get("organizations.list", "role-b", "us-east-1")
	require.NotSame(lim1, lim3, "a different principal must get its own bucket")
}
