package errkind

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatalKinds(t *testing.T) {
	assert.True(t, VpcConfigurationValidation.Fatal())
	assert.True(t, AggregatorNotFound.Fatal())
	assert.True(t, OrgAggregatorValidation.Fatal())
	assert.False(t, DiscoveryAlreadyRunning.Fatal())
	assert.False(t, AccessDenied.Fatal())
}

func TestIsUnwrapsThroughFmtErrorf(t *testing.T) {
	base := New(AggregatorNotFound, "no aggregator named x")
	wrapped := fmt.Errorf("initializer: %w", base)
	assert.True(t, Is(wrapped, AggregatorNotFound))
	assert.False(t, Is(wrapped, DiscoveryAlreadyRunning))
}

func TestWithFailedSubset(t *testing.T) {
	err := New(UnprocessedSearchIndexResources, "3 rejected").WithFailedSubset([]string{"a", "b", "c"})
	got, ok := As(err)
	if assert.True(t, ok) {
		assert.Equal(t, []string{"a", "b", "c"}, got.FailedSubset)
	}
}
