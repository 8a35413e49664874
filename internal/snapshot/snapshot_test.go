package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

func TestReplaceAndReadResources(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	resources := map[string]resource.Projected{
		"arn:1": {ID: "arn:1", Type: "aws::ec2::instance"},
		"arn:2": {ID: "arn:2", Type: "aws::s3::bucket"},
	}
	require.NoError(t, store.ReplaceResources(resources))

	got, err := store.Resources()
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "aws::ec2::instance", got["arn:1"].Type)

	// a second replace must fully overwrite, not merge
	require.NoError(t, store.ReplaceResources(map[string]resource.Projected{
		"arn:3": {ID: "arn:3"},
	}))
	got, err = store.Resources()
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "arn:3")
}

func TestRelationshipKeyRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	rel := resource.Relationship{Source: "a", Label: "CONTAINS", Target: "b"}
	require.NoError(t, store.ReplaceRelationships(map[string]resource.Relationship{
		RelationshipKey(rel): rel,
	}))

	got, err := store.Relationships()
	require.NoError(t, err)
	assert.Equal(t, rel, got[RelationshipKey(rel)])
}

func TestAscendIdentifiersIsSorted(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	store.IndexIdentifiers(map[string]string{
		"b-key": "id-b",
		"a-key": "id-a",
		"c-key": "id-c",
	})

	var keys []string
	store.AscendIdentifiers(func(e *IdentifierEntry) bool {
		keys = append(keys, e.CompositeKey)
		return true
	})
	assert.Equal(t, []string{"a-key", "b-key", "c-key"}, keys)
}
