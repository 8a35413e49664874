package delta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

func TestProjectEdgesDropsUnknownTargets(t *testing.T) {
	working := []resource.Resource{
		{ID: "r1", Relationships: []resource.Relationship{
			{Source: "r1", Target: "r2", Label: "is associated with"},
			{Source: "r1", Target: resource.UnknownTarget, Label: "is associated with"},
		}},
	}
	edges := projectEdges(working)
	assert.Len(t, edges, 1)
	for _, e := range edges {
		assert.NotEqual(t, resource.UnknownTarget, e.Target)
	}
}

func TestComputeNodeDiffCoversInvariant1(t *testing.T) {
	working := []resource.Resource{
		{ID: "keep", Type: "aws::ec2::instance", ConfigurationItemCaptureTime: time.Now()},
		{ID: "new", Type: "aws::ec2::instance", ConfigurationItemCaptureTime: time.Now()},
	}
	db := map[string]resource.Projected{
		"keep": resource.Project(resource.Resource{ID: "keep", Type: "aws::ec2::instance", ConfigurationItemCaptureTime: time.Now()}),
		"gone": resource.Project(resource.Resource{ID: "gone", Type: "aws::ec2::instance", ConfigurationItemCaptureTime: time.Now()}),
	}

	result := Compute(working, db, map[string]Edge{})

	storedIDs := map[string]bool{}
	for _, p := range result.ResourcesToStore {
		storedIDs[p.ID] = true
	}
	updatedIDs := map[string]bool{}
	for _, u := range result.ResourcesToUpdate {
		updatedIDs[u.ID] = true
	}
	deletedIDs := map[string]bool{}
	for _, id := range result.ResourceIDsToDelete {
		deletedIDs[id] = true
	}

	assert.True(t, storedIDs["new"])
	assert.True(t, deletedIDs["gone"])
	assert.False(t, deletedIDs["keep"])
	assert.False(t, storedIDs["keep"])
}

func TestComputeHashSetUpdateDecision(t *testing.T) {
	captureTime := time.Now()
	old := resource.Project(resource.Resource{
		ID: "m1", Type: "aws::ecs::containerTask", ConfigurationItemCaptureTime: captureTime,
		Configuration: map[string]any{"state": "RUNNING"},
	})
	changed := resource.Resource{
		ID: "m1", Type: "aws::ecs::containerTask", ConfigurationItemCaptureTime: captureTime,
		Configuration: map[string]any{"state": "STOPPED"},
	}

	result := Compute([]resource.Resource{changed}, map[string]resource.Projected{"m1": old}, map[string]Edge{})
	assert.Len(t, result.ResourcesToUpdate, 1)
	assert.Equal(t, "m1", result.ResourcesToUpdate[0].ID)
}

func TestComputeHashSetNoUpdateWhenUnchanged(t *testing.T) {
	captureTime := time.Now()
	r := resource.Resource{
		ID: "m1", Type: "aws::ecs::containerTask", ConfigurationItemCaptureTime: captureTime,
		Configuration: map[string]any{"state": "RUNNING"},
	}
	old := resource.Project(r)

	result := Compute([]resource.Resource{r}, map[string]resource.Projected{"m1": old}, map[string]Edge{})
	assert.Empty(t, result.ResourcesToUpdate)
}
