package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

type fakeBatchHandler struct {
	name string
	err  error
}

func (f fakeBatchHandler) Name() string { return f.name }
func (f fakeBatchHandler) Handle(ctx context.Context, scope Scope) ([]resource.Resource, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []resource.Resource{{ID: f.name + ":" + scope.Region}}, nil
}

func TestRunTierAContinuesAfterOneHandlerFails(t *testing.T) {
	p := &Pipeline{BatchHandlers: []BatchHandler{
		fakeBatchHandler{name: "ok"},
		fakeBatchHandler{name: "broken", err: errors.New("boom")},
	}}
	scopes := []Scope{{Account: resource.Account{AccountID: "111"}, Region: "eu-west-1"}}

	working, errs := p.Run(context.Background(), nil, scopes)

	require.Len(t, errs, 1)
	assert.Equal(t, "broken", errs[0].Handler)

	found := false
	for _, r := range working {
		if r.ID == "ok:eu-west-1" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSynthesizeTagsCreatesOneTagPerKeyValue(t *testing.T) {
	tagsA := resource.NewTags()
	tagsA.Set("env", "prod")
	tagsB := resource.NewTags()
	tagsB.Set("env", "prod")

	working := []resource.Resource{
		{ID: "r1", Tags: tagsA},
		{ID: "r2", Tags: tagsB},
	}

	tags := synthesizeTags(working)
	require.Len(t, tags, 1)
	assert.Equal(t, "tag:env=prod", tags[0].ID)
	require.Len(t, tags[0].Relationships, 2)
	assert.Equal(t, "is associated with", tags[0].Relationships[0].Label)
}
