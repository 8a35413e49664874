package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectIsIdempotent(t *testing.T) {
	r := Resource{
		ID:         "arn:aws:ec2:us-east-1:111111111111:instance/i-1",
		Type:       "aws::ec2::instance",
		AccountID:  "111111111111",
		Region:     "us-east-1",
		ResourceID: "i-1",
		Tags:       NewTags(),
	}
	r.Tags.Set("Name", "web-1")

	first := Project(r)
	// re-project starting from the same source resource must yield the same
	// result (project does not mutate r, so this is the idempotency check).
	second := Project(r)

	require.Equal(t, first, second)
	assert.Equal(t, "web-1", first.Title)
}

func TestProjectHashSetOnlyForHashSetTypes(t *testing.T) {
	listener := Resource{ID: "arn:x", Type: "aws::elasticloadbalancingv2::listener"}
	bucket := Resource{ID: "arn:y", Type: "aws::s3::bucket"}

	assert.NotEmpty(t, Project(listener).MD5Hash)
	assert.Empty(t, Project(bucket).MD5Hash)
}

func TestDeriveTitleFallsBackToARNForTargetGroup(t *testing.T) {
	r := Resource{
		ID:   "arn:aws:elasticloadbalancing:us-east-1:111111111111:targetgroup/my-tg/6d0ecf831eec9f09",
		Type: "aws::elasticloadbalancingv2::targetgroup",
	}
	assert.Equal(t, "my-tg", deriveTitle(r))
}

func TestDeriveTitleFallsBackToResourceID(t *testing.T) {
	r := Resource{ResourceID: "sg-1"}
	assert.Equal(t, "sg-1", deriveTitle(r))
}
