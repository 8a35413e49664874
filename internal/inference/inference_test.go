package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

func TestEnvVarRuleSuppressesAccountPublicAccessBlockSelfReference(t *testing.T) {
	working := []resource.Resource{
		{ID: "block1", Type: s3AccountPublicAccessBlockType, ResourceID: "111111111111", AccountID: "111111111111", Region: "eu-west-1"},
	}
	lookups := BuildLookupMaps(working)

	_, ok := lookups.ResolveEnvVar("111111111111", "111111111111", "eu-west-1")
	assert.False(t, ok, "a variable equal to the account id must not resolve to the account's own public-access-block resource")
}

func TestEnvVarRuleResolvesExactARNMatch(t *testing.T) {
	working := []resource.Resource{{ID: "arn:aws:s3:::my-bucket", Type: "aws::s3::bucket"}}
	lookups := BuildLookupMaps(working)

	target, ok := lookups.ResolveEnvVar("arn:aws:s3:::my-bucket", "111", "eu-west-1")
	require.True(t, ok)
	assert.Equal(t, "arn:aws:s3:::my-bucket", target)
}

func TestEventBusHandlerHandlesMissingRuleMapKeyAsEmptySequence(t *testing.T) {
	bus := resource.Resource{ID: "bus1", Type: "aws::events::eventbus"}
	lookups := BuildLookupMaps([]resource.Resource{bus})
	ctx := &EvalContext{Lookups: lookups}

	result := eventBusHandler(ctx, bus)
	assert.Empty(t, result.Relationships)
}

func TestNormalizeRelationshipNamesAppendsTypeSuffix(t *testing.T) {
	working := []resource.Resource{
		{ID: "r1", Type: "aws::ecs::task", Relationships: []resource.Relationship{
			{Source: "r1", Target: "sg1", Label: "is associated with"},
		}},
		{ID: "sg1", Type: "aws::ec2::securitygroup"},
	}

	result := normalizeRelationshipNames(working)
	assert.Equal(t, "is associated with security group", result[0].Relationships[0].Label)
}

func TestBackfillVPCInfoSetsSingleSubnetID(t *testing.T) {
	working := []resource.Resource{
		{ID: "inst1", Type: "aws::ec2::instance", Relationships: []resource.Relationship{
			{Source: "inst1", Target: "subnet1", Label: "is contained in subnet"},
		}},
		{ID: "subnet1", Type: "aws::ec2::subnet", VpcID: "vpc1", AvailabilityZone: "eu-west-1a"},
	}

	result := backfillVPCInfo(working)
	assert.Equal(t, "subnet1", result[0].SubnetID)
	assert.Equal(t, "eu-west-1a", result[0].AvailabilityZone)
}
