package regionmeta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

func TestAggregateProducesDeterministicSortedRollup(t *testing.T) {
	resources := []resource.Resource{
		{AccountID: "111", Region: "eu-west-1", Type: "aws::ec2::instance"},
		{AccountID: "111", Region: "eu-west-1", Type: "aws::ec2::instance"},
		{AccountID: "111", Region: "eu-west-1", Type: "aws::ec2::volume"},
		{AccountID: "111", Region: "us-east-1", Type: "aws::s3::bucket"},
	}
	accounts := map[string]resource.Account{
		"111": {AccountID: "111", IsIamRoleDeployed: true},
	}
	now := time.Now()

	Aggregate(resources, accounts, now)

	meta := accounts["111"].ResourcesRegionMetadata
	require.NotNil(t, meta)
	assert.Equal(t, 4, meta.Count)
	require.Len(t, meta.Regions, 2)
	assert.Equal(t, "eu-west-1", meta.Regions[0].Name)
	assert.Equal(t, 3, meta.Regions[0].Count)
	assert.Equal(t, "us-east-1", meta.Regions[1].Name)
	require.Len(t, meta.Regions[0].ResourceTypes, 2)
	assert.Equal(t, "aws::ec2::instance", meta.Regions[0].ResourceTypes[0].Type)
	assert.Equal(t, 2, meta.Regions[0].ResourceTypes[0].Count)
	assert.NotNil(t, accounts["111"].LastCrawled)
}

func TestAggregateSkipsLastCrawledWhenRoleNotDeployed(t *testing.T) {
	resources := []resource.Resource{{AccountID: "222", Region: "eu-west-1", Type: "aws::s3::bucket"}}
	accounts := map[string]resource.Account{"222": {AccountID: "222", IsIamRoleDeployed: false}}

	Aggregate(resources, accounts, time.Now())

	assert.Nil(t, accounts["222"].LastCrawled)
	assert.NotNil(t, accounts["222"].ResourcesRegionMetadata)
}

func TestSplitOrganizationAccounts(t *testing.T) {
	discovered := []resource.Account{{AccountID: "111"}, {AccountID: "222"}}
	stored := map[string]resource.Account{"111": {AccountID: "111"}, "333": {AccountID: "333"}}

	toAdd, toUpdate, toDelete := SplitOrganizationAccounts(discovered, stored)

	assert.Equal(t, []resource.Account{{AccountID: "222"}}, toAdd)
	assert.Equal(t, []resource.Account{{AccountID: "111"}}, toUpdate)
	assert.Equal(t, []string{"333"}, toDelete)
}
