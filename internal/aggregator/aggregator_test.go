package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

func activeAccounts() map[string]resource.Account {
	return map[string]resource.Account{
		"111111111111": {AccountID: "111111111111", Regions: []resource.Region{{Name: "eu-west-1"}}},
	}
}

func TestShouldDiscoverRejectsUnrecordedStatus(t *testing.T) {
	res := resource.Resource{AccountID: "111111111111", Region: "eu-west-1", ConfigurationItemStatus: "ResourceNotRecorded"}
	assert.False(t, shouldDiscover(res, activeAccounts()))
}

func TestShouldDiscoverRejectsUnknownAccount(t *testing.T) {
	res := resource.Resource{AccountID: "222222222222", Region: "eu-west-1", ConfigurationItemStatus: "OK"}
	assert.False(t, shouldDiscover(res, activeAccounts()))
}

func TestShouldDiscoverAcceptsGlobalRegardlessOfRegionList(t *testing.T) {
	res := resource.Resource{AccountID: "111111111111", Region: resource.GlobalRegion, ConfigurationItemStatus: "OK"}
	assert.True(t, shouldDiscover(res, activeAccounts()))
}

func TestShouldDiscoverRejectsInactiveRegion(t *testing.T) {
	res := resource.Resource{AccountID: "111111111111", Region: "us-east-2", ConfigurationItemStatus: "OK"}
	assert.False(t, shouldDiscover(res, activeAccounts()))
}

func TestQueryExcludesTypes(t *testing.T) {
	q := Query([]string{"AWS::EC2::Instance"})
	assert.Contains(t, q, "NOT IN ('AWS::EC2::Instance')")
}
