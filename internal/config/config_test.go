package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DISCOVERY_REGION", "DISCOVERY_CONFIG_AGGREGATOR_NAME", "DISCOVERY_ROOT_ACCOUNT_ID",
		"DISCOVERY_CROSS_ACCOUNT_MODE", "DISCOVERY_ORGANIZATION_UNIT_ID", "DISCOVERY_GRAPH_STORE_URL",
		"DISCOVERY_OTEL_SAMPLE_RATE",
	} {
		os.Unsetenv(k)
	}
}

func TestValidateRequiresCoreFields(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()
	require.Error(t, cfg.Validate())
}

func TestValidateOrganizationsModeRequiresOU(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCOVERY_REGION", "us-east-1")
	t.Setenv("DISCOVERY_CONFIG_AGGREGATOR_NAME", "agg")
	t.Setenv("DISCOVERY_ROOT_ACCOUNT_ID", "111111111111")
	t.Setenv("DISCOVERY_GRAPH_STORE_URL", "https://graph.example.com")
	t.Setenv("DISCOVERY_CROSS_ACCOUNT_MODE", "organizations")

	cfg := FromEnv()
	require.Error(t, cfg.Validate())

	t.Setenv("DISCOVERY_ORGANIZATION_UNIT_ID", "ou-1234-abcd")
	cfg = FromEnv()
	assert.NoError(t, cfg.Validate())
}

func TestValidateSampleRateBounds(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCOVERY_REGION", "us-east-1")
	t.Setenv("DISCOVERY_CONFIG_AGGREGATOR_NAME", "agg")
	t.Setenv("DISCOVERY_ROOT_ACCOUNT_ID", "111111111111")
	t.Setenv("DISCOVERY_GRAPH_STORE_URL", "https://graph.example.com")
	t.Setenv("DISCOVERY_OTEL_SAMPLE_RATE", "1.5")

	cfg := FromEnv()
	require.Error(t, cfg.Validate())
}

func TestTrustRoleARN(t *testing.T) {
	cfg := &Config{DiscoveryRoleName: "WorkloadDiscoveryRole", RootAccountID: "999999999999"}
	assert.Equal(t, "arn:aws:iam::111111111111:role/WorkloadDiscoveryRole-999999999999", cfg.TrustRoleARN("111111111111"))
}
