// Package config reads the discovery process's configuration from the
// environment. Per spec §6, the process takes no CLI arguments — every
// recognized option is an environment variable.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// CrossAccountMode selects how AccountResolver finds the account list.
type CrossAccountMode string

const (
	ModeOrganizations CrossAccountMode = "organizations"
	ModeSelfManaged   CrossAccountMode = "self-managed"
)

// Config is the discovery process's full configuration.
type Config struct {
	ClusterName           string
	ConfigAggregatorName  string
	CrossAccountDiscovery CrossAccountMode
	CustomUserAgent       string
	GraphStoreURL         string
	GraphStoreSigningKey  string
	GraphStoreIssuer      string
	GraphStoreAudience    string
	SearchIndexURL        string
	SearchIndexSigningKey string
	SearchIndexIssuer     string
	SearchIndexAudience   string
	OrganizationUnitID    string
	Region                string
	RootAccountID         string
	DiscoveryRoleName     string
	VpcID                 string
	LogLevel              string

	// Ambient additions, not named in spec §6 but required to run the
	// process: tracing/metrics toggles and the scheduled-crawl interval.
	OTELEndpoint       string
	OTELInsecure       bool
	OTELTracesEnabled  bool
	OTELSampleRate     float64
	MetricsEnabled     bool
	MetricsPort        int
	ScheduleIntervalMS int // 0 means run once and exit
	SnapshotDir        string
	WALDir             string
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// FromEnv builds a Config from the process environment and applies
// defaults, mirroring the source's recognized option list exactly.
func FromEnv() *Config {
	cfg := &Config{
		ClusterName:           os.Getenv("DISCOVERY_CLUSTER_NAME"),
		ConfigAggregatorName:  os.Getenv("DISCOVERY_CONFIG_AGGREGATOR_NAME"),
		CrossAccountDiscovery: CrossAccountMode(getenv("DISCOVERY_CROSS_ACCOUNT_MODE", string(ModeSelfManaged))),
		CustomUserAgent:       getenv("DISCOVERY_USER_AGENT", "workload-discovery/1.0"),
		GraphStoreURL:         os.Getenv("DISCOVERY_GRAPH_STORE_URL"),
		GraphStoreSigningKey:  os.Getenv("DISCOVERY_GRAPH_STORE_SIGNING_KEY"),
		GraphStoreIssuer:      getenv("DISCOVERY_GRAPH_STORE_ISSUER", "workload-discovery"),
		GraphStoreAudience:    getenv("DISCOVERY_GRAPH_STORE_AUDIENCE", "graph-store"),
		SearchIndexURL:        os.Getenv("DISCOVERY_SEARCH_INDEX_URL"),
		SearchIndexSigningKey: os.Getenv("DISCOVERY_SEARCH_INDEX_SIGNING_KEY"),
		SearchIndexIssuer:     getenv("DISCOVERY_SEARCH_INDEX_ISSUER", "workload-discovery"),
		SearchIndexAudience:   getenv("DISCOVERY_SEARCH_INDEX_AUDIENCE", "search-index"),
		OrganizationUnitID:    os.Getenv("DISCOVERY_ORGANIZATION_UNIT_ID"),
		Region:                os.Getenv("DISCOVERY_REGION"),
		RootAccountID:         os.Getenv("DISCOVERY_ROOT_ACCOUNT_ID"),
		DiscoveryRoleName:     getenv("DISCOVERY_ROLE_NAME", "WorkloadDiscoveryRole"),
		VpcID:                 os.Getenv("DISCOVERY_VPC_ID"),
		LogLevel:              getenv("DISCOVERY_LOG_LEVEL", "info"),

		OTELEndpoint:       getenv("DISCOVERY_OTEL_ENDPOINT", "localhost:4317"),
		OTELInsecure:       getenvBool("DISCOVERY_OTEL_INSECURE", true),
		OTELTracesEnabled:  getenvBool("DISCOVERY_OTEL_TRACES_ENABLED", false),
		OTELSampleRate:     getenvFloat("DISCOVERY_OTEL_SAMPLE_RATE", 0.1),
		MetricsEnabled:     getenvBool("DISCOVERY_METRICS_ENABLED", false),
		MetricsPort:        getenvInt("DISCOVERY_METRICS_PORT", 9090),
		ScheduleIntervalMS: getenvInt("DISCOVERY_SCHEDULE_INTERVAL_MS", 0),
		SnapshotDir:        getenv("DISCOVERY_SNAPSHOT_DIR", "./data/snapshot"),
		WALDir:             getenv("DISCOVERY_WAL_DIR", "./data/wal"),
	}
	return cfg
}

// Validate checks the required subset of fields, mirroring the source's
// required-option checks.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("config: DISCOVERY_REGION is required")
	}
	if c.ConfigAggregatorName == "" {
		return fmt.Errorf("config: DISCOVERY_CONFIG_AGGREGATOR_NAME is required")
	}
	if c.RootAccountID == "" {
		return fmt.Errorf("config: DISCOVERY_ROOT_ACCOUNT_ID is required")
	}
	switch c.CrossAccountDiscovery {
	case ModeOrganizations:
		if c.OrganizationUnitID == "" {
			return fmt.Errorf("config: DISCOVERY_ORGANIZATION_UNIT_ID is required when DISCOVERY_CROSS_ACCOUNT_MODE=organizations")
		}
	case ModeSelfManaged:
		// direct mode reads the stored account list; nothing further required
	default:
		return fmt.Errorf("config: DISCOVERY_CROSS_ACCOUNT_MODE must be %q or %q, got %q", ModeOrganizations, ModeSelfManaged, c.CrossAccountDiscovery)
	}
	if c.GraphStoreURL == "" {
		return fmt.Errorf("config: DISCOVERY_GRAPH_STORE_URL is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("config: DISCOVERY_OTEL_SAMPLE_RATE must be in [0,1], got %v", c.OTELSampleRate)
	}
	return nil
}

// TrustRoleARN derives the trust role ARN for accountID per spec §4.4/§6:
// <discoveryRoleName>-<rootAccountId>.
func (c *Config) TrustRoleARN(accountID string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s-%s", accountID, c.DiscoveryRoleName, c.RootAccountID)
}
