// Package aggregator reads the baseline resource set from the provider's
// cross-account configuration aggregator (spec §4.5), one advanced query at
// a time via configservice:SelectAggregateResourceConfig, filtered by
// shouldDiscover before being handed to the EnrichmentPipeline.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/configservice"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/throttle"
)

// Reader pulls the baseline resource set for every configured
// account/region from the aggregator named in DISCOVERY_CONFIG_AGGREGATOR_NAME.
type Reader struct {
	client         *configservice.Client
	aggregatorName string
	throttler      *throttle.Registry
}

// NewReader builds a Reader against an aggregator-scoped client (built with
// the 5-attempt exponential backoff retryer per spec §4.1).
func NewReader(client *configservice.Client, aggregatorName string, throttler *throttle.Registry) *Reader {
	return &Reader{client: client, aggregatorName: aggregatorName, throttler: throttler}
}

// baselineRow is the JSON shape of one SelectAggregateResourceConfig result
// row for the query Query() issues.
type baselineRow struct {
	ResourceType                string          `json:"resourceType"`
	ResourceId                  string          `json:"resourceId"`
	ResourceName                string          `json:"resourceName"`
	AccountId                   string          `json:"accountId"`
	AwsRegion                   string          `json:"awsRegion"`
	ARN                         string          `json:"ARN"`
	ConfigurationItemStatus     string          `json:"configurationItemStatus"`
	ConfigurationItemCaptureTime string         `json:"configurationItemCaptureTime"`
	Configuration               json.RawMessage `json:"configuration"`
	SupplementaryConfiguration  json.RawMessage `json:"supplementaryConfiguration"`
	Tags                        json.RawMessage `json:"tags"`
	Relationships               []relationshipRow `json:"relationships"`
}

type relationshipRow struct {
	ResourceId   string `json:"resourceId"`
	ResourceName string `json:"resourceName"`
	ResourceType string `json:"resourceType"`
	RelationshipName string `json:"relationshipName"`
}

// Query builds the advanced aggregate query, excluding excludedTypes from
// the WHERE clause (the spec §4.5 template).
func Query(excludedTypes []string) string {
	q := "SELECT *, configuration, configurationItemStatus, relationships, supplementaryConfiguration, tags"
	if len(excludedTypes) > 0 {
		quoted := make([]string, len(excludedTypes))
		for i, t := range excludedTypes {
			quoted[i] = "'" + t + "'"
		}
		q += " WHERE resourceType NOT IN (" + strings.Join(quoted, ", ") + ")"
	}
	return q
}

// ReadBaseline issues Query(excludedTypes) against the aggregator, paginates
// at 8/1000ms, and returns resources for which shouldDiscover holds against
// accounts.
func (r *Reader) ReadBaseline(ctx context.Context, excludedTypes []string, accounts map[string]resource.Account) ([]resource.Resource, error) {
	query := Query(excludedTypes)

	var out []resource.Resource
	var nextToken *string
	for {
		if err := r.throttler.Wait(ctx, "configservice.selectAggregate", "root", "global"); err != nil {
			return nil, err
		}
		resp, err := r.client.SelectAggregateResourceConfig(ctx, &configservice.SelectAggregateResourceConfigInput{
			Expression:              awssdk.String(query),
			ConfigurationAggregatorName: awssdk.String(r.aggregatorName),
			NextToken:               nextToken,
			Limit:                   100,
		})
		if err != nil {
			return nil, fmt.Errorf("aggregator: select aggregate resource config: %w", err)
		}

		for _, raw := range resp.Results {
			var row baselineRow
			if err := json.Unmarshal([]byte(raw), &row); err != nil {
				continue // malformed rows are skipped, not fatal to the crawl
			}
			res, ok := toResource(row)
			if !ok {
				continue
			}
			if shouldDiscover(res, accounts) {
				out = append(out, res)
			}
		}

		if resp.NextToken == nil || awssdk.ToString(resp.NextToken) == "" {
			break
		}
		nextToken = resp.NextToken
	}
	return out, nil
}

// shouldDiscover implements spec §4.5's predicate exactly: status is
// recorded, the account is active, and the region (or "global") belongs to
// that account's crawled region set.
func shouldDiscover(res resource.Resource, accounts map[string]resource.Account) bool {
	if res.ConfigurationItemStatus == "ResourceNotRecorded" {
		return false
	}
	acct, ok := accounts[res.AccountID]
	if !ok {
		return false
	}
	if res.Region == resource.GlobalRegion {
		return true
	}
	for _, region := range acct.Regions {
		if region.Name == res.Region {
			return true
		}
	}
	return false
}

func toResource(row baselineRow) (resource.Resource, bool) {
	id := row.ARN
	if id == "" {
		id = row.ResourceId
	}
	if id == "" {
		return resource.Resource{}, false
	}

	res := resource.Resource{
		ID:                      id,
		Type:                    row.ResourceType,
		Provider:                "aws",
		AccountID:               row.AccountId,
		Region:                  row.AwsRegion,
		ResourceID:              row.ResourceId,
		ResourceName:            row.ResourceName,
		ConfigurationItemStatus: row.ConfigurationItemStatus,
		Tags:                    resource.NewTags(),
	}
	if res.Region == "" {
		res.Region = resource.GlobalRegion
	}
	if t, err := time.Parse(time.RFC3339, row.ConfigurationItemCaptureTime); err == nil {
		res.ConfigurationItemCaptureTime = t
	}
	if len(row.Configuration) > 0 {
		var cfg map[string]any
		if json.Unmarshal(row.Configuration, &cfg) == nil {
			res.Configuration = cfg
		}
	}
	if len(row.SupplementaryConfiguration) > 0 {
		var sup map[string]any
		if json.Unmarshal(row.SupplementaryConfiguration, &sup) == nil {
			res.SupplementaryConfiguration = sup
		}
	}
	if len(row.Tags) > 0 {
		var tagPairs []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if json.Unmarshal(row.Tags, &tagPairs) == nil {
			for _, kv := range tagPairs {
				res.Tags.Set(kv.Key, kv.Value)
			}
		}
	}
	for _, rel := range row.Relationships {
		target := rel.ResourceId
		if target == "" {
			target = resource.UnknownTarget
		}
		res.Relationships = append(res.Relationships, resource.Relationship{
			Source: id, Target: target, Label: rel.RelationshipName,
		})
	}
	return res, true
}
