// Package inference implements the RelationshipInferencer of spec §4.7: it
// builds lookup maps over the enriched working set, then resolves each
// resource's pending relationships through schema-driven descriptors and a
// set of hard-coded handlers. Grounded on the teacher's
// providers/aws/resource_lister.go registry/dispatch pattern and
// scanner/tiered.go's type-keyed handler tables.
package inference

import (
	"strings"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// identifierKey is the composite key of resourceIdentifierToIdMap:
// (resourceType, resourceId|resourceName, accountId, region). Every
// identifier is also indexed under an empty resourceType, for lookups where
// the target's type is not known.
type identifierKey struct {
	resourceType string
	identifier   string
	accountID    string
	region       string
}

// envVarKey omits resourceType, for environment-variable resolution where
// the declaring type is unknown.
type envVarKey struct {
	identifier string
	accountID  string
	region     string
}

// LookupMaps is the full set of lookup indices the inferencer builds once
// per crawl over the enriched working set (spec §4.7).
type LookupMaps struct {
	resourceIdentifierToID    map[identifierKey]string
	envVarResourceIdentifierToID map[envVarKey]string
	endpointToID              map[string]string
	elbDNSToResource          map[string]ELBTarget
	targetGroupToASG          map[string]ASGTarget
	asgResourceNameToID       map[string]string
	eventBusRuleMap           map[string][]string

	byID         map[string]resource.Resource
	resourcesByType map[string][]resource.Resource
}

// ELBTarget is the value of elbDnsToResourceIdMap.
type ELBTarget struct {
	ResourceID   string
	ResourceType string
	Region       string
}

// ASGTarget is the value of targetGroupToAsgMap.
type ASGTarget struct {
	ASGArn      string
	InstanceIDs map[string]bool
}

// BuildLookupMaps indexes the enriched working set once, before
// stage-1/stage-2 inference runs.
func BuildLookupMaps(working []resource.Resource) *LookupMaps {
	m := &LookupMaps{
		resourceIdentifierToID:       make(map[identifierKey]string),
		envVarResourceIdentifierToID: make(map[envVarKey]string),
		endpointToID:                 make(map[string]string),
		elbDNSToResource:             make(map[string]ELBTarget),
		targetGroupToASG:             make(map[string]ASGTarget),
		asgResourceNameToID:          make(map[string]string),
		eventBusRuleMap:              make(map[string][]string),
		byID:                         make(map[string]resource.Resource, len(working)),
		resourcesByType:              make(map[string][]resource.Resource),
	}

	for _, r := range working {
		m.byID[r.ID] = r
		m.resourcesByType[r.Type] = append(m.resourcesByType[r.Type], r)

		for _, ident := range []string{r.ResourceID, r.ResourceName} {
			if ident == "" {
				continue
			}
			m.resourceIdentifierToID[identifierKey{r.Type, ident, r.AccountID, r.Region}] = r.ID
			m.resourceIdentifierToID[identifierKey{"", ident, r.AccountID, r.Region}] = r.ID
			m.envVarResourceIdentifierToID[envVarKey{ident, r.AccountID, r.Region}] = r.ID
		}

		indexEndpoints(m, r)

		switch {
		case strings.Contains(r.Type, "autoscaling"):
			if r.ResourceName != "" {
				m.asgResourceNameToID[r.ResourceName] = r.ID
			}
		case strings.Contains(r.Type, "elasticloadbalancing") && strings.Contains(r.Type, "loadbalancer"):
			if dns, ok := stringField(r.Configuration, "DNSName"); ok {
				m.elbDNSToResource[dns] = ELBTarget{ResourceID: r.ID, ResourceType: r.Type, Region: r.Region}
			}
		case strings.Contains(r.Type, "events") && strings.Contains(r.Type, "rule"):
			if busArn, ok := stringField(r.Configuration, "EventBusArn"); ok {
				m.eventBusRuleMap[busArn] = append(m.eventBusRuleMap[busArn], r.ID)
			}
		}
	}

	m.linkTargetGroupsToASGs(working)
	return m
}

// indexEndpoints populates endpointToID from any configuration key matching
// "endpoint"/"Endpoint", or a ".value"/".address" suffix (spec §4.7).
func indexEndpoints(m *LookupMaps, r resource.Resource) {
	for k, v := range r.Configuration {
		lk := strings.ToLower(k)
		if !strings.Contains(lk, "endpoint") && !strings.HasSuffix(lk, "value") && !strings.HasSuffix(lk, "address") {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			m.endpointToID[s] = r.ID
		}
	}
}

// linkTargetGroupsToASGs resolves the target-group ARN -> {asgArn,
// instanceIds} mapping from every auto-scaling group's target-group
// attachments (populated by the Tier-A auto-scaling-group lister).
func (m *LookupMaps) linkTargetGroupsToASGs(working []resource.Resource) {
	for _, r := range working {
		if !strings.Contains(r.Type, "autoscaling") || !strings.Contains(strings.ToLower(r.Type), "autoscalinggroup") {
			continue
		}
		tgs, _ := sliceField(r.Configuration, "TargetGroupARNs")
		instances := instanceIDSet(r)
		for _, tg := range tgs {
			arn, ok := tg.(string)
			if !ok {
				continue
			}
			m.targetGroupToASG[arn] = ASGTarget{ASGArn: r.ID, InstanceIDs: instances}
		}
	}
}

func instanceIDSet(asg resource.Resource) map[string]bool {
	out := make(map[string]bool)
	instances, _ := sliceField(asg.Configuration, "Instances")
	for _, inst := range instances {
		m, ok := inst.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := m["InstanceId"].(string); ok {
			out[id] = true
		}
	}
	return out
}

// ResourceByID looks up a resource already seen in the working set.
func (m *LookupMaps) ResourceByID(id string) (resource.Resource, bool) {
	r, ok := m.byID[id]
	return r, ok
}

// ResourcesByTypeInScope returns every resource of typ crawled for
// (account, region), for stage-1 batch handlers that need to enumerate a
// scope's resources rather than resolve a single identifier.
func (m *LookupMaps) ResourcesByTypeInScope(typ, account, region string) []resource.Resource {
	var out []resource.Resource
	for _, r := range m.resourcesByType[typ] {
		if r.AccountID == account && r.Region == region {
			out = append(out, r)
		}
	}
	return out
}

func stringField(cfg map[string]any, key string) (string, bool) {
	v, ok := cfg[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func sliceField(cfg map[string]any, key string) ([]any, bool) {
	v, ok := cfg[key]
	if !ok {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}
