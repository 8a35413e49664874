package inference

import (
	"strings"

	"github.com/jmespath/go-jmespath"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// Descriptor is a schema-driven relationship rule (spec §4.7): evaluation
// applies RootPath (default "configuration") to the resource, then Path
// against the result; IdentifierType selects how the raw match resolves to
// a resource id.
type Descriptor struct {
	RelationshipName string
	ResourceType     string
	IdentifierType   resource.IdentifierType
	Path             string
	RootPath         string
}

// SDKFetcher resolves a descriptor's sdkClient step: a call whose
// arguments are themselves expressions over the resource, returning the
// data Path is evaluated against instead of the resource's own
// configuration.
type SDKFetcher func(ctx *EvalContext, r resource.Resource) (any, error)

// EvalContext threads the lookup maps an sdkClient-backed descriptor may
// need to resolve an endpoint-typed result.
type EvalContext struct {
	Lookups *LookupMaps
}

// Registry maps a resource type to its declared descriptors.
type Registry map[string][]Descriptor

// Evaluate runs every descriptor registered for r.Type, appending resolved
// Relationships to r.
func (reg Registry) Evaluate(ctx *EvalContext, r resource.Resource, fetchers map[string]SDKFetcher) resource.Resource {
	for _, d := range reg[r.Type] {
		r = d.evaluate(ctx, r, fetchers[d.RelationshipName])
	}
	return r
}

func (d Descriptor) evaluate(ctx *EvalContext, r resource.Resource, fetch SDKFetcher) resource.Resource {
	root := d.RootPath
	if root == "" {
		root = "configuration"
	}

	var data any = r.Configuration
	if root != "configuration" {
		result, err := jmespath.Search(root, map[string]any{"configuration": r.Configuration, "supplementaryConfiguration": r.SupplementaryConfiguration})
		if err != nil || result == nil {
			return r
		}
		data = result
	}

	if fetch != nil {
		fetched, err := fetch(ctx, r)
		if err != nil || fetched == nil {
			return r
		}
		data = fetched
	}

	result, err := jmespath.Search(d.Path, data)
	if err != nil || result == nil {
		return r
	}

	for _, match := range flatten(result) {
		target, ok := resolveIdentifier(ctx.Lookups, d.IdentifierType, match, r.Type, d.ResourceType, r.AccountID, r.Region)
		if !ok {
			continue
		}
		r.Relationships = append(r.Relationships, resource.Relationship{
			Source: r.ID, Target: target, Label: d.RelationshipName,
		})
	}
	return r
}

// flatten recursively unrolls nested []any results into a flat string
// slice (spec §4.7: "results that are arrays, including nested, are
// flattened").
func flatten(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, flatten(item)...)
		}
		return out
	default:
		return nil
	}
}

// resolveRelationshipDescriptors resolves every RelationshipDescriptor a
// lister attached directly to r (e.g. a Lambda function's execution role,
// an EKS cluster's service role, an AppSync resolver's data source) against
// the working set. Provider-owned managed-policy descriptors are left to
// identityPrincipalHandler, which applies the "attached to" wording only
// that hard-coded handler's own resource type expects; resolving them here
// too would double the edge.
func resolveRelationshipDescriptors(ctx *EvalContext, r resource.Resource) resource.Resource {
	for _, rel := range r.RelationshipDescriptors {
		if rel.IdentifierType == resource.IdentifierARN && strings.HasPrefix(rel.IdentifierValue, "arn:aws:iam::aws:policy/") {
			continue
		}
		target, ok := resolveIdentifier(ctx.Lookups, rel.IdentifierType, rel.IdentifierValue, r.Type, rel.ResourceType, rel.AccountID, rel.Region)
		if !ok {
			continue
		}
		r.Relationships = append(r.Relationships, resource.Relationship{
			Source: r.ID, Target: target, Label: rel.RelationshipName,
		})
	}
	return r
}

func resolveIdentifier(m *LookupMaps, identifierType resource.IdentifierType, value, sourceType, targetType, accountID, region string) (string, bool) {
	switch identifierType {
	case resource.IdentifierARN:
		if _, ok := m.byID[value]; ok {
			return value, true
		}
		return "", false
	case resource.IdentifierEndpoint:
		id, ok := m.endpointToID[value]
		return id, ok
	case resource.IdentifierResourceID, resource.IdentifierResourceName:
		id, ok := m.resourceIdentifierToID[identifierKey{resourceType: targetType, identifier: value, accountID: accountID, region: region}]
		return id, ok
	default:
		return "", false
	}
}
