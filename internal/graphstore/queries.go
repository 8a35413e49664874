package graphstore

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/delta"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// mustValidate parses doc with gqlparser at init time, so a malformed
// document panics when the package is initialised rather than surfacing as
// an opaque store error on the first crawl that exercises it.
func mustValidate(doc string) string {
	if _, err := parser.ParseQuery(&ast.Source{Input: doc}); err != nil {
		panic(fmt.Sprintf("graphstore: invalid document: %v", err))
	}
	return doc
}

var storeResourcesMutation = mustValidate(`mutation StoreResources($input: [StoreResourceInput!]!) {
  storeResources(input: $input) { id }
}`)

var updateResourcesMutation = mustValidate(`mutation UpdateResources($input: [UpdateResourceInput!]!) {
  updateResources(input: $input) { id }
}`)

var deleteResourcesMutation = mustValidate(`mutation DeleteResources($ids: [String!]!) {
  deleteResources(ids: $ids) { id }
}`)

var storeRelationshipsMutation = mustValidate(`mutation StoreRelationships($input: [StoreRelationshipInput!]!) {
  storeRelationships(input: $input) { source target }
}`)

var deleteRelationshipsMutation = mustValidate(`mutation DeleteRelationships($input: [DeleteRelationshipInput!]!) {
  deleteRelationships(input: $input) { source target }
}`)

var readResourcesQuery = mustValidate(`query ReadResources($pagination: Pagination!) {
  readResources(pagination: $pagination) {
    resources { id label md5Hash properties }
    lastEvaluatedStart
  }
}`)

var readRelationshipsQuery = mustValidate(`query ReadRelationships($pagination: Pagination!) {
  readRelationships(pagination: $pagination) {
    relationships { source target label }
    lastEvaluatedStart
  }
}`)

func projectedToInput(p resource.Projected) map[string]any {
	return map[string]any{
		"id":                           p.ID,
		"label":                        labelFromType(p.Type),
		"accountId":                    p.AccountID,
		"region":                       p.Region,
		"availabilityZone":             p.AvailabilityZone,
		"resourceId":                   p.ResourceID,
		"resourceName":                 p.ResourceName,
		"configuration":                p.Configuration,
		"supplementaryConfiguration":   p.SupplementaryConfiguration,
		"tags":                         p.Tags,
		"configurationItemCaptureTime": p.ConfigurationItemCaptureTime,
		"configurationItemStatus":      p.ConfigurationItemStatus,
		"vpcId":                        p.VpcID,
		"subnetId":                     p.SubnetID,
		"loginURL":                     p.LoginURL,
		"loggedInURL":                  p.LoggedInURL,
		"title":                        p.Title,
		"md5Hash":                      p.MD5Hash,
	}
}

// labelFromType converts a structured "namespace::service::kind" type into
// the graph store's node-label convention (spec §4.8's createStore:
// `label = type with "::" -> "_"`).
func labelFromType(typ string) string {
	return strings.ReplaceAll(typ, "::", "_")
}

func updateToInput(u delta.Update) map[string]any {
	input := map[string]any{"id": u.ID}
	for k, v := range u.Changed {
		input[k] = v
	}
	return input
}

func edgeToInput(e delta.Edge) map[string]any {
	return map[string]any{"source": e.Source, "target": e.Target, "label": e.Label}
}
