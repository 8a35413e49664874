// Package delta computes the add/update/delete sets between a crawl's
// working resource set and the previously persisted snapshot (spec §4.8).
package delta

import (
	"sort"
	"strings"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// Edge is a resolved, persistable relationship tuple.
type Edge struct {
	Source string
	Target string
	Label  string
}

func edgeKey(e Edge) string { return e.Source + "|" + e.Label + "|" + e.Target }

// Result is the full output of one delta computation.
type Result struct {
	LinksToAdd    []Edge
	LinksToDelete []Edge

	ResourcesToStore  []resource.Projected
	ResourceIDsToDelete []string
	ResourcesToUpdate []Update
}

// Update carries only the property keys whose values changed.
type Update struct {
	ID      string
	Changed map[string]any
}

// Compute runs the full node+edge diff described in spec §4.8.
func Compute(working []resource.Resource, dbResources map[string]resource.Projected, dbEdges map[string]Edge) Result {
	configEdges := projectEdges(working)

	var result Result
	for key, e := range configEdges {
		if _, ok := dbEdges[key]; !ok {
			result.LinksToAdd = append(result.LinksToAdd, e)
		}
	}
	for key, e := range dbEdges {
		if _, ok := configEdges[key]; !ok {
			result.LinksToDelete = append(result.LinksToDelete, e)
		}
	}
	sortEdges(result.LinksToAdd)
	sortEdges(result.LinksToDelete)

	working = dedupeByID(working)
	workingByID := make(map[string]resource.Resource, len(working))
	for _, r := range working {
		workingByID[r.ID] = r
	}

	for id, r := range workingByID {
		if _, exists := dbResources[id]; !exists {
			result.ResourcesToStore = append(result.ResourcesToStore, resource.Project(r))
		}
	}
	for id := range dbResources {
		if _, exists := workingByID[id]; !exists {
			result.ResourceIDsToDelete = append(result.ResourceIDsToDelete, id)
		}
	}
	for id, r := range workingByID {
		stored, exists := dbResources[id]
		if !exists {
			continue
		}
		projected := resource.Project(r)
		if shouldUpdate(projected, stored) {
			result.ResourcesToUpdate = append(result.ResourcesToUpdate, Update{
				ID: id, Changed: diffProperties(projected, stored),
			})
		}
	}

	sort.Slice(result.ResourcesToStore, func(i, j int) bool { return result.ResourcesToStore[i].ID < result.ResourcesToStore[j].ID })
	sort.Strings(result.ResourceIDsToDelete)
	sort.Slice(result.ResourcesToUpdate, func(i, j int) bool { return result.ResourcesToUpdate[i].ID < result.ResourcesToUpdate[j].ID })

	return result
}

// projectEdges resolves every resource's relationships to edges, dropping
// any edge to or from the unknown sentinel (spec §4.8 step 1, invariant 2).
func projectEdges(resources []resource.Resource) map[string]Edge {
	out := make(map[string]Edge)
	for _, r := range resources {
		for _, rel := range r.Relationships {
			if rel.IsUnknown() || rel.Source == resource.UnknownTarget || rel.Source == "" {
				continue
			}
			e := Edge{Source: rel.Source, Target: rel.Target, Label: rel.Label}
			out[edgeKey(e)] = e
		}
	}
	return out
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool { return edgeKey(edges[i]) < edgeKey(edges[j]) })
}

func dedupeByID(resources []resource.Resource) []resource.Resource {
	seen := make(map[string]bool, len(resources))
	out := make([]resource.Resource, 0, len(resources))
	for _, r := range resources {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// shouldUpdate implements the update-decision function of spec §4.8 step 3.
func shouldUpdate(projected resource.Projected, stored resource.Projected) bool {
	switch {
	case resource.InHashSet(projected.Type):
		return projected.MD5Hash != stored.MD5Hash
	case stored.SupplementaryConfiguration == "" && projected.SupplementaryConfiguration != "":
		return true
	case isTagType(projected.Type):
		return false
	default:
		return projected.ConfigurationItemCaptureTime != stored.ConfigurationItemCaptureTime
	}
}

func isTagType(typ string) bool {
	return strings.EqualFold(typ[strings.LastIndex(typ, ":")+1:], "tag")
}

// diffProperties returns only the fields whose values differ, matching
// spec §4.8's "update payload contains only changed keys".
func diffProperties(projected, stored resource.Projected) map[string]any {
	changed := make(map[string]any)
	if projected.Configuration != stored.Configuration {
		changed["configuration"] = projected.Configuration
	}
	if projected.SupplementaryConfiguration != stored.SupplementaryConfiguration {
		changed["supplementaryConfiguration"] = projected.SupplementaryConfiguration
	}
	if projected.Tags != stored.Tags {
		changed["tags"] = projected.Tags
	}
	if projected.ConfigurationItemCaptureTime != stored.ConfigurationItemCaptureTime {
		changed["configurationItemCaptureTime"] = projected.ConfigurationItemCaptureTime
	}
	if projected.Title != stored.Title {
		changed["title"] = projected.Title
	}
	return changed
}
