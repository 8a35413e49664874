package enrichment

import (
	"sort"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// TagResourceType is the synthesized Tag resource's type.
const TagResourceType = "aws::tag"

// synthesizeTags derives one Tag resource per distinct key=value pair in
// the working set, each carrying an associated-with edge from the tag to
// every resource that carries it (spec §4.6 Tier D). Tag resources are
// global.
func synthesizeTags(working []resource.Resource) []resource.Resource {
	type tagKey struct{ key, value string }
	carriers := make(map[tagKey][]string)
	order := make([]tagKey, 0)

	for _, r := range working {
		if r.Tags == nil {
			continue
		}
		for pair := r.Tags.Oldest(); pair != nil; pair = pair.Next() {
			k := tagKey{key: pair.Key, value: pair.Value}
			if _, seen := carriers[k]; !seen {
				order = append(order, k)
			}
			carriers[k] = append(carriers[k], r.ID)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].key != order[j].key {
			return order[i].key < order[j].key
		}
		return order[i].value < order[j].value
	})

	tags := make([]resource.Resource, 0, len(order))
	for _, k := range order {
		id := "tag:" + k.key + "=" + k.value
		ids := carriers[k]
		sort.Strings(ids)

		tag := resource.Resource{
			ID:           id,
			Type:         TagResourceType,
			Provider:     "aws",
			Region:       resource.GlobalRegion,
			AccountID:    resource.AWSOwnedAccount,
			ResourceName: k.key + "=" + k.value,
			Title:        k.key + "=" + k.value,
		}
		for _, targetID := range ids {
			tag.Relationships = append(tag.Relationships, resource.Relationship{
				Source: id, Target: targetID, Label: "is associated with",
			})
		}
		tags = append(tags, tag)
	}
	return tags
}
