package inference

import (
	"sort"
	"strings"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// normalizationSet is the set of target types whose relationship name gets
// a type-suffix appended when not already qualified (spec §4.7 post-pass,
// invariant 6). VPC is special-cased to the camelCase form the source
// uses for this one type.
var normalizationSet = map[string]string{
	"instance":          "instance",
	"networkinterface":   "network interface",
	"securitygroup":      "security group",
	"subnet":             "subnet",
	"volume":             "volume",
	"vpc":                "VPC",
	"role":               "role",
}

// normalizeRelationshipNames appends the type suffix to any unqualified
// relationship name whose target type is in normalizationSet.
func normalizeRelationshipNames(working []resource.Resource) []resource.Resource {
	byID := make(map[string]resource.Resource, len(working))
	for _, r := range working {
		byID[r.ID] = r
	}

	for i, r := range working {
		for j, rel := range r.Relationships {
			target, ok := byID[rel.Target]
			if !ok {
				continue
			}
			suffix, known := normalizationSet[typeKindSuffix(target.Type)]
			if !known || strings.Contains(strings.ToLower(rel.Label), strings.ToLower(suffix)) {
				continue
			}
			working[i].Relationships[j].Label = rel.Label + " " + suffix
		}
	}
	return working
}

// typeKindSuffix extracts the last "::"-delimited segment of a structured
// type, lower-cased, for normalizationSet lookups.
func typeKindSuffix(typ string) string {
	parts := strings.Split(typ, "::")
	last := strings.ToLower(parts[len(parts)-1])
	return last
}

// backfillVPCInfo sets vpcId/subnetId/availabilityZone on every
// non-tag/compliance/stack resource from its VPC and subnet edges, and
// synthesizes a missing contained-in-VPC edge when every resolved subnet
// shares a single VPC (spec §4.7 post-pass, invariant-adjacent).
func backfillVPCInfo(working []resource.Resource) []resource.Resource {
	byID := make(map[string]resource.Resource, len(working))
	for _, r := range working {
		byID[r.ID] = r
	}

	for i, r := range working {
		if isExcludedFromVPCBackfill(r.Type) {
			continue
		}

		var vpcEdge string
		var subnetIDs []string
		for _, rel := range r.Relationships {
			if rel.Label == "contains" {
				continue
			}
			target, ok := byID[rel.Target]
			if !ok {
				continue
			}
			switch typeKindSuffix(target.Type) {
			case "vpc":
				vpcEdge = rel.Target
			case "subnet":
				if target.VpcID != "" {
					subnetIDs = append(subnetIDs, rel.Target)
				}
			}
		}

		if vpcEdge != "" {
			working[i].VpcID = vpcEdge
		}
		if len(subnetIDs) > 0 {
			azSet := make(map[string]bool)
			vpcSet := make(map[string]bool)
			for _, sid := range subnetIDs {
				subnet := byID[sid]
				if subnet.AvailabilityZone != "" {
					azSet[subnet.AvailabilityZone] = true
				}
				vpcSet[subnet.VpcID] = true
			}
			working[i].AvailabilityZone = sortedJoin(azSet)
			if len(subnetIDs) == 1 {
				working[i].SubnetID = subnetIDs[0]
			}
			if vpcEdge == "" && len(vpcSet) == 1 {
				for vpcID := range vpcSet {
					working[i].Relationships = append(working[i].Relationships, resource.Relationship{
						Source: r.ID, Target: vpcID, Label: "is contained in VPC",
					})
				}
			}
		}
	}
	return working
}

func isExcludedFromVPCBackfill(typ string) bool {
	switch typeKindSuffix(typ) {
	case "tag", "compliance", "stack":
		return true
	default:
		return false
	}
}

func sortedJoin(set map[string]bool) string {
	items := make([]string, 0, len(set))
	for k := range set {
		items = append(items, k)
	}
	sort.Strings(items)
	return strings.Join(items, ",")
}
