// Package regionmeta groups a reconciled crawl's resources by
// (accountId, region, resourceType) into the per-account rollup attached
// to each Account in memory (spec §4.11).
package regionmeta

import (
	"sort"
	"time"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// Aggregate groups resources and attaches the resulting
// ResourcesRegionMetadata to each account in accounts (by AccountID), in
// place. lastCrawled is advanced only for accounts with IsIamRoleDeployed
// true (invariant 8): an account whose trust role never resolved has
// nothing to attribute a crawl timestamp to.
func Aggregate(resources []resource.Resource, accounts map[string]resource.Account, now time.Time) {
	type key struct {
		account, region, typ string
	}
	counts := make(map[key]int)
	for _, r := range resources {
		counts[key{r.AccountID, r.Region, r.Type}]++
	}

	byAccount := make(map[string]map[string]map[string]int)
	for k, c := range counts {
		regions, ok := byAccount[k.account]
		if !ok {
			regions = make(map[string]map[string]int)
			byAccount[k.account] = regions
		}
		types, ok := regions[k.region]
		if !ok {
			types = make(map[string]int)
			regions[k.region] = types
		}
		types[k.typ] += c
	}

	for accountID, acct := range accounts {
		regionCounts, ok := byAccount[accountID]
		if !ok {
			continue
		}
		acct.ResourcesRegionMetadata = buildMetadata(regionCounts)
		if acct.IsIamRoleDeployed {
			t := now
			acct.LastCrawled = &t
		}
		accounts[accountID] = acct
	}
}

// buildMetadata produces the deterministic, sorted {count, regions:
// [{name, count, resourceTypes: [{type, count}]}]} shape: iteration over a Go
// map has no stable order, so every level is sorted before being returned —
// this makes the output byte-stable across runs for the same input.
func buildMetadata(regionCounts map[string]map[string]int) *resource.ResourcesRegionMetadata {
	regionNames := make([]string, 0, len(regionCounts))
	for name := range regionCounts {
		regionNames = append(regionNames, name)
	}
	sort.Strings(regionNames)

	meta := &resource.ResourcesRegionMetadata{}
	for _, name := range regionNames {
		types := regionCounts[name]
		typeNames := make([]string, 0, len(types))
		for typ := range types {
			typeNames = append(typeNames, typ)
		}
		sort.Strings(typeNames)

		regionCount := resource.RegionCount{Name: name}
		for _, typ := range typeNames {
			c := types[typ]
			regionCount.Count += c
			regionCount.ResourceTypes = append(regionCount.ResourceTypes, resource.TypeCount{Type: typ, Count: c})
		}
		meta.Count += regionCount.Count
		meta.Regions = append(meta.Regions, regionCount)
	}
	return meta
}

// SplitOrganizationAccounts buckets the account set discovered this crawl
// against the previously stored set into account add/update/delete lists
// for organization mode.
func SplitOrganizationAccounts(discovered []resource.Account, stored map[string]resource.Account) (toAdd, toUpdate []resource.Account, toDeleteIDs []string) {
	seen := make(map[string]bool, len(discovered))
	for _, acct := range discovered {
		seen[acct.AccountID] = true
		if _, existed := stored[acct.AccountID]; existed {
			toUpdate = append(toUpdate, acct)
		} else {
			toAdd = append(toAdd, acct)
		}
	}
	for id := range stored {
		if !seen[id] {
			toDeleteIDs = append(toDeleteIDs, id)
		}
	}
	sort.Slice(toAdd, func(i, j int) bool { return toAdd[i].AccountID < toAdd[j].AccountID })
	sort.Slice(toUpdate, func(i, j int) bool { return toUpdate[i].AccountID < toUpdate[j].AccountID })
	sort.Strings(toDeleteIDs)
	return toAdd, toUpdate, toDeleteIDs
}
