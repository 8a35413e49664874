package graphstore

import (
	"context"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/delta"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/errkind"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

const (
	defaultResourcePageSize     = 1000
	defaultRelationshipPageSize = 2500
	minPageSize                 = 1
)

type readResourcesData struct {
	ReadResources struct {
		Resources          []storedResource `json:"resources"`
		LastEvaluatedStart *string          `json:"lastEvaluatedStart"`
	} `json:"readResources"`
}

type storedResource struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	MD5Hash    string         `json:"md5Hash"`
	Properties resource.Projected `json:"properties"`
}

type readRelationshipsData struct {
	ReadRelationships struct {
		Relationships      []storedRelationship `json:"relationships"`
		LastEvaluatedStart *string              `json:"lastEvaluatedStart"`
	} `json:"readRelationships"`
}

type storedRelationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// ReadAllResources drains the store's resource pages into a map keyed by
// id, adapting page size on payload-too-large signals (spec §4.2's
// "paginator factory"): halve and replay on failure, reset to default on
// success.
func (c *Client) ReadAllResources(ctx context.Context) (map[string]resource.Projected, error) {
	out := make(map[string]resource.Projected)
	pageSize := defaultResourcePageSize
	var start *string

	for {
		var data readResourcesData
		vars := map[string]any{"pagination": map[string]any{"start": start, "pageSize": pageSize}}
		err := c.execute(ctx, readResourcesQuery, vars, &data)
		if errkind.Is(err, errkind.PayloadTooLarge) {
			if pageSize <= minPageSize {
				return nil, err
			}
			pageSize /= 2
			continue
		}
		if errkind.Is(err, errkind.ConnectionClosedPrematurely) {
			err = c.execute(ctx, readResourcesQuery, vars, &data)
		}
		if err != nil {
			return nil, err
		}

		for _, r := range data.ReadResources.Resources {
			out[r.ID] = r.Properties
		}
		pageSize = defaultResourcePageSize

		if data.ReadResources.LastEvaluatedStart == nil {
			break
		}
		start = data.ReadResources.LastEvaluatedStart
	}
	return out, nil
}

// ReadAllRelationships mirrors ReadAllResources for the relationship edge
// set, at the larger default page size spec §4.2 specifies.
func (c *Client) ReadAllRelationships(ctx context.Context) (map[string]storedRelationship, error) {
	out := make(map[string]storedRelationship)
	pageSize := defaultRelationshipPageSize
	var start *string

	for {
		var data readRelationshipsData
		vars := map[string]any{"pagination": map[string]any{"start": start, "pageSize": pageSize}}
		err := c.execute(ctx, readRelationshipsQuery, vars, &data)
		if errkind.Is(err, errkind.PayloadTooLarge) {
			if pageSize <= minPageSize {
				return nil, err
			}
			pageSize /= 2
			continue
		}
		if errkind.Is(err, errkind.ConnectionClosedPrematurely) {
			err = c.execute(ctx, readRelationshipsQuery, vars, &data)
		}
		if err != nil {
			return nil, err
		}

		for _, rel := range data.ReadRelationships.Relationships {
			out[rel.Source+"|"+rel.Label+"|"+rel.Target] = rel
		}
		pageSize = defaultRelationshipPageSize

		if data.ReadRelationships.LastEvaluatedStart == nil {
			break
		}
		start = data.ReadRelationships.LastEvaluatedStart
	}
	return out, nil
}

// ReadAllRelationshipEdges is ReadAllRelationships adapted to the
// delta.Edge shape the DeltaEngine's node+edge diff compares against.
func (c *Client) ReadAllRelationshipEdges(ctx context.Context) (map[string]delta.Edge, error) {
	stored, err := c.ReadAllRelationships(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]delta.Edge, len(stored))
	for key, rel := range stored {
		out[key] = delta.Edge{Source: rel.Source, Target: rel.Target, Label: rel.Label}
	}
	return out, nil
}
