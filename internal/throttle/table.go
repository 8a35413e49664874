package throttle

import "time"

// DefaultTable is the throttle table of spec §4.1, inherited from the
// source unchanged. Operation-class names match the ones used by
// internal/provider/aws adapters.
var DefaultTable = map[string]Rate{
	"appregistry.list":           {Limit: 5, Interval: 1000 * time.Millisecond},
	"organizations.list":         {Limit: 1, Interval: 1000 * time.Millisecond},
	"gateway.paginator":          {Limit: 5, Interval: 2000 * time.Millisecond},
	"gateway.total":              {Limit: 10, Interval: 1000 * time.Millisecond},
	"appsync.list":               {Limit: 5, Interval: 1000 * time.Millisecond},
	"configservice.selectAggregate":   {Limit: 8, Interval: 1000 * time.Millisecond},
	"configservice.batchGetAggregate": {Limit: 15, Interval: 1000 * time.Millisecond},
	"ecs.clusterResource":        {Limit: 20, Interval: 1000 * time.Millisecond},
	"eks.describeNodegroup":      {Limit: 5, Interval: 1000 * time.Millisecond},
	"elb.describe":                {Limit: 10, Interval: 1000 * time.Millisecond},
	"mediaconnect.list":          {Limit: 5, Interval: 1000 * time.Millisecond},
	"dynamodb.streams.describe":  {Limit: 8, Interval: 1000 * time.Millisecond},
}

// SearchDomainBatchSize is the mandatory batch size for the search-service
// "describe domains" call.
const SearchDomainBatchSize = 5
