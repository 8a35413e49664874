// Package resource defines the discovery data model: Resource, Relationship,
// RelationshipDescriptor and Account, plus the projection that prepares a
// Resource for persistence.
package resource

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Tags preserves insertion order, matching the source's ordered sequence of
// {key, value} rather than a bare map.
type Tags = orderedmap.OrderedMap[string, string]

// NewTags returns an empty ordered tag set.
func NewTags() *Tags {
	return orderedmap.New[string, string]()
}

// Relationship is a resolved edge. Target "unknown" marks an edge whose
// target could not be located; such edges are dropped before persistence.
type Relationship struct {
	Source string
	Target string
	Label  string
}

// UnknownTarget is the sentinel target for an unresolved edge.
const UnknownTarget = "unknown"

// IsUnknown reports whether the relationship's target is unresolved.
func (r Relationship) IsUnknown() bool {
	return r.Target == UnknownTarget || r.Target == ""
}

// IdentifierType names how RelationshipDescriptor.IdentifierValue should be
// resolved to a resource id.
type IdentifierType string

const (
	IdentifierARN          IdentifierType = "arn"
	IdentifierResourceID   IdentifierType = "resourceId"
	IdentifierResourceName IdentifierType = "resourceName"
	IdentifierEndpoint     IdentifierType = "endpoint"
)

// RelationshipDescriptor is a pre-resolution edge awaiting lookup-map
// resolution by the inferencer.
type RelationshipDescriptor struct {
	RelationshipName string
	ResourceType     string
	IdentifierType   IdentifierType
	IdentifierValue  string
	AccountID        string
	Region           string
	RelNameSuffix    string
}

// Resource is a discovered entity, identified globally by its canonical ARN.
type Resource struct {
	ID       string
	Type     string // structured triple "namespace::service::kind"
	Provider string

	AccountID        string
	Region           string // or the literal "global"
	AvailabilityZone string // may be "not-applicable" or "multiple"
	ResourceID       string
	ResourceName     string

	Configuration              map[string]any
	SupplementaryConfiguration map[string]any
	Tags                       *Tags

	ConfigurationItemCaptureTime time.Time
	ConfigurationItemStatus      string

	Relationships           []Relationship
	RelationshipDescriptors []RelationshipDescriptor

	// Derived fields, set by the RelationshipInferencer / Projection.
	VpcID      string
	SubnetID   string
	Private    *bool
	LoginURL   string
	LoggedInURL string
	Title      string
	MD5Hash    string
}

// GlobalRegion is the literal region value for global (non-regional)
// resources such as IAM roles and provider-owned managed policies.
const GlobalRegion = "global"

// AWSOwnedAccount is the accountId carried by provider-owned resources
// (e.g. AWS-managed IAM policies).
const AWSOwnedAccount = "aws"

// Region is a crawled region within an Account.
type Region struct {
	Name           string
	LastCrawled    *time.Time
	IsConfigEnabled *bool
}

// ResourcesRegionMetadata is the rollup attached to an Account by the
// RegionMetadataAggregator.
type ResourcesRegionMetadata struct {
	Count   int
	Regions []RegionCount
}

// RegionCount is one entry of ResourcesRegionMetadata.Regions.
type RegionCount struct {
	Name          string
	Count         int
	ResourceTypes []TypeCount
}

// TypeCount is one entry of RegionCount.ResourceTypes.
type TypeCount struct {
	Type  string
	Count int
}

// Credentials are ephemeral, scoped to a single crawl, and never persisted.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
}

// Account is a crawled cloud account.
type Account struct {
	AccountID           string
	OrganizationID      string
	Name                string
	IsManagementAccount bool
	IsIamRoleDeployed   bool
	LastCrawled         *time.Time
	Regions             []Region
	ToDelete            bool

	// Credentials never leaves process memory.
	Credentials *Credentials

	ResourcesRegionMetadata *ResourcesRegionMetadata
}

// StripForPersistence returns a copy of the account safe to send to the
// graph store: credentials and toDelete are never persisted.
func (a Account) StripForPersistence() Account {
	out := a
	out.Credentials = nil
	out.ToDelete = false
	return out
}
