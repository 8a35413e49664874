package resource

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Projected is the save-transformed shape of a Resource: the subset of
// properties the graph store can carry, with nested maps stringified.
type Projected struct {
	ID                           string
	Type                         string
	AccountID                    string
	Region                       string
	AvailabilityZone             string
	ResourceID                   string
	ResourceName                 string
	Configuration                string
	SupplementaryConfiguration   string
	Tags                         string
	ConfigurationItemCaptureTime string
	ConfigurationItemStatus      string
	VpcID                        string
	SubnetID                     string
	Private                      *bool
	LoginURL                     string
	LoggedInURL                  string
	Title                        string
	MD5Hash                      string
}

// Project applies the deterministic save transformation of spec §4.9. It is
// idempotent: Project(Project(r)) must equal Project(r) for the fields it
// touches, so callers may re-project a resource already carrying derived
// fields without changing the result.
func Project(r Resource) Projected {
	p := Projected{
		ID:                           r.ID,
		Type:                         r.Type,
		AccountID:                    r.AccountID,
		Region:                       r.Region,
		AvailabilityZone:             r.AvailabilityZone,
		ResourceID:                   r.ResourceID,
		ResourceName:                 r.ResourceName,
		Configuration:                stringify(r.Configuration),
		SupplementaryConfiguration:   stringify(r.SupplementaryConfiguration),
		Tags:                         stringifyTags(r.Tags),
		ConfigurationItemCaptureTime: r.ConfigurationItemCaptureTime.UTC().Format("2006-01-02T15:04:05.000Z"),
		ConfigurationItemStatus:      r.ConfigurationItemStatus,
		VpcID:                        r.VpcID,
		SubnetID:                     r.SubnetID,
		Private:                      r.Private,
	}
	p.LoginURL = deriveLoginURL(r)
	p.LoggedInURL = deriveLoggedInURL(r)
	p.Title = deriveTitle(r)
	if InHashSet(r.Type) {
		p.MD5Hash = md5OfProjected(p)
	}
	return p
}

func stringify(m map[string]any) string {
	if m == nil {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

func stringifyTags(t *Tags) string {
	if t == nil {
		return "[]"
	}
	type kv struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	pairs := make([]kv, 0, t.Len())
	for pair := t.Oldest(); pair != nil; pair = pair.Next() {
		pairs = append(pairs, kv{Key: pair.Key, Value: pair.Value})
	}
	b, err := json.Marshal(pairs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// deriveLoginURL maps a resourceType prefix to a login-url template rule.
// Applied in the order given; the default falls back to a compute/VPC
// console deep link.
func deriveLoginURL(r Resource) string {
	switch {
	case strings.HasPrefix(r.Type, "aws::apigateway::"):
		return fmt.Sprintf("https://console.aws.amazon.com/apigateway/home?region=%s#/apis/%s", r.Region, r.ResourceID)
	case strings.HasPrefix(r.Type, "aws::autoscaling::"):
		return fmt.Sprintf("https://console.aws.amazon.com/ec2autoscaling/home?region=%s#/details/%s", r.Region, r.ResourceName)
	case strings.HasPrefix(r.Type, "aws::lambda::"):
		return fmt.Sprintf("https://console.aws.amazon.com/lambda/home?region=%s#/functions/%s", r.Region, r.ResourceName)
	case strings.HasPrefix(r.Type, "aws::iam::"):
		return fmt.Sprintf("https://console.aws.amazon.com/iam/home#/%s", r.ResourceName)
	case strings.HasPrefix(r.Type, "aws::s3::"):
		return fmt.Sprintf("https://s3.console.aws.amazon.com/s3/buckets/%s", r.ResourceName)
	case r.Region != "" && r.Region != GlobalRegion:
		return fmt.Sprintf("https://console.aws.amazon.com/vpc/home?region=%s#Details:%s", r.Region, r.ResourceID)
	default:
		return ""
	}
}

func deriveLoggedInURL(r Resource) string {
	u := deriveLoginURL(r)
	if u == "" {
		return ""
	}
	return u
}

// deriveTitle prefers a Name tag, falls back to ARN-extraction for
// target-groups/listeners/auto-scaling-groups, else resourceName or
// resourceId.
func deriveTitle(r Resource) string {
	if r.Tags != nil {
		if name, ok := r.Tags.Get("Name"); ok && name != "" {
			return name
		}
	}
	switch r.Type {
	case "aws::elasticloadbalancingv2::targetgroup", "aws::elasticloadbalancingv2::listener", "aws::autoscaling::autoscalinggroup":
		if name := extractFromARN(r.ID); name != "" {
			return name
		}
	}
	if r.ResourceName != "" {
		return r.ResourceName
	}
	return r.ResourceID
}

// extractFromARN pulls a human name out of the resource portion of an ARN,
// e.g. "arn:aws:...:targetgroup/my-tg/6d0ecf831eec9f09" -> "my-tg".
func extractFromARN(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) == 0 {
		return ""
	}
	resourcePart := parts[len(parts)-1]
	segs := strings.Split(resourcePart, "/")
	if len(segs) >= 2 {
		return segs[1]
	}
	return ""
}

func md5OfProjected(p Projected) string {
	keys := []string{
		p.ID, p.Type, p.AccountID, p.Region, p.AvailabilityZone,
		p.ResourceID, p.ResourceName, p.Configuration,
		p.SupplementaryConfiguration, p.Tags,
		p.ConfigurationItemCaptureTime, p.ConfigurationItemStatus,
		p.VpcID, p.SubnetID,
	}
	h := md5.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
