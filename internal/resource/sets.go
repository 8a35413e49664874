package resource

// HashSet is the fixed set of resource types whose change detection uses
// MD5Hash rather than configurationItemCaptureTime.
var HashSet = map[string]bool{
	"aws::apigateway::method":               true,
	"aws::apigateway::resource":             true,
	"aws::dynamodb::stream":                 true,
	"aws::ecs::task":                        true,
	"aws::elasticloadbalancingv2::listener":    true,
	"aws::autoscaling::nodegroup":           true,
	"aws::elasticloadbalancingv2::targetgroup": true,
	"aws::iam::awsmanagedpolicy":            true,
	"aws::ec2::spotinstancerequest":         true,
	"aws::ec2::spotfleetrequest":            true,
	"aws::iam::inlinepolicy":                true,
	"aws::cognito::userpool":                true,
	"aws::opensearchservice::domain":        true,
}

// InHashSet reports whether a resource type uses MD5Hash change detection.
func InHashSet(resourceType string) bool {
	return HashSet[resourceType]
}

// NormalizationSet is the set of target types whose inbound relationship
// names are qualified with a type suffix during post-pass normalization.
var NormalizationSet = map[string]string{
	"aws::ec2::instance":         "instance",
	"aws::ec2::networkinterface": "network interface",
	"aws::ec2::securitygroup":    "security group",
	"aws::ec2::subnet":           "subnet",
	"aws::ec2::volume":           "volume",
	"aws::ec2::vpc":              "VPC",
	"aws::iam::role":             "role",
}

// NormalizationSuffix returns the suffix to append for a target type in the
// normalization set, and whether the type is a member.
func NormalizationSuffix(targetType string) (string, bool) {
	suffix, ok := NormalizationSet[targetType]
	return suffix, ok
}
