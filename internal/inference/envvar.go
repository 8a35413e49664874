package inference

import "github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"

// s3AccountPublicAccessBlockType is the resource type the suppression rule
// below checks for (spec §4.7's environment-variable inference rule).
const s3AccountPublicAccessBlockType = "AWS::S3::AccountPublicAccessBlock"

// ResolveEnvVar implements the environment-variable inference rule of spec
// §4.7: an exact ARN match in the working set wins outright; otherwise try
// resourceIdKey, then resourceNameKey, then endpointToIdMap. A match
// resolving to an account-level S3 public-access-block resource whose id
// equals the owning accountId is suppressed — such variables are almost
// always the account id itself, not a real public-access-block reference.
func (m *LookupMaps) ResolveEnvVar(value, accountID, region string) (targetID string, ok bool) {
	if _, exists := m.byID[value]; exists {
		return value, true
	}

	key := envVarKey{identifier: value, accountID: accountID, region: region}
	if id, found := m.envVarResourceIdentifierToID[key]; found {
		return suppressAccountPublicAccessBlockSelfReference(m, id, value, accountID)
	}
	if id, found := m.endpointToID[value]; found {
		return suppressAccountPublicAccessBlockSelfReference(m, id, value, accountID)
	}
	return "", false
}

func suppressAccountPublicAccessBlockSelfReference(m *LookupMaps, id, value, accountID string) (string, bool) {
	target, exists := m.byID[id]
	if exists && target.Type == s3AccountPublicAccessBlockType && target.ResourceID == accountID && value == accountID {
		return "", false
	}
	return id, true
}

// InferEnvironmentVariableEdges scans a flattened set of environment
// variable values belonging to r and appends resolved associated-with
// edges to r's relationship list.
func (m *LookupMaps) InferEnvironmentVariableEdges(r resource.Resource, envVars map[string]string) resource.Resource {
	for _, value := range envVars {
		if value == "" {
			continue
		}
		if targetID, ok := m.ResolveEnvVar(value, r.AccountID, r.Region); ok {
			r.Relationships = append(r.Relationships, resource.Relationship{
				Source: r.ID, Target: targetID, Label: "is associated with",
			})
		}
	}
	return r
}
