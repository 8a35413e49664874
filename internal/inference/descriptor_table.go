package inference

import "github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"

// BaseDescriptors returns the schema-driven relationship rules evaluated in
// stage 2 (spec §4.7) for resource types whose lister didn't already wire
// the edge directly at discovery time. Each entry is deliberately narrow:
// one Configuration field, one target type, no sdkClient step, since every
// case here resolves against the working set already built by stage 1.
func BaseDescriptors() Registry {
	return Registry{
		"aws::ec2::volume": {
			{RelationshipName: "is associated with", ResourceType: "aws::kms::key", IdentifierType: resource.IdentifierARN, Path: "kmsKeyId"},
		},
		"aws::ec2::snapshot": {
			{RelationshipName: "is associated with", ResourceType: "aws::kms::key", IdentifierType: resource.IdentifierARN, Path: "kmsKeyId"},
		},
		"aws::ecs::task": {
			{RelationshipName: "is associated with", ResourceType: "aws::iam::role", IdentifierType: resource.IdentifierARN, Path: "TaskRoleArn"},
			{RelationshipName: "is associated with", ResourceType: "aws::iam::role", IdentifierType: resource.IdentifierARN, Path: "ExecutionRoleArn"},
		},
		"aws::ecs::taskdefinition": {
			{RelationshipName: "is associated with", ResourceType: "aws::iam::role", IdentifierType: resource.IdentifierARN, Path: "TaskRoleArn"},
			{RelationshipName: "is associated with", ResourceType: "aws::iam::role", IdentifierType: resource.IdentifierARN, Path: "ExecutionRoleArn"},
		},
		"aws::opensearchservice::domain": {
			{RelationshipName: "is associated with", ResourceType: "aws::ec2::securitygroup", IdentifierType: resource.IdentifierResourceID, Path: "SecurityGroupIds"},
		},
	}
}
