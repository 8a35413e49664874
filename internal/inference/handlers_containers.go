package inference

import (
	"strings"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

func init() {
	HardCodedHandlers["aws::servicecatalogappregistry::application"] = appRegistryApplicationHandler
	HardCodedHandlers["aws::cloudfront::distribution"] = distributionHandler
	HardCodedHandlers["aws::cloudfront::streamingdistribution"] = distributionHandler
	HardCodedHandlers["aws::ecs::task"] = containerTaskHandler
	HardCodedHandlers["aws::ecs::taskdefinition"] = taskDefinitionHandler
}

// appRegistryApplicationHandler finds the synthesized Tag resource for
// awsApplication=<value> and inherits its relationships renamed to
// "contains" — the one place the spec's edge-direction convention is
// deliberately inverted (spec §9 open question 3, preserved as specified).
func appRegistryApplicationHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	tag, _ := stringField(r.Configuration, "ApplicationTag")
	if tag == "" {
		return r
	}
	tagID := "tag:awsApplication=" + tag
	tagRes, ok := ctx.Lookups.ResourceByID(tagID)
	if !ok {
		return r
	}
	for _, rel := range tagRes.Relationships {
		r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: rel.Target, Label: "contains"})
	}
	return r
}

// distributionHandler rewrites bucket edges to the canonical bucket ARN
// and adds associated-with edges for origins that resolve to a known load
// balancer DNS name.
func distributionHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	for i, rel := range r.Relationships {
		if !strings.Contains(rel.Label, "bucket") {
			continue
		}
		if canonical, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{identifier: rel.Target, accountID: r.AccountID, region: r.Region}]; ok {
			r.Relationships[i].Target = canonical
		}
	}
	origins, _ := sliceField(r.Configuration, "Origins")
	for _, o := range origins {
		om, ok := o.(map[string]any)
		if !ok {
			continue
		}
		domain, _ := om["DomainName"].(string)
		if lb, ok := ctx.Lookups.elbDNSToResource[domain]; ok {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: lb.ResourceID, Label: "is associated with"})
		}
	}
	return r
}

// containerTaskHandler adds contained-in cluster, role edges (task role
// falling back to execution role, then the task definition), per-container
// environment-variable inference, volume edges to EFS resources, and
// contained-in subnet/VPC edges taken from each attached network interface.
func containerTaskHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	if cluster, ok := stringField(r.Configuration, "ClusterArn"); ok {
		if _, exists := ctx.Lookups.ResourceByID(cluster); exists {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: cluster, Label: "is contained in"})
		}
	}

	roleArn, hasRole := stringField(r.Configuration, "TaskRoleArn")
	if !hasRole {
		roleArn, hasRole = stringField(r.Configuration, "ExecutionRoleArn")
	}
	if !hasRole {
		if def, ok := stringField(r.Configuration, "TaskDefinitionArn"); ok {
			roleArn = def
			hasRole = true
		}
	}
	if hasRole {
		if _, exists := ctx.Lookups.ResourceByID(roleArn); exists {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: roleArn, Label: "is associated with"})
		}
	}

	containers, _ := sliceField(r.Configuration, "Containers")
	for _, c := range containers {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		env := flattenEnvironment(cm["Environment"])
		r = ctx.Lookups.InferEnvironmentVariableEdges(r, env)
	}

	volumes, _ := sliceField(r.Configuration, "Volumes")
	for _, v := range volumes {
		vm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"FileSystemId", "AccessPointId"} {
			if id, ok := vm[key].(string); ok && id != "" {
				if target, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{identifier: id, accountID: r.AccountID, region: r.Region}]; ok {
					r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: target, Label: "is associated with"})
				}
			}
		}
	}

	attachments, _ := sliceField(r.Configuration, "Attachments")
	for _, a := range attachments {
		am, ok := a.(map[string]any)
		if !ok {
			continue
		}
		eniID, _ := am["NetworkInterfaceId"].(string)
		if eniID == "" {
			continue
		}
		if eniTarget, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{identifier: eniID, accountID: r.AccountID, region: r.Region}]; ok {
			if eni, exists := ctx.Lookups.ResourceByID(eniTarget); exists {
				if eni.SubnetID != "" {
					if subnetTarget, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{identifier: eni.SubnetID, accountID: r.AccountID, region: r.Region}]; ok {
						r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: subnetTarget, Label: "is contained in subnet"})
					}
				}
				if eni.VpcID != "" {
					if vpcTarget, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{identifier: eni.VpcID, accountID: r.AccountID, region: r.Region}]; ok {
						r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: vpcTarget, Label: "is contained in VPC"})
					}
				}
			}
		}
	}
	return r
}

func flattenEnvironment(v any) map[string]string {
	out := make(map[string]string)
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["Name"].(string)
		value, _ := m["Value"].(string)
		if name != "" {
			out[name] = value
		}
	}
	return out
}

// taskDefinitionHandler runs environment-variable inference over every
// container definition declared in the task definition.
func taskDefinitionHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	containers, _ := sliceField(r.Configuration, "ContainerDefinitions")
	for _, c := range containers {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		env := flattenEnvironment(cm["Environment"])
		r = ctx.Lookups.InferEnvironmentVariableEdges(r, env)
	}
	return r
}
