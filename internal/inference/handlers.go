package inference

import (
	"regexp"
	"sort"
	"strings"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// HardCodedHandler is stage 2's per-type fallback, run after any
// schema-driven descriptor for the same resource (spec §4.7).
type HardCodedHandler func(ctx *EvalContext, r resource.Resource) resource.Resource

// HardCodedHandlers is keyed by resource type, enumerated exhaustively per
// spec §4.7 (the list there is "illustrative, not exhaustive" of the
// mechanism, but every named handler must be reproduced).
var HardCodedHandlers = map[string]HardCodedHandler{
	"aws::apigateway::method":        gatewayMethodHandler,
	"aws::ec2::securitygroup":        securityGroupHandler,
	"aws::ec2::subnet":               subnetHandler,
	"aws::ec2::routetable":           routeTableHandler,
	"aws::ec2::networkinterface":     networkInterfaceHandler,
	"aws::autoscaling::nodegroup":    nodeGroupHandler,
	"aws::elasticloadbalancingv2::listener":    elbv2ListenerHandler,
	"aws::elasticloadbalancingv2::targetgroup": elbv2TargetGroupHandler,
	"aws::events::eventbus":          eventBusHandler,
	"aws::iam::role":                 identityPrincipalHandler,
	"aws::iam::user":                 identityPrincipalHandler,
	"aws::iam::inlinepolicy":         inlinePolicyHandler,
	"aws::rds::dbinstance":           databaseInstanceHandler,
}

var gatewayInvocationURIPattern = regexp.MustCompile(`arn:aws:lambda:[^:]+:[^:]+:function:([^/]+)/invocations`)

// gatewayMethodHandler parses the Lambda proxy integration URI, adding an
// associated-with edge to the invoked function.
func gatewayMethodHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	uri, _ := stringField(r.Configuration, "IntegrationURI")
	match := gatewayInvocationURIPattern.FindStringSubmatch(uri)
	if match == nil {
		return r
	}
	for id := range ctx.Lookups.byID {
		if strings.Contains(id, "function:"+match[1]) {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: id, Label: "is associated with"})
			break
		}
	}
	return r
}

// securityGroupHandler collects every group id referenced in ingress/
// egress rules and adds deduped associated-with-security-group edges.
func securityGroupHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	referenced := make(map[string]bool)
	for _, key := range []string{"IpPermissions", "IpPermissionsEgress"} {
		perms, _ := sliceField(r.Configuration, key)
		for _, p := range perms {
			perm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			pairs, _ := perm["UserIdGroupPairs"].([]any)
			for _, pair := range pairs {
				pm, ok := pair.(map[string]any)
				if !ok {
					continue
				}
				if gid, ok := pm["GroupId"].(string); ok {
					referenced[gid] = true
				}
			}
		}
	}
	ids := make([]string, 0, len(referenced))
	for gid := range referenced {
		ids = append(ids, gid)
	}
	sort.Strings(ids)
	for _, gid := range ids {
		if target, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{resourceType: r.Type, identifier: gid, accountID: r.AccountID, region: r.Region}]; ok {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: target, Label: "is associated-with-security-group"})
		}
	}
	return r
}

var natRouteTargetPattern = regexp.MustCompile(`^nat-`)

// subnetHandler sets subnetId to the subnet's resource id and marks private = true
// iff the subnet's route table has no NAT-gateway route.
func subnetHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	r.SubnetID = r.ResourceID
	private := true
	for _, rel := range r.Relationships {
		if !strings.Contains(rel.Label, "contain") {
			continue
		}
		rt, ok := ctx.Lookups.ResourceByID(rel.Target)
		if !ok || !strings.Contains(rt.Type, "routetable") {
			continue
		}
		routes, _ := sliceField(rt.Configuration, "Routes")
		for _, rr := range routes {
			route, ok := rr.(map[string]any)
			if !ok {
				continue
			}
			if gw, ok := route["NatGatewayId"].(string); ok && natRouteTargetPattern.MatchString(gw) {
				private = false
			}
		}
	}
	r.Private = &private
	return r
}

var (
	natGatewayIDPattern  = regexp.MustCompile(`^nat-`)
	vpcEndpointIDPattern = regexp.MustCompile(`^vpce-`)
	internetGatewayIDPattern = regexp.MustCompile(`^igw-`)
)

// routeTableHandler emits contains edges to the gateway referenced by each
// route, classified by id prefix.
func routeTableHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	routes, _ := sliceField(r.Configuration, "Routes")
	for _, rr := range routes {
		route, ok := rr.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"NatGatewayId", "VpcEndpointId", "GatewayId"} {
			gw, ok := route[key].(string)
			if !ok || gw == "" {
				continue
			}
			switch {
			case natGatewayIDPattern.MatchString(gw), vpcEndpointIDPattern.MatchString(gw), internetGatewayIDPattern.MatchString(gw):
				if target, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{identifier: gw, accountID: r.AccountID, region: r.Region}]; ok {
					r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: target, Label: "contains"})
				}
			}
		}
	}
	return r
}

var (
	natDescriptionPattern = regexp.MustCompile(`(?i)nat gateway`)
	albDescriptionPattern = regexp.MustCompile(`(?i)elb app/`)
	vpceDescriptionPattern = regexp.MustCompile(`(?i)vpc endpoint`)
	searchDescriptionPattern = regexp.MustCompile(`(?i)opensearch|elasticsearch`)
	lambdaDescriptionPattern = regexp.MustCompile(`(?i)amazonlambda`)
)

// networkInterfaceHandler pattern-matches the description/interface type
// to identify the owning resource; no match leaves an unknown (dropped)
// target.
func networkInterfaceHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	desc, _ := stringField(r.Configuration, "Description")
	var label string
	switch {
	case natDescriptionPattern.MatchString(desc):
		label = "aws::ec2::natgateway"
	case albDescriptionPattern.MatchString(desc):
		label = "aws::elasticloadbalancingv2::loadbalancer"
	case vpceDescriptionPattern.MatchString(desc):
		label = "aws::ec2::vpcendpoint"
	case searchDescriptionPattern.MatchString(desc):
		label = "aws::opensearchservice::domain"
	case lambdaDescriptionPattern.MatchString(desc):
		label = "aws::lambda::function"
	default:
		r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: resource.UnknownTarget, Label: "is attached to"})
		return r
	}
	for id, owned := range ctx.Lookups.byID {
		if owned.Type == label && owned.AccountID == r.AccountID && owned.Region == r.Region {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: id, Label: "is attached to"})
			break
		}
	}
	return r
}

// nodeGroupHandler adds an associated-with edge to the named auto-scaling
// group, if one is known.
func nodeGroupHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	asgName, _ := stringField(r.Configuration, "AutoScalingGroupName")
	if target, ok := ctx.Lookups.asgResourceNameToID[asgName]; ok {
		r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: target, Label: "is associated with"})
	}
	return r
}

// elbv2ListenerHandler adds edges to the owning load balancer, each
// referenced target group, and any Cognito user pool used for
// authentication.
func elbv2ListenerHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	if lb, ok := stringField(r.Configuration, "LoadBalancerArn"); ok {
		if _, exists := ctx.Lookups.byID[lb]; exists {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: lb, Label: "is associated with"})
		}
	}
	for _, tg := range collectTargetGroupArns(r.Configuration) {
		if _, exists := ctx.Lookups.byID[tg]; exists {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: tg, Label: "is associated with"})
		}
	}
	actions, _ := sliceField(r.Configuration, "DefaultActions")
	for _, a := range actions {
		action, ok := a.(map[string]any)
		if !ok {
			continue
		}
		cognito, _ := action["AuthenticateCognitoConfig"].(map[string]any)
		if pool, ok := cognito["UserPoolArn"].(string); ok {
			if _, exists := ctx.Lookups.byID[pool]; exists {
				r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: pool, Label: "is associated with"})
			}
		}
	}
	return r
}

func collectTargetGroupArns(cfg map[string]any) []string {
	var out []string
	actions, _ := sliceField(cfg, "DefaultActions")
	for _, a := range actions {
		action, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if tg, ok := action["TargetGroupArn"].(string); ok && tg != "" {
			out = append(out, tg)
		}
		fc, ok := action["ForwardConfig"].(map[string]any)
		if !ok {
			continue
		}
		groups, _ := fc["TargetGroups"].([]any)
		for _, g := range groups {
			gm, ok := g.(map[string]any)
			if !ok {
				continue
			}
			if tg, ok := gm["TargetGroupArn"].(string); ok && tg != "" {
				out = append(out, tg)
			}
		}
	}
	return out
}

// elbv2TargetGroupHandler adds a contained-in VPC edge, and an
// associated-with edge per healthy target not owned by a known ASG, or a
// single associated-with-asg edge if the target group is ASG-owned.
func elbv2TargetGroupHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	if vpc, ok := stringField(r.Configuration, "VpcId"); ok {
		if target, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{identifier: vpc, accountID: r.AccountID, region: r.Region}]; ok {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: target, Label: "is contained in VPC"})
		}
	}

	asg, ownedByASG := ctx.Lookups.targetGroupToASG[r.ID]
	if ownedByASG {
		r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: asg.ASGArn, Label: "is associated with"})
		return r
	}

	targets, _ := sliceField(r.SupplementaryConfiguration, "HealthyTargets")
	for _, t := range targets {
		tm, ok := t.(map[string]any)
		if !ok {
			continue
		}
		id, _ := tm["Id"].(string)
		if id == "" || asg.InstanceIDs[id] {
			continue
		}
		if target, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{identifier: id, accountID: r.AccountID, region: r.Region}]; ok {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: target, Label: "is associated with"})
		} else if strings.HasPrefix(id, "arn:") {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: id, Label: "is associated with"})
		}
	}
	return r
}

// eventBusHandler emits an associated-with edge to every rule registered
// against this bus. A bus with no rules yields no edges (resolves the
// open question of spec §9: a missing map key is an empty sequence, never
// a dereference).
func eventBusHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	for _, ruleID := range ctx.Lookups.eventBusRuleMap[r.ID] {
		r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: ruleID, Label: "is associated with"})
	}
	return r
}

// identityPrincipalHandler adds attached-to edges for every managed policy
// owned by the provider partition.
func identityPrincipalHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	for _, rel := range r.RelationshipDescriptors {
		if rel.ResourceType != "aws::iam::policy" {
			continue
		}
		if strings.HasPrefix(rel.IdentifierValue, "arn:aws:iam::aws:policy/") {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: rel.IdentifierValue, Label: "is attached to"})
		}
	}
	return r
}

// inlinePolicyHandler trims a trailing "/*" from each statement's Resource
// entries and adds an attached-to edge if the result is a known ARN.
func inlinePolicyHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	statements, _ := sliceField(r.Configuration, "Statement")
	for _, s := range statements {
		stmt, ok := s.(map[string]any)
		if !ok {
			continue
		}
		for _, arn := range flatten(stmt["Resource"]) {
			trimmed := strings.TrimSuffix(arn, "/*")
			target, exists := ctx.Lookups.ResourceByID(trimmed)
			if !exists {
				continue
			}
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: trimmed, Label: "is attached to " + target.Type})
		}
	}
	return r
}

// databaseInstanceHandler finds the AZ-matching subnet from the instance's
// subnet group and adds contained-in VPC/subnet edges.
func databaseInstanceHandler(ctx *EvalContext, r resource.Resource) resource.Resource {
	subnets, _ := sliceField(r.SupplementaryConfiguration, "SubnetGroupSubnets")
	for _, s := range subnets {
		sm, ok := s.(map[string]any)
		if !ok {
			continue
		}
		az, _ := sm["AvailabilityZone"].(string)
		if az != r.AvailabilityZone {
			continue
		}
		subnetID, _ := sm["SubnetId"].(string)
		if target, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{identifier: subnetID, accountID: r.AccountID, region: r.Region}]; ok {
			r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: target, Label: "is contained in subnet"})
			if subnetRes, ok := ctx.Lookups.ResourceByID(target); ok && subnetRes.VpcID != "" {
				if vpcTarget, ok := ctx.Lookups.resourceIdentifierToID[identifierKey{identifier: subnetRes.VpcID, accountID: r.AccountID, region: r.Region}]; ok {
					r.Relationships = append(r.Relationships, resource.Relationship{Source: r.ID, Target: vpcTarget, Label: "is contained in VPC"})
				}
			}
		}
		break
	}
	return r
}
