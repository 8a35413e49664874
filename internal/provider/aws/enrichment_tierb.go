package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/appsync"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/enrichment"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// TierBFirstOrderHandlers returns every Tier-B handler spec §4.6 requires,
// each keyed to the baseline resource type it fans out from.
func TierBFirstOrderHandlers(factory *AdapterFactory) []enrichment.FirstOrderHandler {
	return []enrichment.FirstOrderHandler{
		GatewayRestAPIHandler{Factory: factory},
		AppSyncAPIHandler{Factory: factory},
		TableStreamHandler{Factory: factory},
		ContainerServiceTaskHandler{Factory: factory},
		ClusterNodeGroupHandler{Factory: factory},
		inlinePolicyFanoutHandler{Factory: factory, kind: "role"},
		inlinePolicyFanoutHandler{Factory: factory, kind: "user"},
	}
}

// GatewayRestAPIHandler fans a REST API out to its path items and
// authorizers, neither of which the aggregator baseline surfaces.
type GatewayRestAPIHandler struct{ Factory *AdapterFactory }

func (h GatewayRestAPIHandler) Name() string        { return "aws.tierB.gatewayRestApi" }
func (h GatewayRestAPIHandler) ResourceType() string { return "aws::apigateway::restapi" }

func (h GatewayRestAPIHandler) Handle(ctx context.Context, r resource.Resource) ([]resource.Resource, error) {
	a, err := h.Factory.Get(ctx, r.AccountID, r.Region)
	if err != nil {
		return nil, err
	}
	restAPIID := r.ResourceID

	var out []resource.Resource

	if err := a.wait(ctx, "gateway.paginator"); err != nil {
		return nil, err
	}
	resources, err := a.APIGateway.GetResources(ctx, &apigateway.GetResourcesInput{RestApiId: awssdk.String(restAPIID), Limit: awssdk.Int32(500)})
	if err != nil {
		return nil, fmt.Errorf("apigateway: get resources for %s: %w", restAPIID, err)
	}
	for _, item := range resources.Items {
		id := r.ID + "/resources/" + awssdk.ToString(item.Id)
		out = append(out, resource.Resource{
			ID: id, Type: "aws::apigateway::resource", Provider: "aws",
			AccountID: r.AccountID, Region: r.Region,
			ResourceID: awssdk.ToString(item.Id), ResourceName: awssdk.ToString(item.Path),
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
			Configuration: map[string]any{
				"RestApiId":  restAPIID,
				"ResourceId": awssdk.ToString(item.Id),
				"path":       awssdk.ToString(item.Path),
			},
			Relationships: []resource.Relationship{{Source: id, Target: r.ID, Label: "is contained in"}},
		})
	}

	if err := a.wait(ctx, "gateway.paginator"); err != nil {
		return nil, err
	}
	authorizers, err := a.APIGateway.GetAuthorizers(ctx, &apigateway.GetAuthorizersInput{RestApiId: awssdk.String(restAPIID)})
	if err != nil {
		return nil, fmt.Errorf("apigateway: get authorizers for %s: %w", restAPIID, err)
	}
	for _, auth := range authorizers.Items {
		id := r.ID + "/authorizers/" + awssdk.ToString(auth.Id)
		authRes := resource.Resource{
			ID: id, Type: "aws::apigateway::authorizer", Provider: "aws",
			AccountID: r.AccountID, Region: r.Region,
			ResourceID: awssdk.ToString(auth.Id), ResourceName: awssdk.ToString(auth.Name),
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
			Configuration: map[string]any{"type": string(auth.Type)},
			Relationships: []resource.Relationship{{Source: id, Target: r.ID, Label: "is contained in"}},
		}
		for _, providerARN := range auth.ProviderARNs {
			authRes.Relationships = append(authRes.Relationships, resource.Relationship{Source: id, Target: providerARN, Label: "is associated with"})
		}
		out = append(out, authRes)
	}

	return out, nil
}

// AppSyncAPIHandler fans a GraphQL API out to its data sources and its
// Query/Mutation resolvers.
type AppSyncAPIHandler struct{ Factory *AdapterFactory }

func (h AppSyncAPIHandler) Name() string        { return "aws.tierB.appSyncApi" }
func (h AppSyncAPIHandler) ResourceType() string { return "aws::appsync::graphqlapi" }

func (h AppSyncAPIHandler) Handle(ctx context.Context, r resource.Resource) ([]resource.Resource, error) {
	a, err := h.Factory.Get(ctx, r.AccountID, r.Region)
	if err != nil {
		return nil, err
	}
	apiID := r.ResourceID

	var out []resource.Resource

	if err := a.wait(ctx, "appsync.list"); err != nil {
		return nil, err
	}
	dataSources, err := a.AppSync.ListDataSources(ctx, &appsync.ListDataSourcesInput{ApiId: awssdk.String(apiID)})
	if err != nil {
		return nil, fmt.Errorf("appsync: list data sources for %s: %w", apiID, err)
	}
	for _, ds := range dataSources.DataSources {
		id := awssdk.ToString(ds.DataSourceArn)
		out = append(out, resource.Resource{
			ID: id, Type: "aws::appsync::datasource", Provider: "aws",
			AccountID: r.AccountID, Region: r.Region,
			ResourceID: awssdk.ToString(ds.Name), ResourceName: awssdk.ToString(ds.Name),
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
			Configuration: map[string]any{"type": string(ds.Type)},
			Relationships: []resource.Relationship{{Source: id, Target: r.ID, Label: "is contained in"}},
		})
	}

	for _, typeName := range []string{"Query", "Mutation"} {
		if err := a.wait(ctx, "appsync.list"); err != nil {
			return nil, err
		}
		resolvers, err := a.AppSync.ListResolvers(ctx, &appsync.ListResolversInput{ApiId: awssdk.String(apiID), TypeName: awssdk.String(typeName)})
		if err != nil {
			return nil, fmt.Errorf("appsync: list resolvers for %s/%s: %w", apiID, typeName, err)
		}
		for _, res := range resolvers.Resolvers {
			fieldName := awssdk.ToString(res.FieldName)
			id := r.ID + "/types/" + typeName + "/resolvers/" + fieldName
			resolverRes := resource.Resource{
				ID: id, Type: "aws::appsync::resolver", Provider: "aws",
				AccountID: r.AccountID, Region: r.Region,
				ResourceID: fieldName, ResourceName: typeName + "." + fieldName,
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				Configuration: map[string]any{"typeName": typeName},
				Relationships: []resource.Relationship{{Source: id, Target: r.ID, Label: "is contained in"}},
			}
			if name := awssdk.ToString(res.DataSourceName); name != "" {
				resolverRes.RelationshipDescriptors = append(resolverRes.RelationshipDescriptors, resource.RelationshipDescriptor{
					RelationshipName: "is associated with", ResourceType: "aws::appsync::datasource",
					IdentifierType: resource.IdentifierResourceName, IdentifierValue: name,
					AccountID: r.AccountID, Region: r.Region,
				})
			}
			out = append(out, resolverRes)
		}
	}

	return out, nil
}

// TableStreamHandler fans a DynamoDB table out to its stream, when stream
// change capture is enabled.
type TableStreamHandler struct{ Factory *AdapterFactory }

func (h TableStreamHandler) Name() string        { return "aws.tierB.tableStream" }
func (h TableStreamHandler) ResourceType() string { return "aws::dynamodb::table" }

func (h TableStreamHandler) Handle(ctx context.Context, r resource.Resource) ([]resource.Resource, error) {
	a, err := h.Factory.Get(ctx, r.AccountID, r.Region)
	if err != nil {
		return nil, err
	}
	if err := a.wait(ctx, "dynamodb.streams.describe"); err != nil {
		return nil, err
	}
	desc, err := a.DynamoDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: awssdk.String(r.ResourceID)})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: describe table %s: %w", r.ResourceID, err)
	}
	t := desc.Table
	if t.StreamSpecification == nil || !awssdk.ToBool(t.StreamSpecification.StreamEnabled) || t.LatestStreamArn == nil {
		return nil, nil
	}
	id := awssdk.ToString(t.LatestStreamArn)
	return []resource.Resource{{
		ID: id, Type: "aws::dynamodb::stream", Provider: "aws",
		AccountID: r.AccountID, Region: r.Region,
		ResourceID: id, ResourceName: awssdk.ToString(t.LatestStreamLabel),
		Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
		Configuration: map[string]any{"streamViewType": string(t.StreamSpecification.StreamViewType)},
		Relationships: []resource.Relationship{{Source: id, Target: r.ID, Label: "is associated with"}},
	}}, nil
}

// ContainerServiceTaskHandler fans an ECS cluster out to its services, and
// each service out to its running tasks and the task definitions those
// tasks reference — none of which the aggregator baseline surfaces.
type ContainerServiceTaskHandler struct{ Factory *AdapterFactory }

func (h ContainerServiceTaskHandler) Name() string         { return "aws.tierB.containerServiceTask" }
func (h ContainerServiceTaskHandler) ResourceType() string { return "aws::ecs::cluster" }

func (h ContainerServiceTaskHandler) Handle(ctx context.Context, r resource.Resource) ([]resource.Resource, error) {
	a, err := h.Factory.Get(ctx, r.AccountID, r.Region)
	if err != nil {
		return nil, err
	}
	clusterArn := r.ID

	if err := a.wait(ctx, "ecs.clusterResource"); err != nil {
		return nil, err
	}
	p := ecs.NewListServicesPaginator(a.ECS, &ecs.ListServicesInput{Cluster: awssdk.String(clusterArn)})
	var serviceArns []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ecs: list services for %s: %w", clusterArn, err)
		}
		serviceArns = append(serviceArns, page.ServiceArns...)
	}

	var out []resource.Resource
	seenTaskDefs := make(map[string]bool)

	for _, batch := range chunkStrings(serviceArns, 10) {
		if err := a.wait(ctx, "ecs.clusterResource"); err != nil {
			return nil, err
		}
		desc, err := a.ECS.DescribeServices(ctx, &ecs.DescribeServicesInput{Cluster: awssdk.String(clusterArn), Services: batch})
		if err != nil {
			return nil, fmt.Errorf("ecs: describe services for %s: %w", clusterArn, err)
		}
		for _, svc := range desc.Services {
			svcID := awssdk.ToString(svc.ServiceArn)
			out = append(out, resource.Resource{
				ID: svcID, Type: "aws::ecs::service", Provider: "aws",
				AccountID: r.AccountID, Region: r.Region,
				ResourceID: awssdk.ToString(svc.ServiceName), ResourceName: awssdk.ToString(svc.ServiceName),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				Configuration: map[string]any{
					"launchType":   string(svc.LaunchType),
					"desiredCount": svc.DesiredCount,
					"status":       awssdk.ToString(svc.Status),
				},
				Relationships: []resource.Relationship{{Source: svcID, Target: clusterArn, Label: "is contained in"}},
			})

			tasks, err := h.tasksForService(ctx, a, clusterArn, awssdk.ToString(svc.ServiceName), r.AccountID, r.Region, seenTaskDefs)
			if err != nil {
				return nil, err
			}
			out = append(out, tasks...)
		}
	}

	return out, nil
}

func (h ContainerServiceTaskHandler) tasksForService(ctx context.Context, a *AdapterSet, clusterArn, serviceName, accountID, region string, seenTaskDefs map[string]bool) ([]resource.Resource, error) {
	if err := a.wait(ctx, "ecs.clusterResource"); err != nil {
		return nil, err
	}
	p := ecs.NewListTasksPaginator(a.ECS, &ecs.ListTasksInput{Cluster: awssdk.String(clusterArn), ServiceName: awssdk.String(serviceName)})
	var taskArns []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ecs: list tasks for service %s: %w", serviceName, err)
		}
		taskArns = append(taskArns, page.TaskArns...)
	}
	if len(taskArns) == 0 {
		return nil, nil
	}

	var out []resource.Resource
	for _, batch := range chunkStrings(taskArns, 100) {
		if err := a.wait(ctx, "ecs.clusterResource"); err != nil {
			return nil, err
		}
		desc, err := a.ECS.DescribeTasks(ctx, &ecs.DescribeTasksInput{Cluster: awssdk.String(clusterArn), Tasks: batch})
		if err != nil {
			return nil, fmt.Errorf("ecs: describe tasks for service %s: %w", serviceName, err)
		}
		for _, task := range desc.Tasks {
			out = append(out, taskResource(task, accountID, region))

			taskDefArn := awssdk.ToString(task.TaskDefinitionArn)
			if taskDefArn == "" || seenTaskDefs[taskDefArn] {
				continue
			}
			seenTaskDefs[taskDefArn] = true
			taskDef, err := taskDefinitionResource(ctx, a, taskDefArn, accountID, region)
			if err != nil {
				return nil, err
			}
			if taskDef != nil {
				out = append(out, *taskDef)
			}
		}
	}
	return out, nil
}

func taskResource(task ecstypes.Task, accountID, region string) resource.Resource {
	id := awssdk.ToString(task.TaskArn)
	cfg := map[string]any{
		"ClusterArn":        awssdk.ToString(task.ClusterArn),
		"TaskDefinitionArn": awssdk.ToString(task.TaskDefinitionArn),
		"lastStatus":        awssdk.ToString(task.LastStatus),
	}
	if task.Overrides != nil {
		if v := awssdk.ToString(task.Overrides.TaskRoleArn); v != "" {
			cfg["TaskRoleArn"] = v
		}
		if v := awssdk.ToString(task.Overrides.ExecutionRoleArn); v != "" {
			cfg["ExecutionRoleArn"] = v
		}
	}
	var attachments []any
	for _, att := range task.Attachments {
		for _, d := range att.Details {
			if awssdk.ToString(d.Name) == "networkInterfaceId" {
				attachments = append(attachments, map[string]any{"NetworkInterfaceId": awssdk.ToString(d.Value)})
			}
		}
	}
	cfg["Attachments"] = attachments

	return resource.Resource{
		ID: id, Type: "aws::ecs::task", Provider: "aws",
		AccountID: accountID, Region: region,
		ResourceID: id, ResourceName: id,
		Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
		Configuration: cfg,
	}
}

func taskDefinitionResource(ctx context.Context, a *AdapterSet, arn, accountID, region string) (*resource.Resource, error) {
	if err := a.wait(ctx, "ecs.clusterResource"); err != nil {
		return nil, err
	}
	desc, err := a.ECS.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{TaskDefinition: awssdk.String(arn)})
	if err != nil {
		return nil, fmt.Errorf("ecs: describe task definition %s: %w", arn, err)
	}
	td := desc.TaskDefinition

	var containerDefs []any
	for _, cd := range td.ContainerDefinitions {
		var env []any
		for _, kv := range cd.Environment {
			env = append(env, map[string]any{"Name": awssdk.ToString(kv.Name), "Value": awssdk.ToString(kv.Value)})
		}
		containerDefs = append(containerDefs, map[string]any{
			"Name":        awssdk.ToString(cd.Name),
			"Image":       awssdk.ToString(cd.Image),
			"Environment": env,
		})
	}

	cfg := map[string]any{"ContainerDefinitions": containerDefs}
	if v := awssdk.ToString(td.TaskRoleArn); v != "" {
		cfg["TaskRoleArn"] = v
	}
	if v := awssdk.ToString(td.ExecutionRoleArn); v != "" {
		cfg["ExecutionRoleArn"] = v
	}

	return &resource.Resource{
		ID: arn, Type: "aws::ecs::taskdefinition", Provider: "aws",
		AccountID: accountID, Region: region,
		ResourceID: arn, ResourceName: awssdk.ToString(td.Family),
		Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
		Configuration: cfg,
	}, nil
}

func chunkStrings(in []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(in); i += size {
		end := i + size
		if end > len(in) {
			end = len(in)
		}
		out = append(out, in[i:end])
	}
	return out
}

// ClusterNodeGroupHandler fans an EKS cluster out to its managed node
// groups, linking each to the auto-scaling group it owns.
type ClusterNodeGroupHandler struct{ Factory *AdapterFactory }

func (h ClusterNodeGroupHandler) Name() string        { return "aws.tierB.clusterNodeGroup" }
func (h ClusterNodeGroupHandler) ResourceType() string { return "aws::eks::cluster" }

func (h ClusterNodeGroupHandler) Handle(ctx context.Context, r resource.Resource) ([]resource.Resource, error) {
	a, err := h.Factory.Get(ctx, r.AccountID, r.Region)
	if err != nil {
		return nil, err
	}
	clusterName := r.ResourceID

	if err := a.wait(ctx, "eks.describeNodegroup"); err != nil {
		return nil, err
	}
	p := eks.NewListNodegroupsPaginator(a.EKS, &eks.ListNodegroupsInput{ClusterName: awssdk.String(clusterName)})
	var names []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("eks: list nodegroups for %s: %w", clusterName, err)
		}
		names = append(names, page.Nodegroups...)
	}

	var out []resource.Resource
	for _, name := range names {
		if err := a.wait(ctx, "eks.describeNodegroup"); err != nil {
			return nil, err
		}
		desc, err := a.EKS.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{ClusterName: awssdk.String(clusterName), NodegroupName: awssdk.String(name)})
		if err != nil {
			return nil, fmt.Errorf("eks: describe nodegroup %s/%s: %w", clusterName, name, err)
		}
		ng := desc.Nodegroup
		id := awssdk.ToString(ng.NodegroupArn)
		cfg := map[string]any{"status": string(ng.Status)}
		if ng.Resources != nil && len(ng.Resources.AutoScalingGroups) > 0 {
			cfg["AutoScalingGroupName"] = awssdk.ToString(ng.Resources.AutoScalingGroups[0].Name)
		}
		out = append(out, resource.Resource{
			ID: id, Type: "aws::autoscaling::nodegroup", Provider: "aws",
			AccountID: r.AccountID, Region: r.Region,
			ResourceID: name, ResourceName: name,
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
			Configuration: cfg,
			Relationships: []resource.Relationship{{Source: id, Target: r.ID, Label: "is contained in"}},
		})
	}
	return out, nil
}

// inlinePolicyFanoutHandler fans an IAM role or user out to its inline
// policies, decoding each document so the stage-2 inlinePolicyHandler can
// resolve its statements' Resource ARNs.
type inlinePolicyFanoutHandler struct {
	Factory *AdapterFactory
	kind    string // "role" or "user"
}

func (h inlinePolicyFanoutHandler) Name() string {
	return "aws.tierB.inlinePolicy." + h.kind
}

func (h inlinePolicyFanoutHandler) ResourceType() string {
	if h.kind == "user" {
		return "aws::iam::user"
	}
	return "aws::iam::role"
}

func (h inlinePolicyFanoutHandler) Handle(ctx context.Context, r resource.Resource) ([]resource.Resource, error) {
	a, err := h.Factory.Get(ctx, r.AccountID, r.Region)
	if err != nil {
		return nil, err
	}

	var names []string
	if h.kind == "user" {
		if err := a.wait(ctx, "iam.list"); err != nil {
			return nil, err
		}
		out, err := a.IAM.ListUserPolicies(ctx, &iam.ListUserPoliciesInput{UserName: awssdk.String(r.ResourceName)})
		if err != nil {
			return nil, fmt.Errorf("iam: list user policies for %s: %w", r.ResourceName, err)
		}
		names = out.PolicyNames
	} else {
		if err := a.wait(ctx, "iam.list"); err != nil {
			return nil, err
		}
		out, err := a.IAM.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{RoleName: awssdk.String(r.ResourceName)})
		if err != nil {
			return nil, fmt.Errorf("iam: list role policies for %s: %w", r.ResourceName, err)
		}
		names = out.PolicyNames
	}

	var result []resource.Resource
	for _, name := range names {
		doc, err := h.policyDocument(ctx, a, r.ResourceName, name)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		id := r.ID + ":inline-policy/" + name
		result = append(result, resource.Resource{
			ID: id, Type: "aws::iam::inlinepolicy", Provider: "aws",
			AccountID: r.AccountID, Region: resource.GlobalRegion,
			ResourceID: name, ResourceName: name,
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
			Configuration: doc,
			Relationships: []resource.Relationship{{Source: id, Target: r.ID, Label: "is associated with"}},
		})
	}
	return result, nil
}

func (h inlinePolicyFanoutHandler) policyDocument(ctx context.Context, a *AdapterSet, principalName, policyName string) (map[string]any, error) {
	if err := a.wait(ctx, "iam.list"); err != nil {
		return nil, err
	}
	var encoded string
	if h.kind == "user" {
		out, err := a.IAM.GetUserPolicy(ctx, &iam.GetUserPolicyInput{UserName: awssdk.String(principalName), PolicyName: awssdk.String(policyName)})
		if err != nil {
			return nil, fmt.Errorf("iam: get user policy %s/%s: %w", principalName, policyName, err)
		}
		encoded = awssdk.ToString(out.PolicyDocument)
	} else {
		out, err := a.IAM.GetRolePolicy(ctx, &iam.GetRolePolicyInput{RoleName: awssdk.String(principalName), PolicyName: awssdk.String(policyName)})
		if err != nil {
			return nil, fmt.Errorf("iam: get role policy %s/%s: %w", principalName, policyName, err)
		}
		encoded = awssdk.ToString(out.PolicyDocument)
	}
	return decodePolicyDocument(encoded)
}

func decodePolicyDocument(encoded string) (map[string]any, error) {
	if encoded == "" {
		return nil, nil
	}
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(decoded), &doc); err != nil {
		return nil, nil
	}
	return doc, nil
}
