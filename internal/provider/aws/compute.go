package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// LambdaLister lists Lambda functions.
type LambdaLister struct{ Adapters *AdapterSet }

func (l LambdaLister) Name() string { return "lambda.function" }

func (l LambdaLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := lambda.NewListFunctionsPaginator(a.Lambda, &lambda.ListFunctionsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*lambda.ListFunctionsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "lambda.list") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *lambda.ListFunctionsOutput) error {
		for _, fn := range page.Functions {
			id := awssdk.ToString(fn.FunctionArn)
			r := resource.Resource{
				ID: id, Type: "aws::lambda::function", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(fn.FunctionName), ResourceName: awssdk.ToString(fn.FunctionName),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: parseAWSTime(awssdk.ToString(fn.LastModified)),
			}
			r.Configuration = map[string]any{
				"runtime": string(fn.Runtime), "memorySize": awssdk.ToInt32(fn.MemorySize),
				"timeout": awssdk.ToInt32(fn.Timeout), "handler": awssdk.ToString(fn.Handler),
			}
			if fn.Environment != nil && len(fn.Environment.Variables) > 0 {
				env := make(map[string]any, len(fn.Environment.Variables))
				for k, v := range fn.Environment.Variables {
					env[k] = v
				}
				r.Configuration["Environment"] = map[string]any{"Variables": env}
			}
			if fn.VpcConfig != nil {
				r.VpcID = awssdk.ToString(fn.VpcConfig.VpcId)
				for _, sn := range fn.VpcConfig.SubnetIds {
					r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: sn, Label: "is contained in"})
				}
				for _, sg := range fn.VpcConfig.SecurityGroupIds {
					r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: sg, Label: "is associated with"})
				}
			}
			if fn.Role != nil {
				r.RelationshipDescriptors = append(r.RelationshipDescriptors, resource.RelationshipDescriptor{
					RelationshipName: "is associated with", ResourceType: "aws::iam::role",
					IdentifierType: resource.IdentifierARN, IdentifierValue: awssdk.ToString(fn.Role),
					AccountID: a.AccountID, Region: resource.GlobalRegion,
				})
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// ECSClusterLister lists ECS clusters (services/tasks are enriched in a
// later tier from each cluster's ARN, per spec §4.9's Tier B fan-out).
type ECSClusterLister struct{ Adapters *AdapterSet }

func (l ECSClusterLister) Name() string { return "ecs.cluster" }

func (l ECSClusterLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ecs.NewListClustersPaginator(a.ECS, &ecs.ListClustersInput{})
	var arns []string
	err := provider.Drain(ctx, provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ecs.ListClustersOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ecs.clusterResource") }), func(page *ecs.ListClustersOutput) error {
		arns = append(arns, page.ClusterArns...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(arns) == 0 {
		return nil, nil
	}

	if err := a.wait(ctx, "ecs.clusterResource"); err != nil {
		return nil, err
	}
	desc, err := a.ECS.DescribeClusters(ctx, &ecs.DescribeClustersInput{Clusters: arns})
	if err != nil {
		return nil, fmt.Errorf("ecs: describe clusters: %w", err)
	}

	var out []resource.Resource
	for _, c := range desc.Clusters {
		id := awssdk.ToString(c.ClusterArn)
		r := resource.Resource{
			ID: id, Type: "aws::ecs::cluster", Provider: "aws",
			AccountID: a.AccountID, Region: a.Region,
			ResourceID: awssdk.ToString(c.ClusterName), ResourceName: awssdk.ToString(c.ClusterName),
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK", ConfigurationItemCaptureTime: time.Now(),
		}
		for _, t := range c.Tags {
			r.Tags.Set(awssdk.ToString(t.Key), awssdk.ToString(t.Value))
		}
		r.Configuration = map[string]any{
			"status": awssdk.ToString(c.Status), "runningTasksCount": c.RunningTasksCount,
			"activeServicesCount": c.ActiveServicesCount,
		}
		out = append(out, r)
	}
	return out, nil
}

// EKSClusterLister lists EKS clusters.
type EKSClusterLister struct{ Adapters *AdapterSet }

func (l EKSClusterLister) Name() string { return "eks.cluster" }

func (l EKSClusterLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := eks.NewListClustersPaginator(a.EKS, &eks.ListClustersInput{})
	var names []string
	err := provider.Drain(ctx, provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*eks.ListClustersOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "eks.describeNodegroup") }), func(page *eks.ListClustersOutput) error {
		names = append(names, page.Clusters...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []resource.Resource
	for _, name := range names {
		if err := a.wait(ctx, "eks.describeNodegroup"); err != nil {
			return nil, err
		}
		desc, err := a.EKS.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: awssdk.String(name)})
		if err != nil {
			return nil, fmt.Errorf("eks: describe cluster %s: %w", name, err)
		}
		c := desc.Cluster
		id := awssdk.ToString(c.Arn)
		r := resource.Resource{
			ID: id, Type: "aws::eks::cluster", Provider: "aws",
			AccountID: a.AccountID, Region: a.Region,
			ResourceID: name, ResourceName: name,
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
			ConfigurationItemCaptureTime: awssdk.ToTime(c.CreatedAt),
		}
		for k, v := range c.Tags {
			r.Tags.Set(k, v)
		}
		r.Configuration = map[string]any{"status": string(c.Status), "version": awssdk.ToString(c.Version)}
		if c.ResourcesVpcConfig != nil {
			r.VpcID = awssdk.ToString(c.ResourcesVpcConfig.VpcId)
			for _, sn := range c.ResourcesVpcConfig.SubnetIds {
				r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: sn, Label: "is contained in"})
			}
		}
		if c.RoleArn != nil {
			r.RelationshipDescriptors = append(r.RelationshipDescriptors, resource.RelationshipDescriptor{
				RelationshipName: "is associated with", ResourceType: "aws::iam::role",
				IdentifierType: resource.IdentifierARN, IdentifierValue: awssdk.ToString(c.RoleArn),
				AccountID: a.AccountID, Region: resource.GlobalRegion,
			})
		}
		out = append(out, r)
	}
	return out, nil
}

// ELBLister lists Application/Network Load Balancers.
type ELBLister struct{ Adapters *AdapterSet }

func (l ELBLister) Name() string { return "elasticloadbalancing.loadBalancer" }

func (l ELBLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := elasticloadbalancingv2.NewDescribeLoadBalancersPaginator(a.ELBv2, &elasticloadbalancingv2.DescribeLoadBalancersInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "elb.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *elasticloadbalancingv2.DescribeLoadBalancersOutput) error {
		for _, lb := range page.LoadBalancers {
			id := awssdk.ToString(lb.LoadBalancerArn)
			r := resource.Resource{
				ID: id, Type: "aws::elasticloadbalancingv2::loadbalancer", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(lb.LoadBalancerName), ResourceName: awssdk.ToString(lb.LoadBalancerName),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(lb.CreatedTime),
			}
			r.Configuration = map[string]any{
				"scheme": string(lb.Scheme), "type": string(lb.Type), "state": string(lb.State.Code),
			}
			r.VpcID = awssdk.ToString(lb.VpcId)
			for _, az := range lb.AvailabilityZones {
				if az.SubnetId != nil {
					r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: awssdk.ToString(az.SubnetId), Label: "is contained in"})
				}
			}
			for _, sg := range lb.SecurityGroups {
				r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: sg, Label: "is associated with"})
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// ELBv2TargetGroupLister lists ELBv2 target groups: the aggregator baseline
// reliably surfaces listeners and load balancers but not target groups
// (spec §4.6 Tier A).
type ELBv2TargetGroupLister struct{ Adapters *AdapterSet }

func (l ELBv2TargetGroupLister) Name() string { return "elasticloadbalancing.targetGroup" }

func (l ELBv2TargetGroupLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := elasticloadbalancingv2.NewDescribeTargetGroupsPaginator(a.ELBv2, &elasticloadbalancingv2.DescribeTargetGroupsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*elasticloadbalancingv2.DescribeTargetGroupsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "elb.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *elasticloadbalancingv2.DescribeTargetGroupsOutput) error {
		for _, tg := range page.TargetGroups {
			id := awssdk.ToString(tg.TargetGroupArn)
			r := resource.Resource{
				ID: id, Type: "aws::elasticloadbalancingv2::targetgroup", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(tg.TargetGroupName), ResourceName: awssdk.ToString(tg.TargetGroupName),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK", ConfigurationItemCaptureTime: time.Now(),
			}
			r.Configuration = map[string]any{
				"protocol":   string(tg.Protocol),
				"port":       awssdk.ToInt32(tg.Port),
				"targetType": string(tg.TargetType),
				"VpcId":      awssdk.ToString(tg.VpcId),
			}
			r.VpcID = awssdk.ToString(tg.VpcId)
			for _, lb := range tg.LoadBalancerArns {
				r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: lb, Label: "is associated with"})
			}

			if err := a.wait(ctx, "elb.describe"); err != nil {
				return err
			}
			health, err := a.ELBv2.DescribeTargetHealth(ctx, &elasticloadbalancingv2.DescribeTargetHealthInput{TargetGroupArn: tg.TargetGroupArn})
			if err != nil {
				return fmt.Errorf("elasticloadbalancingv2: describe target health for %s: %w", id, err)
			}
			var healthy []any
			for _, desc := range health.TargetHealthDescriptions {
				if desc.Target == nil || desc.TargetHealth == nil || string(desc.TargetHealth.State) != "healthy" {
					continue
				}
				healthy = append(healthy, map[string]any{"Id": awssdk.ToString(desc.Target.Id)})
			}
			r.SupplementaryConfiguration = map[string]any{"HealthyTargets": healthy}

			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// AutoScalingGroupLister lists Auto Scaling groups.
type AutoScalingGroupLister struct{ Adapters *AdapterSet }

func (l AutoScalingGroupLister) Name() string { return "autoscaling.autoScalingGroup" }

func (l AutoScalingGroupLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := autoscaling.NewDescribeAutoScalingGroupsPaginator(a.AutoScaling, &autoscaling.DescribeAutoScalingGroupsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *autoscaling.DescribeAutoScalingGroupsOutput) error {
		for _, g := range page.AutoScalingGroups {
			id := awssdk.ToString(g.AutoScalingGroupARN)
			r := resource.Resource{
				ID: id, Type: "aws::autoscaling::autoscalinggroup", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(g.AutoScalingGroupName), ResourceName: awssdk.ToString(g.AutoScalingGroupName),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(g.CreatedTime),
			}
			for _, t := range g.Tags {
				r.Tags.Set(awssdk.ToString(t.Key), awssdk.ToString(t.Value))
			}
			r.Configuration = map[string]any{
				"minSize": g.MinSize, "maxSize": g.MaxSize, "desiredCapacity": g.DesiredCapacity,
			}
			tgs := make([]any, len(g.TargetGroupARNs))
			for i, tg := range g.TargetGroupARNs {
				tgs[i] = tg
			}
			r.Configuration["TargetGroupARNs"] = tgs
			instances := make([]any, 0, len(g.Instances))
			for _, inst := range g.Instances {
				r.Relationships = append(r.Relationships, resource.Relationship{
					Source: id, Target: awssdk.ToString(inst.InstanceId), Label: "contains",
				})
				instances = append(instances, map[string]any{"InstanceId": awssdk.ToString(inst.InstanceId)})
			}
			r.Configuration["Instances"] = instances
			out = append(out, r)
		}
		return nil
	})
	return out, err
}
