package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/inference"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// Stage1Handlers returns every batched stage-1 inference handler spec §4.7
// requires: event source mappings, function environment variables, SNS
// subscriptions, and transit-gateway VPC attachments.
func Stage1Handlers(factory *AdapterFactory) []inference.Stage1Handler {
	return []inference.Stage1Handler{
		eventSourcesHandler{Factory: factory},
		functionEnvVarHandler{},
		snsSubscriptionsHandler{Factory: factory},
		transitGatewayVpcAttachmentsHandler{Factory: factory},
	}
}

// eventSourcesHandler links every Lambda function to the stream/queue it
// polls via an event source mapping.
type eventSourcesHandler struct{ Factory *AdapterFactory }

func (h eventSourcesHandler) Name() string { return "aws.stage1.eventSources" }

func (h eventSourcesHandler) Handle(ctx context.Context, lookups *inference.LookupMaps, account, region string) ([]resource.Relationship, error) {
	functions := lookups.ResourcesByTypeInScope("aws::lambda::function", account, region)
	if len(functions) == 0 {
		return nil, nil
	}
	a, err := h.Factory.Get(ctx, account, region)
	if err != nil {
		return nil, err
	}

	var edges []resource.Relationship
	for _, fn := range functions {
		if err := a.wait(ctx, "lambda.list"); err != nil {
			return nil, err
		}
		p := lambda.NewListEventSourceMappingsPaginator(a.Lambda, &lambda.ListEventSourceMappingsInput{FunctionName: awssdk.String(fn.ID)})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("lambda: list event source mappings for %s: %w", fn.ResourceName, err)
			}
			for _, m := range page.EventSourceMappings {
				src := awssdk.ToString(m.EventSourceArn)
				if src == "" {
					continue
				}
				edges = append(edges, resource.Relationship{Source: fn.ID, Target: src, Label: "is associated with"})
			}
		}
	}
	return edges, nil
}

// functionEnvVarHandler resolves every Lambda function's environment
// variables against the working set, reusing the same identifier
// resolution environment variables anywhere else in the pipeline use.
type functionEnvVarHandler struct{}

func (h functionEnvVarHandler) Name() string { return "aws.stage1.functions" }

func (h functionEnvVarHandler) Handle(ctx context.Context, lookups *inference.LookupMaps, account, region string) ([]resource.Relationship, error) {
	functions := lookups.ResourcesByTypeInScope("aws::lambda::function", account, region)
	if len(functions) == 0 {
		return nil, nil
	}

	var edges []resource.Relationship
	for _, fn := range functions {
		env, ok := fn.Configuration["Environment"].(map[string]any)
		if !ok {
			continue
		}
		vars, ok := env["Variables"].(map[string]any)
		if !ok {
			continue
		}
		for _, v := range vars {
			value, ok := v.(string)
			if !ok || value == "" {
				continue
			}
			if targetID, ok := lookups.ResolveEnvVar(value, fn.AccountID, fn.Region); ok {
				edges = append(edges, resource.Relationship{Source: fn.ID, Target: targetID, Label: "is associated with"})
			}
		}
	}
	return edges, nil
}

// snsSubscriptionsHandler links every SNS topic to the endpoint (queue,
// function, etc.) each of its subscriptions delivers to.
type snsSubscriptionsHandler struct{ Factory *AdapterFactory }

func (h snsSubscriptionsHandler) Name() string { return "aws.stage1.snsSubscriptions" }

func (h snsSubscriptionsHandler) Handle(ctx context.Context, lookups *inference.LookupMaps, account, region string) ([]resource.Relationship, error) {
	topics := lookups.ResourcesByTypeInScope("aws::sns::topic", account, region)
	if len(topics) == 0 {
		return nil, nil
	}
	a, err := h.Factory.Get(ctx, account, region)
	if err != nil {
		return nil, err
	}

	var edges []resource.Relationship
	for _, topic := range topics {
		if err := a.wait(ctx, "ec2.describe"); err != nil {
			return nil, err
		}
		p := sns.NewListSubscriptionsByTopicPaginator(a.SNS, &sns.ListSubscriptionsByTopicInput{TopicArn: awssdk.String(topic.ID)})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("sns: list subscriptions for %s: %w", topic.ResourceName, err)
			}
			for _, sub := range page.Subscriptions {
				endpoint := awssdk.ToString(sub.Endpoint)
				if endpoint == "" || !isARN(endpoint) {
					continue
				}
				edges = append(edges, resource.Relationship{Source: topic.ID, Target: endpoint, Label: "is associated with"})
			}
		}
	}
	return edges, nil
}

// transitGatewayVpcAttachmentsHandler links every transit gateway to the
// VPCs it has an available attachment to.
type transitGatewayVpcAttachmentsHandler struct{ Factory *AdapterFactory }

func (h transitGatewayVpcAttachmentsHandler) Name() string {
	return "aws.stage1.transitGatewayVpcAttachments"
}

func (h transitGatewayVpcAttachmentsHandler) Handle(ctx context.Context, lookups *inference.LookupMaps, account, region string) ([]resource.Relationship, error) {
	gateways := lookups.ResourcesByTypeInScope("aws::ec2::transitgateway", account, region)
	if len(gateways) == 0 {
		return nil, nil
	}
	a, err := h.Factory.Get(ctx, account, region)
	if err != nil {
		return nil, err
	}

	var edges []resource.Relationship
	for _, tgw := range gateways {
		if err := a.wait(ctx, "ec2.describe"); err != nil {
			return nil, err
		}
		p := ec2.NewDescribeTransitGatewayVpcAttachmentsPaginator(a.EC2, &ec2.DescribeTransitGatewayVpcAttachmentsInput{
			Filters: []ec2types.Filter{{Name: awssdk.String("transit-gateway-id"), Values: []string{tgw.ID}}},
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("ec2: describe transit gateway vpc attachments for %s: %w", tgw.ID, err)
			}
			for _, att := range page.TransitGatewayVpcAttachments {
				if att.State != ec2types.TransitGatewayAttachmentStateAvailable {
					continue
				}
				vpcID := awssdk.ToString(att.VpcId)
				if vpcID == "" {
					continue
				}
				edges = append(edges, resource.Relationship{Source: tgw.ID, Target: vpcID, Label: "is associated with"})
			}
		}
	}
	return edges, nil
}

func isARN(s string) bool {
	return len(s) > 4 && s[:4] == "arn:"
}
