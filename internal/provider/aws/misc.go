package aws

import (
	"context"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// S3BucketLister lists S3 buckets. Buckets are global identifiers but each
// is pinned to the region its LocationConstraint names.
type S3BucketLister struct{ Adapters *AdapterSet }

func (l S3BucketLister) Name() string { return "s3.bucket" }

func (l S3BucketLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	if err := a.wait(ctx, "ec2.describe"); err != nil {
		return nil, err
	}
	resp, err := a.S3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}

	var out []resource.Resource
	for _, b := range resp.Buckets {
		name := awssdk.ToString(b.Name)

		loc, err := a.S3.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: b.Name})
		bucketRegion := a.Region
		if err == nil && loc.LocationConstraint != "" {
			bucketRegion = string(loc.LocationConstraint)
		}
		if bucketRegion != a.Region {
			continue // enumerated once, from its own region's crawl
		}

		id := "arn:aws:s3:::" + name
		r := resource.Resource{
			ID: id, Type: "aws::s3::bucket", Provider: "aws",
			AccountID: a.AccountID, Region: bucketRegion,
			ResourceID: name, ResourceName: name,
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
			ConfigurationItemCaptureTime: awssdk.ToTime(b.CreationDate),
		}

		tagResp, err := a.S3.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: b.Name})
		if err == nil {
			for _, t := range tagResp.TagSet {
				r.Tags.Set(awssdk.ToString(t.Key), awssdk.ToString(t.Value))
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// SQSQueueLister lists SQS queues.
type SQSQueueLister struct{ Adapters *AdapterSet }

func (l SQSQueueLister) Name() string { return "sqs.queue" }

func (l SQSQueueLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := sqs.NewListQueuesPaginator(a.SQS, &sqs.ListQueuesInput{})
	var urls []string
	err := provider.Drain(ctx, provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*sqs.ListQueuesOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") }), func(page *sqs.ListQueuesOutput) error {
		urls = append(urls, page.QueueUrls...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []resource.Resource
	for _, url := range urls {
		attrs, err := a.SQS.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       awssdk.String(url),
			AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn, sqstypes.QueueAttributeNameFifoQueue},
		})
		if err != nil {
			return nil, err
		}
		arn := attrs.Attributes["QueueArn"]
		name := arn
		if idx := lastIndexOf(arn, ":"); idx >= 0 {
			name = arn[idx+1:]
		}
		r := resource.Resource{
			ID: arn, Type: "aws::sqs::queue", Provider: "aws",
			AccountID: a.AccountID, Region: a.Region,
			ResourceID: name, ResourceName: name,
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK", ConfigurationItemCaptureTime: time.Now(),
		}
		r.Configuration = map[string]any{"fifoQueue": attrs.Attributes["FifoQueue"] == "true"}
		out = append(out, r)
	}
	return out, nil
}

// SNSTopicLister lists SNS topics, the target side of the snsSubscriptions
// stage-1 handler's edges.
type SNSTopicLister struct{ Adapters *AdapterSet }

func (l SNSTopicLister) Name() string { return "sns.topic" }

func (l SNSTopicLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := sns.NewListTopicsPaginator(a.SNS, &sns.ListTopicsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*sns.ListTopicsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *sns.ListTopicsOutput) error {
		for _, t := range page.Topics {
			arn := awssdk.ToString(t.TopicArn)
			name := arn
			if idx := lastIndexOf(arn, ":"); idx >= 0 {
				name = arn[idx+1:]
			}
			out = append(out, resource.Resource{
				ID: arn, Type: "aws::sns::topic", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: name, ResourceName: name,
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK", ConfigurationItemCaptureTime: time.Now(),
			})
		}
		return nil
	})
	return out, err
}

func lastIndexOf(s, sep string) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		if s[i:i+len(sep)] == sep {
			return i
		}
	}
	return -1
}

// Route53ZoneLister lists hosted zones.
type Route53ZoneLister struct{ Adapters *AdapterSet }

func (l Route53ZoneLister) Name() string { return "route53.hostedZone" }

func (l Route53ZoneLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := route53.NewListHostedZonesPaginator(a.Route53, &route53.ListHostedZonesInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*route53.ListHostedZonesOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *route53.ListHostedZonesOutput) error {
		for _, z := range page.HostedZones {
			id := awssdk.ToString(z.Id)
			r := resource.Resource{
				ID: id, Type: "aws::route53::hostedzone", Provider: "aws",
				AccountID: a.AccountID, Region: resource.GlobalRegion,
				ResourceID: id, ResourceName: awssdk.ToString(z.Name),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK", ConfigurationItemCaptureTime: time.Now(),
			}
			private := z.Config != nil && awssdk.ToBool(z.Config.PrivateZone)
			r.Private = &private
			r.Configuration = map[string]any{"recordSetCount": awssdk.ToInt64(z.ResourceRecordSetCount)}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// KMSKeyLister lists customer-managed KMS keys.
type KMSKeyLister struct{ Adapters *AdapterSet }

func (l KMSKeyLister) Name() string { return "kms.key" }

func (l KMSKeyLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := kms.NewListKeysPaginator(a.KMS, &kms.ListKeysInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*kms.ListKeysOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *kms.ListKeysOutput) error {
		for _, k := range page.Keys {
			keyID := awssdk.ToString(k.KeyId)
			desc, err := a.KMS.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: k.KeyId})
			if err != nil {
				return err
			}
			if desc.KeyMetadata.KeyManager == "AWS" {
				continue // provider-owned keys are not discovery candidates
			}
			id := awssdk.ToString(desc.KeyMetadata.Arn)
			r := resource.Resource{
				ID: id, Type: "aws::kms::key", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: keyID, ResourceName: keyID,
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(desc.KeyMetadata.CreationDate),
			}
			r.Configuration = map[string]any{
				"keyState": string(desc.KeyMetadata.KeyState), "keyUsage": string(desc.KeyMetadata.KeyUsage),
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// ECRRepositoryLister lists ECR repositories.
type ECRRepositoryLister struct{ Adapters *AdapterSet }

func (l ECRRepositoryLister) Name() string { return "ecr.repository" }

func (l ECRRepositoryLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ecr.NewDescribeRepositoriesPaginator(a.ECR, &ecr.DescribeRepositoriesInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ecr.DescribeRepositoriesOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ecr.DescribeRepositoriesOutput) error {
		for _, r2 := range page.Repositories {
			id := awssdk.ToString(r2.RepositoryArn)
			r := resource.Resource{
				ID: id, Type: "aws::ecr::repository", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(r2.RepositoryName), ResourceName: awssdk.ToString(r2.RepositoryName),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(r2.CreatedAt),
			}
			r.Configuration = map[string]any{"imageTagMutability": string(r2.ImageTagMutability)}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// CloudWatchLogGroupLister lists log groups.
type CloudWatchLogGroupLister struct{ Adapters *AdapterSet }

func (l CloudWatchLogGroupLister) Name() string { return "logs.logGroup" }

func (l CloudWatchLogGroupLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := cloudwatchlogs.NewDescribeLogGroupsPaginator(a.CloudWatchLogs, &cloudwatchlogs.DescribeLogGroupsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *cloudwatchlogs.DescribeLogGroupsOutput) error {
		for _, g := range page.LogGroups {
			id := awssdk.ToString(g.Arn)
			name := awssdk.ToString(g.LogGroupName)
			r := resource.Resource{
				ID: id, Type: "aws::logs::loggroup", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: name, ResourceName: name,
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: time.UnixMilli(awssdk.ToInt64(g.CreationTime)),
			}
			r.Configuration = map[string]any{"retentionInDays": awssdk.ToInt32(g.RetentionInDays)}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}
