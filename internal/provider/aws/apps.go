package aws

import (
	"context"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/appsync"
	"github.com/aws/aws-sdk-go-v2/service/mediaconnect"
	opensearchservice "github.com/aws/aws-sdk-go-v2/service/opensearch"
	"github.com/aws/aws-sdk-go-v2/service/servicecatalogappregistry"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// APIGatewayRestAPILister lists REST APIs. Paginated at the throttle
// table's gateway.paginator class, with an overall gateway.total budget
// shared across every method/resource lookup spec §4.1 mentions.
type APIGatewayRestAPILister struct{ Adapters *AdapterSet }

func (l APIGatewayRestAPILister) Name() string { return "apigateway.restApi" }

func (l APIGatewayRestAPILister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := apigateway.NewGetRestApisPaginator(a.APIGateway, &apigateway.GetRestApisInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*apigateway.GetRestApisOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error {
		if err := a.wait(ctx, "gateway.paginator"); err != nil {
			return err
		}
		return a.wait(ctx, "gateway.total")
	})

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *apigateway.GetRestApisOutput) error {
		for _, api := range page.Items {
			id := awssdk.ToString(api.Id)
			r := resource.Resource{
				ID: "arn:aws:apigateway:" + a.Region + "::/restapis/" + id, Type: "aws::apigateway::restapi", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: id, ResourceName: awssdk.ToString(api.Name),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(api.CreatedDate),
			}
			for k, v := range api.Tags {
				r.Tags.Set(k, v)
			}
			r.Configuration = map[string]any{"description": awssdk.ToString(api.Description)}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// AppSyncAPILister lists AppSync GraphQL APIs.
type AppSyncAPILister struct{ Adapters *AdapterSet }

func (l AppSyncAPILister) Name() string { return "appsync.graphqlApi" }

func (l AppSyncAPILister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := appsync.NewListGraphqlApisPaginator(a.AppSync, &appsync.ListGraphqlApisInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*appsync.ListGraphqlApisOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "appsync.list") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *appsync.ListGraphqlApisOutput) error {
		for _, api := range page.GraphqlApis {
			id := awssdk.ToString(api.Arn)
			r := resource.Resource{
				ID: id, Type: "aws::appsync::graphqlapi", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(api.ApiId), ResourceName: awssdk.ToString(api.Name),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK", ConfigurationItemCaptureTime: time.Now(),
			}
			for k, v := range api.Tags {
				r.Tags.Set(k, v)
			}
			r.Configuration = map[string]any{"authenticationType": string(api.AuthenticationType)}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// AppRegistryApplicationLister lists Service Catalog AppRegistry applications.
type AppRegistryApplicationLister struct{ Adapters *AdapterSet }

func (l AppRegistryApplicationLister) Name() string { return "servicecatalogappregistry.application" }

func (l AppRegistryApplicationLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := servicecatalogappregistry.NewListApplicationsPaginator(a.AppRegistry, &servicecatalogappregistry.ListApplicationsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*servicecatalogappregistry.ListApplicationsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "appregistry.list") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *servicecatalogappregistry.ListApplicationsOutput) error {
		for _, app := range page.Applications {
			id := awssdk.ToString(app.Arn)
			r := resource.Resource{
				ID: id, Type: "aws::servicecatalogappregistry::application", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(app.Id), ResourceName: awssdk.ToString(app.Name),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(app.CreationTime),
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// MediaConnectFlowLister lists MediaConnect flows.
type MediaConnectFlowLister struct{ Adapters *AdapterSet }

func (l MediaConnectFlowLister) Name() string { return "mediaconnect.flow" }

func (l MediaConnectFlowLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := mediaconnect.NewListFlowsPaginator(a.MediaConnect, &mediaconnect.ListFlowsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*mediaconnect.ListFlowsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "mediaconnect.list") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *mediaconnect.ListFlowsOutput) error {
		for _, f := range page.Flows {
			id := awssdk.ToString(f.FlowArn)
			r := resource.Resource{
				ID: id, Type: "aws::mediaconnect::flow", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(f.Name), ResourceName: awssdk.ToString(f.Name),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK", ConfigurationItemCaptureTime: time.Now(),
			}
			r.Configuration = map[string]any{"status": string(f.Status)}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// OpenSearchDomainLister lists OpenSearch domains.
type OpenSearchDomainLister struct{ Adapters *AdapterSet }

func (l OpenSearchDomainLister) Name() string { return "opensearchservice.domain" }

func (l OpenSearchDomainLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	if err := a.wait(ctx, "ec2.describe"); err != nil {
		return nil, err
	}
	names, err := a.OpenSearch.ListDomainNames(ctx, &opensearchservice.ListDomainNamesInput{})
	if err != nil {
		return nil, err
	}

	var out []resource.Resource
	for _, n := range names.DomainNames {
		if err := a.wait(ctx, "ec2.describe"); err != nil {
			return nil, err
		}
		desc, err := a.OpenSearch.DescribeDomain(ctx, &opensearchservice.DescribeDomainInput{DomainName: n.DomainName})
		if err != nil {
			return nil, err
		}
		d := desc.DomainStatus
		id := awssdk.ToString(d.ARN)
		r := resource.Resource{
			ID: id, Type: "aws::opensearchservice::domain", Provider: "aws",
			AccountID: a.AccountID, Region: a.Region,
			ResourceID: awssdk.ToString(d.DomainName), ResourceName: awssdk.ToString(d.DomainName),
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK", ConfigurationItemCaptureTime: time.Now(),
		}
		r.Configuration = map[string]any{"engineVersion": awssdk.ToString(d.EngineVersion)}
		if d.VPCOptions != nil {
			r.VpcID = awssdk.ToString(d.VPCOptions.VPCId)
			for _, sn := range d.VPCOptions.SubnetIds {
				r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: sn, Label: "is contained in"})
			}
			if len(d.VPCOptions.SecurityGroupIds) > 0 {
				sgs := make([]any, len(d.VPCOptions.SecurityGroupIds))
				for i, sg := range d.VPCOptions.SecurityGroupIds {
					sgs[i] = sg
				}
				r.Configuration["SecurityGroupIds"] = sgs
			}
		}
		out = append(out, r)
	}
	return out, nil
}
