package aws

import (
	"context"
	"errors"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	apigatewaytypes "github.com/aws/aws-sdk-go-v2/service/apigateway/types"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/enrichment"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// TierCSecondOrderHandlers returns every Tier-C handler spec §4.6 requires.
// Tier C only ever sees Tier-B output, so each handler here is keyed to a
// resource type Tier B produces.
func TierCSecondOrderHandlers(factory *AdapterFactory) []enrichment.SecondOrderHandler {
	return []enrichment.SecondOrderHandler{
		GatewayMethodHandler{Factory: factory},
	}
}

var gatewayHTTPMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

// GatewayMethodHandler fans a gateway path item out to the HTTP methods
// actually bound to it. Most verbs don't exist on any given resource;
// NotFound from GetMethod is the expected outcome, not a handler failure.
type GatewayMethodHandler struct{ Factory *AdapterFactory }

func (h GatewayMethodHandler) Name() string         { return "aws.tierC.gatewayMethod" }
func (h GatewayMethodHandler) ResourceType() string { return "aws::apigateway::resource" }

func (h GatewayMethodHandler) Handle(ctx context.Context, r resource.Resource) ([]resource.Resource, error) {
	a, err := h.Factory.Get(ctx, r.AccountID, r.Region)
	if err != nil {
		return nil, err
	}
	restAPIID, _ := r.Configuration["RestApiId"].(string)
	resourceID, _ := r.Configuration["ResourceId"].(string)
	if restAPIID == "" || resourceID == "" {
		return nil, nil
	}

	var out []resource.Resource
	for _, verb := range gatewayHTTPMethods {
		if err := a.wait(ctx, "gateway.paginator"); err != nil {
			return nil, err
		}
		method, err := a.APIGateway.GetMethod(ctx, &apigateway.GetMethodInput{
			RestApiId: awssdk.String(restAPIID), ResourceId: awssdk.String(resourceID), HttpMethod: awssdk.String(verb),
		})
		if err != nil {
			var notFound *apigatewaytypes.NotFoundException
			if errors.As(err, &notFound) {
				continue
			}
			return nil, fmt.Errorf("apigateway: get method %s %s: %w", verb, resourceID, err)
		}

		id := r.ID + "/methods/" + verb
		methodRes := resource.Resource{
			ID: id, Type: "aws::apigateway::method", Provider: "aws",
			AccountID: r.AccountID, Region: r.Region,
			ResourceID: verb, ResourceName: verb,
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
			Configuration: map[string]any{
				"httpMethod":       verb,
				"authorizationType": awssdk.ToString(method.AuthorizationType),
			},
			Relationships: []resource.Relationship{{Source: id, Target: r.ID, Label: "is contained in"}},
		}
		if method.MethodIntegration != nil {
			methodRes.Configuration["IntegrationURI"] = awssdk.ToString(method.MethodIntegration.Uri)
			methodRes.Configuration["integrationType"] = string(method.MethodIntegration.Type)
		}
		out = append(out, methodRes)
	}
	return out, nil
}
