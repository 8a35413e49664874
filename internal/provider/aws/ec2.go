package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// newResource fills the fields common to every discovered resource, leaving
// type-specific Configuration/Relationships to the caller.
func newResource(a *AdapterSet, typ, id, name string, tags []ec2types.Tag, captureTime time.Time) resource.Resource {
	return resource.Resource{
		ID:                           id,
		Type:                         typ,
		Provider:                     "aws",
		AccountID:                    a.AccountID,
		Region:                       a.Region,
		ResourceID:                   id,
		ResourceName:                 name,
		Tags:                        convertEC2Tags(tags),
		ConfigurationItemCaptureTime: captureTime,
		ConfigurationItemStatus:      "OK",
	}
}

// convertEC2Tags preserves the source ordering of EC2's tag list, unlike the
// fixed-field Tags struct the teacher used for its narrower tag vocabulary.
func convertEC2Tags(tags []ec2types.Tag) *resource.Tags {
	out := resource.NewTags()
	for _, t := range tags {
		out.Set(awssdk.ToString(t.Key), awssdk.ToString(t.Value))
	}
	return out
}

func extractNameTag(tags []ec2types.Tag) string {
	for _, t := range tags {
		if awssdk.ToString(t.Key) == "Name" {
			return awssdk.ToString(t.Value)
		}
	}
	return ""
}

// VPCLister lists VPCs: part of the core EC2/VPC family (spec §2 EC2-family).
type VPCLister struct{ Adapters *AdapterSet }

func (l VPCLister) Name() string { return "ec2.vpc" }

func (l VPCLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeVpcsPaginator(a.EC2, &ec2.DescribeVpcsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeVpcsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeVpcsOutput) error {
		for _, v := range page.Vpcs {
			id := awssdk.ToString(v.VpcId)
			r := newResource(a, "aws::ec2::vpc", id, extractNameTag(v.Tags), v.Tags, time.Now())
			r.Configuration = map[string]any{
				"cidrBlock": awssdk.ToString(v.CidrBlock),
				"state":     string(v.State),
				"isDefault": awssdk.ToBool(v.IsDefault),
			}
			r.VpcID = id
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// SubnetLister lists subnets, grounded on the source's buildSubnetResource.
type SubnetLister struct{ Adapters *AdapterSet }

func (l SubnetLister) Name() string { return "ec2.subnet" }

func (l SubnetLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeSubnetsPaginator(a.EC2, &ec2.DescribeSubnetsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeSubnetsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeSubnetsOutput) error {
		for _, s := range page.Subnets {
			id := awssdk.ToString(s.SubnetId)
			r := newResource(a, "aws::ec2::subnet", id, extractNameTag(s.Tags), s.Tags, time.Now())
			r.Configuration = map[string]any{
				"vpcId":               awssdk.ToString(s.VpcId),
				"cidrBlock":           awssdk.ToString(s.CidrBlock),
				"availabilityZone":    awssdk.ToString(s.AvailabilityZone),
				"state":               string(s.State),
				"mapPublicIpOnLaunch": awssdk.ToBool(s.MapPublicIpOnLaunch),
			}
			r.VpcID = awssdk.ToString(s.VpcId)
			r.SubnetID = id
			private := !awssdk.ToBool(s.MapPublicIpOnLaunch)
			r.Private = &private
			r.Relationships = append(r.Relationships, resource.Relationship{
				Source: id, Target: r.VpcID, Label: "is contained in",
			})
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// RouteTableLister lists route tables, grounded on the source's
// buildRouteTableResource/formatRoutes.
type RouteTableLister struct{ Adapters *AdapterSet }

func (l RouteTableLister) Name() string { return "ec2.routeTable" }

func (l RouteTableLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeRouteTablesPaginator(a.EC2, &ec2.DescribeRouteTablesInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeRouteTablesOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeRouteTablesOutput) error {
		for _, rt := range page.RouteTables {
			id := awssdk.ToString(rt.RouteTableId)
			r := newResource(a, "aws::ec2::routetable", id, extractNameTag(rt.Tags), rt.Tags, time.Now())
			r.Configuration = map[string]any{
				"vpcId":               awssdk.ToString(rt.VpcId),
				"isMain":              isMainRouteTable(rt.Associations),
				"associatedSubnetIds": extractAssociatedSubnetIDs(rt.Associations),
				"routes":              formatRoutes(rt.Routes),
			}
			r.VpcID = awssdk.ToString(rt.VpcId)
			for _, target := range routeTargets(rt.Routes) {
				r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: target, Label: "is attached to"})
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func routeTargets(routes []ec2types.Route) []string {
	var targets []string
	for _, route := range routes {
		if t := routeTarget(route); t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

func routeTarget(route ec2types.Route) string {
	switch {
	case route.GatewayId != nil:
		return awssdk.ToString(route.GatewayId)
	case route.NatGatewayId != nil:
		return awssdk.ToString(route.NatGatewayId)
	case route.VpcPeeringConnectionId != nil:
		return awssdk.ToString(route.VpcPeeringConnectionId)
	case route.NetworkInterfaceId != nil:
		return awssdk.ToString(route.NetworkInterfaceId)
	case route.TransitGatewayId != nil:
		return awssdk.ToString(route.TransitGatewayId)
	default:
		return ""
	}
}

func formatRoutes(routes []ec2types.Route) string {
	if len(routes) == 0 {
		return ""
	}
	formatted := make([]string, 0, len(routes))
	for _, route := range routes {
		dest := awssdk.ToString(route.DestinationCidrBlock)
		if dest == "" {
			dest = awssdk.ToString(route.DestinationIpv6CidrBlock)
		}
		if dest == "" {
			dest = awssdk.ToString(route.DestinationPrefixListId)
		}
		target := routeTarget(route)
		if target == "" {
			target = "unknown"
		}
		formatted = append(formatted, fmt.Sprintf("%s -> %s (%s)", dest, target, string(route.State)))
	}
	return strings.Join(formatted, "; ")
}

func extractAssociatedSubnetIDs(associations []ec2types.RouteTableAssociation) string {
	var ids []string
	for _, assoc := range associations {
		if assoc.SubnetId != nil {
			ids = append(ids, awssdk.ToString(assoc.SubnetId))
		}
	}
	return strings.Join(ids, ",")
}

func isMainRouteTable(associations []ec2types.RouteTableAssociation) bool {
	for _, assoc := range associations {
		if awssdk.ToBool(assoc.Main) {
			return true
		}
	}
	return false
}

// InternetGatewayLister lists internet gateways.
type InternetGatewayLister struct{ Adapters *AdapterSet }

func (l InternetGatewayLister) Name() string { return "ec2.internetGateway" }

func (l InternetGatewayLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeInternetGatewaysPaginator(a.EC2, &ec2.DescribeInternetGatewaysInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeInternetGatewaysOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeInternetGatewaysOutput) error {
		for _, igw := range page.InternetGateways {
			id := awssdk.ToString(igw.InternetGatewayId)
			r := newResource(a, "aws::ec2::internetgateway", id, extractNameTag(igw.Tags), igw.Tags, time.Now())
			var vpcID, state string
			if len(igw.Attachments) > 0 {
				vpcID = awssdk.ToString(igw.Attachments[0].VpcId)
				state = string(igw.Attachments[0].State)
				r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: vpcID, Label: "is attached to"})
			} else {
				state = "detached"
			}
			r.Configuration = map[string]any{"vpcId": vpcID, "attachmentState": state}
			r.VpcID = vpcID
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// NATGatewayLister lists NAT gateways.
type NATGatewayLister struct{ Adapters *AdapterSet }

func (l NATGatewayLister) Name() string { return "ec2.natGateway" }

func (l NATGatewayLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeNatGatewaysPaginator(a.EC2, &ec2.DescribeNatGatewaysInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeNatGatewaysOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeNatGatewaysOutput) error {
		for _, gw := range page.NatGateways {
			id := awssdk.ToString(gw.NatGatewayId)
			r := newResource(a, "aws::ec2::natgateway", id, extractNameTag(gw.Tags), gw.Tags, awssdk.ToTime(gw.CreateTime))
			var allocID, publicIP, eniID string
			if len(gw.NatGatewayAddresses) > 0 {
				addr := gw.NatGatewayAddresses[0]
				allocID = awssdk.ToString(addr.AllocationId)
				publicIP = awssdk.ToString(addr.PublicIp)
				eniID = awssdk.ToString(addr.NetworkInterfaceId)
			}
			r.Configuration = map[string]any{
				"vpcId": awssdk.ToString(gw.VpcId), "subnetId": awssdk.ToString(gw.SubnetId),
				"state": string(gw.State), "allocationId": allocID, "publicIp": publicIP, "networkInterfaceId": eniID,
			}
			r.VpcID = awssdk.ToString(gw.VpcId)
			r.SubnetID = awssdk.ToString(gw.SubnetId)
			r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: r.SubnetID, Label: "is contained in"})
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// VPCPeeringLister lists VPC peering connections.
type VPCPeeringLister struct{ Adapters *AdapterSet }

func (l VPCPeeringLister) Name() string { return "ec2.vpcPeeringConnection" }

func (l VPCPeeringLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeVpcPeeringConnectionsPaginator(a.EC2, &ec2.DescribeVpcPeeringConnectionsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeVpcPeeringConnectionsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeVpcPeeringConnectionsOutput) error {
		for _, peer := range page.VpcPeeringConnections {
			id := awssdk.ToString(peer.VpcPeeringConnectionId)
			r := newResource(a, "aws::ec2::vpcpeeringconnection", id, extractNameTag(peer.Tags), peer.Tags, time.Now())
			var requesterVpc, accepterVpc string
			if peer.RequesterVpcInfo != nil {
				requesterVpc = awssdk.ToString(peer.RequesterVpcInfo.VpcId)
			}
			if peer.AccepterVpcInfo != nil {
				accepterVpc = awssdk.ToString(peer.AccepterVpcInfo.VpcId)
			}
			var status string
			if peer.Status != nil {
				status = string(peer.Status.Code)
			}
			r.Configuration = map[string]any{"requesterVpcId": requesterVpc, "accepterVpcId": accepterVpc, "status": status}
			r.Relationships = append(r.Relationships,
				resource.Relationship{Source: id, Target: requesterVpc, Label: "is associated with"},
				resource.Relationship{Source: id, Target: accepterVpc, Label: "is associated with"},
			)
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// TransitGatewayLister lists transit gateways, the hub resource the
// transitGatewayVpcAttachments stage-1 handler links VPCs to.
type TransitGatewayLister struct{ Adapters *AdapterSet }

func (l TransitGatewayLister) Name() string { return "ec2.transitGateway" }

func (l TransitGatewayLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeTransitGatewaysPaginator(a.EC2, &ec2.DescribeTransitGatewaysInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeTransitGatewaysOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeTransitGatewaysOutput) error {
		for _, tgw := range page.TransitGateways {
			id := awssdk.ToString(tgw.TransitGatewayId)
			r := newResource(a, "aws::ec2::transitgateway", id, extractNameTag(tgw.Tags), tgw.Tags, time.Now())
			r.Configuration = map[string]any{
				"ownerId": awssdk.ToString(tgw.OwnerId),
				"state":   string(tgw.State),
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// SecurityGroupLister lists security groups.
type SecurityGroupLister struct{ Adapters *AdapterSet }

func (l SecurityGroupLister) Name() string { return "ec2.securityGroup" }

func (l SecurityGroupLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeSecurityGroupsPaginator(a.EC2, &ec2.DescribeSecurityGroupsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeSecurityGroupsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeSecurityGroupsOutput) error {
		for _, sg := range page.SecurityGroups {
			id := awssdk.ToString(sg.GroupId)
			r := newResource(a, "aws::ec2::securitygroup", id, awssdk.ToString(sg.GroupName), sg.Tags, time.Now())
			r.Configuration = map[string]any{
				"vpcId":       awssdk.ToString(sg.VpcId),
				"description": awssdk.ToString(sg.Description),
				"ingressRuleCount": len(sg.IpPermissions),
				"egressRuleCount":  len(sg.IpPermissionsEgress),
			}
			r.VpcID = awssdk.ToString(sg.VpcId)
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// NetworkInterfaceLister lists ENIs.
type NetworkInterfaceLister struct{ Adapters *AdapterSet }

func (l NetworkInterfaceLister) Name() string { return "ec2.networkInterface" }

func (l NetworkInterfaceLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeNetworkInterfacesPaginator(a.EC2, &ec2.DescribeNetworkInterfacesInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeNetworkInterfacesOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeNetworkInterfacesOutput) error {
		for _, eni := range page.NetworkInterfaces {
			id := awssdk.ToString(eni.NetworkInterfaceId)
			r := newResource(a, "aws::ec2::networkinterface", id, "", eni.TagSet, time.Now())
			r.Configuration = map[string]any{
				"vpcId": awssdk.ToString(eni.VpcId), "subnetId": awssdk.ToString(eni.SubnetId),
				"privateIpAddress": awssdk.ToString(eni.PrivateIpAddress), "status": string(eni.Status),
			}
			r.VpcID = awssdk.ToString(eni.VpcId)
			r.SubnetID = awssdk.ToString(eni.SubnetId)
			if eni.Attachment != nil && eni.Attachment.InstanceId != nil {
				r.Relationships = append(r.Relationships, resource.Relationship{
					Source: awssdk.ToString(eni.Attachment.InstanceId), Target: id, Label: "is associated with",
				})
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// EBSVolumeLister lists EBS volumes.
type EBSVolumeLister struct{ Adapters *AdapterSet }

func (l EBSVolumeLister) Name() string { return "ec2.volume" }

func (l EBSVolumeLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeVolumesPaginator(a.EC2, &ec2.DescribeVolumesInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeVolumesOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeVolumesOutput) error {
		for _, v := range page.Volumes {
			id := awssdk.ToString(v.VolumeId)
			r := newResource(a, "aws::ec2::volume", id, extractNameTag(v.Tags), v.Tags, awssdk.ToTime(v.CreateTime))
			r.AvailabilityZone = awssdk.ToString(v.AvailabilityZone)
			r.Configuration = map[string]any{
				"size": awssdk.ToInt32(v.Size), "volumeType": string(v.VolumeType),
				"state": string(v.State), "encrypted": awssdk.ToBool(v.Encrypted),
			}
			if v.KmsKeyId != nil {
				r.Configuration["kmsKeyId"] = awssdk.ToString(v.KmsKeyId)
			}
			for _, att := range v.Attachments {
				r.Relationships = append(r.Relationships, resource.Relationship{
					Source: awssdk.ToString(att.InstanceId), Target: id, Label: "is attached to",
				})
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// SnapshotLister lists EBS snapshots owned by this account.
type SnapshotLister struct{ Adapters *AdapterSet }

func (l SnapshotLister) Name() string { return "ec2.snapshot" }

func (l SnapshotLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeSnapshotsPaginator(a.EC2, &ec2.DescribeSnapshotsInput{OwnerIds: []string{account}})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeSnapshotsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeSnapshotsOutput) error {
		for _, s := range page.Snapshots {
			id := awssdk.ToString(s.SnapshotId)
			r := newResource(a, "aws::ec2::snapshot", id, extractNameTag(s.Tags), s.Tags, awssdk.ToTime(s.StartTime))
			r.Configuration = map[string]any{
				"volumeId": awssdk.ToString(s.VolumeId), "volumeSize": awssdk.ToInt32(s.VolumeSize),
				"state": string(s.State), "encrypted": awssdk.ToBool(s.Encrypted),
			}
			if s.KmsKeyId != nil {
				r.Configuration["kmsKeyId"] = awssdk.ToString(s.KmsKeyId)
			}
			r.Relationships = append(r.Relationships, resource.Relationship{
				Source: id, Target: awssdk.ToString(s.VolumeId), Label: "is associated with",
			})
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// AMILister lists self-owned AMIs.
type AMILister struct{ Adapters *AdapterSet }

func (l AMILister) Name() string { return "ec2.image" }

func (l AMILister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	if err := a.wait(ctx, "ec2.describe"); err != nil {
		return nil, err
	}
	out1, err := a.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{Owners: []string{account}})
	if err != nil {
		return nil, fmt.Errorf("ec2: describe images: %w", err)
	}
	var out []resource.Resource
	for _, img := range out1.Images {
		id := awssdk.ToString(img.ImageId)
		r := newResource(a, "aws::ec2::image", id, awssdk.ToString(img.Name), img.Tags, awssdk.ToTime(parseAWSTime(awssdk.ToString(img.CreationDate))))
		r.Configuration = map[string]any{"state": string(img.State), "public": awssdk.ToBool(img.Public), "platform": string(img.PlatformDetails)}
		out = append(out, r)
	}
	return out, nil
}

// SpotInstanceRequestLister lists EC2 spot instance requests (spec §4.6
// Tier A: not part of the critical EC2-family set the aggregator baseline
// covers reliably).
type SpotInstanceRequestLister struct{ Adapters *AdapterSet }

func (l SpotInstanceRequestLister) Name() string { return "ec2.spotInstanceRequest" }

func (l SpotInstanceRequestLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeSpotInstanceRequestsPaginator(a.EC2, &ec2.DescribeSpotInstanceRequestsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeSpotInstanceRequestsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeSpotInstanceRequestsOutput) error {
		for _, req := range page.SpotInstanceRequests {
			id := awssdk.ToString(req.SpotInstanceRequestId)
			r := newResource(a, "aws::ec2::spotinstancerequest", id, extractNameTag(req.Tags), req.Tags, awssdk.ToTime(req.CreateTime))
			r.Configuration = map[string]any{
				"state":     string(req.State),
				"type":      string(req.Type),
				"spotPrice": awssdk.ToString(req.SpotPrice),
			}
			if req.InstanceId != nil {
				r.Relationships = append(r.Relationships, resource.Relationship{
					Source: id, Target: awssdk.ToString(req.InstanceId), Label: "is associated with",
				})
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// SpotFleetRequestLister lists EC2 spot fleet requests and links each
// fleet to the instances it currently owns, identified by the
// aws:ec2spot:fleet-request-id tag AWS stamps onto every fleet-launched
// instance.
type SpotFleetRequestLister struct{ Adapters *AdapterSet }

func (l SpotFleetRequestLister) Name() string { return "ec2.spotFleetRequest" }

func (l SpotFleetRequestLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeSpotFleetRequestsPaginator(a.EC2, &ec2.DescribeSpotFleetRequestsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeSpotFleetRequestsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeSpotFleetRequestsOutput) error {
		for _, fleet := range page.SpotFleetRequestConfigs {
			id := awssdk.ToString(fleet.SpotFleetRequestId)
			r := newResource(a, "aws::ec2::spotfleetrequest", id, id, nil, awssdk.ToTime(fleet.CreateTime))
			r.Configuration = map[string]any{"state": string(fleet.SpotFleetRequestState)}
			if fleet.SpotFleetRequestConfig != nil {
				r.Configuration["targetCapacity"] = awssdk.ToInt32(fleet.SpotFleetRequestConfig.TargetCapacity)
				r.Configuration["iamFleetRole"] = awssdk.ToString(fleet.SpotFleetRequestConfig.IamFleetRole)
			}

			if err := a.wait(ctx, "ec2.describe"); err != nil {
				return err
			}
			instances, err := a.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
				Filters: []ec2types.Filter{{Name: awssdk.String("tag:aws:ec2spot:fleet-request-id"), Values: []string{id}}},
			})
			if err != nil {
				return fmt.Errorf("ec2: describe instances for spot fleet %s: %w", id, err)
			}
			for _, res := range instances.Reservations {
				for _, inst := range res.Instances {
					r.Relationships = append(r.Relationships, resource.Relationship{
						Source: id, Target: awssdk.ToString(inst.InstanceId), Label: "contains",
					})
				}
			}

			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func parseAWSTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ElasticIPLister lists Elastic IP allocations.
type ElasticIPLister struct{ Adapters *AdapterSet }

func (l ElasticIPLister) Name() string { return "ec2.eip" }

func (l ElasticIPLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	if err := a.wait(ctx, "ec2.describe"); err != nil {
		return nil, err
	}
	resp, err := a.EC2.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("ec2: describe addresses: %w", err)
	}
	var out []resource.Resource
	for _, addr := range resp.Addresses {
		id := awssdk.ToString(addr.AllocationId)
		if id == "" {
			id = awssdk.ToString(addr.PublicIp)
		}
		r := newResource(a, "aws::ec2::eip", id, extractNameTag(addr.Tags), addr.Tags, time.Now())
		r.Configuration = map[string]any{"publicIp": awssdk.ToString(addr.PublicIp), "domain": string(addr.Domain)}
		if addr.InstanceId != nil {
			r.Relationships = append(r.Relationships, resource.Relationship{
				Source: awssdk.ToString(addr.InstanceId), Target: id, Label: "is associated with",
			})
		}
		out = append(out, r)
	}
	return out, nil
}

// VPCEndpointLister lists VPC endpoints.
type VPCEndpointLister struct{ Adapters *AdapterSet }

func (l VPCEndpointLister) Name() string { return "ec2.vpcEndpoint" }

func (l VPCEndpointLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeVpcEndpointsPaginator(a.EC2, &ec2.DescribeVpcEndpointsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeVpcEndpointsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeVpcEndpointsOutput) error {
		for _, ep := range page.VpcEndpoints {
			id := awssdk.ToString(ep.VpcEndpointId)
			r := newResource(a, "aws::ec2::vpcendpoint", id, extractNameTag(ep.Tags), ep.Tags, awssdk.ToTime(ep.CreationTimestamp))
			r.Configuration = map[string]any{
				"vpcId": awssdk.ToString(ep.VpcId), "serviceName": awssdk.ToString(ep.ServiceName),
				"vpcEndpointType": string(ep.VpcEndpointType), "state": string(ep.State),
			}
			r.VpcID = awssdk.ToString(ep.VpcId)
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// EC2InstanceLister lists EC2 instances. Its failures are handled like any
// other lister's in the base registry: collected, and fatal to the Tier-A
// handler only when every lister in the registry fails.
type EC2InstanceLister struct{ Adapters *AdapterSet }

func (l EC2InstanceLister) Name() string { return "ec2.instance" }

func (l EC2InstanceLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := ec2.NewDescribeInstancesPaginator(a.EC2, &ec2.DescribeInstancesInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeInstancesOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *ec2.DescribeInstancesOutput) error {
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				id := awssdk.ToString(inst.InstanceId)
				r := newResource(a, "aws::ec2::instance", id, extractNameTag(inst.Tags), inst.Tags, awssdk.ToTime(inst.LaunchTime))
				r.AvailabilityZone = awssdk.ToString(inst.Placement.AvailabilityZone)
				r.Configuration = map[string]any{
					"instanceType": string(inst.InstanceType),
					"state":        string(inst.State.Name),
					"privateIp":    awssdk.ToString(inst.PrivateIpAddress),
					"publicIp":     awssdk.ToString(inst.PublicIpAddress),
				}
				r.VpcID = awssdk.ToString(inst.VpcId)
				r.SubnetID = awssdk.ToString(inst.SubnetId)
				private := inst.PublicIpAddress == nil
				r.Private = &private
				for _, sg := range inst.SecurityGroups {
					r.Relationships = append(r.Relationships, resource.Relationship{
						Source: id, Target: awssdk.ToString(sg.GroupId), Label: "is associated with",
					})
				}
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}
