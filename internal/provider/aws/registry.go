package aws

import "github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider"

// BaseResourceListers returns every registered Lister for a's account and
// region, mirroring the teacher's listers.go roster but generalized from
// "critical vs optional" booleans to the tiered enrichment pipeline: this
// registry covers Tier A (the base resource inventory), later tiers add
// their own enrichers against the resources this registry discovers.
func BaseResourceListers(a *AdapterSet) []provider.Lister {
	return []provider.Lister{
		EC2InstanceLister{Adapters: a},
		VPCLister{Adapters: a},
		SubnetLister{Adapters: a},
		RouteTableLister{Adapters: a},
		InternetGatewayLister{Adapters: a},
		NATGatewayLister{Adapters: a},
		VPCPeeringLister{Adapters: a},
		TransitGatewayLister{Adapters: a},
		SecurityGroupLister{Adapters: a},
		NetworkInterfaceLister{Adapters: a},
		EBSVolumeLister{Adapters: a},
		SnapshotLister{Adapters: a},
		AMILister{Adapters: a},
		ElasticIPLister{Adapters: a},
		VPCEndpointLister{Adapters: a},
		IAMRoleLister{Adapters: a},
		IAMUserLister{Adapters: a},
		LambdaLister{Adapters: a},
		ECSClusterLister{Adapters: a},
		EKSClusterLister{Adapters: a},
		ELBLister{Adapters: a},
		AutoScalingGroupLister{Adapters: a},
		RDSInstanceLister{Adapters: a},
		RDSClusterLister{Adapters: a},
		RDSSnapshotLister{Adapters: a},
		RedshiftClusterLister{Adapters: a},
		RedshiftSnapshotLister{Adapters: a},
		MemoryDBClusterLister{Adapters: a},
		DynamoDBTableLister{Adapters: a},
		DynamoDBBackupLister{Adapters: a},
		S3BucketLister{Adapters: a},
		SQSQueueLister{Adapters: a},
		SNSTopicLister{Adapters: a},
		Route53ZoneLister{Adapters: a},
		KMSKeyLister{Adapters: a},
		ECRRepositoryLister{Adapters: a},
		CloudWatchLogGroupLister{Adapters: a},
		APIGatewayRestAPILister{Adapters: a},
		AppSyncAPILister{Adapters: a},
		AppRegistryApplicationLister{Adapters: a},
		MediaConnectFlowLister{Adapters: a},
		OpenSearchDomainLister{Adapters: a},
	}
}

// NewBaseRegistry wires BaseResourceListers into a provider.Registry.
func NewBaseRegistry(a *AdapterSet) *provider.Registry {
	return provider.NewRegistry(BaseResourceListers(a)...)
}
