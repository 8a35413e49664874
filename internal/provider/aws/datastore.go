package aws

import (
	"context"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/memorydb"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

// RDSInstanceLister lists RDS (incl. Aurora member) instances.
type RDSInstanceLister struct{ Adapters *AdapterSet }

func (l RDSInstanceLister) Name() string { return "rds.dbInstance" }

func (l RDSInstanceLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := rds.NewDescribeDBInstancesPaginator(a.RDS, &rds.DescribeDBInstancesInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*rds.DescribeDBInstancesOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *rds.DescribeDBInstancesOutput) error {
		for _, db := range page.DBInstances {
			id := awssdk.ToString(db.DBInstanceArn)
			r := resource.Resource{
				ID: id, Type: "aws::rds::dbinstance", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(db.DBInstanceIdentifier), ResourceName: awssdk.ToString(db.DBInstanceIdentifier),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(db.InstanceCreateTime),
			}
			for _, t := range db.TagList {
				r.Tags.Set(awssdk.ToString(t.Key), awssdk.ToString(t.Value))
			}
			r.Configuration = map[string]any{
				"engine": awssdk.ToString(db.Engine), "engineVersion": awssdk.ToString(db.EngineVersion),
				"dbInstanceClass": awssdk.ToString(db.DBInstanceClass), "status": awssdk.ToString(db.DBInstanceStatus),
			}
			if db.DBClusterIdentifier != nil {
				r.Relationships = append(r.Relationships, resource.Relationship{
					Source: awssdk.ToString(db.DBClusterIdentifier), Target: id, Label: "contains",
				})
			}
			if db.DBSubnetGroup != nil {
				r.VpcID = awssdk.ToString(db.DBSubnetGroup.VpcId)
				for _, sn := range db.DBSubnetGroup.Subnets {
					if sn.SubnetIdentifier != nil {
						r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: awssdk.ToString(sn.SubnetIdentifier), Label: "is contained in"})
					}
				}
			}
			for _, sg := range db.VpcSecurityGroups {
				r.Relationships = append(r.Relationships, resource.Relationship{Source: id, Target: awssdk.ToString(sg.VpcSecurityGroupId), Label: "is associated with"})
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// RDSClusterLister lists Aurora clusters.
type RDSClusterLister struct{ Adapters *AdapterSet }

func (l RDSClusterLister) Name() string { return "rds.dbCluster" }

func (l RDSClusterLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := rds.NewDescribeDBClustersPaginator(a.RDS, &rds.DescribeDBClustersInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*rds.DescribeDBClustersOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *rds.DescribeDBClustersOutput) error {
		for _, c := range page.DBClusters {
			id := awssdk.ToString(c.DBClusterArn)
			r := resource.Resource{
				ID: id, Type: "aws::rds::dbcluster", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(c.DBClusterIdentifier), ResourceName: awssdk.ToString(c.DBClusterIdentifier),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(c.ClusterCreateTime),
			}
			for _, t := range c.TagList {
				r.Tags.Set(awssdk.ToString(t.Key), awssdk.ToString(t.Value))
			}
			r.Configuration = map[string]any{"engine": awssdk.ToString(c.Engine), "status": awssdk.ToString(c.Status)}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// RDSSnapshotLister lists DB snapshots.
type RDSSnapshotLister struct{ Adapters *AdapterSet }

func (l RDSSnapshotLister) Name() string { return "rds.dbSnapshot" }

func (l RDSSnapshotLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := rds.NewDescribeDBSnapshotsPaginator(a.RDS, &rds.DescribeDBSnapshotsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*rds.DescribeDBSnapshotsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *rds.DescribeDBSnapshotsOutput) error {
		for _, s := range page.DBSnapshots {
			id := awssdk.ToString(s.DBSnapshotArn)
			r := resource.Resource{
				ID: id, Type: "aws::rds::dbsnapshot", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(s.DBSnapshotIdentifier), ResourceName: awssdk.ToString(s.DBSnapshotIdentifier),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(s.SnapshotCreateTime),
			}
			r.Configuration = map[string]any{"status": awssdk.ToString(s.Status), "engine": awssdk.ToString(s.Engine)}
			r.Relationships = append(r.Relationships, resource.Relationship{
				Source: id, Target: awssdk.ToString(s.DBInstanceIdentifier), Label: "is associated with",
			})
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// RedshiftClusterLister lists Redshift clusters.
type RedshiftClusterLister struct{ Adapters *AdapterSet }

func (l RedshiftClusterLister) Name() string { return "redshift.cluster" }

func (l RedshiftClusterLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := redshift.NewDescribeClustersPaginator(a.Redshift, &redshift.DescribeClustersInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*redshift.DescribeClustersOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *redshift.DescribeClustersOutput) error {
		for _, c := range page.Clusters {
			id := a.AccountID + ":" + awssdk.ToString(c.ClusterIdentifier)
			r := resource.Resource{
				ID: id, Type: "aws::redshift::cluster", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(c.ClusterIdentifier), ResourceName: awssdk.ToString(c.ClusterIdentifier),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(c.ClusterCreateTime),
			}
			for _, t := range c.Tags {
				r.Tags.Set(awssdk.ToString(t.Key), awssdk.ToString(t.Value))
			}
			r.Configuration = map[string]any{
				"nodeType": awssdk.ToString(c.NodeType), "numberOfNodes": c.NumberOfNodes,
				"status": awssdk.ToString(c.ClusterStatus),
			}
			r.VpcID = awssdk.ToString(c.VpcId)
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// RedshiftSnapshotLister lists Redshift cluster snapshots.
type RedshiftSnapshotLister struct{ Adapters *AdapterSet }

func (l RedshiftSnapshotLister) Name() string { return "redshift.clusterSnapshot" }

func (l RedshiftSnapshotLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := redshift.NewDescribeClusterSnapshotsPaginator(a.Redshift, &redshift.DescribeClusterSnapshotsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*redshift.DescribeClusterSnapshotsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *redshift.DescribeClusterSnapshotsOutput) error {
		for _, s := range page.Snapshots {
			id := a.AccountID + ":" + awssdk.ToString(s.SnapshotIdentifier)
			r := resource.Resource{
				ID: id, Type: "aws::redshift::clustersnapshot", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(s.SnapshotIdentifier), ResourceName: awssdk.ToString(s.SnapshotIdentifier),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(s.SnapshotCreateTime),
			}
			r.Configuration = map[string]any{"status": awssdk.ToString(s.Status)}
			r.Relationships = append(r.Relationships, resource.Relationship{
				Source: id, Target: awssdk.ToString(s.ClusterIdentifier), Label: "is associated with",
			})
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// MemoryDBClusterLister lists MemoryDB clusters.
type MemoryDBClusterLister struct{ Adapters *AdapterSet }

func (l MemoryDBClusterLister) Name() string { return "memorydb.cluster" }

func (l MemoryDBClusterLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := memorydb.NewDescribeClustersPaginator(a.MemoryDB, &memorydb.DescribeClustersInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*memorydb.DescribeClustersOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "ec2.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *memorydb.DescribeClustersOutput) error {
		for _, c := range page.Clusters {
			id := awssdk.ToString(c.ARN)
			r := resource.Resource{
				ID: id, Type: "aws::memorydb::cluster", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(c.Name), ResourceName: awssdk.ToString(c.Name),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK", ConfigurationItemCaptureTime: time.Now(),
			}
			r.Configuration = map[string]any{
				"nodeType": awssdk.ToString(c.NodeType), "status": awssdk.ToString(c.Status),
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// DynamoDBTableLister lists DynamoDB tables.
type DynamoDBTableLister struct{ Adapters *AdapterSet }

func (l DynamoDBTableLister) Name() string { return "dynamodb.table" }

func (l DynamoDBTableLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := dynamodb.NewListTablesPaginator(a.DynamoDB, &dynamodb.ListTablesInput{})
	var names []string
	err := provider.Drain(ctx, provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*dynamodb.ListTablesOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "dynamodb.streams.describe") }), func(page *dynamodb.ListTablesOutput) error {
		names = append(names, page.TableNames...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []resource.Resource
	for _, name := range names {
		if err := a.wait(ctx, "dynamodb.streams.describe"); err != nil {
			return nil, err
		}
		desc, err := a.DynamoDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: awssdk.String(name)})
		if err != nil {
			return nil, err
		}
		t := desc.Table
		id := awssdk.ToString(t.TableArn)
		r := resource.Resource{
			ID: id, Type: "aws::dynamodb::table", Provider: "aws",
			AccountID: a.AccountID, Region: a.Region,
			ResourceID: name, ResourceName: name,
			Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
			ConfigurationItemCaptureTime: awssdk.ToTime(t.CreationDateTime),
		}
		r.Configuration = map[string]any{"status": string(t.TableStatus), "itemCount": awssdk.ToInt64(t.ItemCount)}
		if t.StreamSpecification != nil && awssdk.ToBool(t.StreamSpecification.StreamEnabled) {
			r.SupplementaryConfiguration = map[string]any{"streamViewType": string(t.StreamSpecification.StreamViewType)}
		}
		out = append(out, r)
	}
	return out, nil
}

// DynamoDBBackupLister lists DynamoDB table backups.
type DynamoDBBackupLister struct{ Adapters *AdapterSet }

func (l DynamoDBBackupLister) Name() string { return "dynamodb.backup" }

func (l DynamoDBBackupLister) List(ctx context.Context, account, region string) ([]resource.Resource, error) {
	a := l.Adapters
	p := dynamodb.NewListBackupsPaginator(a.DynamoDB, &dynamodb.ListBackupsInput{})
	pg := provider.NewPaginator(p.HasMorePages, func(ctx context.Context) (*dynamodb.ListBackupsOutput, error) {
		return p.NextPage(ctx)
	}, func(ctx context.Context) error { return a.wait(ctx, "dynamodb.streams.describe") })

	var out []resource.Resource
	err := provider.Drain(ctx, pg, func(page *dynamodb.ListBackupsOutput) error {
		for _, b := range page.BackupSummaries {
			id := awssdk.ToString(b.BackupArn)
			r := resource.Resource{
				ID: id, Type: "aws::dynamodb::backup", Provider: "aws",
				AccountID: a.AccountID, Region: a.Region,
				ResourceID: awssdk.ToString(b.BackupName), ResourceName: awssdk.ToString(b.BackupName),
				Tags: resource.NewTags(), ConfigurationItemStatus: "OK",
				ConfigurationItemCaptureTime: awssdk.ToTime(b.BackupCreationDateTime),
			}
			r.Configuration = map[string]any{"status": string(b.BackupStatus)}
			r.Relationships = append(r.Relationships, resource.Relationship{
				Source: awssdk.ToString(b.TableArn), Target: id, Label: "contains",
			})
			out = append(out, r)
		}
		return nil
	})
	return out, err
}
