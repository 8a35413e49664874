// Package initializer runs the pre-flight checks the Orchestrator requires
// before a crawl starts: VPC reachability, scheduler single-flight, and
// aggregator validation (spec §4.3). Grounded on the teacher's errgroup
// fan-out idiom, generalized from a single health check to a concurrent
// probe set.
package initializer

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"golang.org/x/sync/errgroup"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/config"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/errkind"
)

const probeDialTimeout = 5 * time.Second

// ProbeTargets is the VPC reachability probe target list from spec §4.3.
// Organizations is only probed in organization mode.
func ProbeTargets(region string, organizationMode bool) map[string]string {
	targets := map[string]string{
		"sts":              "sts." + region + ".amazonaws.com:443",
		"iam":              "iam.amazonaws.com:443",
		"config":           "config." + region + ".amazonaws.com:443",
		"apigateway":       "apigateway." + region + ".amazonaws.com:443",
		"ec2":              "ec2." + region + ".amazonaws.com:443",
		"ecs":              "ecs." + region + ".amazonaws.com:443",
		"cognito-identity": "cognito-identity." + region + ".amazonaws.com:443",
		"opensearch":       "es." + region + ".amazonaws.com:443",
		"logs":             "logs." + region + ".amazonaws.com:443",
	}
	if organizationMode {
		targets["organizations"] = "organizations.us-east-1.amazonaws.com:443"
	}
	return targets
}

// CheckReachability dials every probe target plus the configured graph
// store URL host concurrently, returning the first dial error encountered.
// A VPC misconfiguration is fatal (errkind.VpcConfigurationValidation):
// nothing downstream can succeed without network access to these services.
func CheckReachability(ctx context.Context, cfg *config.Config, organizationMode bool) error {
	targets := ProbeTargets(cfg.Region, organizationMode)
	if host := graphStoreHost(cfg.GraphStoreURL); host != "" {
		targets["graphstore"] = host
	}

	g, ctx := errgroup.WithContext(ctx)
	for name, addr := range targets {
		name, addr := name, addr
		g.Go(func() error {
			dialer := net.Dialer{Timeout: probeDialTimeout}
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return errkind.Wrap(errkind.VpcConfigurationValidation, err,
					fmt.Sprintf("unreachable: %s (%s)", name, addr))
			}
			return conn.Close()
		})
	}
	return g.Wait()
}

func graphStoreHost(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, ":") {
		trimmed += ":443"
	}
	return trimmed
}

// CheckNotAlreadyRunning counts the running ECS tasks in the discovery
// cluster/family per task-definition ARN (version suffix stripped) and
// returns errkind.DiscoveryAlreadyRunning if more than one task of the same
// definition is running.
func CheckNotAlreadyRunning(ctx context.Context, client *ecs.Client, clusterName, taskFamily, ownTaskARN string) error {
	list, err := client.ListTasks(ctx, &ecs.ListTasksInput{
		Cluster: awssdk.String(clusterName), Family: awssdk.String(taskFamily),
	})
	if err != nil {
		return fmt.Errorf("initializer: list tasks: %w", err)
	}
	if len(list.TaskArns) == 0 {
		return nil
	}

	desc, err := client.DescribeTasks(ctx, &ecs.DescribeTasksInput{Cluster: awssdk.String(clusterName), Tasks: list.TaskArns})
	if err != nil {
		return fmt.Errorf("initializer: describe tasks: %w", err)
	}

	running := make(map[string]int)
	for _, t := range desc.Tasks {
		if t.LastStatus == nil || *t.LastStatus != "RUNNING" {
			continue
		}
		def := stripTaskVersion(awssdk.ToString(t.TaskDefinitionArn))
		running[def]++
		if running[def] > 1 {
			return errkind.New(errkind.DiscoveryAlreadyRunning, "another discovery task is already running in this cluster")
		}
	}
	return nil
}

func stripTaskVersion(arn string) string {
	if idx := strings.LastIndex(arn, ":"); idx >= 0 {
		return arn[:idx]
	}
	return arn
}

// ValidateAggregator requires the named aggregator to exist and, in
// organization mode, to carry a non-nil OrganizationAggregationSource.
// Both failures are fatal (errkind.AggregatorNotFound /
// errkind.OrgAggregatorValidation): nothing can be discovered without it.
func ValidateAggregator(ctx context.Context, client *configservice.Client, aggregatorName string, organizationMode bool) error {
	out, err := client.DescribeConfigurationAggregators(ctx, &configservice.DescribeConfigurationAggregatorsInput{
		ConfigurationAggregatorNames: []string{aggregatorName},
	})
	if err != nil {
		return errkind.Wrap(errkind.AggregatorNotFound, err, "describe configuration aggregators failed")
	}
	if len(out.ConfigurationAggregators) == 0 {
		return errkind.New(errkind.AggregatorNotFound, fmt.Sprintf("aggregator %q does not exist", aggregatorName))
	}
	if organizationMode && out.ConfigurationAggregators[0].OrganizationAggregationSource == nil {
		return errkind.New(errkind.OrgAggregatorValidation,
			fmt.Sprintf("aggregator %q has no OrganizationAggregationSource but organization mode is configured", aggregatorName))
	}
	return nil
}
