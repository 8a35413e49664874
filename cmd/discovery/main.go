// Command discovery is the periodic AWS resource-discovery process. It
// takes no CLI arguments; every setting is read from the environment by
// internal/config, mirroring the source's option list (spec §6).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/aggregator"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/config"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/crawlwal"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/daemon"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/enrichment"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/graphstore"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/inference"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/orchestrator"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/policy"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider"
	provideraws "github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/provider/aws"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/searchindex"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/snapshot"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/telemetry"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/throttle"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := telemetry.NewLogger("discovery", cfg.LogLevel)

	telemetryProvider, err := telemetry.NewProvider(context.Background(), cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize telemetry provider")
		return 1
	}
	defer func() { _ = telemetryProvider.Shutdown(context.Background()) }()

	deps, closeDeps, err := buildDeps(context.Background(), cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build discovery dependencies")
		return 1
	}
	defer closeDeps()

	if cfg.ScheduleIntervalMS == 0 {
		result, err := orchestrator.Run(context.Background(), deps)
		code, msg := orchestrator.ExitCode(result, err)
		if msg != "" {
			logger.Info().Msg(msg)
		}
		return code
	}

	metricsPort := 0
	if cfg.MetricsEnabled {
		metricsPort = cfg.MetricsPort
	}
	d, err := daemon.NewDaemon(daemon.Config{
		Interval:    scheduleInterval(cfg),
		MetricsPort: metricsPort,
		Logger:      logger.Logger,
		Crawl: func(ctx context.Context) error {
			result, err := orchestrator.Run(ctx, deps)
			if err != nil {
				return err
			}
			if result.Skipped {
				logger.Info().Msg("scheduled crawl skipped: discovery already running")
			}
			return nil
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to construct daemon")
		return 1
	}

	if err := d.Start(context.Background()); err != nil {
		logger.Error().Err(err).Msg("daemon exited with error")
		return 1
	}
	return 0
}

func scheduleInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.ScheduleIntervalMS) * time.Millisecond
}

// providerCredentials adapts the root account's resolved SDK credentials
// into the provider.Credentials shape NewAdapterSet expects, the same shape
// AssumedCredentials produces for every other account.
func providerCredentials(creds aws.Credentials, accountID string) provider.Credentials {
	return provider.Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		Identity:        accountID,
	}
}

func buildDeps(ctx context.Context, cfg *config.Config, logger *telemetry.Logger) (*orchestrator.Deps, func(), error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, nil, fmt.Errorf("load default aws config: %w", err)
	}

	throttler := throttle.NewRegistry(throttle.DefaultTable)

	stsClient := sts.NewFromConfig(awsCfg)
	orgClient := organizations.NewFromConfig(awsCfg)
	ecsClient := ecs.NewFromConfig(awsCfg)
	configClient := configservice.NewFromConfig(awsCfg)
	aggregatorClient := configservice.NewFromConfig(awsCfg, func(o *configservice.Options) {
		o.Retryer = provideraws.NewAggregatorRetryer()
	})

	graphSigner, err := graphstore.NewSigner([]byte(cfg.GraphStoreSigningKey), cfg.GraphStoreIssuer, cfg.GraphStoreAudience)
	if err != nil {
		return nil, nil, fmt.Errorf("build graph store signer: %w", err)
	}
	graphClient := graphstore.NewClient(cfg.GraphStoreURL, graphSigner, nil)

	searchSigner, err := searchindex.NewSigner([]byte(cfg.SearchIndexSigningKey), cfg.SearchIndexIssuer, cfg.SearchIndexAudience)
	if err != nil {
		return nil, nil, fmt.Errorf("build search index signer: %w", err)
	}
	searchClient := searchindex.NewClient(cfg.SearchIndexURL, searchSigner, nil)

	walStore, err := crawlwal.Open(cfg.WALDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open crawl wal: %w", err)
	}
	snapshotStore, err := snapshot.Open(cfg.SnapshotDir)
	if err != nil {
		_ = walStore.Close()
		return nil, nil, fmt.Errorf("open snapshot store: %w", err)
	}

	policyEngine := policy.NewEngine(logger)

	rootCreds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		_ = walStore.Close()
		_ = snapshotStore.Close()
		return nil, nil, fmt.Errorf("retrieve root account credentials: %w", err)
	}
	ownAdapters, err := provideraws.NewAdapterSet(ctx, cfg.RootAccountID, cfg.Region, providerCredentials(rootCreds, cfg.RootAccountID), cfg.CustomUserAgent, throttler)
	if err != nil {
		_ = walStore.Close()
		_ = snapshotStore.Close()
		return nil, nil, fmt.Errorf("build root account adapters: %w", err)
	}
	adapterFactory := provideraws.NewAdapterFactory(ownAdapters, providerCredentials(rootCreds, cfg.RootAccountID), cfg.CustomUserAgent, throttler)

	deps := &orchestrator.Deps{
		Config:         cfg,
		Logger:         logger.Logger,
		OwnAdapters:    ownAdapters,
		AdapterFactory: adapterFactory,
		Throttler:      throttler,

		STSClient:        stsClient,
		OrgClient:        orgClient,
		ECSClient:        ecsClient,
		ConfigClient:     configClient,
		AggregatorReader: aggregator.NewReader(aggregatorClient, cfg.ConfigAggregatorName, throttler),

		Graph: graphClient,
		Index: searchClient,

		Enrichment: &enrichment.Pipeline{
			BatchHandlers:       provideraws.TierABatchHandlers(adapterFactory),
			FirstOrderHandlers:  provideraws.TierBFirstOrderHandlers(adapterFactory),
			SecondOrderHandlers: provideraws.TierCSecondOrderHandlers(adapterFactory),
		},
		Inference: &inference.Inferencer{
			Stage1Handlers: provideraws.Stage1Handlers(adapterFactory),
			Descriptors:    inference.BaseDescriptors(),
		},
		Policy: policyEngine,

		WAL:      walStore,
		Snapshot: snapshotStore,

		OwnTaskARN: os.Getenv("ECS_TASK_ARN"),
		IsOrgMode:  cfg.CrossAccountDiscovery == config.ModeOrganizations,
	}

	closeFn := func() {
		_ = walStore.Close()
		_ = snapshotStore.Close()
	}

	return deps, closeFn, nil
}
