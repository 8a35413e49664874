package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/snapshot"
)

var snapshotDir string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect the local pre-crawl snapshot cache",
}

var snapshotSummaryCmd = &cobra.Command{
	Use:     "summary",
	Short:   "Print the resource and relationship counts in the snapshot cache",
	Example: `  discoveryctl snapshot summary --dir ./data/snapshot`,
	RunE:    runSnapshotSummary,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotSummaryCmd)

	snapshotSummaryCmd.Flags().StringVar(&snapshotDir, "dir", "./data/snapshot", "Snapshot cache directory")
}

func runSnapshotSummary(cmd *cobra.Command, args []string) error {
	store, err := snapshot.Open(snapshotDir)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = store.Close() }()

	resources, err := store.Resources()
	if err != nil {
		return fmt.Errorf("read resources: %w", err)
	}
	relationships, err := store.Relationships()
	if err != nil {
		return fmt.Errorf("read relationships: %w", err)
	}

	byType := make(map[string]int)
	for _, r := range resources {
		byType[r.Type]++
	}

	fmt.Printf("resources: %d\n", len(resources))
	for typ, count := range byType {
		fmt.Printf("  %s: %d\n", typ, count)
	}
	fmt.Printf("relationships: %d\n", len(relationships))
	return nil
}
