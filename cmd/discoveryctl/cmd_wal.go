package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/crawlwal"
)

var (
	walDir   string
	walSince string
)

var walCmd = &cobra.Command{
	Use:   "wal",
	Short: "Inspect the crawl write-ahead log",
}

var walReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay WAL entries since a given time, printing each one",
	Example: `  discoveryctl wal replay --dir ./data/wal
  discoveryctl wal replay --dir ./data/wal --since 2026-08-01T00:00:00Z`,
	RunE: runWalReplay,
}

func init() {
	rootCmd.AddCommand(walCmd)
	walCmd.AddCommand(walReplayCmd)

	walReplayCmd.Flags().StringVar(&walDir, "dir", "./data/wal", "WAL directory")
	walReplayCmd.Flags().StringVar(&walSince, "since", "", "RFC3339 timestamp; defaults to the beginning of time")
}

func runWalReplay(cmd *cobra.Command, args []string) error {
	since := time.Time{}
	if walSince != "" {
		t, err := time.Parse(time.RFC3339, walSince)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		since = t
	}

	count := 0
	err := crawlwal.Replay(walDir, since, func(e *crawlwal.Entry) error {
		count++
		if e.Error != "" {
			fmt.Printf("%s seq=%d type=%s phase=%s error=%s\n", e.Timestamp.Format(time.RFC3339), e.Sequence, e.Type, e.Phase, e.Error)
			return nil
		}
		fmt.Printf("%s seq=%d type=%s phase=%s data=%s\n", e.Timestamp.Format(time.RFC3339), e.Sequence, e.Type, e.Phase, string(e.Data))
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay wal: %w", err)
	}

	fmt.Printf("\n%d entries\n", count)
	return nil
}
