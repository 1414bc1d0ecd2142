package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"logincheck/internal/logging"
	"logincheck/internal/store"

	"github.com/spf13/cobra"
)

var (
	historyLimit     int
	historyOlderThan time.Duration
)

// historyCmd lists recorded runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent login verification runs",
	Args:  cobra.NoArgs,
	RunE:  listHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the step breakdown of one run (an ID prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than --older-than",
	Args:  cobra.NoArgs,
	RunE:  pruneHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "Age threshold")

	historyCmd.AddCommand(historyShowCmd, historyPruneCmd)
}

var errHistoryDisabled = errors.New("run history is disabled (history.database_path is empty)")

func openHistory() (*store.RunStore, error) {
	if cfg.History.DatabasePath == "" {
		return nil, errHistoryDisabled
	}
	return store.Open(cfg.History.DatabasePath, logs.Get(logging.CategoryStore))
}

func listHistory(cmd *cobra.Command, args []string) error {
	s, err := openHistory()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	runs, err := s.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Use 'logincheck run' to start one.")
		return nil
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Print(renderHistory(runs, stats))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	s, err := openHistory()
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := s.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Print(renderRun(run))
	return nil
}

func pruneHistory(cmd *cobra.Command, args []string) error {
	if historyOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	s, err := openHistory()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Prune(context.Background(), historyOlderThan)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d run(s) older than %s\n", n, historyOlderThan)
	return nil
}
