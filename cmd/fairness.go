package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"swarmstress/internal/report"
)

var (
	fairnessTargets  []string
	fairnessTimeout  int
	fairnessInterval int
)

var fairnessCmd = &cobra.Command{
	Use:   "fairness",
	Short: "Poll replicas and report the traffic split",
	Long: `Fetches the request tally from every replica's metrics endpoint and
reports each one's share of the total. Deviation is the gap between the
busiest and idlest replica; 0 is a perfectly even split.

With --interval the poll repeats until interrupted, printing a fresh
report each round.`,
	RunE: runFairness,
}

func init() {
	fairnessCmd.Flags().StringSliceVarP(&fairnessTargets, "targets", "t", nil, "Replica base URLs (repeat or comma-separate)")
	fairnessCmd.Flags().IntVar(&fairnessTimeout, "timeout", 10, "Poll timeout in seconds")
	fairnessCmd.Flags().IntVar(&fairnessInterval, "interval", 0, "Repeat every N seconds (0 polls once)")
	fairnessCmd.MarkFlagRequired("targets")
}

func runFairness(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: time.Duration(fairnessTimeout) * time.Second}

	if fairnessInterval <= 0 {
		return pollOnce(ctx, client)
	}

	ticker := time.NewTicker(time.Duration(fairnessInterval) * time.Second)
	defer ticker.Stop()
	for {
		if err := pollOnce(ctx, client); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func pollOnce(ctx context.Context, client *http.Client) error {
	pollCtx, cancel := context.WithTimeout(ctx, time.Duration(fairnessTimeout)*time.Second)
	defer cancel()

	tallies, err := report.PollTargets(pollCtx, client, fairnessTargets)
	if err != nil {
		return err
	}
	return report.Fairness(tallies).WriteText(os.Stdout)
}
