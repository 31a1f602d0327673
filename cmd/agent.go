package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"swarmstress/internal/agent"
	"swarmstress/internal/profile"
	"swarmstress/internal/report"
	"swarmstress/internal/tui"
)

var (
	agentTarget   string
	agentUsers    int
	agentDuration int
	agentTimeout  int
	agentSeed     int64
	agentProfiles string
	agentOut      string
	agentLive     bool
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Generate organic traffic sessions against a target",
	Long: `Runs a pool of simulated users against the target URL. Each user
draws a behavior profile (casual browser, power user, shopper, bot,
mobile), browses a weighted mix of endpoints with think time between
pages, and is replaced by a fresh session the moment it finishes.`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentTarget, "target", "t", "http://localhost:7777", "Target base URL")
	agentCmd.Flags().IntVarP(&agentUsers, "users", "U", 10, "Concurrent simulated users")
	agentCmd.Flags().IntVarP(&agentDuration, "duration", "d", 60, "Run duration in seconds")
	agentCmd.Flags().IntVar(&agentTimeout, "timeout", 10, "Per-request timeout in seconds")
	agentCmd.Flags().Int64Var(&agentSeed, "seed", 0, "RNG seed (0 means time-based)")
	agentCmd.Flags().StringVar(&agentProfiles, "profiles", "", "YAML file overriding the built-in profile mix")
	agentCmd.Flags().StringVarP(&agentOut, "log-file", "o", "", "Append the run summary to this file")
	agentCmd.Flags().BoolVar(&agentLive, "live", false, "Show the live dashboard")
}

func runAgent(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := profile.Builtin()
	if agentProfiles != "" {
		registry, err = profile.LoadFile(agentProfiles)
		if err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
	}

	duration := time.Duration(agentDuration) * time.Second
	cfg := agent.Config{
		TargetURL:   strings.TrimRight(agentTarget, "/"),
		Concurrency: agentUsers,
		Duration:    duration,
		Timeout:     time.Duration(agentTimeout) * time.Second,
		Seed:        agentSeed,
		Registry:    registry,
	}

	updates := make(agent.SnapshotChan, 100)
	runner := agent.NewRunner(cfg, logger, updates)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summary *report.Summary
	if agentLive {
		summary, err = runWithDashboard(ctx, stop, runner, cfg, updates)
	} else {
		summary, err = runHeadless(ctx, runner, cfg, updates)
	}
	if err != nil {
		return err
	}

	if err := summary.WriteText(os.Stdout); err != nil {
		return err
	}
	if agentOut != "" {
		if err := summary.AppendToFile(agentOut); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return nil
}

func runWithDashboard(ctx context.Context, cancel func(), runner *agent.Runner, cfg agent.Config, updates agent.SnapshotChan) (*report.Summary, error) {
	m := tui.NewModel(cfg.TargetURL, cfg.Duration, updates, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen())

	done := make(chan *report.Summary, 1)
	go func() {
		done <- runner.Run(ctx)
		p.Send(tui.DoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	return <-done, nil
}

func runHeadless(ctx context.Context, runner *agent.Runner, cfg agent.Config, updates agent.SnapshotChan) (*report.Summary, error) {
	fmt.Printf("target: %s  users: %d  duration: %s\n", cfg.TargetURL, cfg.Concurrency, cfg.Duration)

	done := make(chan *report.Summary, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	var lastReqs uint64
	lastAt := time.Now()
	for {
		select {
		case snap := <-updates:
			now := time.Now()
			dt := now.Sub(lastAt).Seconds()
			if dt < 0.2 {
				continue
			}
			rps := float64(snap.Requests-lastReqs) / dt
			lastReqs = snap.Requests
			lastAt = now

			pct := float64(snap.Elapsed) / float64(cfg.Duration)
			if pct > 1.0 {
				pct = 1.0
			}
			fmt.Printf("\r%s %3.0f%% | active: %3d | rps: %6.1f | ok: %d | err: %d   ",
				progressBar(pct, 20), pct*100, snap.Active, rps, snap.Success, snap.Fail)

		case summary := <-done:
			fmt.Println()
			return summary, nil
		}
	}
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}
