package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"swarmstress/internal/server"
	"swarmstress/internal/stress"
)

var (
	servePort        int
	serveID          string
	serveCPUWorkers  int
	serveMemoryMB    int
	serveNetworkMB   int
	serveMaxDuration int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a target replica",
	Long: `Serves the content endpoints the agent browses, the fairness tally,
and the /extreme saturation surface. Every tracked response carries
X-Server-ID so agents can attribute it to this replica.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 7777, "Listen port")
	serveCmd.Flags().StringVar(&serveID, "server-id", "", "Replica identity (default: hostname)")
	serveCmd.Flags().IntVar(&serveCPUWorkers, "max-cpu-workers", 32, "Ceiling on CPU burn workers per job")
	serveCmd.Flags().IntVar(&serveMemoryMB, "max-memory-mb", 4096, "Ceiling on held memory per job")
	serveCmd.Flags().IntVar(&serveNetworkMB, "max-network-mb", 1024, "Ceiling on streamed payload size")
	serveCmd.Flags().IntVar(&serveMaxDuration, "max-duration", 300, "Ceiling on job duration in seconds")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	id := serveID
	if id == "" {
		id, err = os.Hostname()
		if err != nil {
			id = "unknown"
		}
	}

	s := server.New(server.Config{
		Port:     servePort,
		ServerID: id,
		Limits: stress.Limits{
			MaxCPUWorkers: serveCPUWorkers,
			MaxMemoryMB:   serveMemoryMB,
			MaxNetworkMB:  serveNetworkMB,
			MaxDuration:   time.Duration(serveMaxDuration) * time.Second,
		},
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Start(ctx)
}
