package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/baaaht/mqueue/pkg/mqueue"
	"github.com/baaaht/mqueue/pkg/sched"
	"github.com/baaaht/mqueue/pkg/workload"
	"github.com/spf13/cobra"
)

var (
	runProducers int
	runConsumers int
	runMessages  int
	runQueue     string
	runJSON      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the producer/consumer workload over a named queue",
	Long: `Run boots a scheduler and queue registry from the configuration, then drives
producers and consumers over one named queue until every record is delivered.
Consumers are stopped with a lowest-priority shutdown record.`,
	RunE: runWorkload,
}

func runWorkload(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	if runProducers > 0 {
		cfg.Workload.Producers = runProducers
	}
	if runConsumers > 0 {
		cfg.Workload.Consumers = runConsumers
	}
	if runMessages >= 0 {
		cfg.Workload.Messages = runMessages
	}
	if runQueue != "" {
		cfg.Workload.QueueName = runQueue
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := mqueue.New(cfg.MQueue, rootLog)
	if err != nil {
		return err
	}
	defer reg.Shutdown()

	runner, err := workload.New(cfg.Workload, reg, sched.New(rootLog), rootLog)
	if err != nil {
		return err
	}

	res, err := runner.Run(ctx)
	if res != nil {
		if runJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return encErr
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "sent=%d received=%d timeouts=%d elapsed=%s\n",
				res.Sent, res.Received, res.Timeouts, res.Elapsed)
		}
	}
	return err
}

func init() {
	runCmd.Flags().IntVar(&runProducers, "producers", 0, "Number of producer tasks (default: from config)")
	runCmd.Flags().IntVar(&runConsumers, "consumers", 0, "Number of consumer tasks (default: from config)")
	runCmd.Flags().IntVar(&runMessages, "messages", -1, "Records per producer (default: from config)")
	runCmd.Flags().StringVar(&runQueue, "queue", "", "Queue name (default: from config)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the result as JSON")
}
