package cmd

import (
	"fmt"

	"github.com/baaaht/mqueue/pkg/types"
	"github.com/baaaht/mqueue/pkg/workload"
	"github.com/spf13/cobra"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Replay the reference queue scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}

		failed := 0
		out := cmd.OutOrStdout()
		for _, r := range workload.RunScenarios(cfg.MQueue, rootLog) {
			status := "PASS"
			if !r.Passed {
				status = "FAIL"
				failed++
			}
			fmt.Fprintf(out, "%-4s %-22s %s", status, r.Name, r.Duration)
			if r.Error != "" {
				fmt.Fprintf(out, "  %s", r.Error)
			}
			fmt.Fprintln(out)
		}

		if failed > 0 {
			return types.NewError(types.ErrCodeInternal, fmt.Sprintf("%d scenario(s) failed", failed))
		}
		return nil
	},
}
