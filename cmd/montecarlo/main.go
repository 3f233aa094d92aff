// Command montecarlo reshuffles a run's realized trades to estimate the
// drawdown distribution the strategy could have produced.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/priyakantc/smc-replay/internal/journal"
	"github.com/priyakantc/smc-replay/internal/observ"
	"github.com/priyakantc/smc-replay/internal/report"
)

func main() {
	var (
		journalPath string
		trials      int
		seed        int64
		ruinR       float64
	)

	cmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "Estimate drawdown risk by reshuffling a journal's trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := journal.ReadTrades(journalPath)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				return fmt.Errorf("journal %s holds no closed trades", journalPath)
			}

			res := report.MonteCarlo(trades, trials, seed, ruinR)
			out, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&journalPath, "journal", "j", "data/journal.jsonl", "journal file from a replay run")
	cmd.Flags().IntVarP(&trials, "trials", "n", 1000, "number of reshuffled trials")
	cmd.Flags().Int64Var(&seed, "seed", 1, "base seed; trial i uses seed+i")
	cmd.Flags().Float64Var(&ruinR, "ruin-r", 20, "cumulative drawdown in R treated as ruin")

	if err := cmd.Execute(); err != nil {
		observ.Error("montecarlo_failed", err, nil)
		os.Exit(1)
	}
}
