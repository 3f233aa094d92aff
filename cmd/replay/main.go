// Command replay runs the tick pipeline over a recorded quote file and
// prints the run summary.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/priyakantc/smc-replay/internal/config"
	"github.com/priyakantc/smc-replay/internal/engine"
	"github.com/priyakantc/smc-replay/internal/feed"
	"github.com/priyakantc/smc-replay/internal/observ"
	"github.com/priyakantc/smc-replay/internal/report"
	"github.com/priyakantc/smc-replay/internal/tick"
)

type flags struct {
	configPath  string
	ticksPath   string
	source      string
	metricsAddr string
	live        bool
}

func (f *flags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "config.yaml", "engine config file")
	fs.StringVarP(&f.ticksPath, "ticks", "t", "", "tick CSV file")
	fs.StringVar(&f.source, "source", string(tick.SourceDukascopy), "feed source tag")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	fs.BoolVar(&f.live, "live", false, "pace ticks with the live rate limiter instead of free-running")
}

func main() {
	var f flags

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded tick stream through the signal pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			if f.metricsAddr != "" {
				go func() {
					if err := http.ListenAndServe(f.metricsAddr, observ.Handler()); err != nil {
						observ.Warn("metrics_server_stopped", map[string]any{"error": err.Error()})
					}
				}()
			}

			src, err := feed.OpenCSV(f.ticksPath, tick.Source(f.source))
			if err != nil {
				return err
			}
			defer src.Close()

			loop, err := engine.NewLoop(cfg, engine.Options{Live: f.live})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			observ.Log("replay_start", map[string]any{
				"instrument": cfg.Instrument, "ticks": f.ticksPath,
			})
			if err := loop.Run(ctx, src); err != nil && err != context.Canceled {
				return err
			}

			summary := report.Summarize(loop.Tracker().Closed())
			out, _ := json.MarshalIndent(summary, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	f.register(cmd.Flags())
	cmd.MarkFlagRequired("ticks")

	if err := cmd.Execute(); err != nil {
		observ.Error("replay_failed", err, nil)
		os.Exit(1)
	}
}
