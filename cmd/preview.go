package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/askelund/spotheat/config"
	"github.com/askelund/spotheat/core/model"
	"github.com/askelund/spotheat/core/prices"
	"github.com/askelund/spotheat/core/schedule"
	"github.com/askelund/spotheat/infra/logger"
	"github.com/askelund/spotheat/infra/prices/nordpool"
)

var (
	previewZone         string
	previewComfortHours int
	previewPercentile   float64
	previewMaxGap       int
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the schedule the optimizer would compute right now",
	Long: `Preview fetches the current price horizon and classifies it with the
given tuning. It touches no per-user state and pushes nothing to devices,
so it is safe to run next to a live service.`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewZone, "zone", "", "price zone (defaults to the first configured zone)")
	previewCmd.Flags().IntVar(&previewComfortHours, "comfort-hours", model.DefaultComfortHours, "target comfort hours per day")
	previewCmd.Flags().Float64Var(&previewPercentile, "percentile", model.DefaultTurnOffPercentile, "turn-off price percentile")
	previewCmd.Flags().IntVar(&previewMaxGap, "max-gap", model.DefaultMaxComfortGapHours, "maximum hours between comfort runs")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	zone := previewZone
	if zone == "" {
		zone = cfg.Zones[0]
	}

	settings := model.ScheduleSettings{
		ComfortHours:       previewComfortHours,
		TurnOffPercentile:  previewPercentile,
		MaxComfortGapHours: previewMaxGap,
		Zone:               zone,
	}
	if normalized, clamped := settings.Normalize(0); clamped {
		fmt.Println("note: settings out of range, clamped")
		settings = normalized
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	src := prices.NewCachedSource(nordpool.NewClient(cfg.Prices), logger.NopLogger{})
	series, err := src.Horizon(ctx, zone, now)
	if err != nil {
		return fmt.Errorf("fetch prices for %s: %w", zone, err)
	}
	decision, err := schedule.Classify(series, settings, now)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	fmt.Printf("zone %s, %d hours in horizon\n", zone, len(decision))
	for _, h := range decision {
		fmt.Printf("%s  %8.4f  %s\n", h.Hour.Format("2006-01-02 15:04"), h.Price, h.State)
	}
	return nil
}
