package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"iot-traffic-sim/internal/app"
	"iot-traffic-sim/internal/config"
	"iot-traffic-sim/internal/format"
)

func newSimulateCommand(cfg *config.Config) *cobra.Command {
	var (
		ticks  int
		step   time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the simulation headless and print a summary",
		Long: `Runs traffic ticks and alert checks back to back on a virtual clock that
advances by --step after every tick, then prints the resulting analytics.
Use --seed for reproducible output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticks <= 0 {
				return fmt.Errorf("ticks must be positive, got %d", ticks)
			}
			if step <= 0 {
				step = cfg.TrafficInterval
			}

			clock := time.Now()
			a, err := app.New(cmd.Context(), cfg, app.WithClock(func() time.Time { return clock }))
			if err != nil {
				return err
			}
			defer a.Close()

			rep := a.Simulate(cmd.Context(), ticks, func() { clock = clock.Add(step) })

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return printReport(cmd.OutOrStdout(), rep, step)
		},
	}

	cmd.Flags().IntVarP(&ticks, "ticks", "n", 100, "Number of traffic ticks to run")
	cmd.Flags().DurationVar(&step, "step", 0, "Virtual time per tick (defaults to the traffic interval)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full report as JSON")
	return cmd
}

func printReport(out io.Writer, rep app.Report, step time.Duration) error {
	snap := rep.Snapshot
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Ticks\t%d (%s simulated)\n", rep.Ticks, time.Duration(rep.Ticks)*step)
	fmt.Fprintf(w, "Packets\t%d\n", rep.Packets)
	fmt.Fprintf(w, "Transferred\t%s\n", snap.Summary.TotalData)
	fmt.Fprintf(w, "Speed\t%s down, %s up\n", format.Speed(snap.Speeds.Download), format.Speed(snap.Speeds.Upload))
	fmt.Fprintf(w, "Power\t%.0f W (%.2f per day)\n", snap.Summary.TotalPowerWatts, snap.Summary.EstimatedDailyCost)
	fmt.Fprintf(w, "Health\t%d (%s)\n", snap.Health.Score, snap.Health.Status)
	fmt.Fprintf(w, "Alerts\t%d\n", len(rep.Alerts))
	fmt.Fprintln(w)

	if len(snap.TopDevices) > 0 {
		fmt.Fprintln(w, "TOP DEVICES\tDATA\tPACKETS")
		for _, dt := range snap.TopDevices {
			fmt.Fprintf(w, "%s\t%s\t%d\n", dt.Device.Name, format.Bytes(float64(dt.TotalSize)), dt.PacketCount)
		}
		fmt.Fprintln(w)
	}

	for _, alert := range rep.Alerts {
		fmt.Fprintf(w, "%s\t%s\t%s burst\n", alert.Timestamp.Format(time.TimeOnly), alert.DeviceName, alert.Value)
	}
	return w.Flush()
}
