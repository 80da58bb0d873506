package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"iot-traffic-sim/internal/registry"
)

func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "catalog",
		Aliases: []string{"templates"},
		Short:   "List device templates and the built-in simulated devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			fmt.Fprintln(w, "TEMPLATE\tTYPE\tMANUFACTURER\tPOWER\tSERVERS\tTRAFFIC (KB)")
			for _, t := range registry.Templates() {
				fmt.Fprintf(w, "%s %s\t%s\t%s\t%.0f W\t%d\t%.0f-%.0f\n",
					t.Icon, t.Name, t.Type, t.Manufacturer, t.PowerWatts,
					len(t.Servers), t.TrafficPattern.Min, t.TrafficPattern.Max)
			}
			fmt.Fprintln(w)

			fmt.Fprintln(w, "DEVICE\tNAME\tTYPE\tIP\tSTATUS\tPOWER\tFLAGS")
			for _, d := range registry.SimulatedDevices() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.0f W\t%s\n",
					d.ID, d.Name, d.Type, d.IP, d.Status, d.PowerWatts, flags(d.Controllable, d.Blocked))
			}
			return w.Flush()
		},
	}
}

func flags(controllable, blocked bool) string {
	switch {
	case controllable && blocked:
		return "controllable,blocked"
	case controllable:
		return "controllable"
	case blocked:
		return "blocked"
	default:
		return "-"
	}
}
