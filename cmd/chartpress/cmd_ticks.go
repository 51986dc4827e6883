package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chartpress/internal/axis"
)

var ticksFlags struct {
	scale    string
	min      float64
	max      float64
	rangeMin float64
	rangeMax float64
	asJSON   bool
}

var ticksCmd = &cobra.Command{
	Use:   "ticks",
	Short: "Print the axis ticks for a domain",
	Long: `Computes tick values and labels for a linear or log axis. When a pixel
range is given (--range-min/--range-max) each tick is also placed on it.`,
	Example: `  chartpress ticks --min 0 --max 100
  chartpress ticks --scale log --min 1 --max 10000 --range-min 0 --range-max 400`,
	RunE: runTicks,
}

func init() {
	f := ticksCmd.Flags()
	f.StringVar(&ticksFlags.scale, "scale", string(axis.Linear), "Scale type: linear or log")
	f.Float64Var(&ticksFlags.min, "min", 0, "Domain minimum")
	f.Float64Var(&ticksFlags.max, "max", 0, "Domain maximum")
	f.Float64Var(&ticksFlags.rangeMin, "range-min", 0, "Pixel range start")
	f.Float64Var(&ticksFlags.rangeMax, "range-max", 0, "Pixel range end")
	f.BoolVar(&ticksFlags.asJSON, "json", false, "Print JSON instead of a table")

	_ = ticksCmd.MarkFlagRequired("min")
	_ = ticksCmd.MarkFlagRequired("max")
	ticksCmd.MarkFlagsRequiredTogether("range-min", "range-max")
}

type tickRow struct {
	Value  float64  `json:"value"`
	Label  string   `json:"label"`
	Placed *float64 `json:"placed,omitempty"`
}

func runTicks(cmd *cobra.Command, _ []string) error {
	scaleType := axis.ScaleType(strings.ToLower(strings.TrimSpace(ticksFlags.scale)))
	if scaleType != axis.Linear && scaleType != axis.Log {
		return fmt.Errorf("unknown scale %q, want linear or log", ticksFlags.scale)
	}
	if scaleType == axis.Log && (ticksFlags.min <= 0 || ticksFlags.max <= 0) {
		return fmt.Errorf("log scale domain must be positive, got [%g, %g]", ticksFlags.min, ticksFlags.max)
	}

	cfg := axis.Config{
		ScaleType: scaleType,
		Domain:    [2]float64{ticksFlags.min, ticksFlags.max},
	}
	withRange := cmd.Flags().Changed("range-min")
	if withRange {
		cfg.Range = &[2]float64{ticksFlags.rangeMin, ticksFlags.rangeMax}
	}
	scale := axis.New(cfg, nil)

	values := scale.TickValues()
	labels := scale.FormattedTicks()
	rows := make([]tickRow, 0, len(values))
	for i, value := range values {
		row := tickRow{Value: value, Label: labels[i]}
		if withRange {
			placed := scale.Place(value)
			row.Placed = &placed
		}
		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()
	if ticksFlags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if withRange {
		fmt.Fprintln(tw, "VALUE\tLABEL\tPLACED")
	} else {
		fmt.Fprintln(tw, "VALUE\tLABEL")
	}
	for _, row := range rows {
		if row.Placed != nil {
			fmt.Fprintf(tw, "%g\t%s\t%g\n", row.Value, row.Label, *row.Placed)
			continue
		}
		fmt.Fprintf(tw, "%g\t%s\n", row.Value, row.Label)
	}
	return tw.Flush()
}
