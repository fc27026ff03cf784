package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/skalb/diskomat/internal/config"
	"github.com/skalb/diskomat/internal/disko"
	"github.com/skalb/diskomat/internal/inventory"
	"github.com/skalb/diskomat/internal/layout"
	"github.com/skalb/diskomat/internal/plan"
	"github.com/skalb/diskomat/internal/runner"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute the storage layout and print the plan",
	Long: `Compute the RAID/volume-group/logical-volume layout for this machine's
disks without touching anything. The full plan document (including the
translated device tree) prints as JSON with --json; the default output
is a human summary.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		r := runner.ExecRunner{}

		disks, err := inventory.Enumerate(ctx, r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error enumerating disks: %v\n", err)
			os.Exit(1)
		}
		ramGiB, err := inventory.RAMSizeGiB()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading memory size: %v\n", err)
			os.Exit(1)
		}

		opts, err := cfg.LayoutOptions()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		p, err := layout.Plan(disks, ramGiB, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Planning failed: %v\n", err)
			os.Exit(1)
		}
		tree, err := disko.Translate(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Translation failed: %v\n", err)
			os.Exit(1)
		}

		if jsonOut {
			out := disko.Output{
				Partitions: p.Partitions,
				Arrays:     p.Arrays,
				VGs:        p.VGs,
				LVs:        p.LVs,
				Disko:      tree,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}

		printPlanSummary(p)
	},
}

func init() {
	planCmd.Flags().Bool("json", false, "Output the full plan as JSON")
}

func printPlanSummary(p *plan.Plan) {
	fmt.Println("Disks:")
	for _, d := range p.Disks {
		fmt.Printf("  %s:", d.Path)
		for _, part := range p.Partitions[d.Name] {
			fmt.Printf(" %s(%s)", part.Name, part.Role)
		}
		fmt.Println()
	}
	if len(p.Arrays) > 0 {
		fmt.Println("Arrays:")
		for _, a := range p.Arrays {
			fmt.Printf("  %s: %s on %s\n", a.Name, a.Level, strings.Join(a.Devices, ", "))
		}
	}
	fmt.Println("Volume groups:")
	for _, vg := range p.VGs {
		fmt.Printf("  %s: %s\n", vg.Name, strings.Join(vg.Devices, ", "))
	}
	fmt.Println("Logical volumes:")
	for _, lv := range p.LVs {
		fmt.Printf("  %s/%s: %s\n", lv.VG, lv.Name, humanize.IBytes(uint64(lv.Size)))
	}
}
