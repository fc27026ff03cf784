package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skalb/diskomat/internal/config"
	"github.com/skalb/diskomat/internal/db"
	"github.com/skalb/diskomat/internal/disko"
	"github.com/skalb/diskomat/internal/provision"
	"github.com/skalb/diskomat/internal/runner"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Run the full provisioning pipeline",
	Long: `Run the complete unattended provisioning sequence: enumerate disks,
resolve the boot disk, tear down existing storage, plan the layout,
and hand the rendered device tree to the declarative formatter.

With --no-apply the device tree is written but the formatter is not
invoked.`,
	Run: func(cmd *cobra.Command, args []string) {
		noApply, _ := cmd.Flags().GetBool("no-apply")

		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		r := runner.ExecRunner{}
		p := &provision.Pipeline{
			Config:    cfg,
			Runner:    r,
			Formatter: &disko.CLI{Runner: r},
			Apply:     !noApply,
		}
		if store, err := db.New(cfg.DBPath); err == nil {
			defer store.Close()
			p.Audit = store
		} else {
			fmt.Fprintf(os.Stderr, "Warning: audit database unavailable: %v\n", err)
		}

		if _, err := p.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Provisioning failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Provisioning complete. Device tree at", cfg.PlanPath)
	},
}

func init() {
	provisionCmd.Flags().Bool("no-apply", false, "Write the device tree but do not invoke the formatter")
}
