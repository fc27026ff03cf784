package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skalb/diskomat/internal/config"
	"github.com/skalb/diskomat/internal/db"
	"github.com/skalb/diskomat/internal/provision"
	"github.com/skalb/diskomat/internal/runner"
)

var wipeCmd = &cobra.Command{
	Use:   "wipe [disk...]",
	Short: "Tear down existing storage stacks",
	Long: `Discover and tear down everything stacked on the given disks (mounts,
logical volumes, volume groups, RAID arrays, partitions, signatures),
bottom-up. With no arguments, every non-boot disk carrying existing
storage is targeted.

The attempted command list, including failures, prints at the end so
cleanup progress can be audited.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		policy, _ := cmd.Flags().GetString("policy")

		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if policy != "" {
			cfg.Policy = policy
			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}

		var r runner.Runner = runner.ExecRunner{}
		if dryRun {
			r = &runner.DryRun{Real: runner.ExecRunner{}}
		}

		p := &provision.Pipeline{Config: cfg, Runner: r}
		if !dryRun {
			if store, err := db.New(cfg.DBPath); err == nil {
				defer store.Close()
				p.Audit = store
			} else {
				fmt.Fprintf(os.Stderr, "Warning: audit database unavailable: %v\n", err)
			}
		}

		attempted, err := p.Teardown(context.Background(), args)
		for _, c := range attempted {
			status := "ok"
			if c.Code != 0 {
				status = fmt.Sprintf("exit %d", c.Code)
			}
			fmt.Printf("%-60s %s\n", strings.Join(c.Argv, " "), status)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Teardown failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	wipeCmd.Flags().Bool("dry-run", false, "Print the command sequence without executing destructive commands")
	wipeCmd.Flags().String("policy", "", "Destructiveness policy: skip, wipe, discard or random")
}
