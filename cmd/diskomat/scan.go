package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skalb/diskomat/internal/bootdev"
	"github.com/skalb/diskomat/internal/runner"
	"github.com/skalb/diskomat/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Detect existing storage on non-boot disks",
	Long: `List every non-boot disk that already carries partitions or on-disk
filesystem/RAID/LVM signatures. These are the disks a wipe run would
target.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		r := runner.ExecRunner{}

		resolver := &bootdev.Resolver{Runner: r}
		bootDisk, err := resolver.Resolve(ctx)
		if err != nil && !errors.Is(err, bootdev.ErrNoBootDisk) {
			fmt.Fprintf(os.Stderr, "Error resolving boot disk: %v\n", err)
			os.Exit(1)
		}

		scanner := &scan.Scanner{Runner: r, BootDisk: bootDisk}
		existing, err := scanner.Scan(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
			os.Exit(1)
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(existing); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}

		if bootDisk != "" {
			fmt.Printf("Boot disk: %s (excluded)\n", bootDisk)
		}
		if len(existing) == 0 {
			fmt.Println("No existing storage found.")
			return
		}
		for _, dev := range existing {
			fmt.Printf("%s:", dev.Path)
			for _, r := range dev.Reasons {
				fmt.Printf(" %s", r)
			}
			fmt.Println()
		}
	},
}

func init() {
	scanCmd.Flags().Bool("json", false, "Output as JSON")
}
