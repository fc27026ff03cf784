package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/skalb/diskomat/internal/version"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "diskomat",
	Short: "Unattended storage provisioning for one-shot OS installs",
	Long: `diskomat plans RAID/LVM storage layouts for heterogeneous hardware,
detects and tears down pre-existing storage stacks, and hands the
resulting device tree to a declarative disk formatter.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the diskomat version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("diskomat", version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/diskomat/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(wipeCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
