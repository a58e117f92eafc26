package main // Entry point package

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Venue time zones are resolved with time.LoadLocation; embed the
	// database so minimal images without /usr/share/zoneinfo work.
	_ "time/tzdata"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "venue-reservation",
		Short:         "Venue reservation booking and lifecycle engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newSweepCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newTokenCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
