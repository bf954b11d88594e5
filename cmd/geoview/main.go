// Command geoview runs the coordinate helpers offline: CRS conversion, DMS
// formatting and area-of-interest link encoding.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geoview/internal/crs"
)

var RootCmd = &cobra.Command{
	Use:           "geoview",
	Short:         "Coordinate conversion and AOI link tools",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := slog.LevelError
		if verbose {
			level = slog.LevelDebug
		}
		crs.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "log conversion diagnostics to stderr")
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
