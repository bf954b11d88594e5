package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geoview/internal/crs"
)

func init() {
	RootCmd.AddCommand(dmsCmd)
	dmsCmd.Flags().Bool("lon", false, "value is a longitude (E/W)")
}

var dmsCmd = &cobra.Command{
	Use:   "dms DD",
	Short: "Format decimal degrees as degrees, minutes and seconds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vals, err := parseFloats(args)
		if err != nil {
			return err
		}
		lon, _ := cmd.Flags().GetBool("lon")
		fmt.Fprintln(cmd.OutOrStdout(), crs.FormatDMS(vals[0], lon))
		return nil
	},
}
