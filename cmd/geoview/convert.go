package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/crs"
)

func init() {
	RootCmd.AddCommand(convertCmd)
	convertCmd.AddCommand(convertPointCmd, convertBBoxCmd)

	flags := convertCmd.PersistentFlags()
	flags.String("from", crs.WGS84, "source CRS")
	flags.String("to", crs.WebMercator, "target CRS")
	flags.BoolP("json", "j", false, "print JSON")
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert coordinates between supported CRSs",
}

var convertPointCmd = &cobra.Command{
	Use:   "point X Y",
	Short: "Convert a single point (use -- before negative values)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vals, err := parseFloats(args)
		if err != nil {
			return err
		}
		from, to, err := crsFlags(cmd)
		if err != nil {
			return err
		}
		out := crs.ConvertPoint(vals, from, to)
		p := model.Point{X: out[0], Y: out[1], CRS: to}
		if asJSON(cmd) {
			return printJSON(cmd, p)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", format(p.X), format(p.Y))
		return nil
	},
}

var convertBBoxCmd = &cobra.Command{
	Use:   "bbox MINX MINY MAXX MAXY",
	Short: "Convert a bounding box",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		vals, err := parseFloats(args)
		if err != nil {
			return err
		}
		from, to, err := crsFlags(cmd)
		if err != nil {
			return err
		}
		out := crs.ConvertBBox([4]float64{vals[0], vals[1], vals[2], vals[3]}, from, to)
		if asJSON(cmd) {
			return printJSON(cmd, model.BBoxFromArray(out, to))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n", format(out[0]), format(out[1]), format(out[2]), format(out[3]))
		return nil
	},
}

func crsFlags(cmd *cobra.Command) (string, string, error) {
	rawFrom, _ := cmd.Flags().GetString("from")
	rawTo, _ := cmd.Flags().GetString("to")
	from, ok := crs.NormalizeCRS(rawFrom)
	if !ok {
		return "", "", fmt.Errorf("unsupported --from %q", rawFrom)
	}
	to, ok := crs.NormalizeCRS(rawTo)
	if !ok {
		return "", "", fmt.Errorf("unsupported --to %q", rawTo)
	}
	return from, to, nil
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

func format(v float64) string {
	return strconv.FormatFloat(crs.Round(v, crs.DefaultPrecision), 'f', -1, 64)
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(v)
}
