package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/golang/geo/s2"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geoview/internal/aoi"
	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/crs"
)

// mean earth radius in meters
const earthRadius = 6371008.8

func init() {
	RootCmd.AddCommand(aoiCmd)
	aoiCmd.AddCommand(aoiEncodeCmd, aoiDecodeCmd)

	aoiCmd.PersistentFlags().String("crs", crs.WebMercator, "working CRS of the rings")
	aoiEncodeCmd.Flags().Bool("raw", false, "print JSON without percent-encoding")
	aoiDecodeCmd.Flags().BoolP("json", "j", false, "print JSON only")
}

var aoiCmd = &cobra.Command{
	Use:   "aoi",
	Short: "Encode and decode area-of-interest link parameters",
}

var aoiEncodeCmd = &cobra.Command{
	Use:   "encode [rings.json]",
	Short: "Encode rings (JSON array or {\"rings\":...}) read from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		rings, err := readRings(in)
		if err != nil {
			return err
		}
		codec, err := newCodec(cmd)
		if err != nil {
			return err
		}
		p := &model.PolygonGeometry{Rings: rings, CRS: codec.WorkingCRS}
		raw, _ := cmd.Flags().GetBool("raw")
		var (
			s  string
			ok bool
		)
		if raw {
			s, ok = codec.Serialize(p)
		} else {
			s, ok = codec.Encode(p)
		}
		if !ok {
			return errors.New("polygon could not be encoded")
		}
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return nil
	},
}

var aoiDecodeCmd = &cobra.Command{
	Use:   "decode STRING",
	Short: "Decode an aoi parameter into rings in the working CRS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := newCodec(cmd)
		if err != nil {
			return err
		}
		p := codec.Deserialize(args[0])
		if p == nil {
			return errors.New("unreadable aoi parameter")
		}
		if asJSON(cmd) {
			return printJSON(cmd, p)
		}
		if err := printJSON(cmd, p); err != nil {
			return err
		}
		wgs := crs.ConvertPolygon(p, codec.WorkingCRS, crs.WGS84)
		if wgs == nil {
			return nil
		}
		vertices := 0
		for _, r := range wgs.Rings {
			vertices += len(r)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rings: %d, vertices: %s\n", len(wgs.Rings), humanize.Comma(int64(vertices)))
		fmt.Fprintf(out, "area: %s\n", formatArea(GeodesicArea(wgs.Rings)))
		return nil
	},
}

func newCodec(cmd *cobra.Command) (*aoi.Codec, error) {
	raw, _ := cmd.Flags().GetString("crs")
	working, ok := crs.NormalizeCRS(raw)
	if !ok {
		return nil, fmt.Errorf("unsupported --crs %q", raw)
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return aoi.New(working, slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))), nil
}

func readRings(r io.Reader) ([][][]float64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var rings [][][]float64
	if err := json.Unmarshal(b, &rings); err == nil {
		return rings, nil
	}
	var wrapped struct {
		Rings [][][]float64 `json:"rings"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("read rings: %w", err)
	}
	if wrapped.Rings == nil {
		return nil, errors.New("read rings: no rings")
	}
	return wrapped.Rings, nil
}

// GeodesicArea returns the area in square meters of lon/lat rings on the
// sphere. Rings after the first are holes.
func GeodesicArea(rings [][][]float64) float64 {
	var total float64
	for i, ring := range rings {
		a := ringArea(ring)
		if i == 0 {
			total += a
		} else {
			total -= a
		}
	}
	return math.Max(total, 0)
}

func ringArea(ring [][]float64) float64 {
	pts := make([]s2.Point, 0, len(ring))
	for _, c := range ring {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(c[1], c[0])))
	}
	// loops are implicitly closed
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	if len(pts) < 3 {
		return 0
	}
	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return loop.Area() * earthRadius * earthRadius
}

func formatArea(m2 float64) string {
	if m2 >= 1e6 {
		return humanize.CommafWithDigits(m2/1e6, 3) + " km²"
	}
	return humanize.CommafWithDigits(m2, 1) + " m²"
}
