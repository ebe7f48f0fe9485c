package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/pkg/geospatial"
)

func newBBoxCmd() *cobra.Command {
	var (
		lat, lng, radius float64
		km               bool
	)
	cmd := &cobra.Command{
		Use:   "bbox",
		Short: "Print the viewport bounds around a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			center := domain.Coordinate{Latitude: lat, Longitude: lng}
			if !center.Valid() {
				return fmt.Errorf("invalid center %.6f,%.6f", lat, lng)
			}
			if radius < 0 {
				return fmt.Errorf("radius must not be negative")
			}
			var b domain.ViewportBounds
			if km {
				b = geospatial.BoundingBoxKm(center, radius)
			} else {
				b = geospatial.BoundingBox(center, radius)
			}
			return printJSON(cmd.OutOrStdout(), b)
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "Center latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Center longitude")
	cmd.Flags().Float64VarP(&radius, "radius", "r", 10, "Radius in miles")
	cmd.Flags().BoolVar(&km, "km", false, "Interpret radius in kilometres")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func newDistanceCmd() *cobra.Command {
	var km bool
	cmd := &cobra.Command{
		Use:   "distance LAT1 LNG1 LAT2 LNG2",
		Short: "Print the great-circle distance between two points",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v [4]float64
			for i, a := range args {
				f, err := strconv.ParseFloat(a, 64)
				if err != nil {
					return fmt.Errorf("argument %d: %w", i+1, err)
				}
				v[i] = f
			}
			a := domain.Coordinate{Latitude: v[0], Longitude: v[1]}
			b := domain.Coordinate{Latitude: v[2], Longitude: v[3]}
			if !a.Valid() || !b.Valid() {
				return fmt.Errorf("coordinates out of range")
			}
			if km {
				fmt.Fprintf(cmd.OutOrStdout(), "%.3f km\n", geospatial.DistanceKm(a, b))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.3f mi\n", geospatial.Distance(a, b))
			return nil
		},
	}
	cmd.Flags().BoolVar(&km, "km", false, "Print kilometres instead of miles")
	return cmd
}
