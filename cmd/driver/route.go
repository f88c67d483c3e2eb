package main

import (
	"driver-dispatch-client/internal/domain"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
)

func newRouteCmd(a *app) *cobra.Command {
	var from, to string
	var asGeoJSON bool

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Fetch one route from the directions service and print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			origin, err := parseCoordinates(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			dest, err := parseCoordinates(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			provider, closeCache, err := buildDirections(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			defer closeCache()

			route, err := provider.GetRoute(cmd.Context(), origin, dest)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asGeoJSON {
				b, err := json.Marshal(geojson.NewFeature(route.LineString()))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(b))
				return err
			}

			fmt.Fprintf(out, "%d waypoints, %.0f m\n", route.Len(), route.LengthMeters())
			for _, w := range route.Waypoints() {
				fmt.Fprintln(out, w.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "origin as lon,lat")
	cmd.Flags().StringVar(&to, "to", "", "destination as lon,lat")
	cmd.Flags().BoolVar(&asGeoJSON, "geojson", false, "print the route as a GeoJSON feature")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// parseCoordinates reads "lon,lat".
func parseCoordinates(s string) (domain.Coordinates, error) {
	lonStr, latStr, ok := strings.Cut(s, ",")
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("want lon,lat, got %q", s)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("lon: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("lat: %w", err)
	}

	c := domain.Coordinates{Lon: lon, Lat: lat}
	return c, c.Validate()
}
