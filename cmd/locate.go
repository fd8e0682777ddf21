/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/tilehover/tiler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var optLocateLat, optLocateLng float64
var optLocateZoom int
var optLocateGeoJSON bool

// locateCmd represents the locate command
var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Print the overlay tile containing a coordinate",
	Long: `Print the overlay tile index, identifier and world pixel for --lat, --lng
at --zoom. With --geojson, print the tile's bound as a GeoJSON feature instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setDefaultSlog(cmd, args)
		grid, err := tiler.NewGrid(viper.GetInt("tilesize"))
		if err != nil {
			return err
		}
		coord := orb.Point{optLocateLng, optLocateLat}
		idx, err := grid.Locate(coord, optLocateZoom)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if optLocateGeoJSON {
			bound, err := grid.Bound(idx, optLocateZoom)
			if err != nil {
				return err
			}
			f := geojson.NewFeature(bound.ToPolygon())
			f.Properties["id"] = idx.Identifier()
			f.Properties["zoom"] = optLocateZoom
			return enc.Encode(f)
		}
		scale, _ := grid.Scale(optLocateZoom)
		return enc.Encode(map[string]any{
			"x":     idx.X,
			"y":     idx.Y,
			"id":    idx.Identifier(),
			"label": idx.String(),
			"scale": scale,
			"world": grid.Project(coord),
			"key":   tiler.TileKey(optLocateZoom, idx),
		})
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)

	flags := locateCmd.Flags()
	flags.Float64Var(&optLocateLat, "lat", 0, "Latitude")
	flags.Float64Var(&optLocateLng, "lng", 0, "Longitude")
	flags.IntVar(&optLocateZoom, "zoom", 0, fmt.Sprintf("Zoom level (0-%d)", tiler.MaxZoom))
	flags.BoolVar(&optLocateGeoJSON, "geojson", false, "Print the tile bound as GeoJSON")
}
