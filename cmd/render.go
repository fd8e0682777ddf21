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
	"fmt"
	"github.com/rotblauer/tilehover/overlay"
	"github.com/rotblauer/tilehover/tiler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log/slog"
	"os"
)

var optRenderX, optRenderY, optRenderZoom int
var optRenderActive bool
var optRenderOut string

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Draw one overlay tile as a PNG",
	Long:  `Draw the overlay block at --x, --y, --zoom to --out (stdout with "-").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setDefaultSlog(cmd, args)
		grid, err := tiler.NewGrid(viper.GetInt("tilesize"))
		if err != nil {
			return err
		}
		idx := tiler.Index{X: optRenderX, Y: optRenderY}
		// Bound validates the index against the grid at zoom.
		if _, err := grid.Bound(idx, optRenderZoom); err != nil {
			return err
		}
		r, err := overlay.NewRenderer(1)
		if err != nil {
			return err
		}
		img, err := r.Render(idx, optRenderZoom, overlay.Square(grid.TileSize()), optRenderActive)
		if err != nil {
			return err
		}
		if optRenderOut == "-" {
			_, err = cmd.OutOrStdout().Write(img.PNG)
			return err
		}
		if err := os.WriteFile(optRenderOut, img.PNG, 0644); err != nil {
			return fmt.Errorf("write %s: %w", optRenderOut, err)
		}
		slog.Info("Rendered tile", "id", idx.Identifier(), "zoom", optRenderZoom, "out", optRenderOut, "etag", img.ETag)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	flags := renderCmd.Flags()
	flags.IntVar(&optRenderX, "x", 0, "Tile column")
	flags.IntVar(&optRenderY, "y", 0, "Tile row")
	flags.IntVar(&optRenderZoom, "zoom", 0, "Zoom level")
	flags.BoolVar(&optRenderActive, "active", false, "Draw the hovered style")
	flags.StringVarP(&optRenderOut, "out", "o", "-", "Output file")
}
