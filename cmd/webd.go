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
	"context"
	"github.com/rotblauer/tilehover/common"
	"github.com/rotblauer/tilehover/daemon/webd"
	"github.com/rotblauer/tilehover/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"log/slog"
)

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long: `Serves the hover map page, the /socat websocket the page talks to,
and a handful of JSON and PNG endpoints (/status, /locate, /overlay, /hovers).`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		config, err := webdConfig()
		if err != nil {
			log.Fatalln(err)
		}
		server, err := webd.NewWebDaemon(config)
		if err != nil {
			log.Fatalln(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			sig := <-common.Interrupted()
			slog.Info("Received signal", "signal", sig)
			cancel()
		}()

		slog.Info("webd.Run")
		if err := server.Run(ctx); err != nil {
			log.Fatalln(err)
		}
	},
}

// webdConfig assembles the daemon config from flags, env and config file.
func webdConfig() (*params.WebDaemonConfig, error) {
	config := params.DefaultWebDaemonConfig()
	dir, err := datadir()
	if err != nil {
		return nil, err
	}
	config.DataDir = dir
	if viper.GetBool("ephemeral") {
		config.DataDir = ""
	}
	config.Network = viper.GetString("network")
	config.Address = viper.GetString("address")
	config.TileSize = viper.GetInt("tilesize")
	config.RecentHoverTTL = viper.GetDuration("recent-ttl")
	config.RenderCacheSize = viper.GetInt("render-cache")
	config.HoverFlushInterval = viper.GetDuration("flush-interval")
	config.Page.CenterLat = viper.GetFloat64("center.lat")
	config.Page.CenterLng = viper.GetFloat64("center.lng")
	config.Page.Zoom = viper.GetInt("center.zoom")
	config.Page.LeafletURL = viper.GetString("leaflet")
	if url := viper.GetString("influx.url"); url != "" {
		config.InfluxDB = &params.InfluxDBConfig{
			URL:    url,
			Token:  viper.GetString("influx.token"),
			Org:    viper.GetString("influx.org"),
			Bucket: viper.GetString("influx.bucket"),
		}
	}
	return config, config.Validate()
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()

	pFlags := webdCmd.PersistentFlags()
	pFlags.String("network", defaults.Network, "Network to listen on (tcp, tcp4, tcp6, unix)")
	pFlags.String("address", defaults.Address, "HTTP address to listen on")
	pFlags.Bool("ephemeral", false, "Do not persist hover counts")
	pFlags.Duration("recent-ttl", defaults.RecentHoverTTL, "How long a view's last hover is replayed to new sockets")
	pFlags.Int("render-cache", defaults.RenderCacheSize, "Number of overlay PNGs to keep cached")
	pFlags.Duration("flush-interval", defaults.HoverFlushInterval, "How often queued hovers are written to the store")
	pFlags.Float64("center.lat", defaults.Page.CenterLat, "Map page initial latitude")
	pFlags.Float64("center.lng", defaults.Page.CenterLng, "Map page initial longitude")
	pFlags.Int("center.zoom", defaults.Page.Zoom, "Map page initial zoom")
	pFlags.String("leaflet", defaults.Page.LeafletURL, "Base URL of the Leaflet distribution")
	pFlags.String("influx.url", "", "InfluxDB URL; hover export is off when empty")
	pFlags.String("influx.token", "", "InfluxDB token")
	pFlags.String("influx.org", "", "InfluxDB organization")
	pFlags.String("influx.bucket", "", "InfluxDB bucket")

	bindFlags(pFlags)
}
