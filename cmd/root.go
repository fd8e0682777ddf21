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
	"github.com/mitchellh/go-homedir"
	"github.com/rotblauer/tilehover/common"
	"github.com/rotblauer/tilehover/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"slices"
	"strings"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tilehover",
	Short: "Highlight the map overlay tile under the pointer",
	Long: `tilehover serves a slippy map with a grid of small overlay tiles,
and tracks which tile the pointer is over.

Tile indices are computed from the Mercator world pixel of the pointer,
scaled by the reversed tile size shifted by the zoom level.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is <datadir>/tilehover.yaml)")
	pFlags.String("datadir", params.DatadirRoot, "Data directory (hover store, config)")
	pFlags.String("verbosity", "info", "Log level: debug, info, warn, error, or a slog level number")
	pFlags.Int("tilesize", params.DefaultTileSize, "Overlay tile size in pixels, a power of two up to 256")

	bindFlags(pFlags, "config")
}

// bindFlags binds every flag in fs but the skipped ones to the viper
// key of the same name.
func bindFlags(fs *pflag.FlagSet, skip ...string) {
	fs.VisitAll(func(f *pflag.Flag) {
		if slices.Contains(skip, f.Name) {
			return
		}
		if err := viper.BindPFlag(f.Name, f); err != nil {
			panic(err)
		}
	})
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix(params.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		datadir, err := homedir.Expand(viper.GetString("datadir"))
		cobra.CheckErr(err)
		viper.AddConfigPath(datadir)
		viper.SetConfigType("yaml")
		viper.SetConfigName(params.ConfigFileName)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaultSlog installs a text logger on stderr at the --verbosity level.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level, err := common.SlogLevel(viper.GetString("verbosity"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	})))
	slog.Debug("Command", "name", cmd.Name(), "args", args)
}

// datadir is the expanded --datadir.
func datadir() (string, error) {
	return homedir.Expand(viper.GetString("datadir"))
}
