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
	"github.com/dustin/go-humanize"
	"github.com/rotblauer/tilehover/params"
	"github.com/rotblauer/tilehover/state"
	"github.com/spf13/cobra"
	"path/filepath"
	"text/tabwriter"
)

var optHoversLimit int

// hoversCmd represents the hovers command
var hoversCmd = &cobra.Command{
	Use:   "hovers",
	Short: "List the most hovered tiles",
	Long: `Reads the hover store in the data dir, read-only.
A running webd holds the store's lock; stop it first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setDefaultSlog(cmd, args)
		dir, err := datadir()
		if err != nil {
			return err
		}
		store, err := state.OpenHovers(filepath.Join(dir, params.HoversDir), true)
		if err != nil {
			return fmt.Errorf("open hover store: %w", err)
		}
		defer store.Close()

		top, err := store.Top(optHoversLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TILE\tHOVERS\tLAST")
		for _, hc := range top {
			fmt.Fprintf(w, "%s\t%s\t%s\n", hc.Key, humanize.Comma(int64(hc.Count)), humanize.Time(hc.Last))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(hoversCmd)
	hoversCmd.Flags().IntVar(&optHoversLimit, "limit", 20, "Number of tiles to list, 0 for all")
}
