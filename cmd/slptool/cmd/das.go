/*
Copyright (c) Facebook, Inc. and its affiliates.

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
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var dasCmd = &cobra.Command{
	Use:   "das",
	Short: "Discover directory agents",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.close()

		time.Sleep(rootTimeout)

		das := c.agent.Tracker().GetDirectoryAgents()
		if len(das) == 0 {
			color.Yellow("no directory agents found")
			return nil
		}
		sort.Slice(das, func(i, j int) bool { return das[i].URL < das[j].URL })
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"url", "address", "scopes", "boot"})
		for _, da := range das {
			table.Append([]string{
				da.URL,
				da.Address.String(),
				da.Scopes.String(),
				fmt.Sprintf("%d", da.BootTimestamp),
			})
		}
		table.Render()
		color.Green("%d directory agents found", len(das))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(dasCmd)
}
