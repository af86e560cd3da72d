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

	slp "github.com/facebook/lighting/slp/protocol"
)

var findsrvsCmd = &cobra.Command{
	Use:   "findsrvs <service-type>",
	Short: "Find services of a type, via DAs when available",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.close()

		// give DA discovery a moment before deciding unicast vs multicast
		time.Sleep(rootTimeout / 2)

		results := make(chan []slp.URLEntry, 1)
		c.agent.FindServices(args[0], func(urls []slp.URLEntry) { results <- urls })

		select {
		case urls := <-results:
			printURLs(args[0], urls)
		case <-time.After(rootTimeout):
			color.Red("no answer within %s", rootTimeout)
		}
		return nil
	},
}

func printURLs(serviceType string, urls []slp.URLEntry) {
	if len(urls) == 0 {
		color.Yellow("no services of type %q found", serviceType)
		return
	}
	sort.Slice(urls, func(i, j int) bool { return urls[i].URL < urls[j].URL })
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"url", "lifetime (s)"})
	for _, u := range urls {
		table.Append([]string{u.URL, fmt.Sprintf("%d", u.Lifetime)})
	}
	table.Render()
	color.Green("%d services found", len(urls))
}

func init() {
	RootCmd.AddCommand(findsrvsCmd)
}
