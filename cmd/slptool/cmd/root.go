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

// Package cmd implements the slptool subcommands
package cmd

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	rootScopes  string
	rootPort    int
	rootTimeout time.Duration
	rootVerbose bool
)

// RootCmd is the entry point of slptool
var RootCmd = &cobra.Command{
	Use:   "slptool",
	Short: "Query and poke SLP agents on the network",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if rootVerbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
	},
}

// Execute runs the tool
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&rootScopes, "scopes", "default",
		"comma separated scopes to operate in")
	RootCmd.PersistentFlags().IntVar(&rootPort, "port", 427, "SLP port")
	RootCmd.PersistentFlags().DurationVar(&rootTimeout, "timeout", 5*time.Second,
		"how long to wait for answers")
	RootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false,
		"verbose logging")
}
