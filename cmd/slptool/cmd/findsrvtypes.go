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
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	slp "github.com/facebook/lighting/slp/protocol"
)

var typesNamingAuth string

var findsrvtypesCmd = &cobra.Command{
	Use:   "findsrvtypes",
	Short: "List the service types registered on the network",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
		if err != nil {
			return err
		}
		defer conn.Close()

		scopes := slp.NewScopeSet(strings.Split(rootScopes, ",")...)
		includeAll := typesNamingAuth == "*"
		auth := typesNamingAuth
		if includeAll {
			auth = ""
		}
		request := slp.BuildServiceTypeRequest(uint16(rand.Intn(0xffff)), true,
			nil, includeAll, auth, scopes)
		dst := &net.UDPAddr{IP: slp.ServiceRequestGroup, Port: rootPort}
		if _, err := conn.WriteTo(request, dst); err != nil {
			return err
		}

		types := make(map[string]bool)
		buf := make([]byte, 65535)
		deadline := time.Now().Add(rootTimeout)
		for {
			if err := conn.SetReadDeadline(deadline); err != nil {
				return err
			}
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				break // deadline
			}
			if slp.DetermineFunctionID(buf[:n]) != slp.FunctionSrvTypeRply {
				continue
			}
			reply, err := slp.UnpackServiceTypeReply(buf[:n])
			if err != nil || reply.Error != slp.OK {
				continue
			}
			for _, serviceType := range reply.ServiceTypes {
				types[serviceType] = true
			}
		}

		if len(types) == 0 {
			color.Yellow("no service types found")
			return nil
		}
		for serviceType := range types {
			color.Cyan(serviceType)
		}
		return nil
	},
}

func init() {
	findsrvtypesCmd.Flags().StringVar(&typesNamingAuth, "naming-auth", "*",
		`naming authority filter, "*" for all, "" for IANA`)
	RootCmd.AddCommand(findsrvtypesCmd)
}
