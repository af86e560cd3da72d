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
	"net"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/facebook/lighting/acn/transport"
	slp "github.com/facebook/lighting/slp/protocol"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch multicast DAAdverts go by",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: rootPort})
		if err != nil {
			return fmt.Errorf("failed to bind port %d: %w", rootPort, err)
		}
		defer conn.Close()

		ifaces, err := net.Interfaces()
		if err != nil {
			return err
		}
		joined := false
		for i := range ifaces {
			iface := &ifaces[i]
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
				continue
			}
			for _, group := range []net.IP{slp.ServiceRequestGroup, slp.DAAdvertGroup} {
				if err := transport.JoinMulticast(conn, iface, group); err == nil {
					joined = true
				}
			}
		}
		if !joined {
			return fmt.Errorf("could not join the SLP multicast groups")
		}

		color.Cyan("watching for DAAdverts, ^C to stop")
		buf := make([]byte, 65535)
		for {
			n, src, err := conn.ReadFromUDP(buf)
			if err != nil {
				return err
			}
			if slp.DetermineFunctionID(buf[:n]) != slp.FunctionDAAdvert {
				continue
			}
			advert, err := slp.UnpackDAAdvert(buf[:n])
			if err != nil {
				continue
			}
			stamp := time.Now().Format("15:04:05")
			if advert.BootTimestamp == 0 {
				color.Red("%s %s DOWN %s", stamp, src.IP, advert.URL)
				continue
			}
			color.Green("%s %s UP   %s scopes=[%s] boot=%d", stamp, src.IP,
				advert.URL, slp.ParseScopeList(advert.ScopeList), advert.BootTimestamp)
		}
	},
}

func init() {
	RootCmd.AddCommand(monitorCmd)
}
