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
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	slp "github.com/facebook/lighting/slp/protocol"
)

var registerDA string

// exchange sends a request to the DA and waits for the matching SrvAck
func exchange(request []byte, xid uint16) (*slp.ServiceAck, error) {
	da := net.ParseIP(registerDA)
	if da == nil {
		return nil, fmt.Errorf("invalid DA address %q", registerDA)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.WriteTo(request, &net.UDPAddr{IP: da, Port: rootPort}); err != nil {
		return nil, err
	}
	buf := make([]byte, 65535)
	if err := conn.SetReadDeadline(time.Now().Add(rootTimeout)); err != nil {
		return nil, err
	}
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return nil, fmt.Errorf("no SrvAck within %s", rootTimeout)
		}
		if slp.DetermineFunctionID(buf[:n]) != slp.FunctionSrvAck {
			continue
		}
		ack, err := slp.UnpackServiceAck(buf[:n])
		if err != nil {
			return nil, err
		}
		if ack.XID == xid {
			return ack, nil
		}
	}
}

var registerCmd = &cobra.Command{
	Use:   "register <url> <lifetime-seconds>",
	Short: "Register a service URL with a DA",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		lifetime, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid lifetime %q", args[1])
		}
		scopes := slp.NewScopeSet(strings.Split(rootScopes, ",")...)
		url := slp.URLEntry{URL: args[0], Lifetime: uint16(lifetime)}
		xid := uint16(rand.Intn(0xffff))
		request := slp.BuildServiceRegistration(xid, true, scopes, url,
			slp.ServiceFromURL(args[0]))

		ack, err := exchange(request, xid)
		if err != nil {
			return err
		}
		if ack.Error != slp.OK {
			color.Red("registration refused: %s", ack.Error)
			return nil
		}
		color.Green("registered %s for %d seconds", args[0], lifetime)
		return nil
	},
}

var deregisterCmd = &cobra.Command{
	Use:   "deregister <url>",
	Short: "De-register a service URL from a DA",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		scopes := slp.NewScopeSet(strings.Split(rootScopes, ",")...)
		url := slp.URLEntry{URL: args[0]}
		xid := uint16(rand.Intn(0xffff))
		request := slp.BuildServiceDeRegistration(xid, scopes, url)

		ack, err := exchange(request, xid)
		if err != nil {
			return err
		}
		if ack.Error != slp.OK {
			color.Red("de-registration refused: %s", ack.Error)
			return nil
		}
		color.Green("de-registered %s", args[0])
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerDA, "da", "", "DA address to register with")
	registerCmd.MarkFlagRequired("da")
	deregisterCmd.Flags().StringVar(&registerDA, "da", "", "DA address to de-register from")
	deregisterCmd.MarkFlagRequired("da")
	RootCmd.AddCommand(registerCmd)
	RootCmd.AddCommand(deregisterCmd)
}
