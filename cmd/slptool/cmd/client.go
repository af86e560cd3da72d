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
	"strings"
	"time"

	"github.com/facebook/lighting/slp/agent"
	slp "github.com/facebook/lighting/slp/protocol"
)

// client bundles an ephemeral UDP socket with an SLP agent reading from it
type client struct {
	conn  *net.UDPConn
	agent *agent.Agent
}

// newClient binds an ephemeral port and starts an agent on it
func newClient() (*client, error) {
	ip, err := localIP()
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("failed to bind: %w", err)
	}

	cfg := agent.DefaultConfig()
	cfg.IP = ip
	cfg.Port = rootPort
	cfg.Scopes = slp.NewScopeSet(strings.Split(rootScopes, ",")...)
	cfg.StartWait = 100 * time.Millisecond
	a := agent.New(cfg, conn)

	c := &client{conn: conn, agent: a}
	go c.readLoop()
	a.Start()
	return c, nil
}

func (c *client) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, src, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		c.agent.HandlePacket(buf[:n], src)
	}
}

func (c *client) close() {
	c.agent.Stop()
	c.conn.Close()
}

// localIP finds a non loopback IPv4 address to advertise
func localIP() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok {
				if ip := ipNet.IP.To4(); ip != nil && !ip.IsLoopback() {
					return ip, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("no usable IPv4 address found")
}
