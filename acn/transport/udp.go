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

// Package transport moves ACN PDU blocks over UDP datagrams and TCP streams.
package transport

import (
	"errors"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/facebook/lighting/acn/inflator"
	"github.com/facebook/lighting/acn/protocol"
)

// ErrDatagramTooBig means the packed block would exceed MaxDatagramSize.
// Callers are expected to split at the PDU block level.
var ErrDatagramTooBig = errors.New("PDU block too big for a datagram")

// UDPConn describes what functionality we expect from a UDP connection
type UDPConn interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	Close() error
}

// UDP frames ACN PDU blocks in UDP datagrams
type UDP struct {
	conn UDPConn
	root *inflator.Root
}

// NewUDP creates a UDP transport feeding decoded blocks to root
func NewUDP(conn UDPConn, root *inflator.Root) *UDP {
	return &UDP{conn: conn, root: root}
}

// Send prepends the UDP preamble and transmits the block in one datagram
func (u *UDP) Send(stack *protocol.Stack, addr net.Addr) error {
	protocol.AddUDPPreamble(stack)
	if stack.Size() > protocol.MaxDatagramSize {
		return fmt.Errorf("%w: %d bytes", ErrDatagramTooBig, stack.Size())
	}
	_, err := u.conn.WriteTo(stack.Bytes(), addr)
	return err
}

// Listen reads datagrams until the connection is closed
func (u *UDP) Listen() error {
	buf := make([]byte, protocol.MaxDatagramSize+1)
	for {
		n, src, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		u.HandleDatagram(buf[:n], src)
	}
}

// HandleDatagram verifies the preamble and inflates the PDU block. Malformed
// datagrams are dropped silently, UDP senders get no feedback.
func (u *UDP) HandleDatagram(b []byte, src *net.UDPAddr) {
	if !protocol.VerifyUDPPreamble(b) {
		log.Debugf("Discarding datagram from %s with a bad ACN preamble", src)
		return
	}
	headers := protocol.HeaderSet{
		Transport: protocol.TransportHeader{
			SourceIP:   src.IP,
			SourcePort: src.Port,
			Type:       protocol.TransportUDP,
		},
	}
	u.root.InflateBlock(&headers, b[protocol.PreambleSize:])
}

// JoinMulticast subscribes conn to an IPv4 multicast group on iface
func JoinMulticast(conn *net.UDPConn, iface *net.Interface, group net.IP) error {
	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(iface, &net.UDPAddr{IP: group}); err != nil {
		return fmt.Errorf("joining %s on %s: %w", group, iface.Name, err)
	}
	return nil
}

// LeaveMulticast undoes JoinMulticast
func LeaveMulticast(conn *net.UDPConn, iface *net.Interface, group net.IP) error {
	p := ipv4.NewPacketConn(conn)
	return p.LeaveGroup(iface, &net.UDPAddr{IP: group})
}
