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

package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
)

// UDPPreamble is the 16 byte preamble at the start of every ACN UDP datagram:
// preamble size, post-amble size and the packet identifier literal.
var UDPPreamble = []byte{
	0x00, 0x10,
	0x00, 0x00,
	0x41, 0x53, 0x43, 0x2d,
	0x45, 0x31, 0x2e, 0x31,
	0x37, 0x00, 0x00, 0x00,
}

// TCPPreamble is the stream variant. The 4 bytes that follow it on the wire
// hold the PDU block length.
var TCPPreamble = []byte{
	0x00, 0x14,
	0x00, 0x00,
	0x41, 0x53, 0x43, 0x2d,
	0x45, 0x31, 0x2e, 0x31,
	0x37, 0x00, 0x00, 0x00,
}

// PreambleSize is the length of both preambles
const PreambleSize = 16

// TCPPreambleSize includes the block length field
const TCPPreambleSize = PreambleSize + 4

// MaxDatagramSize is the largest UDP payload we'll produce. Anything bigger
// must be split at the PDU block level by the caller.
const MaxDatagramSize = 1472

// AddUDPPreamble prepends the UDP preamble to a packed PDU block
func AddUDPPreamble(stack *Stack) {
	stack.Prepend(UDPPreamble)
}

// AddTCPPreamble prepends the block length and the TCP preamble to a packed
// PDU block
func AddTCPPreamble(stack *Stack) {
	stack.Prepend(binary.BigEndian.AppendUint32(nil, uint32(stack.Size())))
	stack.Prepend(TCPPreamble)
}

// VerifyUDPPreamble checks that a datagram starts with the exact UDP preamble
func VerifyUDPPreamble(b []byte) bool {
	return len(b) >= PreambleSize && bytes.Equal(b[:PreambleSize], UDPPreamble)
}

// UniverseIP returns the multicast group E1.31 DMX data for the universe is
// sent to. Universe 0 and 0xffff are reserved and have no group.
func UniverseIP(universe uint16) (net.IP, error) {
	if universe == 0 || universe == 0xffff {
		return nil, fmt.Errorf("universe %d has no multicast group", universe)
	}
	return net.IPv4(239, 255, byte(universe>>8), byte(universe&0xff)), nil
}
