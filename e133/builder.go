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

// Package e133 implements the E1.33 (RDMnet) endpoint side: packet
// construction, the reliable unsolicited message sender and the mapping
// between E1.33 URLs and ACN endpoints.
package e133

import (
	"github.com/facebook/lighting/acn/cid"
	"github.com/facebook/lighting/acn/protocol"
)

// MessageBuilder packs the common E1.33 packet shapes. The CID and source
// name are fixed per node.
type MessageBuilder struct {
	cid        cid.CID
	sourceName string
}

// NewMessageBuilder creates a builder for one node identity
func NewMessageBuilder(c cid.CID, sourceName string) *MessageBuilder {
	return &MessageBuilder{cid: c, sourceName: sourceName}
}

// CID returns the node identity the builder stamps on root PDUs
func (b *MessageBuilder) CID() cid.CID { return b.cid }

// BuildNullTCP builds a heartbeat packet: an empty NULL root PDU with the
// TCP preamble
func (b *MessageBuilder) BuildNullTCP() *protocol.Stack {
	var stack protocol.Stack
	protocol.PrependRootPDU(&stack, protocol.VectorRootNull, b.cid)
	protocol.AddTCPPreamble(&stack)
	return &stack
}

// BuildTCPRootE133 wraps the stack contents in E1.33 framing and a root PDU,
// then adds the TCP preamble
func (b *MessageBuilder) BuildTCPRootE133(stack *protocol.Stack, vector uint32,
	sequence uint32, endpoint uint16) error {
	if err := b.prependRootE133(stack, vector, sequence, endpoint); err != nil {
		return err
	}
	protocol.AddTCPPreamble(stack)
	return nil
}

// BuildUDPRootE133 is BuildTCPRootE133 with the UDP preamble
func (b *MessageBuilder) BuildUDPRootE133(stack *protocol.Stack, vector uint32,
	sequence uint32, endpoint uint16) error {
	if err := b.prependRootE133(stack, vector, sequence, endpoint); err != nil {
		return err
	}
	protocol.AddUDPPreamble(stack)
	return nil
}

// BuildTCPStatus builds a status message for the designated controller
// channel. Status messages with StatusAck acknowledge reliable messages.
func (b *MessageBuilder) BuildTCPStatus(sequence uint32, endpoint uint16,
	status uint16, description string) (*protocol.Stack, error) {
	var stack protocol.Stack
	protocol.PrependStatusPDU(&stack, status, description)
	if err := b.BuildTCPRootE133(&stack, protocol.VectorFramingStatus, sequence, endpoint); err != nil {
		return nil, err
	}
	return &stack, nil
}

// BuildUDPStatus is BuildTCPStatus for the UDP carrier
func (b *MessageBuilder) BuildUDPStatus(sequence uint32, endpoint uint16,
	status uint16, description string) (*protocol.Stack, error) {
	var stack protocol.Stack
	protocol.PrependStatusPDU(&stack, status, description)
	if err := b.BuildUDPRootE133(&stack, protocol.VectorFramingStatus, sequence, endpoint); err != nil {
		return nil, err
	}
	return &stack, nil
}

func (b *MessageBuilder) prependRootE133(stack *protocol.Stack, vector uint32,
	sequence uint32, endpoint uint16) error {
	header := &protocol.E133Header{
		Source:   b.sourceName,
		Sequence: sequence,
		Endpoint: endpoint,
	}
	if err := protocol.PrependE133PDU(stack, vector, header); err != nil {
		return err
	}
	protocol.PrependRootPDU(stack, protocol.VectorRootE133, b.cid)
	return nil
}
