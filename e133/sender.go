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

package e133

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lighting/acn/protocol"
	"github.com/facebook/lighting/acn/transport"
)

// ErrSenderFull is returned by Add when the outstanding message buffer is at
// its limit. The message is dropped.
var ErrSenderFull = errors.New("too many un-acked messages")

// DefaultMaxSenderQueueSize bounds the un-acked message buffer
const DefaultMaxSenderQueueSize = 10

// outstandingMessage is an unsolicited RDM response waiting for its ack
type outstandingMessage struct {
	endpoint uint16
	// the RDM response without its start code
	response []byte
	wasSent  bool
}

// TCPMessageSender delivers unsolicited RDM responses (queued status
// changes and the like) over the designated controller TCP channel. Each
// message gets a sequence number and is buffered until the controller acks
// it with an E1.33 status message; messages survive the connection dropping
// and are resent when a new one is attached.
type TCPMessageSender struct {
	builder *MessageBuilder

	mu            sync.Mutex
	nextSequence  uint32
	maxQueueSize  int
	unsentPending bool
	queue         *transport.MessageQueue
	unacked       map[uint32]*outstandingMessage
}

// NewTCPMessageSender creates a sender. maxQueueSize <= 0 selects
// DefaultMaxSenderQueueSize.
func NewTCPMessageSender(builder *MessageBuilder, maxQueueSize int) *TCPMessageSender {
	if maxQueueSize <= 0 {
		maxQueueSize = DefaultMaxSenderQueueSize
	}
	return &TCPMessageSender{
		builder:      builder,
		maxQueueSize: maxQueueSize,
		unacked:      make(map[uint32]*outstandingMessage),
	}
}

// SetMessageQueue attaches (or detaches, with nil) the designated controller
// connection. On attach every un-acked message is sent, including ones that
// already went out on an earlier connection.
func (s *TCPMessageSender) SetMessageQueue(queue *transport.MessageQueue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = queue
	if s.queue == nil {
		return
	}
	log.Info("New designated controller connection, sending un-acked messages")
	s.sendOutstandingLocked(true)
}

// Add buffers an RDM response for reliable delivery and attempts to send it.
// The response must not include its start code. Returns the sequence number
// assigned to the message.
func (s *TCPMessageSender) Add(endpoint uint16, response []byte) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.unacked) >= s.maxQueueSize {
		log.Warn("Reliable message buffer full, message dropped")
		return 0, ErrSenderFull
	}
	s.nextSequence++
	sequence := s.nextSequence

	m := &outstandingMessage{endpoint: endpoint, response: response}
	s.unacked[sequence] = m
	if s.queue != nil {
		m.wasSent = s.sendLocked(sequence, m)
		if !m.wasSent {
			s.unsentPending = true
		}
	}
	return sequence, nil
}

// Acknowledge drops the message with this sequence number. If earlier sends
// were refused by a full queue, the remaining unsent messages are retried.
func (s *TCPMessageSender) Acknowledge(sequence uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.unacked[sequence]; !ok {
		log.Debugf("Ack for unknown sequence %d", sequence)
		return
	}
	delete(s.unacked, sequence)
	if s.unsentPending && s.queue != nil && !s.queue.LimitReached() {
		s.sendOutstandingLocked(false)
	}
}

// QueueSize returns the number of messages waiting for an ack
func (s *TCPMessageSender) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unacked)
}

// sendOutstandingLocked (re)sends buffered messages. With all set, messages
// that were already sent on a previous connection go out again too.
func (s *TCPMessageSender) sendOutstandingLocked(all bool) {
	sentAll := true
	for sequence, m := range s.unacked {
		if m.wasSent && !all {
			continue
		}
		m.wasSent = s.sendLocked(sequence, m)
		sentAll = sentAll && m.wasSent
	}
	s.unsentPending = !sentAll
}

func (s *TCPMessageSender) sendLocked(sequence uint32, m *outstandingMessage) bool {
	if s.queue.LimitReached() {
		return false
	}
	var stack protocol.Stack
	stack.Prepend(m.response)
	protocol.PrependRDMPDU(&stack)
	if err := s.builder.BuildTCPRootE133(&stack, protocol.VectorFramingRDMNet, sequence, m.endpoint); err != nil {
		log.Errorf("Failed to build reliable RDM message: %v", err)
		return false
	}
	return s.queue.Send(&stack) == nil
}
