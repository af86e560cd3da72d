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

package inflator

import (
	"encoding/binary"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lighting/acn/protocol"
)

// StatusHandler receives decoded E1.33 status messages
type StatusHandler func(transport *protocol.TransportHeader, e133 *protocol.E133Header,
	status uint16, description string)

// Status is the E1.33 status message inflator. The payload of a status PDU
// is a two byte status code followed by a UTF-8 description.
type Status struct {
	*Base
	handler StatusHandler
}

// NewStatus creates a status inflator
func NewStatus() *Status {
	s := &Status{}
	s.Base = NewBase(protocol.OneByte, s)
	return s
}

// ID returns the E1.33 framing vector for status messages
func (s *Status) ID() uint32 { return protocol.VectorFramingStatus }

// SetStatusHandler registers the status message handler
func (s *Status) SetStatusHandler(h StatusHandler) {
	s.handler = h
}

// DecodeHeader is a no-op, status PDUs have a zero length header
func (s *Status) DecodeHeader(_ *protocol.HeaderSet, _ []byte) (int, bool) {
	return 0, true
}

// ResetHeaderField is a no-op
func (s *Status) ResetHeaderField() {}

// PostHeader always continues
func (s *Status) PostHeader(_ uint32, _ *protocol.HeaderSet) bool { return true }

// HandlePDUData decodes the status code and description
func (s *Status) HandlePDUData(_ uint32, headers *protocol.HeaderSet, data []byte) bool {
	if len(data) < 2 {
		log.Warnf("E1.33 status PDU too short: %d bytes", len(data))
		return false
	}
	if s.handler == nil {
		log.Debug("E1.33 status PDU received but no handler is set")
		return false
	}
	status := binary.BigEndian.Uint16(data)
	s.handler(&headers.Transport, &headers.E133, status, string(data[2:]))
	return true
}
