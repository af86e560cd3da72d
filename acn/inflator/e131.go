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
	log "github.com/sirupsen/logrus"

	"github.com/facebook/lighting/acn/protocol"
)

// DMXHandler receives decoded E1.31 DMP payloads
type DMXHandler func(headers *protocol.HeaderSet, data []byte)

// E131 is the E1.31 framing layer inflator
type E131 struct {
	*Base
	lastHeader      protocol.E131Header
	lastHeaderValid bool
	dmxHandler      DMXHandler
}

// NewE131 creates an E1.31 framing inflator
func NewE131() *E131 {
	e := &E131{}
	e.Base = NewBase(protocol.FourBytes, e)
	return e
}

// ID returns the root layer vector for E1.31
func (e *E131) ID() uint32 { return protocol.VectorRootE131 }

// SetDMXHandler registers the handler for DMP data PDUs
func (e *E131) SetDMXHandler(h DMXHandler) {
	e.dmxHandler = h
}

// DecodeHeader extracts the E1.31 framing header
func (e *E131) DecodeHeader(headers *protocol.HeaderSet, data []byte) (int, bool) {
	if data != nil {
		var h protocol.E131Header
		if err := h.UnmarshalBinary(data); err != nil {
			return 0, false
		}
		e.lastHeader = h
		e.lastHeaderValid = true
		headers.E131 = h
		return protocol.E131HeaderSize, true
	}
	if !e.lastHeaderValid {
		log.Warn("Missing E1.31 header data")
		return 0, false
	}
	headers.E131 = e.lastHeader
	return 0, true
}

// ResetHeaderField clears the inherited header
func (e *E131) ResetHeaderField() {
	e.lastHeaderValid = false
}

// PostHeader always continues
func (e *E131) PostHeader(_ uint32, _ *protocol.HeaderSet) bool { return true }

// HandlePDUData delivers DMP payloads
func (e *E131) HandlePDUData(vector uint32, headers *protocol.HeaderSet, data []byte) bool {
	if vector != protocol.VectorE131DMP {
		log.Warnf("No E1.31 handler for vector %d", vector)
		return false
	}
	if e.dmxHandler == nil {
		log.Debug("E1.31 DMP PDU received but no DMX handler is set")
		return false
	}
	e.dmxHandler(headers, data)
	return true
}
