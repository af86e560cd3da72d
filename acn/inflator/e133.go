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

// E133 is the E1.33 framing layer inflator. RDM and status inflators are
// registered as children at construction.
type E133 struct {
	*Base
	lastHeader      protocol.E133Header
	lastHeaderValid bool

	rdm    *RDM
	status *Status
}

// NewE133 creates an E1.33 framing inflator with its RDM and status children
func NewE133() *E133 {
	e := &E133{rdm: NewRDM(), status: NewStatus()}
	e.Base = NewBase(protocol.FourBytes, e)
	e.AddInflator(e.rdm)
	e.AddInflator(e.status)
	return e
}

// ID returns the root layer vector for E1.33
func (e *E133) ID() uint32 { return protocol.VectorRootE133 }

// RDM returns the child RDM inflator for handler registration
func (e *E133) RDM() *RDM { return e.rdm }

// Status returns the child status inflator for handler registration
func (e *E133) Status() *Status { return e.status }

// DecodeHeader extracts the E1.33 framing header
func (e *E133) DecodeHeader(headers *protocol.HeaderSet, data []byte) (int, bool) {
	if data != nil {
		var h protocol.E133Header
		if err := h.UnmarshalBinary(data); err != nil {
			return 0, false
		}
		e.lastHeader = h
		e.lastHeaderValid = true
		headers.E133 = h
		return protocol.E133HeaderSize, true
	}
	if !e.lastHeaderValid {
		log.Warn("Missing E1.33 header data")
		return 0, false
	}
	headers.E133 = e.lastHeader
	return 0, true
}

// ResetHeaderField clears the inherited header
func (e *E133) ResetHeaderField() {
	e.lastHeaderValid = false
}

// PostHeader always continues
func (e *E133) PostHeader(_ uint32, _ *protocol.HeaderSet) bool { return true }

// HandlePDUData is hit for E1.33 vectors with no registered child
func (e *E133) HandlePDUData(vector uint32, _ *protocol.HeaderSet, _ []byte) bool {
	log.Warnf("No E1.33 handler for vector %d", vector)
	return false
}
