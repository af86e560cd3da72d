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

// RDMHandler receives a complete RDM frame, start code first. The frame is
// opaque here; the RDM parser lives outside this layer.
type RDMHandler func(transport *protocol.TransportHeader, e133 *protocol.E133Header, frame []byte)

// RDM is the RDM message inflator inside the E1.33 framing layer. The single
// byte vector of an RDM PDU is the RDM start code.
type RDM struct {
	*Base
	handlers       map[uint16]RDMHandler
	defaultHandler RDMHandler
}

// NewRDM creates an RDM inflator
func NewRDM() *RDM {
	r := &RDM{handlers: make(map[uint16]RDMHandler)}
	r.Base = NewBase(protocol.OneByte, r)
	return r
}

// ID returns the E1.33 framing vector for RDM
func (r *RDM) ID() uint32 { return protocol.VectorFramingRDMNet }

// SetRDMHandler registers the handler for an endpoint
func (r *RDM) SetRDMHandler(endpoint uint16, h RDMHandler) {
	r.handlers[endpoint] = h
}

// RemoveRDMHandler drops the handler for an endpoint
func (r *RDM) RemoveRDMHandler(endpoint uint16) {
	delete(r.handlers, endpoint)
}

// SetDefaultRDMHandler registers a catch-all for endpoints with no handler
func (r *RDM) SetDefaultRDMHandler(h RDMHandler) {
	r.defaultHandler = h
}

// DecodeHeader is a no-op, RDM PDUs have a zero length header
func (r *RDM) DecodeHeader(_ *protocol.HeaderSet, _ []byte) (int, bool) {
	return 0, true
}

// ResetHeaderField is a no-op
func (r *RDM) ResetHeaderField() {}

// PostHeader always continues
func (r *RDM) PostHeader(_ uint32, _ *protocol.HeaderSet) bool { return true }

// HandlePDUData routes the RDM frame to the handler for the endpoint in the
// E1.33 header
func (r *RDM) HandlePDUData(vector uint32, headers *protocol.HeaderSet, data []byte) bool {
	if vector != protocol.VectorRDMNetData {
		log.Warnf("Unknown RDM start code %#x", vector)
		return false
	}
	h, ok := r.handlers[headers.E133.Endpoint]
	if !ok {
		h = r.defaultHandler
	}
	if h == nil {
		log.Warnf("No RDM handler for endpoint %d", headers.E133.Endpoint)
		return false
	}
	frame := make([]byte, 0, 1+len(data))
	frame = append(frame, byte(protocol.VectorRDMNetData))
	frame = append(frame, data...)
	h(&headers.Transport, &headers.E133, frame)
	return true
}
