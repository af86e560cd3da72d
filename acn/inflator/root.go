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

	"github.com/facebook/lighting/acn/cid"
	"github.com/facebook/lighting/acn/protocol"
)

// OnData is a hook run for every root PDU, used by the connection health
// checker to observe traffic.
type OnData func(transport *protocol.TransportHeader)

// Root is the top level inflator. Its header is the sender's CID.
type Root struct {
	*Base
	lastCID cid.CID
	onData  OnData
}

// NewRoot creates a root inflator. onData may be nil.
func NewRoot(onData OnData) *Root {
	r := &Root{onData: onData}
	r.Base = NewBase(protocol.FourBytes, r)
	r.AddInflator(&Null{})
	return r
}

// ID has no meaning for the root inflator, there is nothing above it
func (r *Root) ID() uint32 { return 0 }

// DecodeHeader extracts the CID
func (r *Root) DecodeHeader(headers *protocol.HeaderSet, data []byte) (int, bool) {
	if data != nil {
		c, err := cid.FromBytes(data)
		if err != nil {
			return 0, false
		}
		r.lastCID = c
		headers.Root = protocol.RootHeader{CID: c}
		return cid.Length, true
	}
	if r.lastCID.IsNil() {
		log.Warn("Missing CID data")
		return 0, false
	}
	headers.Root = protocol.RootHeader{CID: r.lastCID}
	return 0, true
}

// ResetHeaderField clears the inherited CID
func (r *Root) ResetHeaderField() {
	r.lastCID = cid.CID{}
}

// PostHeader feeds the health check hook
func (r *Root) PostHeader(_ uint32, headers *protocol.HeaderSet) bool {
	if r.onData != nil {
		r.onData(&headers.Transport)
	}
	return true
}

// HandlePDUData is hit for root vectors with no registered child
func (r *Root) HandlePDUData(vector uint32, _ *protocol.HeaderSet, _ []byte) bool {
	log.Warnf("No root layer handler for vector %d", vector)
	return false
}

// Null handles VECTOR_ROOT_NULL PDUs, which carry no data. They're used as
// TCP heartbeats.
type Null struct{}

// ID returns the root NULL vector
func (n *Null) ID() uint32 { return protocol.VectorRootNull }

// InflateBlock only complains if a NULL PDU carried data
func (n *Null) InflateBlock(_ *protocol.HeaderSet, b []byte) int {
	if len(b) != 0 {
		log.Warnf("NULL PDU contained %d bytes of data", len(b))
	}
	return 0
}
