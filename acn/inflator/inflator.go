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

// Package inflator decodes nested ACN PDU blocks.
//
// Each protocol layer is an Inflator. A parent holds a registry keyed by
// vector value; when it decodes a PDU whose vector maps to a child, it hands
// the PDU payload to that child's InflateBlock. Vectors and headers may be
// omitted (V=0 / H=0) in which case the value of the previous sibling PDU is
// inherited; the per-block inheritance state lives in Base.
package inflator

import (
	log "github.com/sirupsen/logrus"

	"github.com/facebook/lighting/acn/protocol"
)

// Inflator decodes a block of PDUs at one protocol layer
type Inflator interface {
	// ID returns the vector value the parent uses to select this inflator
	ID() uint32
	// InflateBlock decodes a block of sibling PDUs, returning the number of
	// bytes consumed
	InflateBlock(headers *protocol.HeaderSet, b []byte) int
}

// layer is the capability bundle a concrete inflator plugs into Base. The
// split mirrors the three per-layer decisions: how to decode this layer's
// header, when to skip a PDU after the header, and what to do with leaf data.
type layer interface {
	// DecodeHeader decodes this layer's header into the HeaderSet. A nil
	// data slice means H=0: reuse the previous sibling's header or fail if
	// there is none. Returns the bytes consumed and ok.
	DecodeHeader(headers *protocol.HeaderSet, data []byte) (int, bool)
	// ResetHeaderField clears the inherited-header state at block entry
	ResetHeaderField()
	// PostHeader runs after the header is decoded and before dispatch.
	// Returning false skips the PDU without an error.
	PostHeader(vector uint32, headers *protocol.HeaderSet) bool
	// HandlePDUData is called for PDUs whose vector has no child inflator
	HandlePDUData(vector uint32, headers *protocol.HeaderSet, data []byte) bool
}

// Base implements the generic PDU block walk. Concrete inflators embed it
// and pass themselves in as the layer.
type Base struct {
	vectorWidth int
	layer       layer

	// per-block vector inheritance state
	lastVector uint32
	vectorSet  bool

	children map[uint32]Inflator
}

// NewBase creates the dispatch state for one layer. The vector width is an
// immutable property of the layer.
func NewBase(vectorWidth int, l layer) *Base {
	return &Base{
		vectorWidth: vectorWidth,
		layer:       l,
		children:    make(map[uint32]Inflator),
	}
}

// AddInflator registers a child for its vector. Returns false if the vector
// is already taken.
func (b *Base) AddInflator(child Inflator) bool {
	if _, ok := b.children[child.ID()]; ok {
		return false
	}
	b.children[child.ID()] = child
	return true
}

// GetInflator returns the child registered for a vector, or nil
func (b *Base) GetInflator(vector uint32) Inflator {
	return b.children[vector]
}

// InflateBlock walks a block of sibling PDUs, dispatching each one. It stops
// at the first malformed length field and returns the bytes consumed; PDUs
// decoded before the error have already been delivered.
func (b *Base) InflateBlock(headers *protocol.HeaderSet, data []byte) int {
	offset := 0
	b.vectorSet = false
	b.layer.ResetHeaderField()

	for offset < len(data) {
		pduLength, lengthUsed, err := protocol.DecodeLength(data[offset:])
		if err != nil {
			log.Warnf("Bad PDU length at offset %d: %v", offset, err)
			return offset
		}
		if offset+pduLength <= len(data) {
			b.inflatePDU(headers, data[offset], data[offset+lengthUsed:offset+pduLength])
		}
		// a PDU overrunning the block ends the walk, but the siblings
		// already decoded stand
		offset += pduLength
	}
	if offset > len(data) {
		return len(data)
	}
	return offset
}

// inflatePDU decodes a single PDU: vector, header, then either a child
// inflator or the leaf data handler.
func (b *Base) inflatePDU(headers *protocol.HeaderSet, flags byte, data []byte) bool {
	var vector uint32
	offset := 0

	if flags&protocol.FlagVector != 0 {
		v, err := protocol.DecodeVector(b.vectorWidth, data)
		if err != nil {
			log.Warnf("PDU vector decode failed: %v", err)
			return false
		}
		vector = v
		offset = b.vectorWidth
		b.lastVector = v
		b.vectorSet = true
	} else {
		if !b.vectorSet {
			log.Warn("Vector not present and no previous vector to inherit")
			return false
		}
		vector = b.lastVector
	}

	var headerData []byte
	if flags&protocol.FlagHeader != 0 {
		headerData = data[offset:]
	}
	headerUsed, ok := b.layer.DecodeHeader(headers, headerData)
	if !ok {
		return false
	}
	if flags&protocol.FlagHeader == 0 {
		headerUsed = 0
	}
	offset += headerUsed

	if !b.layer.PostHeader(vector, headers) {
		// the header was for this layer but the body is not
		return true
	}

	if child := b.GetInflator(vector); child != nil {
		child.InflateBlock(headers, data[offset:])
		return true
	}
	return b.layer.HandlePDUData(vector, headers, data[offset:])
}
