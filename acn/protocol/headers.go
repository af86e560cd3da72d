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

	"github.com/facebook/lighting/acn/cid"
)

// SourceNameLength is the fixed width of the null terminated source name
// field in E1.31 and E1.33 headers.
const SourceNameLength = 64

// RootHeader is the header of the root layer PDU, a single CID
type RootHeader struct {
	CID cid.CID
}

// E1.31 options bits
const (
	E131PreviewMask    uint8 = 0x80
	E131TerminatedMask uint8 = 0x40
	E131ManagementMask uint8 = 0x20
)

// E131HeaderSize is the packed size of an E1.31 framing header
const E131HeaderSize = SourceNameLength + 7

// E131Header is the E1.31 framing layer header
type E131Header struct {
	Source     string
	Priority   uint8
	Sequence   uint8
	Universe   uint16
	Preview    bool
	Terminated bool
	Management bool
}

// MarshalBinaryTo packs the header into b
func (h *E131Header) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < E131HeaderSize {
		return 0, fmt.Errorf("not enough buffer to write E1.31 header")
	}
	packSourceName(b, h.Source)
	b[SourceNameLength] = h.Priority
	b[SourceNameLength+1] = 0 // reserved
	b[SourceNameLength+2] = 0
	b[SourceNameLength+3] = h.Sequence
	var options uint8
	if h.Preview {
		options |= E131PreviewMask
	}
	if h.Terminated {
		options |= E131TerminatedMask
	}
	if h.Management {
		options |= E131ManagementMask
	}
	b[SourceNameLength+4] = options
	binary.BigEndian.PutUint16(b[SourceNameLength+5:], h.Universe)
	return E131HeaderSize, nil
}

// UnmarshalBinary unpacks the header from b
func (h *E131Header) UnmarshalBinary(b []byte) error {
	if len(b) < E131HeaderSize {
		return fmt.Errorf("not enough data to decode E1.31 header")
	}
	h.Source = unpackSourceName(b)
	h.Priority = b[SourceNameLength]
	h.Sequence = b[SourceNameLength+3]
	options := b[SourceNameLength+4]
	h.Preview = options&E131PreviewMask != 0
	h.Terminated = options&E131TerminatedMask != 0
	h.Management = options&E131ManagementMask != 0
	h.Universe = binary.BigEndian.Uint16(b[SourceNameLength+5:])
	return nil
}

// E1.33 options bits
const (
	E133RxAckMask   uint8 = 0x80
	E133TimeoutMask uint8 = 0x40
)

// E133HeaderSize is the packed size of an E1.33 framing header
const E133HeaderSize = SourceNameLength + 7

// E133Header is the E1.33 framing layer header
type E133Header struct {
	Source   string
	Sequence uint32
	Endpoint uint16
	RxAck    bool
	Timeout  bool
}

// MarshalBinaryTo packs the header into b
func (h *E133Header) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < E133HeaderSize {
		return 0, fmt.Errorf("not enough buffer to write E1.33 header")
	}
	packSourceName(b, h.Source)
	binary.BigEndian.PutUint32(b[SourceNameLength:], h.Sequence)
	binary.BigEndian.PutUint16(b[SourceNameLength+4:], h.Endpoint)
	var options uint8
	if h.RxAck {
		options |= E133RxAckMask
	}
	if h.Timeout {
		options |= E133TimeoutMask
	}
	b[SourceNameLength+6] = options
	return E133HeaderSize, nil
}

// UnmarshalBinary unpacks the header from b
func (h *E133Header) UnmarshalBinary(b []byte) error {
	if len(b) < E133HeaderSize {
		return fmt.Errorf("not enough data to decode E1.33 header")
	}
	h.Source = unpackSourceName(b)
	h.Sequence = binary.BigEndian.Uint32(b[SourceNameLength:])
	h.Endpoint = binary.BigEndian.Uint16(b[SourceNameLength+4:])
	options := b[SourceNameLength+6]
	h.RxAck = options&E133RxAckMask != 0
	h.Timeout = options&E133TimeoutMask != 0
	return nil
}

// DMPHeader is a placeholder for the DMP layer header. The DMP layer is
// outside the RDM transport path so only its presence is tracked.
type DMPHeader struct{}

func packSourceName(b []byte, source string) {
	for i := 0; i < SourceNameLength; i++ {
		b[i] = 0
	}
	// field is null terminated, so at most 63 usable bytes
	if len(source) > SourceNameLength-1 {
		source = source[:SourceNameLength-1]
	}
	copy(b, source)
}

func unpackSourceName(b []byte) string {
	name := b[:SourceNameLength]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}
