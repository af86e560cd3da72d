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
	"encoding/binary"

	"github.com/facebook/lighting/acn/cid"
)

// PrependRootPDU wraps the stack contents in a root layer PDU
func PrependRootPDU(stack *Stack, vector uint32, c cid.CID) {
	header := make([]byte, cid.Length)
	c.Pack(header)
	stack.Prepend(header)
	PrependVector(stack, FourBytes, vector)
	PrependFlagsAndLength(stack, FlagVector|FlagHeader|FlagData, false)
}

// PrependE131PDU wraps the stack contents in an E1.31 framing PDU
func PrependE131PDU(stack *Stack, vector uint32, header *E131Header) error {
	buf := make([]byte, E131HeaderSize)
	if _, err := header.MarshalBinaryTo(buf); err != nil {
		return err
	}
	stack.Prepend(buf)
	PrependVector(stack, FourBytes, vector)
	PrependFlagsAndLength(stack, FlagVector|FlagHeader|FlagData, false)
	return nil
}

// PrependE133PDU wraps the stack contents in an E1.33 framing PDU
func PrependE133PDU(stack *Stack, vector uint32, header *E133Header) error {
	buf := make([]byte, E133HeaderSize)
	if _, err := header.MarshalBinaryTo(buf); err != nil {
		return err
	}
	stack.Prepend(buf)
	PrependVector(stack, FourBytes, vector)
	PrependFlagsAndLength(stack, FlagVector|FlagHeader|FlagData, false)
	return nil
}

// PrependRDMPDU wraps an RDM message (without its start code) in an RDM PDU.
// The start code is carried as the single byte vector.
func PrependRDMPDU(stack *Stack) {
	PrependVector(stack, OneByte, VectorRDMNetData)
	PrependFlagsAndLength(stack, FlagVector|FlagData, false)
}

// PrependStatusPDU wraps an E1.33 status code and description in a status PDU
func PrependStatusPDU(stack *Stack, status uint16, description string) {
	data := make([]byte, 2, 2+len(description))
	binary.BigEndian.PutUint16(data, status)
	data = append(data, description...)
	stack.Prepend(data)
	PrependVector(stack, OneByte, 0)
	PrependFlagsAndLength(stack, FlagVector|FlagData, false)
}
