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

// Package protocol implements the ACN (E1.17) PDU wire format along with the
// E1.31 and E1.33 headers carried inside it.
//
// A PDU starts with a flags byte. The high nibble holds four flags (extended
// length, vector present, header present, data present) and the low nibble is
// the top bits of the length field. The length covers the whole PDU including
// the flags and length bytes, and is 12 bits wide normally or 20 bits wide
// when the L flag is set.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PDU flag bits, carried in the high nibble of the first byte
const (
	FlagLength byte = 0x80 // L: 20 bit length field
	FlagVector byte = 0x40 // V: vector is present
	FlagHeader byte = 0x20 // H: header is present
	FlagData   byte = 0x10 // D: data is present

	// LengthMask extracts the length bits from the flags byte
	LengthMask byte = 0x0f
)

// Vector widths. Each inflator level fixes one of these.
const (
	OneByte   = 1
	TwoBytes  = 2
	FourBytes = 4
)

// the largest PDU length that fits the 2 byte length form
const twoByteLengthLimit = 0x0fff

var (
	// ErrInvalidLength means the length field was truncated or inconsistent
	ErrInvalidLength = errors.New("invalid PDU length")
	// ErrInvalidVector means the vector field was truncated or there was no
	// previous vector to inherit
	ErrInvalidVector = errors.New("invalid PDU vector")
)

// DecodeLength extracts the PDU length from the start of b. It returns the
// total PDU length (including the flags and length bytes) and the number of
// bytes the length field occupies.
func DecodeLength(b []byte) (pduLength int, consumed int, err error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("%w: no data", ErrInvalidLength)
	}
	if b[0]&FlagLength != 0 {
		if len(b) < 3 {
			return 0, 0, fmt.Errorf("%w: %d bytes with the L bit set", ErrInvalidLength, len(b))
		}
		consumed = 3
		pduLength = int(b[0]&LengthMask)<<16 | int(b[1])<<8 | int(b[2])
	} else {
		if len(b) < 2 {
			return 0, 0, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(b))
		}
		consumed = 2
		pduLength = int(b[0]&LengthMask)<<8 | int(b[1])
	}
	if pduLength < consumed {
		return 0, 0, fmt.Errorf("%w: length %d smaller than its own field of %d bytes",
			ErrInvalidLength, pduLength, consumed)
	}
	return pduLength, consumed, nil
}

// DecodeVector reads a vector of the given width from b
func DecodeVector(width int, b []byte) (uint32, error) {
	if len(b) < width {
		return 0, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidVector, width, len(b))
	}
	switch width {
	case OneByte:
		return uint32(b[0]), nil
	case TwoBytes:
		return uint32(binary.BigEndian.Uint16(b)), nil
	case FourBytes:
		return binary.BigEndian.Uint32(b), nil
	}
	return 0, fmt.Errorf("%w: unknown vector width %d", ErrInvalidVector, width)
}

// Pack builds a complete PDU. The flags must be consistent with the sections
// provided: FlagVector means the vector is written (at vectorWidth bytes),
// FlagHeader and FlagData must match header / data being non empty. The 3
// byte length form is used when the total length requires it or when
// forceExtended is set.
func Pack(flags byte, vectorWidth int, vector uint32, header, data []byte, forceExtended bool) ([]byte, error) {
	if flags&FlagHeader == 0 && len(header) > 0 {
		return nil, fmt.Errorf("header bytes provided but the H flag is clear")
	}
	if flags&FlagData == 0 && len(data) > 0 {
		return nil, fmt.Errorf("data bytes provided but the D flag is clear")
	}
	if flags&FlagHeader != 0 && len(header) == 0 {
		return nil, fmt.Errorf("the H flag is set but no header bytes were provided")
	}
	if flags&FlagData != 0 && len(data) == 0 {
		return nil, fmt.Errorf("the D flag is set but no data bytes were provided")
	}
	body := len(header) + len(data)
	if flags&FlagVector != 0 {
		body += vectorWidth
	}

	lengthSize := 2
	if forceExtended || body+2 > twoByteLengthLimit {
		lengthSize = 3
	}
	total := lengthSize + body

	out := make([]byte, 0, total)
	if lengthSize == 3 {
		out = append(out,
			flags|FlagLength|byte(total>>16)&LengthMask,
			byte(total>>8), byte(total))
	} else {
		out = append(out, flags&^FlagLength|byte(total>>8)&LengthMask, byte(total))
	}
	if flags&FlagVector != 0 {
		switch vectorWidth {
		case OneByte:
			out = append(out, byte(vector))
		case TwoBytes:
			out = binary.BigEndian.AppendUint16(out, uint16(vector))
		case FourBytes:
			out = binary.BigEndian.AppendUint32(out, vector)
		default:
			return nil, fmt.Errorf("unknown vector width %d", vectorWidth)
		}
	}
	out = append(out, header...)
	out = append(out, data...)
	return out, nil
}

// PrependFlagsAndLength prepends the flags and length bytes to a stack that
// already holds the vector, header and data of a PDU. This is the stream
// variant of Pack: deeper PDUs are written first and each layer prepends its
// framing.
func PrependFlagsAndLength(stack *Stack, flags byte, forceExtended bool) {
	length := stack.Size() + 2
	if forceExtended || length > twoByteLengthLimit {
		length = stack.Size() + 3
		stack.Prepend([]byte{
			flags | FlagLength | byte(length>>16)&LengthMask,
			byte(length >> 8),
			byte(length),
		})
		return
	}
	stack.Prepend([]byte{flags&^FlagLength | byte(length>>8)&LengthMask, byte(length)})
}

// PrependVector prepends a vector of the given width to the stack
func PrependVector(stack *Stack, width int, vector uint32) {
	switch width {
	case OneByte:
		stack.Prepend([]byte{byte(vector)})
	case TwoBytes:
		stack.Prepend(binary.BigEndian.AppendUint16(nil, uint16(vector)))
	case FourBytes:
		stack.Prepend(binary.BigEndian.AppendUint32(nil, vector))
	}
}
