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

// Package cid implements the ACN Component Identifier, a 16 byte UUID that
// identifies a node on an ACN network (E1.17 section 1.2.2).
package cid

import (
	"fmt"

	"github.com/google/uuid"
)

// Length is the size of a packed CID in bytes
const Length = 16

// CID is an ACN Component Identifier
type CID [Length]byte

// New generates a random (version 4) CID
func New() CID {
	return CID(uuid.New())
}

// FromString parses a CID from its hex string form
func FromString(s string) (CID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CID{}, fmt.Errorf("invalid CID %q: %w", s, err)
	}
	return CID(u), nil
}

// FromBytes builds a CID from 16 network-order bytes
func FromBytes(b []byte) (CID, error) {
	var c CID
	if len(b) < Length {
		return c, fmt.Errorf("need %d bytes for a CID, got %d", Length, len(b))
	}
	copy(c[:], b)
	return c, nil
}

// IsNil returns true if all bytes of the CID are zero. The nil CID is not a
// valid source identity.
func (c CID) IsNil() bool {
	return c == CID{}
}

// Pack writes the CID to b in network order. b must be at least Length bytes.
func (c CID) Pack(b []byte) {
	copy(b, c[:])
}

func (c CID) String() string {
	return uuid.UUID(c).String()
}
