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

// Package rdm holds the small slice of RDM (E1.20) this module needs at its
// boundary: the 48 bit UID that names a device and the start code constant.
// Parsing and building RDM messages is someone else's job; they move through
// here as opaque byte slices.
package rdm

import (
	"fmt"
)

// StartCode is the RDM start code, the first byte of every RDM frame
const StartCode byte = 0xcc

// UID is a 48 bit RDM unique identifier: a 16 bit ESTA manufacturer id and a
// 32 bit device id
type UID struct {
	ManufacturerID uint16
	DeviceID       uint32
}

// String renders the UID in the canonical lowercase hex form xxxx:xxxxxxxx
func (u UID) String() string {
	return fmt.Sprintf("%04x:%08x", u.ManufacturerID, u.DeviceID)
}

// ParseUID parses the canonical xxxx:xxxxxxxx form
func ParseUID(s string) (UID, error) {
	var u UID
	if len(s) != 13 || s[4] != ':' {
		return u, fmt.Errorf("invalid UID %q", s)
	}
	if _, err := fmt.Sscanf(s, "%04x:%08x", &u.ManufacturerID, &u.DeviceID); err != nil {
		return u, fmt.Errorf("invalid UID %q: %w", s, err)
	}
	return u, nil
}
