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

package rdm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUIDString(t *testing.T) {
	u := UID{ManufacturerID: 0x7a70, DeviceID: 1}
	require.Equal(t, "7a70:00000001", u.String())
}

func TestParseUID(t *testing.T) {
	u, err := ParseUID("7a70:00000001")
	require.NoError(t, err)
	require.Equal(t, UID{ManufacturerID: 0x7a70, DeviceID: 1}, u)

	for _, bad := range []string{"", "7a70", "7a70:0001", "zzzz:00000001", "7a70-00000001x"} {
		_, err := ParseUID(bad)
		require.Error(t, err, bad)
	}
}
