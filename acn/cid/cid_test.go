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

package cid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := New()
	b := New()
	require.False(t, a.IsNil())
	require.NotEqual(t, a, b)
}

func TestFromString(t *testing.T) {
	c, err := FromString("6fa92890-d9e7-43c8-9a5b-96e915d3c04c")
	require.NoError(t, err)
	require.Equal(t, "6fa92890-d9e7-43c8-9a5b-96e915d3c04c", c.String())

	_, err = FromString("not a uuid")
	require.Error(t, err)
}

func TestPackRoundTrip(t *testing.T) {
	c := New()
	buf := make([]byte, Length)
	c.Pack(buf)
	got, err := FromBytes(buf)
	require.NoError(t, err)
	require.Equal(t, c, got)

	_, err = FromBytes(buf[:10])
	require.Error(t, err)
}

func TestIsNil(t *testing.T) {
	var c CID
	require.True(t, c.IsNil())
	require.False(t, New().IsNil())
}
