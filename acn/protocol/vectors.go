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

// all references are given for ANSI E1.17-2010, E1.31-2009 and the E1.33 draft

// Root layer vectors
const (
	VectorRootE131Rev2 uint32 = 3 // used by some very old gear
	VectorRootE131     uint32 = 4
	VectorRootE133     uint32 = 5
	VectorRootNull     uint32 = 6
)

// E1.31 framing layer vectors
const (
	VectorE131DMP uint32 = 2
)

// E1.33 framing layer vectors
const (
	VectorFramingRDMNet             uint32 = 1
	VectorFramingStatus             uint32 = 2
	VectorFramingController         uint32 = 3
	VectorFramingChangeNotification uint32 = 4
)

// VectorRDMNetData is the vector of an RDM PDU, which doubles as the RDM
// start code.
const VectorRDMNetData uint32 = 0xcc

// StatusAck is the E1.33 status code sent to acknowledge a message received
// over the designated controller TCP connection. Non-zero values are device
// defined.
const StatusAck uint16 = 0

/*
UDP and TCP port numbers:
E1.31 DMX data is carried over UDP port 5568.
E1.33 uses UDP port 5568 for low latency RDM commands and TCP port 5569 for
the designated controller channel.
SLP uses UDP and TCP port 427.
*/
var (
	PortE131    = 5568
	PortE133TCP = 5569
	PortSLP     = 427
)
