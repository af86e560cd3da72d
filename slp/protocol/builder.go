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
	"net"
	"strings"
)

// writer accumulates a message body
type writer struct {
	b []byte
}

func (w *writer) u8(v uint8)   { w.b = append(w.b, v) }
func (w *writer) u16(v uint16) { w.b = binary.BigEndian.AppendUint16(w.b, v) }
func (w *writer) u32(v uint32) { w.b = binary.BigEndian.AppendUint32(w.b, v) }

// str writes a 2 byte length prefixed string
func (w *writer) str(s string) {
	w.u16(uint16(len(s)))
	w.b = append(w.b, s...)
}

// urlEntry writes a URL entry with no auth blocks
func (w *writer) urlEntry(u URLEntry) {
	w.u8(0) // reserved
	w.u16(u.Lifetime)
	w.str(u.URL)
	w.u8(0) // no auth blocks, SLP SPI is unused
}

// headerSize is the fixed part of the header before the language tag
const headerSize = 14

// finish prepends the header to the body and returns the complete message
func finish(function FunctionID, flags uint16, xid uint16, language string, body []byte) []byte {
	length := headerSize + len(language) + len(body)
	out := make([]byte, 0, length)
	out = append(out, Version, byte(function),
		byte(length>>16), byte(length>>8), byte(length))
	out = binary.BigEndian.AppendUint16(out, flags)
	out = append(out, 0, 0, 0) // next extension offset
	out = binary.BigEndian.AppendUint16(out, xid)
	out = binary.BigEndian.AppendUint16(out, uint16(len(language)))
	out = append(out, language...)
	return append(out, body...)
}

// joinPRList renders a previous responder list for the wire
func joinPRList(prList []net.IP) string {
	addrs := make([]string, len(prList))
	for i, ip := range prList {
		addrs[i] = ip.String()
	}
	return strings.Join(addrs, ",")
}

func requestFlags(multicast bool) uint16 {
	if multicast {
		return FlagMulticast
	}
	return 0
}

// BuildServiceRequest builds a SrvRqst
func BuildServiceRequest(xid uint16, multicast bool, prList []net.IP,
	serviceType string, scopes ScopeSet, predicate string) []byte {
	var w writer
	w.str(joinPRList(prList))
	w.str(serviceType)
	w.str(scopes.EscapedString())
	w.str(predicate)
	w.str("") // SPI
	return finish(FunctionSrvRqst, requestFlags(multicast), xid, DefaultLanguage, w.b)
}

// BuildServiceReply builds a SrvRply
func BuildServiceReply(xid uint16, language string, errorCode ErrorCode, urls []URLEntry) []byte {
	var w writer
	w.u16(uint16(errorCode))
	w.u16(uint16(len(urls)))
	for _, u := range urls {
		w.urlEntry(u)
	}
	return finish(FunctionSrvRply, 0, xid, language, w.b)
}

// BuildServiceRegistration builds a SrvReg. fresh distinguishes a new
// registration from a lifetime refresh.
func BuildServiceRegistration(xid uint16, fresh bool, scopes ScopeSet,
	url URLEntry, serviceType string) []byte {
	var flags uint16
	if fresh {
		flags = FlagFresh
	}
	var w writer
	w.urlEntry(url)
	w.str(serviceType)
	w.str(scopes.EscapedString())
	w.str("") // attr list
	w.u8(0)   // no auth blocks
	return finish(FunctionSrvReg, flags, xid, DefaultLanguage, w.b)
}

// BuildServiceDeRegistration builds a SrvDeReg
func BuildServiceDeRegistration(xid uint16, scopes ScopeSet, url URLEntry) []byte {
	var w writer
	w.str(scopes.EscapedString())
	w.urlEntry(url)
	w.str("") // tag list
	return finish(FunctionSrvDeReg, 0, xid, DefaultLanguage, w.b)
}

// BuildServiceAck builds a SrvAck
func BuildServiceAck(xid uint16, language string, errorCode ErrorCode) []byte {
	var w writer
	w.u16(uint16(errorCode))
	return finish(FunctionSrvAck, 0, xid, language, w.b)
}

// BuildDAAdvert builds a DAAdvert
func BuildDAAdvert(xid uint16, multicast bool, errorCode ErrorCode,
	bootTimestamp uint32, url string, scopes ScopeSet) []byte {
	var w writer
	w.u16(uint16(errorCode))
	w.u32(bootTimestamp)
	w.str(url)
	w.str(scopes.EscapedString())
	w.str("") // attr list
	w.str("") // SPI
	w.u8(0)   // no auth blocks
	return finish(FunctionDAAdvert, requestFlags(multicast), xid, DefaultLanguage, w.b)
}

// BuildServiceTypeRequest builds a SrvTypeRqst. includeAll selects all
// naming authorities; otherwise namingAuth filters, with "" meaning the IANA
// default.
func BuildServiceTypeRequest(xid uint16, multicast bool, prList []net.IP,
	includeAll bool, namingAuth string, scopes ScopeSet) []byte {
	var w writer
	w.str(joinPRList(prList))
	if includeAll {
		w.u16(0xffff)
	} else {
		w.str(namingAuth)
	}
	w.str(scopes.EscapedString())
	return finish(FunctionSrvTypeRqst, requestFlags(multicast), xid, DefaultLanguage, w.b)
}

// BuildServiceTypeReply builds a SrvTypeRply
func BuildServiceTypeReply(xid uint16, errorCode ErrorCode, serviceTypes []string) []byte {
	var w writer
	w.u16(uint16(errorCode))
	w.str(strings.Join(serviceTypes, ","))
	return finish(FunctionSrvTypeRply, 0, xid, DefaultLanguage, w.b)
}

// BuildSAAdvert builds an SAAdvert
func BuildSAAdvert(xid uint16, multicast bool, url string, scopes ScopeSet) []byte {
	var w writer
	w.str(url)
	w.str(scopes.EscapedString())
	w.str("") // attr list
	w.u8(0)   // no auth blocks
	return finish(FunctionSAAdvert, requestFlags(multicast), xid, DefaultLanguage, w.b)
}

// BuildError builds the minimal error response for a function type: just the
// header and an error code. Used for requests we parse but don't serve.
func BuildError(function FunctionID, xid uint16, language string, errorCode ErrorCode) []byte {
	var w writer
	w.u16(uint16(errorCode))
	return finish(function, 0, xid, language, w.b)
}
