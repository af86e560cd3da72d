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
	"fmt"
	"net"
	"strings"

	log "github.com/sirupsen/logrus"
)

/*
The SLPv2 header:

   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |    Version    |  Function-ID  |            Length             |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Length, contd.|O|F|R|       reserved          |Next Ext Offset|
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |  Next Extension Offset, contd.|              XID              |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |      Language Tag Length      |         Language Tag          \
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

All multi byte fields are big endian.
*/

// reader is a bounds checked cursor over packet bytes
type reader struct {
	b   []byte
	off int
}

func (r *reader) remaining() int { return len(r.b) - r.off }

func (r *reader) u8() (uint8, bool) {
	if r.remaining() < 1 {
		return 0, false
	}
	v := r.b[r.off]
	r.off++
	return v, true
}

func (r *reader) u16() (uint16, bool) {
	if r.remaining() < 2 {
		return 0, false
	}
	v := binary.BigEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v, true
}

func (r *reader) u24() (uint32, bool) {
	if r.remaining() < 3 {
		return 0, false
	}
	v := uint32(r.b[r.off])<<16 | uint32(r.b[r.off+1])<<8 | uint32(r.b[r.off+2])
	r.off += 3
	return v, true
}

func (r *reader) u32() (uint32, bool) {
	if r.remaining() < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, true
}

func (r *reader) take(n int) ([]byte, bool) {
	if n < 0 || r.remaining() < n {
		return nil, false
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v, true
}

// str reads a 2 byte length prefixed string without unescaping
func (r *reader) str() (string, bool) {
	length, ok := r.u16()
	if !ok {
		return "", false
	}
	b, ok := r.take(int(length))
	if !ok {
		return "", false
	}
	return string(b), true
}

// estr reads a string and unescapes it. Scope lists are the exception: they
// stay escaped so that embedded commas survive until the list is split.
func (r *reader) estr() (string, bool) {
	s, ok := r.str()
	if !ok {
		return "", false
	}
	return Unescape(s), true
}

// authBlock skips one authentication block. SLP SPI is unused; blocks are
// length checked and the content discarded.
func (r *reader) authBlock() bool {
	if _, ok := r.u16(); !ok { // block structure descriptor
		return false
	}
	length, ok := r.u16()
	if !ok || length < 4 {
		return false
	}
	_, ok = r.take(int(length) - 4)
	return ok
}

// urlEntry reads a URL entry including its trailing auth blocks
func (r *reader) urlEntry() (URLEntry, bool) {
	var entry URLEntry
	if _, ok := r.u8(); !ok { // reserved
		return entry, false
	}
	lifetime, ok := r.u16()
	if !ok {
		return entry, false
	}
	url, ok := r.estr()
	if !ok {
		return entry, false
	}
	auths, ok := r.u8()
	if !ok {
		return entry, false
	}
	for i := 0; i < int(auths); i++ {
		if !r.authBlock() {
			return entry, false
		}
	}
	entry.URL = url
	entry.Lifetime = lifetime
	return entry, true
}

// DetermineFunctionID peeks the function id of a packet, 0 if it's too short
func DetermineFunctionID(b []byte) FunctionID {
	if len(b) < 2 {
		log.Debug("SLP packet too short to extract function id")
		return 0
	}
	return FunctionID(b[1])
}

// header parses the common header into p
func (r *reader) header(p *Packet, packetType string) error {
	version, ok := r.u8()
	if !ok {
		return fmt.Errorf("%s too short to contain a version", packetType)
	}
	if version != Version {
		return fmt.Errorf("unknown SLP version %d", version)
	}
	if _, ok = r.u8(); !ok { // function id, already dispatched on
		return fmt.Errorf("%s too short to contain a function id", packetType)
	}
	if _, ok = r.u24(); !ok { // length, we trust the datagram bounds instead
		return fmt.Errorf("%s too short to contain a length", packetType)
	}
	flags, ok := r.u16()
	if !ok {
		return fmt.Errorf("%s too short to contain flags", packetType)
	}
	if _, ok = r.u24(); !ok { // next extension offset
		return fmt.Errorf("%s too short to contain an extension offset", packetType)
	}
	xid, ok := r.u16()
	if !ok {
		return fmt.Errorf("%s too short to contain an XID", packetType)
	}
	language, ok := r.str()
	if !ok {
		return fmt.Errorf("%s too short to contain a language tag", packetType)
	}
	p.Flags = flags
	p.XID = xid
	p.Language = language
	return nil
}

// parsePRList splits a comma separated list of IPv4 addresses, dropping
// anything that doesn't parse
func parsePRList(list string) []net.IP {
	if list == "" {
		return nil
	}
	var out []net.IP
	for _, s := range strings.Split(list, ",") {
		if ip := net.ParseIP(strings.TrimSpace(s)); ip != nil && ip.To4() != nil {
			out = append(out, ip.To4())
		} else {
			log.Debugf("Dropping bad address %q from PR list", s)
		}
	}
	return out
}

// UnpackServiceRequest parses a SrvRqst
func UnpackServiceRequest(b []byte) (*ServiceRequest, error) {
	r := &reader{b: b}
	p := &ServiceRequest{}
	if err := r.header(&p.Packet, "SrvRqst"); err != nil {
		return nil, err
	}
	prList, ok := r.estr()
	if !ok {
		return nil, fmt.Errorf("SrvRqst too short to contain a PR list")
	}
	p.PRList = parsePRList(prList)
	if p.ServiceType, ok = r.estr(); !ok {
		return nil, fmt.Errorf("SrvRqst too short to contain a service type")
	}
	if p.ScopeList, ok = r.str(); !ok {
		return nil, fmt.Errorf("SrvRqst too short to contain a scope list")
	}
	if p.Predicate, ok = r.estr(); !ok {
		return nil, fmt.Errorf("SrvRqst too short to contain a predicate")
	}
	if p.SPI, ok = r.estr(); !ok {
		return nil, fmt.Errorf("SrvRqst too short to contain an SPI")
	}
	return p, nil
}

// UnpackServiceReply parses a SrvRply. RFC 2608 section 7 allows a non-zero
// error code to truncate the message, so a short reply carrying an error is
// returned as-is.
func UnpackServiceReply(b []byte) (*ServiceReply, error) {
	r := &reader{b: b}
	p := &ServiceReply{}
	if err := r.header(&p.Packet, "SrvRply"); err != nil {
		return nil, err
	}
	errorCode, ok := r.u16()
	if !ok {
		return nil, fmt.Errorf("SrvRply too short to contain an error code")
	}
	p.Error = ErrorCode(errorCode)
	count, ok := r.u16()
	if !ok {
		if p.Error != OK {
			return p, nil
		}
		return nil, fmt.Errorf("SrvRply too short to contain a URL entry count")
	}
	for i := 0; i < int(count); i++ {
		entry, ok := r.urlEntry()
		if !ok {
			break
		}
		p.URLEntries = append(p.URLEntries, entry)
	}
	return p, nil
}

// UnpackServiceRegistration parses a SrvReg
func UnpackServiceRegistration(b []byte) (*ServiceRegistration, error) {
	r := &reader{b: b}
	p := &ServiceRegistration{}
	if err := r.header(&p.Packet, "SrvReg"); err != nil {
		return nil, err
	}
	var ok bool
	if p.URL, ok = r.urlEntry(); !ok {
		return nil, fmt.Errorf("SrvReg too short to contain a URL entry")
	}
	if p.ServiceType, ok = r.estr(); !ok {
		return nil, fmt.Errorf("SrvReg too short to contain a service type")
	}
	if p.ScopeList, ok = r.str(); !ok {
		return nil, fmt.Errorf("SrvReg too short to contain a scope list")
	}
	if p.AttrList, ok = r.estr(); !ok {
		return nil, fmt.Errorf("SrvReg too short to contain an attr list")
	}
	auths, ok := r.u8()
	if !ok {
		return nil, fmt.Errorf("SrvReg too short to contain an auth count")
	}
	for i := 0; i < int(auths); i++ {
		if !r.authBlock() {
			return nil, fmt.Errorf("SrvReg auth block truncated")
		}
	}
	return p, nil
}

// UnpackServiceDeRegistration parses a SrvDeReg
func UnpackServiceDeRegistration(b []byte) (*ServiceDeRegistration, error) {
	r := &reader{b: b}
	p := &ServiceDeRegistration{}
	if err := r.header(&p.Packet, "SrvDeReg"); err != nil {
		return nil, err
	}
	var ok bool
	if p.ScopeList, ok = r.str(); !ok {
		return nil, fmt.Errorf("SrvDeReg too short to contain a scope list")
	}
	if p.URL, ok = r.urlEntry(); !ok {
		return nil, fmt.Errorf("SrvDeReg too short to contain a URL entry")
	}
	if p.TagList, ok = r.estr(); !ok {
		return nil, fmt.Errorf("SrvDeReg too short to contain a tag list")
	}
	return p, nil
}

// UnpackServiceAck parses a SrvAck
func UnpackServiceAck(b []byte) (*ServiceAck, error) {
	r := &reader{b: b}
	p := &ServiceAck{}
	if err := r.header(&p.Packet, "SrvAck"); err != nil {
		return nil, err
	}
	errorCode, ok := r.u16()
	if !ok {
		return nil, fmt.Errorf("SrvAck too short to contain an error code")
	}
	p.Error = ErrorCode(errorCode)
	return p, nil
}

// UnpackAttributeRequest parses an AttrRqst
func UnpackAttributeRequest(b []byte) (*AttributeRequest, error) {
	r := &reader{b: b}
	p := &AttributeRequest{}
	if err := r.header(&p.Packet, "AttrRqst"); err != nil {
		return nil, err
	}
	prList, ok := r.estr()
	if !ok {
		return nil, fmt.Errorf("AttrRqst too short to contain a PR list")
	}
	p.PRList = parsePRList(prList)
	if p.URL, ok = r.estr(); !ok {
		return nil, fmt.Errorf("AttrRqst too short to contain a URL")
	}
	if p.ScopeList, ok = r.str(); !ok {
		return nil, fmt.Errorf("AttrRqst too short to contain a scope list")
	}
	if p.TagList, ok = r.estr(); !ok {
		return nil, fmt.Errorf("AttrRqst too short to contain a tag list")
	}
	if p.SPI, ok = r.estr(); !ok {
		return nil, fmt.Errorf("AttrRqst too short to contain an SPI")
	}
	return p, nil
}

// UnpackAttributeReply parses an AttrRply
func UnpackAttributeReply(b []byte) (*AttributeReply, error) {
	r := &reader{b: b}
	p := &AttributeReply{}
	if err := r.header(&p.Packet, "AttrRply"); err != nil {
		return nil, err
	}
	errorCode, ok := r.u16()
	if !ok {
		return nil, fmt.Errorf("AttrRply too short to contain an error code")
	}
	p.Error = ErrorCode(errorCode)
	if p.AttrList, ok = r.estr(); !ok {
		if p.Error != OK {
			return p, nil
		}
		return nil, fmt.Errorf("AttrRply too short to contain an attr list")
	}
	return p, nil
}

// UnpackDAAdvert parses a DAAdvert, honouring the truncation allowance for
// replies with a non-zero error code
func UnpackDAAdvert(b []byte) (*DAAdvert, error) {
	r := &reader{b: b}
	p := &DAAdvert{}
	if err := r.header(&p.Packet, "DAAdvert"); err != nil {
		return nil, err
	}
	errorCode, ok := r.u16()
	if !ok {
		return nil, fmt.Errorf("DAAdvert too short to contain an error code")
	}
	p.Error = ErrorCode(errorCode)
	if p.BootTimestamp, ok = r.u32(); !ok {
		if p.Error != OK {
			return p, nil
		}
		return nil, fmt.Errorf("DAAdvert too short to contain a boot timestamp")
	}
	if p.URL, ok = r.estr(); !ok {
		return nil, fmt.Errorf("DAAdvert too short to contain a URL")
	}
	if p.ScopeList, ok = r.str(); !ok {
		return nil, fmt.Errorf("DAAdvert too short to contain a scope list")
	}
	if p.AttrList, ok = r.estr(); !ok {
		return nil, fmt.Errorf("DAAdvert too short to contain an attr list")
	}
	if p.SPI, ok = r.estr(); !ok {
		return nil, fmt.Errorf("DAAdvert too short to contain an SPI")
	}
	auths, ok := r.u8()
	if !ok {
		return nil, fmt.Errorf("DAAdvert too short to contain an auth count")
	}
	for i := 0; i < int(auths); i++ {
		if !r.authBlock() {
			return nil, fmt.Errorf("DAAdvert auth block truncated")
		}
	}
	return p, nil
}

// UnpackServiceTypeRequest parses a SrvTypeRqst
func UnpackServiceTypeRequest(b []byte) (*ServiceTypeRequest, error) {
	r := &reader{b: b}
	p := &ServiceTypeRequest{}
	if err := r.header(&p.Packet, "SrvTypeRqst"); err != nil {
		return nil, err
	}
	prList, ok := r.estr()
	if !ok {
		return nil, fmt.Errorf("SrvTypeRqst too short to contain a PR list")
	}
	p.PRList = parsePRList(prList)

	// a naming authority length of 0xffff means all naming authorities
	authLength, ok := r.u16()
	if !ok {
		return nil, fmt.Errorf("SrvTypeRqst too short to contain a naming authority")
	}
	if authLength == 0xffff {
		p.IncludeAll = true
	} else {
		auth, ok := r.take(int(authLength))
		if !ok {
			return nil, fmt.Errorf("SrvTypeRqst naming authority truncated")
		}
		p.NamingAuthority = Unescape(string(auth))
	}
	if p.ScopeList, ok = r.str(); !ok {
		return nil, fmt.Errorf("SrvTypeRqst too short to contain a scope list")
	}
	return p, nil
}

// UnpackServiceTypeReply parses a SrvTypeRply
func UnpackServiceTypeReply(b []byte) (*ServiceTypeReply, error) {
	r := &reader{b: b}
	p := &ServiceTypeReply{}
	if err := r.header(&p.Packet, "SrvTypeRply"); err != nil {
		return nil, err
	}
	errorCode, ok := r.u16()
	if !ok {
		return nil, fmt.Errorf("SrvTypeRply too short to contain an error code")
	}
	p.Error = ErrorCode(errorCode)
	typeList, ok := r.estr()
	if !ok {
		if p.Error != OK {
			return p, nil
		}
		return nil, fmt.Errorf("SrvTypeRply too short to contain a type list")
	}
	if typeList != "" {
		p.ServiceTypes = strings.Split(typeList, ",")
	}
	return p, nil
}

// UnpackSAAdvert parses an SAAdvert
func UnpackSAAdvert(b []byte) (*SAAdvert, error) {
	r := &reader{b: b}
	p := &SAAdvert{}
	if err := r.header(&p.Packet, "SAAdvert"); err != nil {
		return nil, err
	}
	var ok bool
	if p.URL, ok = r.estr(); !ok {
		return nil, fmt.Errorf("SAAdvert too short to contain a URL")
	}
	if p.ScopeList, ok = r.str(); !ok {
		return nil, fmt.Errorf("SAAdvert too short to contain a scope list")
	}
	if p.AttrList, ok = r.estr(); !ok {
		return nil, fmt.Errorf("SAAdvert too short to contain an attr list")
	}
	auths, ok := r.u8()
	if !ok {
		return nil, fmt.Errorf("SAAdvert too short to contain an auth count")
	}
	for i := 0; i < int(auths); i++ {
		if !r.authBlock() {
			return nil, fmt.Errorf("SAAdvert auth block truncated")
		}
	}
	return p, nil
}
