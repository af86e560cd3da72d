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

import "net"

// Packet is the decoded SLP header state common to every message
type Packet struct {
	XID      uint16
	Flags    uint16
	Language string
}

// Overflow reports the O flag
func (p *Packet) Overflow() bool { return p.Flags&FlagOverflow != 0 }

// Fresh reports the F flag
func (p *Packet) Fresh() bool { return p.Flags&FlagFresh != 0 }

// Multicast reports the R flag, set on multicast requests
func (p *Packet) Multicast() bool { return p.Flags&FlagMulticast != 0 }

// ServiceRequest is a SrvRqst message. Scope lists stay in raw escaped form;
// use ParseScopeList to interpret them.
type ServiceRequest struct {
	Packet
	PRList      []net.IP
	ServiceType string
	ScopeList   string
	Predicate   string
	SPI         string
}

// ServiceReply is a SrvRply message
type ServiceReply struct {
	Packet
	Error      ErrorCode
	URLEntries []URLEntry
}

// ServiceRegistration is a SrvReg message
type ServiceRegistration struct {
	Packet
	URL         URLEntry
	ServiceType string
	ScopeList   string
	AttrList    string
}

// ServiceDeRegistration is a SrvDeReg message
type ServiceDeRegistration struct {
	Packet
	ScopeList string
	URL       URLEntry
	TagList   string
}

// ServiceAck is a SrvAck message
type ServiceAck struct {
	Packet
	Error ErrorCode
}

// AttributeRequest is an AttrRqst message. It's parsed but not acted on.
type AttributeRequest struct {
	Packet
	PRList    []net.IP
	URL       string
	ScopeList string
	TagList   string
	SPI       string
}

// AttributeReply is an AttrRply message
type AttributeReply struct {
	Packet
	Error    ErrorCode
	AttrList string
}

// DAAdvert is a DAAdvert message. A boot timestamp of zero means the DA is
// going down.
type DAAdvert struct {
	Packet
	Error         ErrorCode
	BootTimestamp uint32
	URL           string
	ScopeList     string
	AttrList      string
	SPI           string
}

// ServiceTypeRequest is a SrvTypeRqst message. IncludeAll is set when the
// naming authority field was 0xffff, meaning all naming authorities; an
// empty NamingAuthority otherwise selects the IANA default.
type ServiceTypeRequest struct {
	Packet
	PRList          []net.IP
	IncludeAll      bool
	NamingAuthority string
	ScopeList       string
}

// ServiceTypeReply is a SrvTypeRply message
type ServiceTypeReply struct {
	Packet
	Error        ErrorCode
	ServiceTypes []string
}

// SAAdvert is an SAAdvert message
type SAAdvert struct {
	Packet
	URL       string
	ScopeList string
	AttrList  string
}
