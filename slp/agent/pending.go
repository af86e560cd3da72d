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

package agent

import (
	"net"
	"time"

	slp "github.com/facebook/lighting/slp/protocol"
	"github.com/facebook/lighting/slp/store"
)

// opKind distinguishes the two DA operations that share the retry machinery
type opKind int

const (
	opRegister opKind = iota
	opDeRegister
)

func (k opKind) String() string {
	if k == opRegister {
		return "SrvReg"
	}
	return "SrvDeReg"
}

// pendingDAOperation is one in-flight SrvReg or SrvDeReg against one DA.
// Registration and de-registration for the same (service, DA) pair are
// mutually exclusive; a new request supersedes the old one.
type pendingDAOperation struct {
	kind    opKind
	xid     uint16
	daURL   string
	daAddr  *net.UDPAddr
	service store.ServiceEntry
	// the scope intersection this DA is registered with
	scopes slp.ScopeSet

	// sends so far; the op fails once this hits the retry budget
	attempts int
	interval time.Duration
	timer    *time.Timer
}

// opKey identifies a (service, DA) pair
func opKey(daURL, serviceURL string) string {
	return daURL + "|" + serviceURL
}

func (op *pendingDAOperation) key() string {
	return opKey(op.daURL, op.service.URL.URL)
}

func (op *pendingDAOperation) cancel() {
	if op.timer != nil {
		op.timer.Stop()
	}
}

// daDiscovery is the active DA discovery burst state
type daDiscovery struct {
	active     bool
	confirming bool
	xid        uint16
	prList     map[string]net.IP
	// set when a DAAdvert from a new responder grew the PR list since the
	// last transmission
	changed  bool
	attempts int
	interval time.Duration
	timer    *time.Timer
}

func (d *daDiscovery) prIPs() []net.IP {
	out := make([]net.IP, 0, len(d.prList))
	for _, ip := range d.prList {
		out = append(out, ip)
	}
	return out
}

// pendingFind is an in-flight service lookup on behalf of a local caller.
// With usable DAs the request goes unicast to a minimal covering set;
// otherwise it converges over multicast with a growing PR list.
type pendingFind struct {
	xid         uint16
	serviceType string
	scopes      slp.ScopeSet

	// multicast convergence state
	multicast bool
	prList    map[string]net.IP
	changed   bool

	// unicast state: DA URL -> address, for the DAs that haven't answered yet
	waitingOn map[string]*net.UDPAddr

	attempts int
	interval time.Duration
	timer    *time.Timer

	urls     map[string]slp.URLEntry
	callback func([]slp.URLEntry)
}

func (f *pendingFind) results() []slp.URLEntry {
	out := make([]slp.URLEntry, 0, len(f.urls))
	for _, u := range f.urls {
		out = append(out, u)
	}
	return out
}
