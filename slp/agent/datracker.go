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
	"strings"

	log "github.com/sirupsen/logrus"

	slp "github.com/facebook/lighting/slp/protocol"
)

// DirectoryAgent is what we know about one DA on the network
type DirectoryAgent struct {
	URL                string
	Address            net.IP
	Scopes             slp.ScopeSet
	BootTimestamp      uint32
	MinRefreshInterval uint32
}

// DACallback is run when a DA appears, reboots or changes scopes. A reboot
// invalidates whatever we had registered with it.
type DACallback func(da DirectoryAgent)

// DATracker follows the DAs observed through DAAdverts
type DATracker struct {
	agents map[string]*DirectoryAgent

	newDACallbacks  []DACallback
	goneDACallbacks []DACallback
}

// NewDATracker creates an empty tracker
func NewDATracker() *DATracker {
	return &DATracker{agents: make(map[string]*DirectoryAgent)}
}

// AddNewDACallback registers a callback for new or rebooted DAs
func (t *DATracker) AddNewDACallback(cb DACallback) {
	t.newDACallbacks = append(t.newDACallbacks, cb)
}

// AddDAGoneCallback registers a callback for DAs announcing shutdown
func (t *DATracker) AddDAGoneCallback(cb DACallback) {
	t.goneDACallbacks = append(t.goneDACallbacks, cb)
}

// DACount returns the number of live DAs
func (t *DATracker) DACount() int { return len(t.agents) }

// NewDAAdvert processes a DAAdvert. Adverts with an error code, a URL that
// isn't a directory-agent URL or an unparsable address are dropped.
func (t *DATracker) NewDAAdvert(advert *slp.DAAdvert, src *net.UDPAddr) {
	if advert.Error != slp.OK {
		log.Infof("Ignoring DAAdvert from %s with error %s", src, advert.Error)
		return
	}
	host, ok := strings.CutPrefix(advert.URL, slp.DAServiceType+"://")
	if !ok {
		log.Warnf("DAAdvert URL %q doesn't start with %s://", advert.URL, slp.DAServiceType)
		return
	}
	address := net.ParseIP(host)
	if address == nil || address.To4() == nil {
		log.Warnf("Failed to extract an IPv4 address from DA URL %q", advert.URL)
		return
	}
	address = address.To4()

	existing, known := t.agents[advert.URL]
	if advert.BootTimestamp == 0 {
		// the DA is going down
		if known {
			log.Infof("DA %s is shutting down", advert.URL)
			delete(t.agents, advert.URL)
			for _, cb := range t.goneDACallbacks {
				cb(*existing)
			}
		}
		return
	}

	scopes := slp.ParseScopeList(advert.ScopeList)
	if known {
		if advert.BootTimestamp <= existing.BootTimestamp && scopes.Equal(existing.Scopes) {
			return
		}
		// a reboot or scope change invalidates prior registrations
		log.Infof("DA %s changed (boot %d -> %d)", advert.URL,
			existing.BootTimestamp, advert.BootTimestamp)
		existing.BootTimestamp = advert.BootTimestamp
		existing.Scopes = scopes
		for _, cb := range t.newDACallbacks {
			cb(*existing)
		}
		return
	}

	da := &DirectoryAgent{
		URL:           advert.URL,
		Address:       address,
		Scopes:        scopes,
		BootTimestamp: advert.BootTimestamp,
	}
	t.agents[advert.URL] = da
	log.Infof("Found DA %s with scopes [%s]", da.URL, da.Scopes)
	for _, cb := range t.newDACallbacks {
		cb(*da)
	}
}

// GetDirectoryAgents returns every known DA
func (t *DATracker) GetDirectoryAgents() []DirectoryAgent {
	out := make([]DirectoryAgent, 0, len(t.agents))
	for _, da := range t.agents {
		out = append(out, *da)
	}
	return out
}

// GetDAsForScopes returns the DAs whose scopes intersect the query
func (t *DATracker) GetDAsForScopes(scopes slp.ScopeSet) []DirectoryAgent {
	var out []DirectoryAgent
	for _, da := range t.agents {
		if da.Scopes.Intersects(scopes) {
			out = append(out, *da)
		}
	}
	return out
}

// GetMinimalCoveringList greedily picks DAs until the scopes are covered:
// each round takes the DA covering the most still-uncovered scopes. Scopes
// no DA serves are skipped.
func (t *DATracker) GetMinimalCoveringList(scopes slp.ScopeSet) []DirectoryAgent {
	var out []DirectoryAgent
	remaining := scopes
	for !remaining.Empty() {
		var best *DirectoryAgent
		bestCount := 0
		for _, da := range t.agents {
			if count := da.Scopes.IntersectionCount(remaining); count > bestCount {
				best = da
				bestCount = count
			}
		}
		if best == nil {
			break
		}
		out = append(out, *best)
		remaining = remaining.Difference(best.Scopes)
	}
	return out
}

// Lookup fetches a DA by URL
func (t *DATracker) Lookup(url string) (DirectoryAgent, bool) {
	da, ok := t.agents[url]
	if !ok {
		return DirectoryAgent{}, false
	}
	return *da, true
}

// MarkAsBad drops a DA, typically after it timed out across several retries
func (t *DATracker) MarkAsBad(url string) {
	if _, ok := t.agents[url]; ok {
		log.Infof("Marking DA %s as bad", url)
		delete(t.agents, url)
	}
}
