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

// Package store holds SLP service registrations and ages them.
//
// Rather than sweeping the whole database on a timer the way openslp does,
// aging happens lazily: whenever a service type is read or written, the
// elapsed time since its last cleaning is subtracted from every URL's
// lifetime and expired entries are dropped. Clean should still run
// periodically so service types that never get traffic don't pin memory.
package store

import (
	"strings"
	"time"

	slp "github.com/facebook/lighting/slp/protocol"
)

// ServiceEntry is one registered service: a URL entry plus the scopes it was
// registered in. Local entries are the ones this agent registered itself, as
// opposed to ones learned from the network.
type ServiceEntry struct {
	Scopes      slp.ScopeSet
	ServiceType string
	URL         slp.URLEntry
	Local       bool
}

// NewServiceEntry builds an entry, deriving the canonical service type from
// the URL scheme
func NewServiceEntry(scopes slp.ScopeSet, url string, lifetime uint16) ServiceEntry {
	return ServiceEntry{
		Scopes:      scopes,
		ServiceType: slp.ServiceFromURL(url),
		URL:         slp.URLEntry{URL: url, Lifetime: lifetime},
	}
}

// CheckResult is the outcome of a scope consistency check
type CheckResult int

// CheckScopes outcomes
const (
	CheckOK CheckResult = iota
	CheckScopeMismatch
	CheckNotFound
)

// serviceList is the bucket for one service type
type serviceList struct {
	lastCleaned time.Time
	entries     []*ServiceEntry
}

// Store maps canonical service types to their registrations. It is owned by
// the agent goroutine and does no locking of its own.
type Store struct {
	services map[string]*serviceList
}

// New creates an empty store
func New() *Store {
	return &Store{services: make(map[string]*serviceList)}
}

// ServiceTypeCount returns the number of distinct service types
func (s *Store) ServiceTypeCount() int {
	return len(s.services)
}

// Insert adds a registration or extends the lifetime of an existing one.
// The scope set attached to a URL is immutable: a re-insert with different
// scopes fails with ScopeNotSupported. With fresh unset the URL must already
// exist, per RFC 2608 incremental registration rules.
func (s *Store) Insert(now time.Time, entry ServiceEntry, fresh bool) slp.ErrorCode {
	list, ok := s.services[entry.ServiceType]
	if !ok {
		list = &serviceList{lastCleaned: now}
		s.services[entry.ServiceType] = list
	} else {
		s.age(now, list)
	}

	for _, existing := range list.entries {
		if existing.URL.URL != entry.URL.URL {
			continue
		}
		if !existing.Scopes.Equal(entry.Scopes) {
			return slp.ScopeNotSupported
		}
		// extend, never shorten
		if entry.URL.Lifetime > existing.URL.Lifetime {
			existing.URL.Lifetime = entry.URL.Lifetime
		}
		existing.Local = existing.Local || entry.Local
		return slp.OK
	}
	if !fresh {
		return slp.InvalidUpdate
	}
	e := entry
	list.entries = append(list.entries, &e)
	return slp.OK
}

// Remove drops a registration. Removing a URL that isn't registered is
// idempotent and returns OK; removing one registered with different scopes
// fails with ScopeNotSupported.
func (s *Store) Remove(entry ServiceEntry) slp.ErrorCode {
	list, ok := s.services[entry.ServiceType]
	if !ok {
		return slp.OK
	}
	for i, existing := range list.entries {
		if existing.URL.URL != entry.URL.URL {
			continue
		}
		if !existing.Scopes.Equal(entry.Scopes) {
			return slp.ScopeNotSupported
		}
		list.entries = append(list.entries[:i], list.entries[i+1:]...)
		if len(list.entries) == 0 {
			delete(s.services, entry.ServiceType)
		}
		return slp.OK
	}
	return slp.OK
}

// Lookup appends the URL entries of serviceType whose scopes intersect the
// query. limit > 0 caps the number of results. The service type match is
// case insensitive.
func (s *Store) Lookup(now time.Time, scopes slp.ScopeSet, serviceType string, limit int) []slp.URLEntry {
	list, ok := s.services[slp.Canonicalize(serviceType)]
	if !ok {
		return nil
	}
	s.age(now, list)
	var out []slp.URLEntry
	for _, entry := range list.entries {
		if !entry.Scopes.Intersects(scopes) {
			continue
		}
		out = append(out, entry.URL)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// CheckScopes verifies that entry's URL is registered with exactly entry's
// scopes. Expired entries report CheckNotFound.
func (s *Store) CheckScopes(now time.Time, entry ServiceEntry) CheckResult {
	list, ok := s.services[entry.ServiceType]
	if !ok {
		return CheckNotFound
	}
	s.age(now, list)
	for _, existing := range list.entries {
		if existing.URL.URL != entry.URL.URL {
			continue
		}
		if existing.Scopes.Equal(entry.Scopes) {
			return CheckOK
		}
		return CheckScopeMismatch
	}
	return CheckNotFound
}

// GetLocalServices returns the entries this agent registered itself, with
// lifetimes adjusted for elapsed time, filtered by scope intersection
func (s *Store) GetLocalServices(now time.Time, scopes slp.ScopeSet) []ServiceEntry {
	var out []ServiceEntry
	for _, list := range s.services {
		s.age(now, list)
		for _, entry := range list.entries {
			if entry.Local && entry.Scopes.Intersects(scopes) {
				out = append(out, *entry)
			}
		}
	}
	return out
}

// GetAllServiceTypes returns the distinct service types with at least one
// entry matching the scope filter
func (s *Store) GetAllServiceTypes(scopes slp.ScopeSet) []string {
	return s.serviceTypes(scopes, func(string) bool { return true })
}

// GetServiceTypesByNamingAuth filters service types by naming authority,
// the part of the type after the last dot. The empty string selects the
// IANA default types.
func (s *Store) GetServiceTypesByNamingAuth(auth string, scopes slp.ScopeSet) []string {
	auth = strings.ToLower(auth)
	return s.serviceTypes(scopes, func(serviceType string) bool {
		return slp.NamingAuthority(serviceType) == auth
	})
}

func (s *Store) serviceTypes(scopes slp.ScopeSet, match func(string) bool) []string {
	var out []string
	for serviceType, list := range s.services {
		if !match(serviceType) {
			continue
		}
		for _, entry := range list.entries {
			if entry.Scopes.Intersects(scopes) {
				out = append(out, serviceType)
				break
			}
		}
	}
	return out
}

// Clean ages every service type and drops empty buckets
func (s *Store) Clean(now time.Time) {
	for serviceType, list := range s.services {
		s.age(now, list)
		if len(list.entries) == 0 {
			delete(s.services, serviceType)
		}
	}
}

// Reset drops everything
func (s *Store) Reset() {
	s.services = make(map[string]*serviceList)
}

// age applies the elapsed time since the list was last cleaned to every
// entry, dropping the expired ones
func (s *Store) age(now time.Time, list *serviceList) {
	elapsed := int64(now.Sub(list.lastCleaned).Seconds())
	if elapsed <= 0 {
		return
	}
	kept := list.entries[:0]
	for _, entry := range list.entries {
		if int64(entry.URL.Lifetime) > elapsed {
			entry.URL.Lifetime -= uint16(elapsed)
			kept = append(kept, entry)
		}
	}
	list.entries = kept
	list.lastCleaned = now
}
