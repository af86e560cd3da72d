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
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// the characters RFC 2608 section 5 requires to be escaped
const reservedChars = "(),\\!<=>~;*+"

// Escape replaces each reserved byte with \hh, two lowercase hex digits
func Escape(s string) string {
	if !strings.ContainsAny(s, reservedChars) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 6)
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(reservedChars, s[i]) >= 0 {
			fmt.Fprintf(&b, "\\%02x", s[i])
		} else {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Unescape decodes \hh escapes. Values above 0x7f are rejected. A malformed
// escape drops the remainder of the string, matching the defensive behaviour
// expected of packet input.
func Unescape(s string) string {
	i := strings.IndexByte(s, '\\')
	if i < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i >= 0 {
		b.WriteString(s[:i])
		if i+2 >= len(s) {
			log.Warnf("Insufficient characters remaining to unescape in %q", s)
			return b.String()
		}
		var value int
		if _, err := fmt.Sscanf(s[i+1:i+3], "%02x", &value); err != nil {
			log.Warnf("Invalid hex in escape sequence in %q", s)
			return b.String()
		}
		if value > 0x7f {
			log.Warnf("Escaped value greater than 0x7f in %q", s)
			return b.String()
		}
		b.WriteByte(byte(value))
		s = s[i+3:]
		i = strings.IndexByte(s, '\\')
	}
	b.WriteString(s)
	return b.String()
}

// FoldWhitespace reduces each run of whitespace to a single space and trims
// the ends
func FoldWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Canonicalize lowercases and whitespace-folds a string. Scope and service
// type comparisons all happen in canonical form.
func Canonicalize(s string) string {
	return FoldWhitespace(strings.ToLower(s))
}

// ServiceFromURL extracts the canonical service type from a service URL,
// everything before the "://". A URL without "://" is all service type.
func ServiceFromURL(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[:i]
	}
	return Canonicalize(url)
}

// NamingAuthority extracts the naming authority from a canonical service
// type: the part after the last "." in the type, or "" for the IANA default.
func NamingAuthority(serviceType string) string {
	if i := strings.LastIndexByte(serviceType, '.'); i >= 0 {
		return serviceType[i+1:]
	}
	return ""
}
