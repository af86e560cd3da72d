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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	slp "github.com/facebook/lighting/slp/protocol"
	"github.com/facebook/lighting/slp/store"
)

// ParseRegistrationFile loads services to pre-populate the store with. Each
// line is whitespace separated: scope-csv, URL, lifetime in seconds. Blank
// lines and lines starting with # or ; are comments.
func ParseRegistrationFile(path string) ([]store.ServiceEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open registration file: %w", err)
	}
	defer f.Close()
	return ParseRegistrations(f)
}

// ParseRegistrations is ParseRegistrationFile over a stream
func ParseRegistrations(r io.Reader) ([]store.ServiceEntry, error) {
	var services []store.ServiceEntry
	seenURLs := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			log.Infof("Skipping registration line %q", line)
			continue
		}
		lifetime, err := strconv.ParseUint(fields[2], 10, 16)
		if err != nil {
			log.Infof("Invalid lifetime on line %q", line)
			continue
		}
		url := fields[1]
		if seenURLs[url] {
			log.Warnf("%s appears more than once in the registration file", url)
			continue
		}
		seenURLs[url] = true

		entry := store.NewServiceEntry(
			slp.ParseScopeList(fields[0]), url, uint16(lifetime))
		entry.Local = true
		services = append(services, entry)
	}
	return services, scanner.Err()
}
