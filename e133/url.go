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

package e133

import (
	"fmt"
	"net"
	"strings"

	"github.com/facebook/lighting/rdm"
)

// ServiceName is the SLP service type E1.33 devices register under
const ServiceName = "service:e133.esta"

// DeviceURL renders the SLP URL an E1.33 device advertises:
// service:e133.esta://<dotted-quad>/<uid>
func DeviceURL(ip net.IP, uid rdm.UID) string {
	return fmt.Sprintf("%s://%s/%s", ServiceName, ip.String(), uid)
}

// ParseDeviceURL extracts the device address and UID from an E1.33 SLP URL
func ParseDeviceURL(url string) (net.IP, rdm.UID, error) {
	rest, ok := strings.CutPrefix(url, ServiceName+"://")
	if !ok {
		return nil, rdm.UID{}, fmt.Errorf("%q is not an E1.33 URL", url)
	}
	host, path, ok := strings.Cut(rest, "/")
	if !ok {
		return nil, rdm.UID{}, fmt.Errorf("E1.33 URL %q has no UID", url)
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return nil, rdm.UID{}, fmt.Errorf("E1.33 URL %q has a bad IPv4 address", url)
	}
	uid, err := rdm.ParseUID(path)
	if err != nil {
		return nil, rdm.UID{}, fmt.Errorf("E1.33 URL %q: %w", url, err)
	}
	return ip.To4(), uid, nil
}
