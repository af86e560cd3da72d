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
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	slp "github.com/facebook/lighting/slp/protocol"
)

// Config carries the static options of an Agent. The timing values default
// to the RFC 2608 recommended intervals; tests shrink them.
type Config struct {
	// IP is the address we send from and advertise
	IP net.IP
	// Port is the SLP port, 427 unless testing
	Port int
	// Scopes this agent serves
	Scopes slp.ScopeSet
	// EnableDA answers SrvReg/SrvDeReg/directory-agent requests too
	EnableDA bool
	// BootTime stamps our DAAdverts
	BootTime time.Time

	// StartWait caps the random delay before the first DA discovery
	StartWait time.Duration
	// Retry is the initial retransmit interval
	Retry time.Duration
	// RetryMax caps the doubling retransmit interval
	RetryMax time.Duration
	// MCMax is the retry budget; an operation fails after this many
	// unanswered tries
	MCMax int
	// DAFindInterval is how often active DA discovery reruns
	DAFindInterval time.Duration
	// RegActiveMin/Max bound the random delay before registering with a
	// freshly discovered DA, spreading the load when many SAs see the same
	// DAAdvert
	RegActiveMin time.Duration
	RegActiveMax time.Duration
	// RegRefresh is subtracted from the lifetime to get the refresh time,
	// clamped to no earlier than 75% of the lifetime
	RegRefresh time.Duration
	// CleanInterval is how often the store ages idle service types
	CleanInterval time.Duration
}

// DefaultConfig returns the RFC timing defaults
func DefaultConfig() Config {
	return Config{
		Port:           427,
		StartWait:      3 * time.Second,
		Retry:          2 * time.Second,
		RetryMax:       15 * time.Second,
		MCMax:          3,
		DAFindInterval: 900 * time.Second,
		RegActiveMin:   1 * time.Second,
		RegActiveMax:   3 * time.Second,
		RegRefresh:     15 * time.Minute,
		CleanInterval:  30 * time.Second,
	}
}

// FileConfig is the YAML loadable subset of the daemon settings
type FileConfig struct {
	Scopes       []string `yaml:"scopes"`
	SLPPort      int      `yaml:"slp_port"`
	EnableDA     bool     `yaml:"enable_da"`
	ServicesFile string   `yaml:"services_file"`
}

// ReadFileConfig loads daemon settings from a YAML file
func ReadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc := &FileConfig{}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, err
	}
	return fc, nil
}
