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

// e133node is a minimal E1.33 device: it accepts a designated controller on
// the E1.33 TCP port, logs the RDM requests it receives without answering
// them, and advertises itself over SLP.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lighting/acn/cid"
	acn "github.com/facebook/lighting/acn/protocol"
	"github.com/facebook/lighting/e133"
	"github.com/facebook/lighting/rdm"
	"github.com/facebook/lighting/slp/agent"
	slp "github.com/facebook/lighting/slp/protocol"
	"github.com/facebook/lighting/slp/store"
)

func main() {
	var (
		ipFlag     string
		uidFlag    string
		scopesFlag string
		lifetime   int
		logDebug   bool
	)
	flag.StringVar(&ipFlag, "ip", "", "IP to advertise and bind")
	flag.StringVar(&uidFlag, "uid", "7a70:00000001", "RDM UID of this device")
	flag.StringVar(&scopesFlag, "scopes", "default", "SLP scopes to register in")
	flag.IntVar(&lifetime, "lifetime", 300, "SLP registration lifetime in seconds")
	flag.BoolVar(&logDebug, "debug", false, "debug logging")
	flag.Parse()

	if logDebug {
		log.SetLevel(log.DebugLevel)
	}
	ip := net.ParseIP(ipFlag)
	if ip == nil || ip.To4() == nil {
		log.Fatalf("A valid -ip is required")
	}
	ip = ip.To4()
	uid, err := rdm.ParseUID(uidFlag)
	if err != nil {
		log.Fatal(err)
	}

	nodeCID := cid.New()
	builder := e133.NewMessageBuilder(nodeCID, fmt.Sprintf("e133node %s", uid))
	log.Infof("Starting %s with CID %s", uid, nodeCID)

	device := e133.NewDevice(builder, func(transport *acn.TransportHeader,
		header *acn.E133Header, frame []byte) {
		log.Infof("RDM request from %s, endpoint %d, %d bytes",
			transport, header.Endpoint, len(frame))
	})

	listener, err := net.Listen("tcp4", fmt.Sprintf("%s:%d", ip, acn.PortE133TCP))
	if err != nil {
		log.Fatalf("Failed to listen on the E1.33 TCP port: %v", err)
	}
	go func() {
		if err := device.Serve(listener); err != nil {
			log.Fatalf("Device listener died: %v", err)
		}
	}()

	// advertise over SLP
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		log.Fatal(err)
	}
	cfg := agent.DefaultConfig()
	cfg.IP = ip
	cfg.Scopes = slp.NewScopeSet(strings.Split(scopesFlag, ",")...)
	cfg.BootTime = time.Now()
	slpAgent := agent.New(cfg, conn)
	go func() {
		buf := make([]byte, 65535)
		for {
			n, src, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			slpAgent.HandlePacket(buf[:n], src)
		}
	}()
	slpAgent.Start()
	defer slpAgent.Stop()

	entry := store.NewServiceEntry(cfg.Scopes, e133.DeviceURL(ip, uid), uint16(lifetime))
	if code := slpAgent.RegisterService(entry); code != slp.OK {
		log.Fatalf("Failed to register %s: %s", entry.URL.URL, code)
	}
	log.Infof("Advertising %s", entry.URL.URL)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("Shutting down")
}
