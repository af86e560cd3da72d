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
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/facebook/lighting/acn/transport"
	"github.com/facebook/lighting/slp/agent"
	slp "github.com/facebook/lighting/slp/protocol"
	"github.com/facebook/lighting/slp/stats"
)

// sysexits.h style exit codes
const (
	exitOK          = 0
	exitUsage       = 64
	exitBadInput    = 72
	exitUnavailable = 69
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		ipFlag       string
		logLevel     int
		scopesFlag   string
		servicesFile string
		noDA         bool
		noHTTP       bool
		setUID       int
		setGID       int
		slpPort      int
		httpPort     int
		pidFile      string
	)
	flag.StringVar(&ipFlag, "ip", "", "IP of the interface to listen on")
	flag.IntVar(&logLevel, "log-level", 2, "Log level, 0 (quiet) to 4 (debug)")
	flag.StringVar(&scopesFlag, "scopes", "default", "Comma separated list of scopes to serve")
	flag.StringVar(&servicesFile, "services", "", "File of services to pre-register")
	flag.BoolVar(&noDA, "no-da", false, "Disable directory agent functionality")
	flag.BoolVar(&noHTTP, "no-http", false, "Disable the metrics listener")
	flag.IntVar(&setUID, "setuid", 0, "Drop privileges to this UID after binding")
	flag.IntVar(&setGID, "setgid", 0, "Drop privileges to this GID after binding")
	flag.IntVar(&slpPort, "slp-port", 427, "SLP port to bind")
	flag.IntVar(&httpPort, "http-port", 9090, "Port for the metrics listener")
	flag.StringVar(&pidFile, "pidfile", "", "Pid file location")
	flag.Parse()

	switch logLevel {
	case 0:
		log.SetLevel(log.FatalLevel)
	case 1:
		log.SetLevel(log.ErrorLevel)
	case 2:
		log.SetLevel(log.WarnLevel)
	case 3:
		log.SetLevel(log.InfoLevel)
	case 4:
		log.SetLevel(log.DebugLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log level %d\n", logLevel)
		return exitUsage
	}

	ip, iface, err := pickInterface(ipFlag)
	if err != nil {
		log.Errorf("No usable interface: %v", err)
		return exitUnavailable
	}
	log.Infof("Using %s on %s", ip, iface.Name)

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: slpPort})
	if err != nil {
		log.Errorf("Failed to bind UDP port %d: %v", slpPort, err)
		return exitUnavailable
	}
	defer conn.Close()
	for _, group := range []net.IP{slp.ServiceRequestGroup, slp.DAAdvertGroup} {
		if err := transport.JoinMulticast(conn, iface, group); err != nil {
			log.Errorf("Multicast join failed: %v", err)
			return exitUnavailable
		}
	}

	if setGID != 0 {
		if err := unix.Setgid(setGID); err != nil {
			log.Errorf("setgid(%d): %v", setGID, err)
			return exitUnavailable
		}
	}
	if setUID != 0 {
		if err := unix.Setuid(setUID); err != nil {
			log.Errorf("setuid(%d): %v", setUID, err)
			return exitUnavailable
		}
	}
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", unix.Getpid())), 0644); err != nil {
			log.Errorf("Failed to write pid file: %v", err)
			return exitBadInput
		}
		defer os.Remove(pidFile)
	}

	cfg := agent.DefaultConfig()
	cfg.IP = ip
	cfg.Port = slpPort
	cfg.Scopes = slp.NewScopeSet(strings.Split(scopesFlag, ",")...)
	cfg.EnableDA = !noDA
	cfg.BootTime = time.Now()
	if cfg.Scopes.Empty() {
		fmt.Fprintln(os.Stderr, "at least one scope is required")
		return exitUsage
	}

	a := agent.New(cfg, conn)

	if servicesFile != "" {
		services, err := agent.ParseRegistrationFile(servicesFile)
		if err != nil {
			log.Errorf("Failed to load services: %v", err)
			return exitBadInput
		}
		for _, service := range services {
			if code := a.RegisterService(service); code != slp.OK {
				log.Warnf("Skipping %s: %s", service.URL.URL, code)
			}
		}
		log.Infof("Loaded %d services from %s", len(services), servicesFile)
	}

	a.Start()
	defer a.Stop()

	var group errgroup.Group
	group.Go(func() error {
		buf := make([]byte, 65535)
		for {
			n, src, err := conn.ReadFromUDP(buf)
			if err != nil {
				return err
			}
			a.HandlePacket(buf[:n], src)
		}
	})
	if !noHTTP {
		go stats.NewExporter(a).Start(httpPort)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case sig := <-sigs:
		log.Infof("Received %s, shutting down", sig)
		return exitOK
	case err := <-done:
		log.Errorf("Receive loop died: %v", err)
		return exitUnavailable
	}
}

// pickInterface resolves the listen address. With no -ip the first usable
// multicast capable interface wins.
func pickInterface(ipFlag string) (net.IP, *net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, err
	}
	var want net.IP
	if ipFlag != "" {
		want = net.ParseIP(ipFlag)
		if want == nil {
			return nil, nil, fmt.Errorf("invalid IP %q", ipFlag)
		}
	}
	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			ip := ipNet.IP.To4()
			if want == nil && !ip.IsLoopback() {
				return ip, iface, nil
			}
			if want != nil && ip.Equal(want) {
				return ip, iface, nil
			}
		}
	}
	if want != nil {
		return nil, nil, fmt.Errorf("IP %s is not on any interface", want)
	}
	return nil, nil, fmt.Errorf("no multicast capable IPv4 interface found")
}
