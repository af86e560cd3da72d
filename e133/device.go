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
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lighting/acn/inflator"
	"github.com/facebook/lighting/acn/protocol"
	"github.com/facebook/lighting/acn/transport"
)

// Device is the designated-controller side of an E1.33 device. It accepts
// one controller connection at a time on the E1.33 TCP port, health checks
// it, and pushes unsolicited RDM responses through the reliable sender. The
// device owns the connection, the message queue and the sender; the health
// checker and inflators hold non-owning references.
type Device struct {
	builder *MessageBuilder
	sender  *TCPMessageSender

	// RDM requests from the controller land here, keyed by endpoint via the
	// RDM inflator
	rdmHandler inflator.RDMHandler

	mu     sync.Mutex
	conn   net.Conn
	queue  *transport.MessageQueue
	health *transport.HealthChecked
}

// NewDevice creates a device around a node identity
func NewDevice(builder *MessageBuilder, rdmHandler inflator.RDMHandler) *Device {
	return &Device{
		builder:    builder,
		sender:     NewTCPMessageSender(builder, 0),
		rdmHandler: rdmHandler,
	}
}

// Sender returns the reliable message sender for this device
func (d *Device) Sender() *TCPMessageSender { return d.sender }

// Serve accepts controller connections until the listener is closed. A new
// controller displaces the previous connection.
func (d *Device) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		d.adoptConnection(conn)
	}
}

// adoptConnection tears down any current controller channel and starts
// serving the new one
func (d *Device) adoptConnection(conn net.Conn) {
	d.mu.Lock()
	if d.conn != nil {
		log.Infof("Displacing controller connection from %s", d.conn.RemoteAddr())
		d.teardownLocked()
	}
	remote, _ := conn.RemoteAddr().(*net.TCPAddr)
	if remote == nil {
		remote = &net.TCPAddr{}
	}
	log.Infof("Designated controller connected from %s", remote)

	d.conn = conn
	d.queue = transport.NewMessageQueue(conn, 0)

	health := transport.NewHealthChecked(d.queue, d.builder.BuildNullTCP,
		func() { d.dropConnection(conn) }, 0)
	d.health = health

	root := inflator.NewRoot(func(_ *protocol.TransportHeader) { health.PDUReceived() })
	e133 := inflator.NewE133()
	root.AddInflator(e133)
	if d.rdmHandler != nil {
		e133.RDM().SetDefaultRDMHandler(d.rdmHandler)
	}
	e133.Status().SetStatusHandler(d.handleStatus)

	stream := transport.NewIncomingStream(root, remote)
	d.sender.SetMessageQueue(d.queue)
	health.Start()
	d.mu.Unlock()

	go func() {
		if err := stream.ReadFrom(conn); err != nil {
			log.Warnf("Controller stream from %s failed: %v", remote, err)
		}
		d.dropConnection(conn)
	}()
}

// handleStatus is the ack path: the controller confirms receipt of a
// reliable message with a StatusAck carrying the same sequence number
func (d *Device) handleStatus(_ *protocol.TransportHeader, e133 *protocol.E133Header,
	status uint16, description string) {
	if status == protocol.StatusAck {
		d.sender.Acknowledge(e133.Sequence)
		return
	}
	log.Infof("Controller status %d (%s) for sequence %d", status, description, e133.Sequence)
}

// dropConnection closes the controller channel if conn is still current
func (d *Device) dropConnection(conn net.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != conn {
		return
	}
	log.Info("Designated controller connection lost")
	d.teardownLocked()
}

func (d *Device) teardownLocked() {
	if d.health != nil {
		d.health.Stop()
	}
	if d.queue != nil {
		d.queue.Close()
	}
	d.sender.SetMessageQueue(nil)
	if d.conn != nil {
		d.conn.Close()
	}
	d.conn, d.queue, d.health = nil, nil, nil
}
