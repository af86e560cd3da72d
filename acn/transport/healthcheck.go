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

package transport

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lighting/acn/protocol"
)

// Heartbeat defaults. Three silent intervals in a row mean the peer is gone.
const (
	DefaultHeartbeatInterval = 2 * time.Second
	MissedHeartbeatBudget    = 3
)

// HealthChecked sends periodic heartbeat PDUs over a MessageQueue and
// watches for inbound traffic. Any received ACN PDU counts as proof of life,
// the root inflator's per packet hook feeds PDUReceived.
type HealthChecked struct {
	queue         *MessageQueue
	makeHeartbeat func() *protocol.Stack
	interval      time.Duration
	onTimeout     func()

	mu     sync.Mutex
	lastRx time.Time

	stop chan struct{}
	once sync.Once
}

// NewHealthChecked wires a heartbeat over queue. makeHeartbeat builds the
// heartbeat packet (a NULL root PDU with the TCP preamble); onTimeout fires
// exactly once after MissedHeartbeatBudget silent intervals. interval <= 0
// selects DefaultHeartbeatInterval.
func NewHealthChecked(queue *MessageQueue, makeHeartbeat func() *protocol.Stack,
	onTimeout func(), interval time.Duration) *HealthChecked {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &HealthChecked{
		queue:         queue,
		makeHeartbeat: makeHeartbeat,
		interval:      interval,
		onTimeout:     onTimeout,
		stop:          make(chan struct{}),
	}
}

// Start begins sending heartbeats and watching for silence
func (h *HealthChecked) Start() {
	h.mu.Lock()
	h.lastRx = time.Now()
	h.mu.Unlock()
	go h.run()
}

// Stop cancels the heartbeat. The timeout callback won't fire after Stop
// returns.
func (h *HealthChecked) Stop() {
	h.once.Do(func() { close(h.stop) })
}

// PDUReceived resets the silence countdown
func (h *HealthChecked) PDUReceived() {
	h.mu.Lock()
	h.lastRx = time.Now()
	h.mu.Unlock()
}

func (h *HealthChecked) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}
		if err := h.queue.Send(h.makeHeartbeat()); err != nil {
			log.Warnf("Failed to queue heartbeat: %v", err)
		}
		h.mu.Lock()
		silent := time.Since(h.lastRx)
		h.mu.Unlock()
		if silent >= time.Duration(MissedHeartbeatBudget)*h.interval {
			log.Infof("No PDUs received for %v, closing connection", silent)
			h.Stop()
			if h.onTimeout != nil {
				h.onTimeout()
			}
			return
		}
	}
}
