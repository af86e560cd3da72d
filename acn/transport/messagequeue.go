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
	"errors"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lighting/acn/protocol"
)

// ErrQueueFull is returned by Send once the buffered bytes reach the queue
// limit. The message is dropped; it's up to the caller to retry later.
var ErrQueueFull = errors.New("message queue limit reached")

// DefaultMaxQueueSize is the default byte limit of a MessageQueue. The
// kernel socket buffer does most of the real buffering, this only absorbs
// short stalls.
const DefaultMaxQueueSize = 1024

// MessageQueue is a bounded write side buffer in front of a connected byte
// stream. TCP sockets can refuse to take a whole message when the remote end
// is slow to ack; the queue holds complete messages and drains them from a
// writer goroutine so callers never block.
type MessageQueue struct {
	mu      sync.Mutex
	pending [][]byte
	size    int
	limit   int

	conn   io.Writer
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewMessageQueue creates a queue draining into conn. maxSize <= 0 selects
// DefaultMaxQueueSize.
func NewMessageQueue(conn io.Writer, maxSize int) *MessageQueue {
	if maxSize <= 0 {
		maxSize = DefaultMaxQueueSize
	}
	q := &MessageQueue{
		conn:   conn,
		limit:  maxSize,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.drain()
	return q
}

// LimitReached returns true if the queue won't accept more messages until it
// drains
func (q *MessageQueue) LimitReached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size >= q.limit
}

// Send queues all bytes of the stack for writing. The stack is emptied
// whether or not the send is accepted.
func (q *MessageQueue) Send(stack *protocol.Stack) error {
	msg := stack.Bytes()
	stack.Reset()

	q.mu.Lock()
	if q.size >= q.limit {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.pending = append(q.pending, msg)
	q.size += len(msg)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the writer goroutine. Buffered messages are discarded.
func (q *MessageQueue) Close() {
	q.once.Do(func() { close(q.done) })
}

func (q *MessageQueue) drain() {
	for {
		select {
		case <-q.done:
			return
		case <-q.notify:
		}
		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			msg := q.pending[0]
			q.pending = q.pending[1:]
			q.size -= len(msg)
			q.mu.Unlock()

			if _, err := q.conn.Write(msg); err != nil {
				log.Warnf("Stream write failed: %v", err)
			}
		}
	}
}
