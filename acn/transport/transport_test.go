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
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/lighting/acn/cid"
	"github.com/facebook/lighting/acn/inflator"
	"github.com/facebook/lighting/acn/protocol"
)

type fakeUDPConn struct {
	sent [][]byte
}

func (f *fakeUDPConn) ReadFromUDP(_ []byte) (int, *net.UDPAddr, error) {
	return 0, nil, net.ErrClosed
}
func (f *fakeUDPConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	f.sent = append(f.sent, append([]byte{}, b...))
	return len(b), nil
}
func (f *fakeUDPConn) Close() error { return nil }

// buildRDMPacket packs an RDM frame into Root/E1.33/RDM PDUs
func buildRDMPacket(t *testing.T, sender cid.CID, sequence uint32, payload []byte) *protocol.Stack {
	t.Helper()
	var stack protocol.Stack
	stack.Prepend(payload)
	protocol.PrependRDMPDU(&stack)
	require.NoError(t, protocol.PrependE133PDU(&stack, protocol.VectorFramingRDMNet, &protocol.E133Header{
		Source:   "test",
		Sequence: sequence,
	}))
	protocol.PrependRootPDU(&stack, protocol.VectorRootE133, sender)
	return &stack
}

func rdmCollector() (*inflator.Root, *[][]byte) {
	frames := &[][]byte{}
	root := inflator.NewRoot(nil)
	e133 := inflator.NewE133()
	root.AddInflator(e133)
	e133.RDM().SetDefaultRDMHandler(func(_ *protocol.TransportHeader, _ *protocol.E133Header, frame []byte) {
		*frames = append(*frames, frame)
	})
	return root, frames
}

func TestUDPHandleDatagram(t *testing.T) {
	root, frames := rdmCollector()
	udp := NewUDP(&fakeUDPConn{}, root)
	src := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5568}

	stack := buildRDMPacket(t, cid.New(), 1, []byte{0x01, 0x02})
	protocol.AddUDPPreamble(stack)
	udp.HandleDatagram(stack.Bytes(), src)
	require.Len(t, *frames, 1)
	require.Equal(t, []byte{0xcc, 0x01, 0x02}, (*frames)[0])

	// short datagrams and bad preambles are dropped silently
	udp.HandleDatagram([]byte{0x00, 0x10}, src)
	bad := stack.Bytes()
	udp.HandleDatagram(append([]byte{0xff}, bad[1:]...), src)
	require.Len(t, *frames, 1)
}

func TestUDPSendAddsPreamble(t *testing.T) {
	conn := &fakeUDPConn{}
	udp := NewUDP(conn, inflator.NewRoot(nil))

	var stack protocol.Stack
	stack.Prepend([]byte{1, 2, 3})
	dst := &net.UDPAddr{IP: net.IPv4(239, 255, 0, 1), Port: 5568}
	require.NoError(t, udp.Send(&stack, dst))
	require.Len(t, conn.sent, 1)
	require.True(t, protocol.VerifyUDPPreamble(conn.sent[0]))
	require.Equal(t, []byte{1, 2, 3}, conn.sent[0][protocol.PreambleSize:])
}

func TestUDPSendRejectsOversize(t *testing.T) {
	udp := NewUDP(&fakeUDPConn{}, inflator.NewRoot(nil))
	var stack protocol.Stack
	stack.Prepend(make([]byte, protocol.MaxDatagramSize))
	err := udp.Send(&stack, &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5568})
	require.ErrorIs(t, err, ErrDatagramTooBig)
}

func tcpSource() *net.TCPAddr {
	return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 5569}
}

func TestIncomingStreamSingleFrame(t *testing.T) {
	root, frames := rdmCollector()
	stream := NewIncomingStream(root, tcpSource())

	stack := buildRDMPacket(t, cid.New(), 9, []byte{0xaa})
	protocol.AddTCPPreamble(stack)
	require.True(t, stream.Feed(stack.Bytes()))
	require.Len(t, *frames, 1)
	require.Equal(t, []byte{0xcc, 0xaa}, (*frames)[0])
}

func TestIncomingStreamByteAtATime(t *testing.T) {
	root, frames := rdmCollector()
	stream := NewIncomingStream(root, tcpSource())

	stack := buildRDMPacket(t, cid.New(), 9, []byte{0xaa, 0xbb})
	protocol.AddTCPPreamble(stack)
	for _, b := range stack.Bytes() {
		require.True(t, stream.Feed([]byte{b}))
	}
	require.Len(t, *frames, 1)
	require.Equal(t, []byte{0xcc, 0xaa, 0xbb}, (*frames)[0])
}

func TestIncomingStreamBackToBackFrames(t *testing.T) {
	root, frames := rdmCollector()
	stream := NewIncomingStream(root, tcpSource())

	first := buildRDMPacket(t, cid.New(), 1, []byte{0x01})
	protocol.AddTCPPreamble(first)
	second := buildRDMPacket(t, cid.New(), 2, []byte{0x02})
	protocol.AddTCPPreamble(second)

	require.True(t, stream.Feed(append(first.Bytes(), second.Bytes()...)))
	require.Len(t, *frames, 2)
}

func TestIncomingStreamZeroLengthBlock(t *testing.T) {
	root, frames := rdmCollector()
	stream := NewIncomingStream(root, tcpSource())

	var empty protocol.Stack
	protocol.AddTCPPreamble(&empty)
	require.True(t, stream.Feed(empty.Bytes()))
	require.Empty(t, *frames)

	// the stream stays usable
	stack := buildRDMPacket(t, cid.New(), 1, []byte{0x01})
	protocol.AddTCPPreamble(stack)
	require.True(t, stream.Feed(stack.Bytes()))
	require.Len(t, *frames, 1)
}

func TestIncomingStreamBadPreamble(t *testing.T) {
	stream := NewIncomingStream(inflator.NewRoot(nil), tcpSource())
	junk := make([]byte, protocol.TCPPreambleSize)
	require.False(t, stream.Feed(junk))
	// once invalid, always invalid
	require.False(t, stream.Feed(nil))
}

func TestIncomingStreamPDUOverrunsBlock(t *testing.T) {
	stream := NewIncomingStream(inflator.NewRoot(nil), tcpSource())

	// a block claiming 4 bytes whose first PDU claims 100
	frame := append([]byte{}, protocol.TCPPreamble...)
	frame = append(frame, 0, 0, 0, 4)
	frame = append(frame, 0x70, 100, 0, 0)
	require.False(t, stream.Feed(frame))
}

func TestIncomingStreamLengthSmallerThanField(t *testing.T) {
	stream := NewIncomingStream(inflator.NewRoot(nil), tcpSource())
	frame := append([]byte{}, protocol.TCPPreamble...)
	frame = append(frame, 0, 0, 0, 2)
	frame = append(frame, 0x70, 1) // length 1 < the 2 bytes of the field
	require.False(t, stream.Feed(frame))
}

// collectWriter records writes and signals each one
type collectWriter struct {
	mu    sync.Mutex
	data  []byte
	wrote chan struct{}
}

func newCollectWriter() *collectWriter {
	return &collectWriter{wrote: make(chan struct{}, 64)}
}

func (w *collectWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	w.data = append(w.data, b...)
	w.mu.Unlock()
	w.wrote <- struct{}{}
	return len(b), nil
}

func (w *collectWriter) bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte{}, w.data...)
}

func TestMessageQueueDrains(t *testing.T) {
	w := newCollectWriter()
	q := NewMessageQueue(w, 0)
	defer q.Close()

	var stack protocol.Stack
	stack.Prepend([]byte{1, 2, 3})
	require.NoError(t, q.Send(&stack))
	require.Equal(t, 0, stack.Size())

	select {
	case <-w.wrote:
	case <-time.After(time.Second):
		t.Fatal("queue never drained")
	}
	require.Equal(t, []byte{1, 2, 3}, w.bytes())
}

// blockedWriter never returns, simulating a stalled connection
type blockedWriter struct{ release chan struct{} }

func (w *blockedWriter) Write(b []byte) (int, error) {
	<-w.release
	return len(b), nil
}

func TestMessageQueueLimit(t *testing.T) {
	w := &blockedWriter{release: make(chan struct{})}
	defer close(w.release)
	q := NewMessageQueue(w, 4)
	defer q.Close()

	big := make([]byte, 8)
	var stack protocol.Stack
	stack.Prepend(big)
	require.NoError(t, q.Send(&stack))

	// wait for the writer goroutine to pick up the first message so the
	// queue state is deterministic, then fill past the limit
	require.Eventually(t, func() bool { return !q.LimitReached() }, time.Second, time.Millisecond)

	stack.Prepend(big)
	require.NoError(t, q.Send(&stack))
	require.True(t, q.LimitReached())

	stack.Prepend(big)
	require.ErrorIs(t, q.Send(&stack), ErrQueueFull)
}

func heartbeatFactory() *protocol.Stack {
	var stack protocol.Stack
	protocol.PrependRootPDU(&stack, protocol.VectorRootNull, cid.CID{})
	protocol.AddTCPPreamble(&stack)
	return &stack
}

func TestHealthCheckedTimeout(t *testing.T) {
	w := newCollectWriter()
	q := NewMessageQueue(w, 0)
	defer q.Close()

	timeouts := make(chan struct{}, 4)
	h := NewHealthChecked(q, heartbeatFactory, func() { timeouts <- struct{}{} }, 10*time.Millisecond)
	h.Start()
	defer h.Stop()

	select {
	case <-timeouts:
	case <-time.After(time.Second):
		t.Fatal("health check never timed out")
	}
	// fires exactly once
	select {
	case <-timeouts:
		t.Fatal("timeout fired twice")
	case <-time.After(100 * time.Millisecond):
	}
	// heartbeats were sent while it ran
	require.NotEmpty(t, w.bytes())
}

func TestHealthCheckedRxResets(t *testing.T) {
	w := newCollectWriter()
	q := NewMessageQueue(w, 0)
	defer q.Close()

	timeouts := make(chan struct{}, 1)
	h := NewHealthChecked(q, heartbeatFactory, func() { timeouts <- struct{}{} }, 20*time.Millisecond)
	h.Start()
	defer h.Stop()

	// keep the connection alive for a while
	keepAlive := time.NewTicker(10 * time.Millisecond)
	defer keepAlive.Stop()
	deadline := time.After(150 * time.Millisecond)
	for {
		select {
		case <-keepAlive.C:
			h.PDUReceived()
		case <-timeouts:
			t.Fatal("timed out despite received PDUs")
		case <-deadline:
			return
		}
	}
}
