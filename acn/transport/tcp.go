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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lighting/acn/inflator"
	"github.com/facebook/lighting/acn/protocol"
)

// ErrStreamInvalid is returned once the incoming stream can no longer be
// trusted. The caller should close the connection.
var ErrStreamInvalid = errors.New("ACN stream is invalid")

type streamState int

const (
	waitingForPreamble streamState = iota
	waitingForPDUFlags
	waitingForPDULength
	waitingForPDU
)

// IncomingStream reassembles ACN PDU blocks from a TCP byte stream. Each
// block on the wire is a TCP preamble, a 4 byte block length and then the
// PDUs of the block, which are handed to the root inflator one at a time.
type IncomingStream struct {
	root      *inflator.Root
	transport protocol.TransportHeader

	buf   []byte
	state streamState
	// bytes needed before the current state can run
	need int

	blockSize     uint32
	consumedBlock uint32
	lengthSize    int
	pduSize       int

	valid bool
}

// NewIncomingStream creates a stream decoder for one connection. source is
// used to fill the transport header of every decoded PDU.
func NewIncomingStream(root *inflator.Root, source *net.TCPAddr) *IncomingStream {
	return &IncomingStream{
		root: root,
		transport: protocol.TransportHeader{
			SourceIP:   source.IP,
			SourcePort: source.Port,
			Type:       protocol.TransportTCP,
		},
		state: waitingForPreamble,
		need:  protocol.TCPPreambleSize,
		valid: true,
	}
}

// Feed hands the decoder more bytes from the stream. It returns false once
// the stream is invalid; the connection should then be closed.
func (s *IncomingStream) Feed(data []byte) bool {
	if !s.valid {
		return false
	}
	s.buf = append(s.buf, data...)
	for s.valid && len(s.buf) >= s.need {
		switch s.state {
		case waitingForPreamble:
			s.handlePreamble()
		case waitingForPDUFlags:
			s.handlePDUFlags()
		case waitingForPDULength:
			s.handlePDULength()
		case waitingForPDU:
			s.handlePDU()
		}
	}
	return s.valid
}

// ReadFrom pumps the stream decoder from r until EOF or the stream becomes
// invalid
func (s *IncomingStream) ReadFrom(r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if !s.Feed(buf[:n]) {
				return ErrStreamInvalid
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (s *IncomingStream) consume(n int) {
	s.buf = s.buf[n:]
}

func (s *IncomingStream) handlePreamble() {
	if !bytes.Equal(s.buf[:protocol.PreambleSize], protocol.TCPPreamble) {
		log.Warn("Bad ACN preamble on stream")
		s.valid = false
		return
	}
	s.blockSize = binary.BigEndian.Uint32(s.buf[protocol.PreambleSize:])
	s.consume(protocol.TCPPreambleSize)
	if s.blockSize == 0 {
		s.enterWaitingForPreamble()
		return
	}
	s.consumedBlock = 0
	s.enterWaitingForPDU()
}

func (s *IncomingStream) handlePDUFlags() {
	s.lengthSize = 2
	if s.buf[0]&protocol.FlagLength != 0 {
		s.lengthSize = 3
	}
	s.state = waitingForPDULength
	s.need = s.lengthSize
}

func (s *IncomingStream) handlePDULength() {
	pduSize, _, err := protocol.DecodeLength(s.buf[:s.lengthSize])
	if err != nil {
		log.Warnf("Bad PDU length on stream: %v", err)
		s.valid = false
		return
	}
	if uint32(pduSize) > s.blockSize-s.consumedBlock {
		log.Warnf("PDU of %d bytes overruns the remaining %d bytes of the block",
			pduSize, s.blockSize-s.consumedBlock)
		s.valid = false
		return
	}
	s.pduSize = pduSize
	s.state = waitingForPDU
	s.need = pduSize
}

func (s *IncomingStream) handlePDU() {
	headers := protocol.HeaderSet{Transport: s.transport}
	consumed := s.root.InflateBlock(&headers, s.buf[:s.pduSize])
	if consumed != s.pduSize {
		log.Warnf("PDU inflation size mismatch, %d != %d", s.pduSize, consumed)
		s.valid = false
		return
	}
	s.consume(s.pduSize)
	s.consumedBlock += uint32(s.pduSize)
	if s.consumedBlock == s.blockSize {
		s.enterWaitingForPreamble()
		return
	}
	s.enterWaitingForPDU()
}

func (s *IncomingStream) enterWaitingForPreamble() {
	s.state = waitingForPreamble
	s.need = protocol.TCPPreambleSize
}

func (s *IncomingStream) enterWaitingForPDU() {
	s.state = waitingForPDUFlags
	s.need = 1
}

// SendStack prepends the TCP preamble and block length to a packed PDU block
// and writes it to w in one piece
func SendStack(w io.Writer, stack *protocol.Stack) error {
	protocol.AddTCPPreamble(stack)
	_, err := w.Write(stack.Bytes())
	return err
}
