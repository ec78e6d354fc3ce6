/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package chunk implements the ChunkFramer (spec C4): wire-level framing
// of OPC UA binary messages into one or more chunks of
// {msg_type(3) | chunk_type(1) | size(uint32 LE) | header | body}, with
// sequence-number discipline and reassembly, independent of any
// particular SecureChannel state. A SecureChannel (C5) supplies a
// SecurityContext so the framer never has to know about policies, keys,
// or certificates itself.
package chunk

import "github.com/nabbar/opcua-core/errors"

// MessageType is the 3-byte ASCII message-type tag on the wire.
type MessageType [3]byte

var (
	MsgHEL = MessageType{'H', 'E', 'L'}
	MsgACK = MessageType{'A', 'C', 'K'}
	MsgERR = MessageType{'E', 'R', 'R'}
	MsgOPN = MessageType{'O', 'P', 'N'}
	MsgMSG = MessageType{'M', 'S', 'G'}
	MsgCLO = MessageType{'C', 'L', 'O'}
)

func (m MessageType) String() string {
	return string(m[:])
}

// securedMessage reports whether msg_type carries a security header and
// sequence header at all (OPN/MSG/CLO) as opposed to HEL/ACK/ERR, which
// are always single, unsecured chunks.
func (m MessageType) securedMessage() bool {
	return m == MsgOPN || m == MsgMSG || m == MsgCLO
}

// ChunkType is the one-byte chunk-role tag: final, continuation, or abort.
type ChunkType byte

const (
	ChunkFinal      ChunkType = 'F'
	ChunkContinue   ChunkType = 'C'
	ChunkAbort      ChunkType = 'A'
	headerFixedSize           = 3 + 1 + 4 // msg_type + chunk_type + size
)

// FirstSequenceNumber and LastSequenceNumber bound the legal range before
// the spec §4.4 wrap from 4,294,966,271 back to 1.
const (
	FirstSequenceNumber = 1
	LastSequenceNumber  = 4294966271
)

// SequenceCounter hands out the next outbound sequence number for one
// direction of one channel, implementing the wrap-around rule.
type SequenceCounter struct {
	next uint32
}

// NewSequenceCounter returns a counter that yields FirstSequenceNumber first.
func NewSequenceCounter() *SequenceCounter {
	return &SequenceCounter{next: FirstSequenceNumber}
}

// Next returns the next sequence number and advances the counter, wrapping
// from LastSequenceNumber back to FirstSequenceNumber.
func (s *SequenceCounter) Next() uint32 {
	v := s.next
	if s.next >= LastSequenceNumber {
		s.next = FirstSequenceNumber
	} else {
		s.next++
	}
	return v
}

// IsLegalSuccessor reports whether next is either prev+1 or the legal wrap
// from LastSequenceNumber to FirstSequenceNumber (spec §4.5 inbound
// sequence-number discipline).
func IsLegalSuccessor(prev, next uint32) bool {
	if prev == LastSequenceNumber {
		return next == FirstSequenceNumber
	}
	return next == prev+1
}

// AsymmetricSecurityHeader is carried by OPN chunks.
type AsymmetricSecurityHeader struct {
	PolicyURI          string
	SenderCertificate  []byte
	ReceiverThumbprint []byte
}

// SymmetricSecurityHeader is carried by MSG/CLO chunks.
type SymmetricSecurityHeader struct {
	TokenID uint32
}

// SequenceHeader follows the security header on every secured message.
type SequenceHeader struct {
	SequenceNumber uint32
	RequestID      uint32
}

// SecurityContext is the capability a SecureChannel (C5) exposes to the
// framer so chunk encode/decode never has to reach into policy or key
// material directly.
type SecurityContext interface {
	// BlockSize is the cipher block size in bytes, or 1 when the
	// channel's policy is None (no padding/splitting needed).
	BlockSize() int

	// SignatureSize is the byte length of the signature/MAC footer, or 0
	// under the None policy.
	SignatureSize() int

	// SignAndEncrypt signs header+body and, if the policy requires it,
	// encrypts from the sequence header onward, returning the final
	// on-wire bytes that follow the common+security header.
	SignAndEncrypt(header, body []byte) ([]byte, errors.Error)

	// VerifyAndDecrypt reverses SignAndEncrypt: it decrypts (if
	// applicable) and verifies the signature/MAC, returning the
	// plaintext sequence-header+body.
	VerifyAndDecrypt(header, securedBody []byte) ([]byte, errors.Error)
}

// Framer turns an application payload into one or more wire chunks, and
// reassembles wire chunks received on one channel direction back into an
// application payload.
type Framer interface {
	// EncodeSend splits body into chunks no larger than maxChunkSize,
	// applying sec's signature/encryption per spec §4.4's send
	// algorithm. asym is required (and sym ignored) for MsgOPN; sym is
	// required (and asym ignored) for MsgMSG/MsgCLO; neither applies to
	// MsgHEL/MsgACK/MsgERR.
	EncodeSend(msgType MessageType, requestID uint32, seq *SequenceCounter, asym *AsymmetricSecurityHeader, sym *SymmetricSecurityHeader, body []byte, sec SecurityContext, maxChunkSize uint32) ([][]byte, errors.Error)

	// EncodeError builds a single, unsecured ERR chunk carrying code and
	// reason -- the spec §4.4 decoding-error response.
	EncodeError(code uint32, reason string) []byte
}

// Reassembler accumulates chunks for one message direction of one channel
// and delivers the reassembled payload once a final chunk arrives.
type Reassembler interface {
	// Feed processes one raw wire chunk. On a chunk-type 'F' that
	// completes reassembly it returns the payload and done=true. A
	// chunk-type 'A' discards any accumulated state and returns
	// done=false with no error. sec is consulted for OPN/MSG/CLO only;
	// it may be nil for HEL/ACK/ERR.
	Feed(raw []byte, sec SecurityContext, maxChunkSize uint32) (msgType MessageType, requestID uint32, payload []byte, done bool, err errors.Error)

	// Reset discards any partially-accumulated message state.
	Reset()
}
