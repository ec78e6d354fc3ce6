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

// Package channel implements the SecureChannel (spec C5): the OPN
// handshake, symmetric key derivation, chunk encode/decode over the
// channel's current (and, for one round trip after a renewal, previous)
// security token, inbound sequence-number discipline, and the inactivity
// timeout that detaches -- but does not destroy -- bound sessions.
package channel

import (
	"crypto/rsa"
	"time"

	libchk "github.com/nabbar/opcua-core/chunk"
	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/errors"
	"github.com/nabbar/opcua-core/pki"
	"github.com/nabbar/opcua-core/secpolicy"
	"github.com/nabbar/opcua-core/statuscode"
)

// State is a node in the spec §4.5 SecureChannel state machine.
type State uint8

const (
	StateFresh State = iota
	StateHelReceived
	StateAckSent
	StateOpenSent
	StateOpenReceived
	StateOpen
	StateRenewalInProgress
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "Fresh"
	case StateHelReceived:
		return "HelReceived"
	case StateAckSent:
		return "AckSent"
	case StateOpenSent:
		return "OpenSecureChannelSent"
	case StateOpenReceived:
		return "OpenSecureChannelReceived"
	case StateOpen:
		return "Open"
	case StateRenewalInProgress:
		return "RenewalInProgress"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// HelloInfo is the buffer-size negotiation carried by HEL/ACK.
type HelloInfo struct {
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// OpenRequest is the decoded content of an OPN request -- decoding the
// raw chunk bytes into these fields is the ServiceDispatcher/server
// glue's job, not the channel's.
type OpenRequest struct {
	IsRenewal         bool
	PolicyURI         secpolicy.URI
	ClientCertificate []byte // DER, nil under the None policy
	ClientNonce       []byte
	RequestedLifetime time.Duration
}

// OpenResponse is what the server sends back to complete or renew a
// handshake.
type OpenResponse struct {
	TokenID         uint32
	RevisedLifetime time.Duration
	ServerNonce     []byte
}

// Config bundles the shared, read-mostly dependencies every channel on
// the server needs.
type Config struct {
	Crypto            libcry.Provider
	PKI               pki.Store
	Policies          secpolicy.Registry
	PKIGroup          pki.Group
	MinKeyBits        int
	DefaultLifetime   time.Duration
	MaxLifetime       time.Duration
	InactivityTimeout time.Duration
	MaxChunkSize      uint32
}

// Channel is the SecureChannel capability set.
type Channel interface {
	ID() uint32
	State() State

	// HandleHello negotiates buffer sizes and advances Fresh -> AckSent.
	HandleHello(info HelloInfo) (HelloInfo, errors.Error)

	// DecodeOpenRequest resolves the policy and sender certificate from
	// raw's cleartext asymmetric security header and decodes its secured
	// body, without performing any trust check. The returned requestID is
	// the OPN request's own sequence-header requestID, which
	// EncodeOpenResponse echoes back.
	DecodeOpenRequest(raw []byte) (requestID uint32, req OpenRequest, err errors.Error)

	// OpenSecureChannel runs the spec §4.5 handshake (or a renewal) and
	// advances the state machine accordingly. On failure for a fresh
	// handshake the caller must Close the channel with
	// SecurityChecksFailed; the offending certificate has already been
	// appended to the rejected list by the PKI store.
	OpenSecureChannel(req OpenRequest) (OpenResponse, errors.Error)

	// EncodeOpenResponse frames resp as a single OPN chunk using the
	// asymmetric security resolved by the preceding OpenSecureChannel.
	EncodeOpenResponse(requestID uint32, resp OpenResponse) ([][]byte, errors.Error)

	// EncodeMessage frames and secures body as msgType, returning the
	// wire chunks to send.
	EncodeMessage(msgType libchk.MessageType, requestID uint32, body []byte) ([][]byte, errors.Error)

	// DecodeMessage feeds one raw wire chunk through this channel's
	// reassembler and security context.
	DecodeMessage(raw []byte) (msgType libchk.MessageType, requestID uint32, payload []byte, done bool, err errors.Error)

	// Touch records inbound traffic, pushing back the inactivity deadline.
	Touch(now time.Time)

	// CheckInactivity reports whether the channel has gone silent past
	// its negotiated timeout and should be closed.
	CheckInactivity(now time.Time) bool

	// Close transitions to Closed and returns the session ids that were
	// bound -- the caller (SessionManager) detaches, not destroys, them.
	Close(reason statuscode.Kind) []uint64

	BindSession(sessionID uint64)
	UnbindSession(sessionID uint64)
	BoundSessions() []uint64
}

// localKeyPair is the server's own cert/key used to sign/decrypt during
// the handshake; kept distinct from secpolicy.Policy.LocalCertificate so
// a channel can be constructed before any policy has a cert installed.
type localKeyPair struct {
	cert *libcry.Certificate
	key  *rsa.PrivateKey
}
