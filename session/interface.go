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

// Package session implements the SessionManager (spec C6):
// CreateSession/ActivateSession, channel rebinding, per-session timeout
// and single-in-flight-request concurrency.
package session

import (
	"time"

	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/errors"
)

// State is a session's lifecycle stage.
type State uint8

const (
	// StateCreated means CreateSession has run but ActivateSession has
	// not yet supplied a user identity.
	StateCreated State = iota
	StateActivated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateActivated:
		return "Activated"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// UserIdentity is the proof of identity carried by ActivateSession. Only
// the x509 case is modeled: Signature must validate over
// (serverCertificate || serverNonce) with the certificate's public key.
type UserIdentity struct {
	Certificate []byte // DER, nil for anonymous/username identities
	Signature   []byte
}

// Config bounds the per-session timeout every CreateSession negotiates
// and supplies the crypto primitive used to verify ActivateSession's
// proof of possession.
type Config struct {
	Crypto         libcry.Provider
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
}

// Session is one authenticated client session, bound to at most one
// SecureChannel at a time.
type Session interface {
	ID() uint64
	AuthenticationToken() []byte
	State() State
	ChannelID() uint64

	// Activate supplies a user identity and rebinds the session to
	// channelID, which may differ from the channel CreateSession arrived
	// on (spec §4.6 rebinding). serverCertificate/serverNonce are the
	// bytes the identity's Signature must cover for the x509 case.
	Activate(channelID uint64, identity UserIdentity, serverCertificate, serverNonce []byte) errors.Error

	// Rebind moves an already-activated session onto a different
	// channel; used when a request carrying this session's
	// authentication token arrives on a new channel.
	Rebind(channelID uint64) errors.Error

	// Detach clears the session's channel binding without closing the
	// session itself, called when the bound channel closes.
	Detach()

	// CheckBinding reports whether channelID is this session's current
	// bound channel -- requests on any other channel are rejected with
	// SessionNotActivated.
	CheckBinding(channelID uint64) bool

	// Touch extends the timeout deadline; any authenticated request does
	// this (spec §4.6).
	Touch(now time.Time)
	CheckTimeout(now time.Time) bool

	// TryAcquire/Release enforce the single-in-flight-request rule.
	TryAcquire() bool
	Release()

	Close()
}

// Manager creates and looks up sessions.
type Manager interface {
	// CreateSession mints a session bound to channelID with a fresh
	// 256-bit authentication token and the requested (clamped) timeout.
	CreateSession(channelID uint64, requestedTimeout time.Duration) (Session, errors.Error)

	Get(sessionID uint64) (Session, bool)
	GetByToken(token []byte) (Session, bool)

	// Sweep destroys every session whose timeout has elapsed, returning
	// their ids so the caller can release continuation points and
	// notify subscriptions.
	Sweep(now time.Time) []uint64

	// DetachChannel unbinds every session currently bound to channelID,
	// without destroying them: a session outlives the channel it was
	// created or activated on and becomes reachable again once a
	// request rebinds it to a new channel, same as
	// channel.Channel.Close's "detach, don't destroy" contract.
	DetachChannel(channelID uint64) []uint64

	Close(sessionID uint64)
}
