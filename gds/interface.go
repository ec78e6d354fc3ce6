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

// Package gds implements the GDSTransactionManager (spec C10): the
// PushCertificateManagement / TrustListType method set a client uses to
// rotate application certificates and maintain trust lists remotely, all
// serialized behind one global transaction slot per spec §5's
// shared-resource policy.
package gds

import (
	"time"

	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/errors"
	"github.com/nabbar/opcua-core/pki"
	"github.com/nabbar/opcua-core/secpolicy"
)

// FileMode selects how Open exposes a TrustList object's serialized form.
type FileMode uint8

const (
	// ModeRead opens a TrustList object for a one-shot read of its
	// current (or masked) serialized contents.
	ModeRead FileMode = 0x01
	// ModeWrite opens a TrustList object to stage a full replacement,
	// combining the wire's Write and EraseExisting bits -- GDS always
	// replaces the buffer wholesale rather than patching it.
	ModeWrite FileMode = 0x06
)

// FileHandle identifies one Open'd TrustList object buffer.
type FileHandle uint32

// CommitHook is invoked once by ApplyChanges after a transaction commits,
// so the caller (server glue) can schedule the delayed channel teardown
// spec §4.10 describes without gds depending on the channel/session
// packages itself. trustChanged/certChanged are keyed by the groups whose
// trust list or local certificate actually changed.
type CommitHook func(trustChanged map[pki.Group]bool, certChanged map[pki.Group]bool)

// Config binds a Manager to the groups it administers. Policies supplies
// the SecurityPolicy each group's local certificate/key pair hot-swaps
// through; a group absent from Policies cannot receive UpdateCertificate.
type Config struct {
	Crypto     libcry.Provider
	PKI        pki.Store
	Policies   map[pki.Group]secpolicy.Policy
	MinKeyBits int

	// LivenessInterval is how often Sweep should be re-armed while a
	// transaction is pending or a file handle is open (spec §4.10: 10s).
	LivenessInterval time.Duration
}

// Manager is the GDSTransactionManager capability set (spec §4.10). Not
// safe for concurrent use -- driven from the single-threaded event loop,
// like the rest of the server's core.
type Manager interface {
	// UpdateCertificate stages a new local certificate+key for group,
	// validated to be a matching key pair. Opens (or reuses) the owning
	// session's transaction; fails with ErrorTransactionPending if
	// another session already holds one.
	UpdateCertificate(sessionID uint64, group pki.Group, certTypeID string, cert, issuerChain, privateKey []byte) (applyChangesRequired bool, err errors.Error)

	// CreateSigningRequest emits a PKCS#10 CSR for group's current (or,
	// if regenerateKey, a freshly generated) key pair.
	CreateSigningRequest(sessionID uint64, group pki.Group, certTypeID, subject string, regenerateKey bool, nonce []byte) (csr []byte, err errors.Error)

	// GetRejectedList concatenates every administered group's rejected
	// certificate list.
	GetRejectedList() [][]byte

	// AddCertificate adds cert to group's trusted (or issuer) list.
	// Fails if the object is open or cert is a certificate authority.
	AddCertificate(sessionID uint64, group pki.Group, cert []byte, isTrustedCertificate bool) errors.Error

	// RemoveCertificate removes the certificate matching thumbprint from
	// group's trusted (or issuer) list via a single-shot transaction
	// applied immediately.
	RemoveCertificate(sessionID uint64, group pki.Group, thumbprint [20]byte, isTrustedCertificate bool) errors.Error

	// Open serializes group's current TrustList (or, under a pending
	// transaction owned by sessionID, the staged one) into a fresh
	// handle's buffer. ModeWrite additionally opens (or reuses) a
	// transaction for sessionID.
	Open(sessionID uint64, group pki.Group, mode FileMode) (FileHandle, errors.Error)

	// OpenWithMasks is the read-only variant filtered by mask.
	OpenWithMasks(sessionID uint64, group pki.Group, mask pki.Mask) (FileHandle, errors.Error)

	// Read returns up to length bytes from handle's buffer starting at
	// its current position, advancing the position. Fails if handle is
	// not open in ModeRead.
	Read(sessionID uint64, group pki.Group, handle FileHandle, length int) ([]byte, errors.Error)

	// Write appends data to handle's staging buffer. Fails if handle is
	// not open in ModeWrite.
	Write(sessionID uint64, group pki.Group, handle FileHandle, data []byte) errors.Error

	// Close discards a ModeWrite handle's staged buffer (cancelling its
	// transaction) and releases the handle.
	Close(sessionID uint64, group pki.Group, handle FileHandle) errors.Error

	// CloseAndUpdate decodes handle's full staged buffer as a TrustList
	// and stages it into the transaction, without yet mutating the live
	// group -- that happens on ApplyChanges.
	CloseAndUpdate(sessionID uint64, group pki.Group, handle FileHandle) (applyChangesRequired bool, err errors.Error)

	GetPosition(sessionID uint64, group pki.Group, handle FileHandle) (uint64, errors.Error)
	SetPosition(sessionID uint64, group pki.Group, handle FileHandle, position uint64) errors.Error

	// ApplyChanges commits sessionID's transaction: staged trust lists
	// replace the live ones, staged certificate updates hot-swap their
	// policy's cert/key pair, and hook is invoked once with the set of
	// groups actually changed. Only the transaction's owning session may
	// call this.
	ApplyChanges(sessionID uint64, hook CommitHook) errors.Error

	// Sweep discards the pending transaction (and closes its handles) if
	// sessionAlive reports its owner gone, per spec §4.10's liveness
	// check. Returns true if a transaction or open handle still exists
	// afterward, telling the caller whether to re-arm its periodic timer.
	Sweep(now time.Time, sessionAlive func(sessionID uint64) bool) bool
}
