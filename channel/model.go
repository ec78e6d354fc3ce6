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

package channel

import (
	"crypto/rsa"
	"encoding/binary"
	"sync"
	"time"

	libchk "github.com/nabbar/opcua-core/chunk"
	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/errors"
	"github.com/nabbar/opcua-core/secpolicy"
	"github.com/nabbar/opcua-core/statuscode"
)

// token holds one generation's derived key material plus directional
// bookkeeping: localKeys sign/encrypt what the server sends, remoteKeys
// verify/decrypt what the server receives (spec §4.5 step 4).
type token struct {
	id         uint32
	localKeys  secpolicy.SymmetricKeys
	remoteKeys secpolicy.SymmetricKeys
	createdAt  time.Time
	lifetime   time.Duration
}

type channel struct {
	mu  sync.Mutex
	id  uint32
	cfg Config

	state State

	localCert *libcry.Certificate
	localKey  *rsa.PrivateKey

	policy   secpolicy.Policy
	peerCert *libcry.Certificate

	current     *token
	previous    *token
	nextTokenID uint32

	outSeq *libchk.SequenceCounter
	inBuf  libchk.Reassembler

	sendBufferSize uint32
	recvBufferSize uint32

	lastActivity time.Time

	boundSessions map[uint64]struct{}
}

// New returns a fresh Channel bound to localCert/localKey, the server's
// own application certificate and private key used during the OPN
// handshake (spec §4.5).
func New(id uint32, cfg Config, localCert *libcry.Certificate, localKey *rsa.PrivateKey) Channel {
	if cfg.DefaultLifetime <= 0 {
		cfg.DefaultLifetime = time.Hour
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = 24 * time.Hour
	}
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = 60 * time.Second
	}
	if cfg.MaxChunkSize == 0 {
		cfg.MaxChunkSize = 64 * 1024
	}

	return &channel{
		id:            id,
		cfg:           cfg,
		state:         StateFresh,
		localCert:     localCert,
		localKey:      localKey,
		outSeq:        libchk.NewSequenceCounter(),
		inBuf:         libchk.NewReassembler(),
		nextTokenID:   1,
		lastActivity:  time.Time{},
		boundSessions: make(map[uint64]struct{}),
	}
}

func (c *channel) ID() uint32 { return c.id }

func (c *channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *channel) HandleHello(info HelloInfo) (HelloInfo, errors.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateFresh {
		return HelloInfo{}, ErrorInvalidState.Error(nil)
	}
	c.state = StateHelReceived

	negotiated := HelloInfo{
		ReceiveBufferSize: minU32(info.ReceiveBufferSize, c.cfg.MaxChunkSize),
		SendBufferSize:    minU32(info.SendBufferSize, c.cfg.MaxChunkSize),
		MaxMessageSize:    info.MaxMessageSize,
		MaxChunkCount:     info.MaxChunkCount,
	}
	c.recvBufferSize = negotiated.ReceiveBufferSize
	c.sendBufferSize = negotiated.SendBufferSize
	c.state = StateAckSent

	return negotiated, nil
}

func minU32(a, b uint32) uint32 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// DecodeOpenRequest resolves a SecurityPolicy and sender certificate from
// raw's cleartext asymmetric security header, decrypts and verifies the
// body, and decodes it into an OpenRequest. It does not check the
// certificate against the trust store -- OpenSecureChannel does that --
// so it can run identically for a fresh handshake or a renewal.
func (c *channel) DecodeOpenRequest(raw []byte) (uint32, OpenRequest, errors.Error) {
	msgType, hdr, err := libchk.PeekAsymmetricHeader(raw)
	if err != nil {
		return 0, OpenRequest{}, err
	}
	if msgType != libchk.MsgOPN {
		return 0, OpenRequest{}, ErrorHandshakeFailed.Error(nil)
	}

	sec, _, err := c.buildAsymSecurity(secpolicy.URI(hdr.PolicyURI), hdr.SenderCertificate)
	if err != nil {
		return 0, OpenRequest{}, err
	}

	r := libchk.NewReassembler()
	_, requestID, body, done, err := r.Feed(raw, sec, c.cfg.MaxChunkSize)
	if err != nil {
		return 0, OpenRequest{}, err
	}
	if !done {
		return 0, OpenRequest{}, ErrorHandshakeFailed.Error(nil)
	}

	nonce, lifetime, isRenewal, derr := decodeOpenBody(body)
	if derr != nil {
		return 0, OpenRequest{}, derr
	}

	req := OpenRequest{
		IsRenewal:         isRenewal,
		PolicyURI:         secpolicy.URI(hdr.PolicyURI),
		ClientCertificate: hdr.SenderCertificate,
		ClientNonce:       nonce,
		RequestedLifetime: lifetime,
	}
	return requestID, req, nil
}

// buildAsymSecurity resolves the SecurityPolicy for uri and parses der
// into a Certificate, without any trust check, so decrypt+verify can run
// before the handshake decides whether to accept the peer.
func (c *channel) buildAsymSecurity(uri secpolicy.URI, der []byte) (libchk.SecurityContext, *libcry.Certificate, errors.Error) {
	p, err := c.cfg.Policies.Get(uri)
	if err != nil {
		return nil, nil, err
	}

	var peerCert *libcry.Certificate
	if uri != secpolicy.URINone && len(der) > 0 {
		pc, perr := c.cfg.Crypto.ParseCertificate(der)
		if perr != nil {
			return nil, nil, ErrorCertificateRejected.Error(perr)
		}
		peerCert = pc
	}

	return &asymSecurity{
		policy:    p,
		localKey:  c.localKey,
		localCert: c.localCert,
		peerCert:  peerCert,
	}, peerCert, nil
}

// OpenSecureChannel runs the spec §4.5 handshake steps the dispatcher
// doesn't: trust verification, nonce generation, key derivation, token
// bookkeeping and renewal rules.
func (c *channel) OpenSecureChannel(req OpenRequest) (OpenResponse, errors.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.IsRenewal {
		if c.state != StateOpen && c.state != StateRenewalInProgress {
			return OpenResponse{}, ErrorInvalidState.Error(nil)
		}
		if c.policy == nil || req.PolicyURI != c.policy.URI() {
			return OpenResponse{}, ErrorPolicyMismatch.Error(nil)
		}
	} else {
		if c.state != StateAckSent {
			return OpenResponse{}, ErrorInvalidState.Error(nil)
		}
		c.state = StateOpenReceived
	}

	p, perr := c.cfg.Policies.Get(req.PolicyURI)
	if perr != nil {
		return OpenResponse{}, perr
	}

	if req.PolicyURI != secpolicy.URINone {
		kind := c.cfg.PKI.VerifyCertificate(c.cfg.PKIGroup, req.ClientCertificate, c.cfg.MinKeyBits)
		if kind != statuscode.KindNone {
			c.state = StateClosing
			return OpenResponse{}, ErrorCertificateRejected.Error(nil)
		}

		pc, cerr := c.cfg.Crypto.ParseCertificate(req.ClientCertificate)
		if cerr != nil {
			c.state = StateClosing
			return OpenResponse{}, ErrorCertificateRejected.Error(cerr)
		}
		c.peerCert = pc
	}

	nonceLen := nonceLength(p)
	serverNonce, nerr := c.cfg.Crypto.RandomBytes(nonceLen)
	if nerr != nil {
		return OpenResponse{}, nerr
	}

	clientKeys, derr := p.DeriveSymmetricKeys(serverNonce, req.ClientNonce)
	if derr != nil {
		return OpenResponse{}, derr
	}
	serverKeys, derr := p.DeriveSymmetricKeys(req.ClientNonce, serverNonce)
	if derr != nil {
		return OpenResponse{}, derr
	}

	lifetime := req.RequestedLifetime
	if lifetime <= 0 || lifetime > c.cfg.MaxLifetime {
		lifetime = c.cfg.DefaultLifetime
	}

	newTok := &token{
		id:         c.nextTokenID,
		localKeys:  serverKeys,
		remoteKeys: clientKeys,
		createdAt:  time.Now(),
		lifetime:   lifetime,
	}
	c.nextTokenID++

	c.policy = p
	if cert := p.LocalCertificate(); cert != nil {
		c.localCert = cert
	}
	if k := p.LocalKey(); k != nil {
		c.localKey = k
	}

	if req.IsRenewal {
		c.previous = c.current
		c.state = StateRenewalInProgress
	} else {
		c.state = StateOpen
	}
	c.current = newTok

	return OpenResponse{
		TokenID:         newTok.id,
		RevisedLifetime: lifetime,
		ServerNonce:     serverNonce,
	}, nil
}

// EncodeOpenResponse frames resp as a single OPN chunk using the
// asymmetric security resolved during the preceding OpenSecureChannel.
func (c *channel) EncodeOpenResponse(requestID uint32, resp OpenResponse) ([][]byte, errors.Error) {
	c.mu.Lock()
	policy := c.policy
	peerCert := c.peerCert
	localKey := c.localKey
	localCert := c.localCert
	c.mu.Unlock()

	if policy == nil {
		return nil, ErrorInvalidState.Error(nil)
	}

	sec := &asymSecurity{policy: policy, localKey: localKey, localCert: localCert, peerCert: peerCert}
	body := encodeOpenResponseBody(resp)

	f := libchk.New()
	return f.EncodeSend(libchk.MsgOPN, requestID, libchk.NewSequenceCounter(), nil, nil, body, sec, c.cfg.MaxChunkSize)
}

func nonceLength(p secpolicy.Policy) int {
	switch p.HashAlg() {
	case libcry.HashSHA256:
		return 32
	default:
		return 20
	}
}

func (c *channel) EncodeMessage(msgType libchk.MessageType, requestID uint32, body []byte) ([][]byte, errors.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msgType != libchk.MsgMSG && msgType != libchk.MsgCLO {
		return nil, ErrorInvalidState.Error(nil)
	}
	if c.state != StateOpen && c.state != StateRenewalInProgress {
		return nil, ErrorInvalidState.Error(nil)
	}
	if c.current == nil {
		return nil, ErrorInvalidState.Error(nil)
	}

	sec := &symSecurity{policy: c.policy, localKeys: c.current.localKeys, remoteKeys: c.current.remoteKeys}
	sym := &libchk.SymmetricSecurityHeader{TokenID: c.current.id}

	f := libchk.New()
	return f.EncodeSend(msgType, requestID, c.outSeq, nil, sym, body, sec, c.cfg.MaxChunkSize)
}

func (c *channel) DecodeMessage(raw []byte) (libchk.MessageType, uint32, []byte, bool, errors.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgType, sym, err := libchk.PeekSymmetricHeader(raw)
	if err != nil {
		return msgType, 0, nil, false, err
	}
	if msgType != libchk.MsgMSG && msgType != libchk.MsgCLO {
		return msgType, 0, nil, false, ErrorInvalidState.Error(nil)
	}
	if c.state != StateOpen && c.state != StateRenewalInProgress {
		return msgType, 0, nil, false, ErrorInvalidState.Error(nil)
	}

	var tok *token
	usedCurrent := false
	switch {
	case c.current != nil && sym.TokenID == c.current.id:
		tok = c.current
		usedCurrent = true
	case c.previous != nil && sym.TokenID == c.previous.id:
		tok = c.previous
	default:
		return msgType, 0, nil, false, ErrorUnknownToken.Error(nil)
	}

	sec := &symSecurity{policy: c.policy, localKeys: tok.localKeys, remoteKeys: tok.remoteKeys}

	mType, reqID, payload, done, ferr := c.inBuf.Feed(raw, sec, c.cfg.MaxChunkSize)
	if ferr != nil {
		return mType, reqID, payload, done, ferr
	}

	if usedCurrent && c.previous != nil {
		c.previous = nil
		if c.state == StateRenewalInProgress {
			c.state = StateOpen
		}
	}

	return mType, reqID, payload, done, nil
}

func (c *channel) Touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = now
}

func (c *channel) CheckInactivity(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed || c.state == StateClosing {
		return false
	}
	if c.lastActivity.IsZero() {
		return false
	}
	return now.Sub(c.lastActivity) > c.cfg.InactivityTimeout
}

func (c *channel) Close(reason statuscode.Kind) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateClosed
	ids := make([]uint64, 0, len(c.boundSessions))
	for id := range c.boundSessions {
		ids = append(ids, id)
	}
	c.boundSessions = make(map[uint64]struct{})
	_ = reason
	return ids
}

func (c *channel) BindSession(sessionID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundSessions[sessionID] = struct{}{}
}

func (c *channel) UnbindSession(sessionID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.boundSessions, sessionID)
}

func (c *channel) BoundSessions() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint64, 0, len(c.boundSessions))
	for id := range c.boundSessions {
		ids = append(ids, id)
	}
	return ids
}

// --- OPN handshake body codec -------------------------------------------------

func decodeOpenBody(b []byte) (nonce []byte, lifetime time.Duration, isRenewal bool, err errors.Error) {
	if len(b) < 13 {
		return nil, 0, false, ErrorHandshakeFailed.Error(nil)
	}
	lifetime = time.Duration(binary.LittleEndian.Uint64(b[0:8]))
	isRenewal = b[8] != 0
	nl := binary.LittleEndian.Uint32(b[9:13])
	rest := b[13:]
	if uint32(len(rest)) < nl {
		return nil, 0, false, ErrorHandshakeFailed.Error(nil)
	}
	return rest[:nl], lifetime, isRenewal, nil
}

func encodeOpenResponseBody(resp OpenResponse) []byte {
	var b []byte
	var t [4]byte
	binary.LittleEndian.PutUint32(t[:], resp.TokenID)
	b = append(b, t[:]...)
	var l [8]byte
	binary.LittleEndian.PutUint64(l[:], uint64(resp.RevisedLifetime))
	b = append(b, l[:]...)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(resp.ServerNonce)))
	b = append(b, n[:]...)
	b = append(b, resp.ServerNonce...)
	return b
}

// --- Security context adapters (chunk.SecurityContext) ----------------------

type asymSecurity struct {
	policy    secpolicy.Policy
	localKey  *rsa.PrivateKey
	localCert *libcry.Certificate
	peerCert  *libcry.Certificate
}

// asymSignatureBudget is a conservative upper bound on an RSA-2048/4096
// signature's length, used only to size the framer's per-chunk overhead
// reservation; OPN messages are always single-chunk (spec §4.4) so the
// exact figure never affects correctness, only how much body budget the
// framer reports before a single OPN chunk would overflow maxChunkSize.
const asymSignatureBudget = 512

func (a *asymSecurity) BlockSize() int     { return 1 }
func (a *asymSecurity) SignatureSize() int { return asymSignatureBudget }

func (a *asymSecurity) peerPublicKey() (*rsa.PublicKey, errors.Error) {
	if a.peerCert == nil {
		return nil, ErrorHandshakeFailed.Error(nil)
	}
	pub, ok := a.peerCert.X509().PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, ErrorHandshakeFailed.Error(nil)
	}
	return pub, nil
}

func (a *asymSecurity) SignAndEncrypt(header, body []byte) ([]byte, errors.Error) {
	if a.policy.URI() == secpolicy.URINone {
		return body, nil
	}

	pub, err := a.peerPublicKey()
	if err != nil {
		return nil, err
	}

	sig, err := a.policy.AsymmetricSign(a.localKey, append(append([]byte{}, header...), body...))
	if err != nil {
		return nil, err
	}
	ct, err := a.policy.AsymmetricEncrypt(pub, body)
	if err != nil {
		return nil, err
	}

	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(sig)))
	out := append(l[:], sig...)
	return append(out, ct...), nil
}

func (a *asymSecurity) VerifyAndDecrypt(header, securedBody []byte) ([]byte, errors.Error) {
	if a.policy.URI() == secpolicy.URINone {
		return securedBody, nil
	}
	if len(securedBody) < 4 {
		return nil, ErrorHandshakeFailed.Error(nil)
	}
	sigLen := binary.LittleEndian.Uint32(securedBody[0:4])
	rest := securedBody[4:]
	if uint32(len(rest)) < sigLen {
		return nil, ErrorHandshakeFailed.Error(nil)
	}
	sig := rest[:sigLen]
	ct := rest[sigLen:]

	pt, err := a.policy.AsymmetricDecrypt(a.localKey, ct)
	if err != nil {
		return nil, err
	}

	pub, err := a.peerPublicKey()
	if err != nil {
		return nil, err
	}
	if verr := a.policy.AsymmetricVerify(pub, append(append([]byte{}, header...), pt...), sig); verr != nil {
		return nil, verr
	}

	return pt, nil
}

type symSecurity struct {
	policy     secpolicy.Policy
	localKeys  secpolicy.SymmetricKeys
	remoteKeys secpolicy.SymmetricKeys
}

func (s *symSecurity) BlockSize() int {
	if s.policy.URI() == secpolicy.URINone || s.policy.URI() == secpolicy.URIPubSubAes128Ctr {
		return 1
	}
	return 16
}

func (s *symSecurity) SignatureSize() int {
	if s.policy.URI() == secpolicy.URINone {
		return 0
	}
	switch s.policy.HashAlg() {
	case libcry.HashSHA256:
		return 32
	default:
		return 20
	}
}

func (s *symSecurity) SignAndEncrypt(header, body []byte) ([]byte, errors.Error) {
	if s.policy.URI() == secpolicy.URINone {
		return body, nil
	}

	ct, err := s.policy.SymmetricEncrypt(s.localKeys.EncryptingKey, s.localKeys.IV, body)
	if err != nil {
		return nil, err
	}
	mac, err := s.policy.SymmetricSign(s.localKeys.SigningKey, append(append([]byte{}, header...), ct...))
	if err != nil {
		return nil, err
	}
	return append(ct, mac...), nil
}

func (s *symSecurity) VerifyAndDecrypt(header, securedBody []byte) ([]byte, errors.Error) {
	if s.policy.URI() == secpolicy.URINone {
		return securedBody, nil
	}

	sigSize := s.SignatureSize()
	if len(securedBody) < sigSize {
		return nil, ErrorHandshakeFailed.Error(nil)
	}
	ct := securedBody[:len(securedBody)-sigSize]
	mac := securedBody[len(securedBody)-sigSize:]

	if verr := s.policy.SymmetricVerify(s.remoteKeys.SigningKey, append(append([]byte{}, header...), ct...), mac); verr != nil {
		return nil, verr
	}
	return s.policy.SymmetricDecrypt(s.remoteKeys.EncryptingKey, s.remoteKeys.IV, ct)
}
