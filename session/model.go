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

package session

import (
	"crypto/rsa"
	"sync"
	"time"

	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/errors"
)

const authTokenLength = 32 // 256 bits, spec §4.6

type session struct {
	mu sync.Mutex

	id    uint64
	token []byte

	state     State
	channelID uint64

	timeout      time.Duration
	lastActivity time.Time

	busy bool

	crypto libcry.Provider
}

func (s *session) ID() uint64                  { return s.id }
func (s *session) AuthenticationToken() []byte { return s.token }

func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) ChannelID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

func (s *session) Activate(channelID uint64, identity UserIdentity, serverCertificate, serverNonce []byte) errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrorInvalidState.Error(nil)
	}

	if len(identity.Certificate) > 0 {
		cert, err := s.crypto.ParseCertificate(identity.Certificate)
		if err != nil {
			return ErrorIdentityRejected.Error(err)
		}
		pub, ok := cert.X509().PublicKey.(*rsa.PublicKey)
		if !ok {
			return ErrorIdentityRejected.Error(nil)
		}

		payload := append(append([]byte{}, serverCertificate...), serverNonce...)
		digest, herr := s.crypto.Hash(libcry.HashSHA256, payload)
		if herr != nil {
			return ErrorIdentityRejected.Error(herr)
		}
		if verr := s.crypto.RSAVerify(pub, libcry.SignRSAPKCS1SHA256, digest, identity.Signature); verr != nil {
			return ErrorIdentityRejected.Error(verr)
		}
	}

	s.channelID = channelID
	s.state = StateActivated
	return nil
}

func (s *session) Rebind(channelID uint64) errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActivated {
		return ErrorInvalidState.Error(nil)
	}
	s.channelID = channelID
	return nil
}

func (s *session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelID = 0
}

func (s *session) CheckBinding(channelID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActivated && s.channelID == channelID
}

func (s *session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

func (s *session) CheckTimeout(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false
	}
	if s.lastActivity.IsZero() {
		return false
	}
	return now.Sub(s.lastActivity) > s.timeout
}

func (s *session) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

func (s *session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
}

type manager struct {
	mu  sync.Mutex
	cfg Config

	byID    map[uint64]*session
	byToken map[string]*session

	nextID uint64
}

// New returns an empty session Manager.
func New(cfg Config) Manager {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = time.Hour
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = time.Hour
	}

	return &manager{
		cfg:     cfg,
		byID:    make(map[uint64]*session),
		byToken: make(map[string]*session),
	}
}

func (m *manager) CreateSession(channelID uint64, requestedTimeout time.Duration) (Session, errors.Error) {
	token, err := m.cfg.Crypto.RandomBytes(authTokenLength)
	if err != nil {
		return nil, err
	}

	timeout := requestedTimeout
	if timeout <= 0 || timeout > m.cfg.MaxTimeout {
		timeout = m.cfg.DefaultTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s := &session{
		id:        m.nextID,
		token:     token,
		state:     StateCreated,
		channelID: channelID,
		timeout:   timeout,
		crypto:    m.cfg.Crypto,
	}
	m.byID[s.id] = s
	m.byToken[string(token)] = s

	return s, nil
}

func (m *manager) Get(sessionID uint64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	return s, ok
}

func (m *manager) GetByToken(token []byte) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byToken[string(token)]
	return s, ok
}

func (m *manager) Sweep(now time.Time) []uint64 {
	m.mu.Lock()
	var expired []*session
	for _, s := range m.byID {
		if s.CheckTimeout(now) {
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	ids := make([]uint64, 0, len(expired))
	for _, s := range expired {
		ids = append(ids, s.ID())
		m.Close(s.ID())
	}
	return ids
}

func (m *manager) DetachChannel(channelID uint64) []uint64 {
	m.mu.Lock()
	var matched []*session
	for _, s := range m.byID {
		if s.ChannelID() == channelID {
			matched = append(matched, s)
		}
	}
	m.mu.Unlock()

	ids := make([]uint64, 0, len(matched))
	for _, s := range matched {
		s.Detach()
		ids = append(ids, s.ID())
	}
	return ids
}

func (m *manager) Close(sessionID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[sessionID]
	if !ok {
		return
	}
	s.Close()
	delete(m.byID, sessionID)
	delete(m.byToken, string(s.token))
}
