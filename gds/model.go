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

package gds

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	stderrors "errors"
	"time"

	lbuuid "github.com/hashicorp/go-uuid"

	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/errors"
	"github.com/nabbar/opcua-core/pki"
)

var (
	errNoKeyMaterial = stderrors.New("gds: no usable private key material")
	errTruncated     = stderrors.New("gds: truncated trust list buffer")
)

// orderedGroups fixes the iteration order GetRejectedList and similar
// aggregate operations present results in, independent of map order.
var orderedGroups = []pki.Group{pki.GroupApplication, pki.GroupHTTPS, pki.GroupUserToken}

type stagedCert struct {
	cert *libcry.Certificate
	key  *rsa.PrivateKey
}

type transaction struct {
	id           string
	ownerSession uint64
	createdAt    time.Time
	stagedTrust  map[pki.Group]pki.TrustList
	stagedCert   map[pki.Group]stagedCert
	stagedKey    map[pki.Group]*rsa.PrivateKey
}

type fileHandle struct {
	id    FileHandle
	group pki.Group
	mode  FileMode
	buf   []byte
	pos   uint64
}

type manager struct {
	cfg        Config
	tx         *transaction
	handles    map[FileHandle]*fileHandle
	nextHandle uint32
}

// New returns a Manager administering the groups named in cfg.Policies.
func New(cfg Config) Manager {
	return &manager{
		cfg:     cfg,
		handles: make(map[FileHandle]*fileHandle),
	}
}

func (m *manager) ensureTransaction(sessionID uint64) (*transaction, errors.Error) {
	if m.tx != nil {
		if m.tx.ownerSession != sessionID {
			return nil, ErrorTransactionPending.Error(nil)
		}
		return m.tx, nil
	}

	id, _ := lbuuid.GenerateUUID()
	m.tx = &transaction{
		id:           id,
		ownerSession: sessionID,
		createdAt:    time.Now(),
		stagedTrust:  make(map[pki.Group]pki.TrustList),
		stagedCert:   make(map[pki.Group]stagedCert),
		stagedKey:    make(map[pki.Group]*rsa.PrivateKey),
	}
	return m.tx, nil
}

func (m *manager) discardTransaction() {
	m.tx = nil
	for id, h := range m.handles {
		if h.mode == ModeWrite {
			delete(m.handles, id)
		}
	}
}

func (m *manager) objectOpen(group pki.Group) bool {
	for _, h := range m.handles {
		if h.group == group {
			return true
		}
	}
	return false
}

func (m *manager) UpdateCertificate(sessionID uint64, group pki.Group, certTypeID string, cert, issuerChain, privateKey []byte) (bool, errors.Error) {
	policy, ok := m.cfg.Policies[group]
	if !ok {
		return false, ErrorUnknownGroup.Error(nil)
	}

	parsed, perr := m.cfg.Crypto.ParseCertificate(cert)
	if perr != nil {
		return false, perr
	}

	tx, terr := m.ensureTransaction(sessionID)
	if terr != nil {
		return false, terr
	}

	key, kerr := parsePrivateKey(privateKey)
	if kerr != nil {
		if staged, ok := tx.stagedKey[group]; ok {
			key = staged
		} else {
			return false, ErrorKeyMismatch.Error(kerr)
		}
	}

	pub, ok := parsed.X509().PublicKey.(*rsa.PublicKey)
	if !ok || pub.N.Cmp(key.PublicKey.N) != 0 || pub.E != key.PublicKey.E {
		return false, ErrorKeyMismatch.Error(nil)
	}

	// certTypeID/issuerChain are accepted for interface parity with the
	// wire method but not yet validated against the policy's supported
	// cert-type table.
	tx.stagedCert[group] = stagedCert{cert: parsed, key: key}
	delete(tx.stagedKey, group)
	return true, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if len(der) == 0 {
		return nil, errNoKeyMaterial
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rk, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errNoKeyMaterial
	}
	return rk, nil
}

func (m *manager) CreateSigningRequest(sessionID uint64, group pki.Group, certTypeID, subject string, regenerateKey bool, nonce []byte) ([]byte, errors.Error) {
	policy, ok := m.cfg.Policies[group]
	if !ok {
		return nil, ErrorUnknownGroup.Error(nil)
	}

	key := policy.LocalKey()
	if regenerateKey || key == nil {
		newKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, ErrorKeyMismatch.Error(err)
		}
		key = newKey

		tx, terr := m.ensureTransaction(sessionID)
		if terr != nil {
			return nil, terr
		}
		tx.stagedKey[group] = key
	}

	template := &x509.CertificateRequest{
		Subject:            pkix.Name{CommonName: subject},
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	if cur := policy.LocalCertificate(); cur != nil {
		x := cur.X509()
		template.DNSNames = x.DNSNames
		template.IPAddresses = x.IPAddresses
		template.URIs = x.URIs
	}

	// certTypeID/nonce are accepted for interface parity; nonce binding
	// into the CSR's challenge-password attribute is not yet implemented.
	csr, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return nil, ErrorKeyMismatch.Error(err)
	}
	return csr, nil
}

func (m *manager) GetRejectedList() [][]byte {
	var out [][]byte
	for _, g := range orderedGroups {
		out = append(out, m.cfg.PKI.GetRejectedList(g)...)
	}
	return out
}

func (m *manager) AddCertificate(sessionID uint64, group pki.Group, cert []byte, isTrustedCertificate bool) errors.Error {
	if !isTrustedCertificate {
		return ErrorWrongMode.Error(nil)
	}
	if m.objectOpen(group) {
		return ErrorObjectOpen.Error(nil)
	}

	parsed, perr := m.cfg.Crypto.ParseCertificate(cert)
	if perr != nil {
		return perr
	}
	if parsed.IsCertAuthority() {
		return ErrorCertificateIsCA.Error(nil)
	}

	return m.cfg.PKI.AddToTrustList(group, pki.TrustList{Certificates: [][]byte{cert}}, pki.TrustList{})
}

func (m *manager) RemoveCertificate(sessionID uint64, group pki.Group, thumbprint [20]byte, isTrustedCertificate bool) errors.Error {
	if m.objectOpen(group) {
		return ErrorObjectOpen.Error(nil)
	}
	if m.tx != nil && m.tx.ownerSession != sessionID {
		return ErrorTransactionPending.Error(nil)
	}

	mask := pki.MaskTrustedCerts
	if !isTrustedCertificate {
		mask = pki.MaskIssuerCerts
	}
	list := m.cfg.PKI.GetTrustList(group, mask)

	pool := list.Certificates
	var match []byte
	for _, der := range pool {
		parsed, perr := m.cfg.Crypto.ParseCertificate(der)
		if perr != nil {
			continue
		}
		if parsed.Thumbprint == thumbprint {
			match = der
			break
		}
	}
	if match == nil {
		return nil
	}

	rm := pki.TrustList{Certificates: [][]byte{match}}
	if isTrustedCertificate {
		return m.cfg.PKI.RemoveFromTrustList(group, rm, pki.TrustList{})
	}
	return m.cfg.PKI.RemoveFromTrustList(group, pki.TrustList{}, rm)
}

func (m *manager) Open(sessionID uint64, group pki.Group, mode FileMode) (FileHandle, errors.Error) {
	if _, ok := m.cfg.Policies[group]; !ok {
		return 0, ErrorUnknownGroup.Error(nil)
	}
	if m.objectOpen(group) {
		return 0, ErrorObjectOpen.Error(nil)
	}

	var buf []byte
	if mode == ModeWrite {
		if _, terr := m.ensureTransaction(sessionID); terr != nil {
			return 0, terr
		}
	} else {
		list := m.cfg.PKI.GetTrustList(group, pki.MaskAll)
		if m.tx != nil {
			if staged, ok := m.tx.stagedTrust[group]; ok {
				list = staged
			}
		}
		buf = encodeTrustList(list)
	}

	m.nextHandle++
	h := &fileHandle{id: FileHandle(m.nextHandle), group: group, mode: mode, buf: buf}
	m.handles[h.id] = h
	return h.id, nil
}

func (m *manager) OpenWithMasks(sessionID uint64, group pki.Group, mask pki.Mask) (FileHandle, errors.Error) {
	if _, ok := m.cfg.Policies[group]; !ok {
		return 0, ErrorUnknownGroup.Error(nil)
	}
	if m.objectOpen(group) {
		return 0, ErrorObjectOpen.Error(nil)
	}

	list := m.cfg.PKI.GetTrustList(group, mask)
	m.nextHandle++
	h := &fileHandle{id: FileHandle(m.nextHandle), group: group, mode: ModeRead, buf: encodeTrustList(list)}
	m.handles[h.id] = h
	return h.id, nil
}

func (m *manager) find(group pki.Group, handle FileHandle) (*fileHandle, errors.Error) {
	h, ok := m.handles[handle]
	if !ok || h.group != group {
		return nil, ErrorHandleNotFound.Error(nil)
	}
	return h, nil
}

func (m *manager) Read(sessionID uint64, group pki.Group, handle FileHandle, length int) ([]byte, errors.Error) {
	h, err := m.find(group, handle)
	if err != nil {
		return nil, err
	}
	if h.mode != ModeRead {
		return nil, ErrorWrongMode.Error(nil)
	}

	start := int(h.pos)
	if start >= len(h.buf) {
		return nil, nil
	}
	end := start + length
	if end > len(h.buf) {
		end = len(h.buf)
	}
	h.pos = uint64(end)
	return h.buf[start:end], nil
}

func (m *manager) Write(sessionID uint64, group pki.Group, handle FileHandle, data []byte) errors.Error {
	h, err := m.find(group, handle)
	if err != nil {
		return err
	}
	if h.mode != ModeWrite {
		return ErrorWrongMode.Error(nil)
	}
	h.buf = append(h.buf, data...)
	return nil
}

func (m *manager) Close(sessionID uint64, group pki.Group, handle FileHandle) errors.Error {
	h, err := m.find(group, handle)
	if err != nil {
		return err
	}
	if h.mode == ModeWrite {
		m.discardTransaction()
		return nil
	}
	delete(m.handles, handle)
	return nil
}

func (m *manager) CloseAndUpdate(sessionID uint64, group pki.Group, handle FileHandle) (bool, errors.Error) {
	h, err := m.find(group, handle)
	if err != nil {
		return false, err
	}
	if h.mode != ModeWrite {
		return false, ErrorWrongMode.Error(nil)
	}

	list, derr := decodeTrustList(h.buf)
	if derr != nil {
		return false, ErrorMalformedTrustList.Error(derr)
	}

	tx, terr := m.ensureTransaction(sessionID)
	if terr != nil {
		return false, terr
	}
	tx.stagedTrust[group] = list
	delete(m.handles, handle)
	return true, nil
}

func (m *manager) GetPosition(sessionID uint64, group pki.Group, handle FileHandle) (uint64, errors.Error) {
	h, err := m.find(group, handle)
	if err != nil {
		return 0, err
	}
	return h.pos, nil
}

func (m *manager) SetPosition(sessionID uint64, group pki.Group, handle FileHandle, position uint64) errors.Error {
	h, err := m.find(group, handle)
	if err != nil {
		return err
	}
	h.pos = position
	return nil
}

func (m *manager) ApplyChanges(sessionID uint64, hook CommitHook) errors.Error {
	if m.tx == nil {
		return nil
	}
	if m.tx.ownerSession != sessionID {
		return ErrorNotTransactionOwner.Error(nil)
	}

	trustChanged := make(map[pki.Group]bool)
	certChanged := make(map[pki.Group]bool)

	for group, list := range m.tx.stagedTrust {
		if err := m.cfg.PKI.SetTrustList(group, list, pki.TrustList{}); err != nil {
			return err
		}
		trustChanged[group] = true
	}

	for group, sc := range m.tx.stagedCert {
		policy, ok := m.cfg.Policies[group]
		if !ok {
			continue
		}
		if err := policy.UpdateCertificateAndKey(sc.cert, sc.key); err != nil {
			return err
		}
		certChanged[group] = true
	}

	m.tx = nil

	if hook != nil {
		hook(trustChanged, certChanged)
	}
	return nil
}

func (m *manager) Sweep(now time.Time, sessionAlive func(sessionID uint64) bool) bool {
	if m.tx != nil && sessionAlive != nil && !sessionAlive(m.tx.ownerSession) {
		m.tx = nil
		for id, h := range m.handles {
			if h.mode == ModeWrite {
				delete(m.handles, id)
			}
		}
	}
	return m.tx != nil || len(m.handles) > 0
}

// encodeTrustList serializes a TrustList as four length-prefixed DER
// arrays (trusted certs, trusted CRLs -- both folded into Certificates/
// CRLs here since this package stages one combined list per group).
func encodeTrustList(list pki.TrustList) []byte {
	var b []byte
	b = putUint32(b, uint32(len(list.Certificates)))
	for _, c := range list.Certificates {
		b = putBytesField(b, c)
	}
	b = putUint32(b, uint32(len(list.CRLs)))
	for _, c := range list.CRLs {
		b = putBytesField(b, c)
	}
	return b
}

func decodeTrustList(buf []byte) (pki.TrustList, error) {
	var list pki.TrustList

	n, rest, err := getUint32(buf)
	if err != nil {
		return list, err
	}
	for i := uint32(0); i < n; i++ {
		var v []byte
		v, rest, err = getBytesField(rest)
		if err != nil {
			return list, err
		}
		list.Certificates = append(list.Certificates, v)
	}

	n, rest, err = getUint32(rest)
	if err != nil {
		return list, err
	}
	for i := uint32(0); i < n; i++ {
		var v []byte
		v, rest, err = getBytesField(rest)
		if err != nil {
			return list, err
		}
		list.CRLs = append(list.CRLs, v)
	}

	return list, nil
}

func putUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func getUint32(src []byte) (uint32, []byte, error) {
	if len(src) < 4 {
		return 0, nil, errTruncated
	}
	return binary.LittleEndian.Uint32(src[:4]), src[4:], nil
}

func putBytesField(dst, v []byte) []byte {
	dst = putUint32(dst, uint32(len(v)))
	return append(dst, v...)
}

func getBytesField(src []byte) ([]byte, []byte, error) {
	l, rest, err := getUint32(src)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(rest)) < l {
		return nil, nil, errTruncated
	}
	return rest[:l], rest[l:], nil
}
