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

package pki

import (
	"crypto/x509"
	"sync"

	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/errors"
	"github.com/nabbar/opcua-core/statuscode"
)

type groupState struct {
	trustedCerts [][]byte
	trustedCRLs  [][]byte
	issuerCerts  [][]byte
	issuerCRLs   [][]byte
	rejected     [][]byte
}

type store struct {
	mu     sync.RWMutex
	prov   libcry.Provider
	limits Limits
	groups map[Group]*groupState
}

// New returns a Store backed by the given CryptoProvider, applying limits
// to every group it lazily creates on first use.
func New(prov libcry.Provider, limits Limits) Store {
	return &store{
		prov:   prov,
		limits: limits,
		groups: make(map[Group]*groupState),
	}
}

func (s *store) group(g Group) *groupState {
	if gs, ok := s.groups[g]; ok {
		return gs
	}
	gs := &groupState{}
	s.groups[g] = gs
	return gs
}

func (s *store) GetTrustList(g Group, mask Mask) TrustList {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gs := s.groups[g]
	if gs == nil {
		return TrustList{}
	}

	var out TrustList
	if mask&MaskTrustedCerts != 0 {
		out.Certificates = append(out.Certificates, gs.trustedCerts...)
	}
	if mask&MaskIssuerCerts != 0 {
		out.Certificates = append(out.Certificates, gs.issuerCerts...)
	}
	if mask&MaskTrustedCRLs != 0 {
		out.CRLs = append(out.CRLs, gs.trustedCRLs...)
	}
	if mask&MaskIssuerCRLs != 0 {
		out.CRLs = append(out.CRLs, gs.issuerCRLs...)
	}
	return out
}

func aggregateSize(l TrustList) int {
	n := 0
	for _, c := range l.Certificates {
		n += len(c)
	}
	for _, c := range l.CRLs {
		n += len(c)
	}
	return n
}

func (s *store) SetTrustList(g Group, trusted, issuer TrustList) errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limits.MaxTrustListSize != 0 && aggregateSize(trusted)+aggregateSize(issuer) > s.limits.MaxTrustListSize {
		return ErrorTrustListTooLarge.Error(nil)
	}

	gs := s.group(g)
	gs.trustedCerts = append([][]byte(nil), trusted.Certificates...)
	gs.trustedCRLs = append([][]byte(nil), trusted.CRLs...)
	gs.issuerCerts = append([][]byte(nil), issuer.Certificates...)
	gs.issuerCRLs = append([][]byte(nil), issuer.CRLs...)
	return nil
}

func (s *store) AddToTrustList(g Group, trusted, issuer TrustList) errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gs := s.group(g)
	merged := TrustList{
		Certificates: unionDER(append([][]byte(nil), gs.trustedCerts...), trusted.Certificates),
		CRLs:         unionDER(append([][]byte(nil), gs.trustedCRLs...), trusted.CRLs),
	}
	mergedIssuer := TrustList{
		Certificates: unionDER(append([][]byte(nil), gs.issuerCerts...), issuer.Certificates),
		CRLs:         unionDER(append([][]byte(nil), gs.issuerCRLs...), issuer.CRLs),
	}

	if s.limits.MaxTrustListSize != 0 && aggregateSize(merged)+aggregateSize(mergedIssuer) > s.limits.MaxTrustListSize {
		return ErrorTrustListTooLarge.Error(nil)
	}

	gs.trustedCerts, gs.trustedCRLs = merged.Certificates, merged.CRLs
	gs.issuerCerts, gs.issuerCRLs = mergedIssuer.Certificates, mergedIssuer.CRLs
	return nil
}

func (s *store) RemoveFromTrustList(g Group, trusted, issuer TrustList) errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gs := s.group(g)
	gs.trustedCerts = diffDER(gs.trustedCerts, trusted.Certificates)
	gs.trustedCRLs = diffDER(gs.trustedCRLs, trusted.CRLs)
	gs.issuerCerts = diffDER(gs.issuerCerts, issuer.Certificates)
	gs.issuerCRLs = diffDER(gs.issuerCRLs, issuer.CRLs)
	return nil
}

func (s *store) GetRejectedList(g Group) [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gs := s.groups[g]
	if gs == nil {
		return nil
	}
	return append([][]byte(nil), gs.rejected...)
}

func (s *store) AddToRejectedList(g Group, der []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gs := s.group(g)
	if containsDER(gs.rejected, der) {
		return
	}

	gs.rejected = append(gs.rejected, der)
	if s.limits.MaxRejectedListSize > 0 && len(gs.rejected) > s.limits.MaxRejectedListSize {
		gs.rejected = gs.rejected[len(gs.rejected)-s.limits.MaxRejectedListSize:]
	}
}

// crlIssuedBy reports whether any CRL in crls was issued by the DN subject.
func crlIssuedBy(crls [][]byte, subjectDN string) bool {
	for _, raw := range crls {
		list, e := x509.ParseRevocationList(raw)
		if e != nil {
			continue
		}
		if list.Issuer.String() == subjectDN {
			return true
		}
	}
	return false
}

func certPool(prov libcry.Provider, ders [][]byte) []*libcry.Certificate {
	out := make([]*libcry.Certificate, 0, len(ders))
	for _, d := range ders {
		if c, e := prov.ParseCertificate(d); e == nil {
			out = append(out, c)
		}
	}
	return out
}

const timeFlags = libcry.VerifyExpired | libcry.VerifyFuture

func (s *store) VerifyCertificate(g Group, der []byte, minKeyBits int) statuscode.Kind {
	leaf, e := s.prov.ParseCertificate(der)
	if e != nil {
		return statuscode.KindSecurityChecksFailed
	}

	s.mu.RLock()
	gs := s.groups[g]
	s.mu.RUnlock()

	if gs == nil || (len(gs.trustedCerts) == 0 && len(gs.trustedCRLs) == 0 && len(gs.issuerCerts) == 0 && len(gs.issuerCRLs) == 0) {
		return statuscode.KindNone
	}

	opt := libcry.VerifyOptions{MinKeyBits: minKeyBits}
	trustedPool := certPool(s.prov, gs.trustedCerts)

	flags := s.prov.VerifyChain(leaf, nil, trustedPool, gs.trustedCRLs, opt)

	selfTrusted := flags != libcry.VerifyOK && flags&^timeFlags == 0 && containsDER(gs.trustedCerts, der)

	var kind statuscode.Kind

	switch {
	case selfTrusted:
		issuerPool := certPool(s.prov, gs.issuerCerts)
		issuerFlags := s.prov.VerifyChain(leaf, nil, issuerPool, gs.issuerCRLs, opt)

		if issuerFlags == libcry.VerifyOK {
			// The grandparent-promotion step (spec §4.2.5a) only affects
			// which pool a future re-verification treats as the anchor;
			// the CRL-by-issuer-DN check below is what actually gates
			// this decision and needs no grandparent lookup to do it.
			if !crlIssuedBy(gs.issuerCRLs, leaf.Issuer.String()) {
				kind = statuscode.KindCertificateIssuerRevocationUnknown
			}
		} else {
			kind = mapFlags(issuerFlags)
		}
	case flags == libcry.VerifyOK:
		if leaf.Issuer.String() != leaf.Subject.String() {
			if !crlIssuedBy(gs.trustedCRLs, leaf.Issuer.String()) {
				kind = statuscode.KindCertificateRevocationUnknown
			}
		}
	default:
		kind = mapFlags(flags)
	}

	if kind == statuscode.KindNone && leaf.IsCertAuthority() {
		kind = statuscode.KindCertificateUseNotAllowed
	}

	if statuscode.Rejectable(kind) {
		s.AddToRejectedList(g, der)
	}

	return kind
}

func mapFlags(flags libcry.VerifyFlag) statuscode.Kind {
	switch {
	case flags.Has(libcry.VerifyRevoked) || flags.Has(libcry.VerifyCRLMissing):
		return statuscode.KindCertificateRevoked
	case flags.Has(libcry.VerifyUntrusted):
		return statuscode.KindCertificateUntrusted
	case flags.Has(libcry.VerifyExpired) || flags.Has(libcry.VerifyFuture):
		return statuscode.KindCertificateTimeInvalid
	default:
		return statuscode.KindSecurityChecksFailed
	}
}

func (s *store) VerifyApplicationURI(cert *libcry.Certificate, uri string) bool {
	if cert == nil || len(cert.SANRaw) == 0 {
		return false
	}
	return containsSubstring(cert.SANRaw, uri)
}
