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

package gds_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	libcry "github.com/nabbar/opcua-core/crypto"
	libgds "github.com/nabbar/opcua-core/gds"
	libpki "github.com/nabbar/opcua-core/pki"
	libsec "github.com/nabbar/opcua-core/secpolicy"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func genGDSCert(cn string, isCA bool) ([]byte, *rsa.PrivateKey) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	usage := x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	if isCA {
		usage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano() % 1_000_000),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     usage,
		IsCA:         isCA,
	}
	der, _ := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	return der, key
}

var _ = Describe("gds", func() {
	var prov libcry.Provider
	var store libpki.Store
	var registry libsec.Registry
	var policy libsec.Policy
	var mgr libgds.Manager
	const group = libpki.GroupApplication

	BeforeEach(func() {
		prov = libcry.New()
		store = libpki.New(prov, libpki.Limits{})
		registry = libsec.NewRegistry(prov)
		policy, _ = registry.Get(libsec.URIBasic256)

		mgr = libgds.New(libgds.Config{
			Crypto:           prov,
			PKI:              store,
			Policies:         map[libpki.Group]libsec.Policy{group: policy},
			MinKeyBits:       2048,
			LivenessInterval: 10 * time.Second,
		})
	})

	It("stages and commits a matching certificate+key pair", func() {
		der, key := genGDSCert("new-app-cert", false)
		keyDER := x509.MarshalPKCS1PrivateKey(key)

		required, err := mgr.UpdateCertificate(1, group, "RsaSha256", der, nil, keyDER)
		Expect(err).To(BeNil())
		Expect(required).To(BeTrue())

		var certChanged map[libpki.Group]bool
		aerr := mgr.ApplyChanges(1, func(_ map[libpki.Group]bool, cc map[libpki.Group]bool) {
			certChanged = cc
		})
		Expect(aerr).To(BeNil())
		Expect(certChanged[group]).To(BeTrue())
		Expect(policy.LocalCertificate().Raw).To(Equal(der))
	})

	It("rejects a certificate whose key does not match", func() {
		der, _ := genGDSCert("mismatched", false)
		_, otherKey := genGDSCert("other", false)
		keyDER := x509.MarshalPKCS1PrivateKey(otherKey)

		_, err := mgr.UpdateCertificate(1, group, "RsaSha256", der, nil, keyDER)
		Expect(err).ToNot(BeNil())
	})

	It("fails a second session's transaction while one is pending", func() {
		der, key := genGDSCert("owner", false)
		keyDER := x509.MarshalPKCS1PrivateKey(key)
		_, err := mgr.UpdateCertificate(1, group, "RsaSha256", der, nil, keyDER)
		Expect(err).To(BeNil())

		der2, key2 := genGDSCert("intruder", false)
		keyDER2 := x509.MarshalPKCS1PrivateKey(key2)
		_, err2 := mgr.UpdateCertificate(2, group, "RsaSha256", der2, nil, keyDER2)
		Expect(err2).ToNot(BeNil())
	})

	It("emits a CSR reusing the current certificate's SANs", func() {
		csr, err := mgr.CreateSigningRequest(1, group, "RsaSha256", "CN=server", false, []byte("nonce"))
		Expect(err).To(BeNil())
		Expect(len(csr)).To(BeNumerically(">", 0))

		parsed, perr := x509.ParseCertificateRequest(csr)
		Expect(perr).To(BeNil())
		Expect(parsed.Subject.CommonName).To(Equal("CN=server"))
	})

	It("rejects adding a certificate authority as trusted", func() {
		caDER, _ := genGDSCert("ca", true)
		err := mgr.AddCertificate(1, group, caDER, true)
		Expect(err).ToNot(BeNil())
	})

	It("adds a trusted end-entity certificate", func() {
		der, _ := genGDSCert("trusted-peer", false)
		err := mgr.AddCertificate(1, group, der, true)
		Expect(err).To(BeNil())

		list := store.GetTrustList(group, libpki.MaskTrustedCerts)
		Expect(list.Certificates).To(HaveLen(1))
	})

	It("round-trips a trust list through Open/Read and Write/CloseAndUpdate", func() {
		der, _ := genGDSCert("export-me", false)
		Expect(mgr.AddCertificate(1, group, der, true)).To(BeNil())

		h, err := mgr.Open(1, group, libgds.ModeRead)
		Expect(err).To(BeNil())

		var all []byte
		for {
			chunk, rerr := mgr.Read(1, group, h, 4096)
			Expect(rerr).To(BeNil())
			if len(chunk) == 0 {
				break
			}
			all = append(all, chunk...)
		}
		Expect(mgr.Close(1, group, h)).To(BeNil())
		Expect(len(all)).To(BeNumerically(">", 0))

		wh, werr := mgr.Open(2, group, libgds.ModeWrite)
		Expect(werr).To(BeNil())
		Expect(mgr.Write(2, group, wh, all)).To(BeNil())

		required, uerr := mgr.CloseAndUpdate(2, group, wh)
		Expect(uerr).To(BeNil())
		Expect(required).To(BeTrue())

		var trustChanged map[libpki.Group]bool
		aerr := mgr.ApplyChanges(2, func(tc map[libpki.Group]bool, _ map[libpki.Group]bool) {
			trustChanged = tc
		})
		Expect(aerr).To(BeNil())
		Expect(trustChanged[group]).To(BeTrue())
	})

	It("rejects AddCertificate while the object has an open handle", func() {
		h, err := mgr.Open(1, group, libgds.ModeRead)
		Expect(err).To(BeNil())

		der, _ := genGDSCert("blocked", false)
		aerr := mgr.AddCertificate(1, group, der, true)
		Expect(aerr).ToNot(BeNil())

		Expect(mgr.Close(1, group, h)).To(BeNil())
	})

	It("cancels the transaction and its write handle on Close", func() {
		der, key := genGDSCert("abandoned", false)
		keyDER := x509.MarshalPKCS1PrivateKey(key)
		_, _ = mgr.UpdateCertificate(1, group, "RsaSha256", der, nil, keyDER)

		wh, werr := mgr.Open(1, group, libgds.ModeWrite)
		Expect(werr).To(BeNil())
		Expect(mgr.Close(1, group, wh)).To(BeNil())

		// transaction gone: a new session can now open one immediately.
		_, err := mgr.Open(2, group, libgds.ModeWrite)
		Expect(err).To(BeNil())
	})

	It("discards a stale transaction once its owning session is gone", func() {
		der, key := genGDSCert("stale", false)
		keyDER := x509.MarshalPKCS1PrivateKey(key)
		_, _ = mgr.UpdateCertificate(1, group, "RsaSha256", der, nil, keyDER)

		remaining := mgr.Sweep(time.Now(), func(sessionID uint64) bool { return false })
		Expect(remaining).To(BeFalse())

		_, err := mgr.Open(2, group, libgds.ModeWrite)
		Expect(err).To(BeNil())
	})

	It("keeps a live transaction across a sweep", func() {
		der, key := genGDSCert("alive", false)
		keyDER := x509.MarshalPKCS1PrivateKey(key)
		_, _ = mgr.UpdateCertificate(1, group, "RsaSha256", der, nil, keyDER)

		remaining := mgr.Sweep(time.Now(), func(sessionID uint64) bool { return true })
		Expect(remaining).To(BeTrue())

		_, err := mgr.Open(2, group, libgds.ModeWrite)
		Expect(err).ToNot(BeNil())
	})
})
