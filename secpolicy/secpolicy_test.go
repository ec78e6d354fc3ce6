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

package secpolicy_test

import (
	"crypto/rand"
	"crypto/rsa"

	libcry "github.com/nabbar/opcua-core/crypto"
	libsec "github.com/nabbar/opcua-core/secpolicy"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("secpolicy", func() {
	var prov libcry.Provider

	BeforeEach(func() {
		prov = libcry.New()
	})

	It("rejects an unknown policy URI", func() {
		_, err := libsec.New(prov, libsec.URI("bogus"))
		Expect(err).ToNot(BeNil())
		Expect(err.IsCode(libsec.ErrorUnknownPolicy)).To(BeTrue())
	})

	DescribeTable("asymmetric sign/verify and encrypt/decrypt round-trip",
		func(uri libsec.URI) {
			p, err := libsec.New(prov, uri)
			Expect(err).To(BeNil())

			key, e := rsa.GenerateKey(rand.Reader, 2048)
			Expect(e).ToNot(HaveOccurred())

			sig, serr := p.AsymmetricSign(key, []byte("handshake-payload"))
			Expect(serr).To(BeNil())
			Expect(p.AsymmetricVerify(&key.PublicKey, []byte("handshake-payload"), sig)).To(BeNil())

			ct, eerr := p.AsymmetricEncrypt(&key.PublicKey, []byte("nonce-seed"))
			Expect(eerr).To(BeNil())
			pt, derr := p.AsymmetricDecrypt(key, ct)
			Expect(derr).To(BeNil())
			Expect(pt).To(Equal([]byte("nonce-seed")))
		},
		Entry("Basic128Rsa15", libsec.URIBasic128Rsa15),
		Entry("Basic256", libsec.URIBasic256),
		Entry("Aes256Sha256RsaPss", libsec.URIAes256Sha256RsaPss),
	)

	It("rejects asymmetric operations under the None policy", func() {
		p, _ := libsec.New(prov, libsec.URINone)
		key, _ := rsa.GenerateKey(rand.Reader, 2048)
		_, err := p.AsymmetricSign(key, []byte("x"))
		Expect(err).ToNot(BeNil())
		Expect(err.IsCode(libsec.ErrorOperationNotSupported)).To(BeTrue())
	})

	DescribeTable("symmetric key derivation yields distinctly sized, non-overlapping fields",
		func(uri libsec.URI) {
			p, _ := libsec.New(prov, uri)
			keys, err := p.DeriveSymmetricKeys([]byte("shared-secret"), []byte("client-nonce||server-nonce"))
			Expect(err).To(BeNil())
			Expect(keys.SigningKey).ToNot(BeEmpty())
			Expect(keys.EncryptingKey).ToNot(BeEmpty())
			Expect(keys.IV).ToNot(BeEmpty())
		},
		Entry("Basic128Rsa15", libsec.URIBasic128Rsa15),
		Entry("Basic256", libsec.URIBasic256),
		Entry("Aes256Sha256RsaPss", libsec.URIAes256Sha256RsaPss),
		Entry("PubSubAes128Ctr", libsec.URIPubSubAes128Ctr),
	)

	It("round-trips symmetric sign/verify and encrypt/decrypt for PubSubAes128Ctr", func() {
		p, _ := libsec.New(prov, libsec.URIPubSubAes128Ctr)
		keys, err := p.DeriveSymmetricKeys([]byte("secret"), []byte("seed"))
		Expect(err).To(BeNil())

		mac, serr := p.SymmetricSign(keys.SigningKey, []byte("payload"))
		Expect(serr).To(BeNil())
		Expect(p.SymmetricVerify(keys.SigningKey, []byte("payload"), mac)).To(BeNil())

		ct, eerr := p.SymmetricEncrypt(keys.EncryptingKey, keys.IV, []byte("telemetry-frame!"))
		Expect(eerr).To(BeNil())
		pt, derr := p.SymmetricDecrypt(keys.EncryptingKey, keys.IV, ct)
		Expect(derr).To(BeNil())
		Expect(pt).To(Equal([]byte("telemetry-frame!")))
	})

	It("rejects a tampered MAC", func() {
		p, _ := libsec.New(prov, libsec.URIBasic256)
		keys, _ := p.DeriveSymmetricKeys([]byte("secret"), []byte("seed"))
		mac, _ := p.SymmetricSign(keys.SigningKey, []byte("payload"))
		mac[0] ^= 0xFF
		Expect(p.SymmetricVerify(keys.SigningKey, []byte("payload"), mac)).ToNot(BeNil())
	})

	Context("certificate hot-swap", func() {
		It("stores and replaces the local cert/key pair", func() {
			p, _ := libsec.New(prov, libsec.URIAes256Sha256RsaPss)
			Expect(p.LocalCertificate()).To(BeNil())

			key, _ := rsa.GenerateKey(rand.Reader, 2048)
			Expect(p.UpdateCertificateAndKey(nil, key)).To(BeNil())
			Expect(p.LocalKey()).To(Equal(key))
		})

		It("rejects a key shorter than the policy minimum", func() {
			p, _ := libsec.New(prov, libsec.URIAes256Sha256RsaPss)
			shortKey, _ := rsa.GenerateKey(rand.Reader, 1024)
			err := p.UpdateCertificateAndKey(nil, shortKey)
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(libsec.ErrorInvalidKeyLength)).To(BeTrue())
		})
	})

	Context("Registry", func() {
		It("caches one Policy instance per URI", func() {
			r := libsec.NewRegistry(prov)
			a, err := r.Get(libsec.URIBasic256)
			Expect(err).To(BeNil())
			b, _ := r.Get(libsec.URIBasic256)
			Expect(a).To(BeIdenticalTo(b))
		})
	})
})
