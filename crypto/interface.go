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

// Package crypto is the CryptoProvider capability interface (spec C1): a
// tagged-error primitive set for hashing, signing, asymmetric/symmetric
// encryption, randomness, and X.509 parsing, on top of which the
// SecurityPolicy (package secpolicy) and PKI/TrustStore (package pki)
// packages are built. No exported primitive panics or returns a bare
// Go error; every failure is a liberr.Error carrying one of this
// package's CodeError values.
package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"time"

	"github.com/nabbar/opcua-core/errors"
)

// HashAlg identifies a digest algorithm.
type HashAlg uint8

const (
	HashSHA1 HashAlg = iota
	HashSHA256
)

// SignAlg identifies an asymmetric signature scheme.
type SignAlg uint8

const (
	SignRSAPKCS1SHA1 SignAlg = iota
	SignRSAPKCS1SHA256
	SignRSAPSSSHA256
)

// Certificate is the parsed view of a DER-encoded X.509 certificate. It is
// immutable after Parse; Raw is always the canonical DER body the
// certificate was parsed from (spec §8: parseCert(der).raw_der == der).
type Certificate struct {
	Raw        []byte
	Thumbprint [20]byte // SHA-1 of Raw
	Subject    pkix.Name
	Issuer     pkix.Name
	NotBefore  time.Time
	NotAfter   time.Time
	KeyUsage   x509.KeyUsage
	IsCA       bool
	SANRaw     []byte // raw v3 subjectAltName extension OCTET body, or nil

	x *x509.Certificate
}

// X509 exposes the underlying parsed certificate for operations this
// package's surface doesn't cover (e.g. detailed SAN typed access).
func (c *Certificate) X509() *x509.Certificate {
	return c.x
}

// SelfSigned reports whether the certificate's issuer and subject DNs are
// identical, the definition used by the PKI verification algorithm (spec
// §4.2 step 6) to distinguish a self-signed root from a cross-signed leaf.
func (c *Certificate) SelfSigned() bool {
	return c.Subject.String() == c.Issuer.String()
}

// IsCertAuthority reports whether the certificate's key usage marks it as
// a CA not usable as an end-entity (spec §4.2 step 7 / §4.10 AddCertificate):
// both KeyCertSign and CRLSign set.
func (c *Certificate) IsCertAuthority() bool {
	const want = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	return c.KeyUsage&want == want
}

// VerifyFlag is a bit in the result of VerifyChain, mirroring the distinct
// failure reasons the PKI algorithm (spec §4.2) must distinguish.
type VerifyFlag uint16

const (
	VerifyOK VerifyFlag = 0
	VerifyExpired VerifyFlag = 1 << iota
	VerifyFuture
	VerifyUntrusted
	VerifyRevoked
	VerifyCRLMissing
	VerifyParseError
)

// Has reports whether f is set in the result.
func (r VerifyFlag) Has(f VerifyFlag) bool {
	return r&f != 0
}

// VerifyOptions configures VerifyChain.
type VerifyOptions struct {
	// MinKeyBits rejects a leaf with an RSA modulus smaller than this.
	MinKeyBits int
	// At pins the verification time; the zero value means time.Now().
	At time.Time
}

// Provider is the CryptoProvider capability set (spec §4.1). A Provider is
// stateless except for its DRBG, and safe for concurrent use.
type Provider interface {
	Hash(alg HashAlg, data []byte) ([]byte, errors.Error)
	HMAC(alg HashAlg, key, data []byte) ([]byte, errors.Error)

	RSASign(key *rsa.PrivateKey, alg SignAlg, digest []byte) ([]byte, errors.Error)
	RSAVerify(pub *rsa.PublicKey, alg SignAlg, digest, sig []byte) errors.Error

	RSAOAEPEncrypt(pub *rsa.PublicKey, mgfHash HashAlg, plaintext []byte) ([]byte, errors.Error)
	RSAOAEPDecrypt(key *rsa.PrivateKey, mgfHash HashAlg, ciphertext []byte) ([]byte, errors.Error)

	RSAPKCS1Encrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, errors.Error)
	RSAPKCS1Decrypt(key *rsa.PrivateKey, ciphertext []byte) ([]byte, errors.Error)

	AESCBCEncrypt(key, iv, plaintext []byte) ([]byte, errors.Error)
	AESCBCDecrypt(key, iv, ciphertext []byte) ([]byte, errors.Error)
	AESCTRCrypt(key, iv, data []byte) ([]byte, errors.Error)

	RandomBytes(n int) ([]byte, errors.Error)

	ParseCertificate(der []byte) (*Certificate, errors.Error)

	// VerifyChain verifies leaf against the given trusted/issuer pools and
	// CRLs (DER-encoded), per a policy's minimum key length. It never
	// itself consults a TrustList or rejected-list; PKI/TrustStore (C2)
	// owns that algorithm and calls this primitive once per candidate
	// anchor set.
	VerifyChain(leaf *Certificate, intermediates, roots []*Certificate, crls [][]byte, opt VerifyOptions) VerifyFlag

	// PHash is the TLS P_HASH construction (spec §4.3): HMAC-chained
	// expansion of secret/seed into outLen bytes of key material.
	PHash(alg HashAlg, secret, seed []byte, outLen int) ([]byte, errors.Error)
}
