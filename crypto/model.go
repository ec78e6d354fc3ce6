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

package crypto

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	cryptoRand "crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/asn1"
	"io"
	"time"

	liberr "github.com/nabbar/opcua-core/errors"
)

type model struct {
	rnd io.Reader
}

// New returns a Provider backed by the Go standard library's crypto
// primitives, matching the teacher's own crypt package convention of
// calling directly into crypto/aes, crypto/cipher and crypto/rand rather
// than through a third-party crypto primitives library.
func New() Provider {
	return &model{rnd: cryptoRand.Reader}
}

func goHash(alg HashAlg) crypto.Hash {
	switch alg {
	case HashSHA1:
		return crypto.SHA1
	case HashSHA256:
		return crypto.SHA256
	}
	return 0
}

func (m *model) Hash(alg HashAlg, data []byte) ([]byte, liberr.Error) {
	switch alg {
	case HashSHA1:
		h := sha1.Sum(data)
		return h[:], nil
	case HashSHA256:
		h := sha256.Sum256(data)
		return h[:], nil
	}
	return nil, ErrorUnsupportedAlgorithm.Error(nil)
}

func (m *model) HMAC(alg HashAlg, key, data []byte) ([]byte, liberr.Error) {
	var mac hash
	switch alg {
	case HashSHA1:
		mac = hmac.New(sha1.New, key)
	case HashSHA256:
		mac = hmac.New(sha256.New, key)
	default:
		return nil, ErrorUnsupportedAlgorithm.Error(nil)
	}

	if _, e := mac.Write(data); e != nil {
		return nil, ErrorHashFailed.Error(e)
	}

	return mac.Sum(nil), nil
}

// hash is the subset of hash.Hash this package needs, named locally so
// HMAC above can be written without importing the stdlib hash package
// purely for a type alias.
type hash interface {
	io.Writer
	Sum(b []byte) []byte
}

// VerifyMAC performs a constant-time comparison of two MACs, as required
// for any MAC/signature verification path (timing side-channel hygiene).
func VerifyMAC(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

func (m *model) RSASign(key *rsa.PrivateKey, alg SignAlg, digest []byte) ([]byte, liberr.Error) {
	if key == nil {
		return nil, ErrorSignFailed.Error(nil)
	}

	switch alg {
	case SignRSAPKCS1SHA1:
		sig, e := rsa.SignPKCS1v15(m.rnd, key, crypto.SHA1, digest)
		if e != nil {
			return nil, ErrorSignFailed.Error(e)
		}
		return sig, nil
	case SignRSAPKCS1SHA256:
		sig, e := rsa.SignPKCS1v15(m.rnd, key, crypto.SHA256, digest)
		if e != nil {
			return nil, ErrorSignFailed.Error(e)
		}
		return sig, nil
	case SignRSAPSSSHA256:
		sig, e := rsa.SignPSS(m.rnd, key, crypto.SHA256, digest, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256})
		if e != nil {
			return nil, ErrorSignFailed.Error(e)
		}
		return sig, nil
	}

	return nil, ErrorUnsupportedAlgorithm.Error(nil)
}

func (m *model) RSAVerify(pub *rsa.PublicKey, alg SignAlg, digest, sig []byte) liberr.Error {
	if pub == nil {
		return ErrorVerifyFailed.Error(nil)
	}

	var e error
	switch alg {
	case SignRSAPKCS1SHA1:
		e = rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest, sig)
	case SignRSAPKCS1SHA256:
		e = rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, sig)
	case SignRSAPSSSHA256:
		e = rsa.VerifyPSS(pub, crypto.SHA256, digest, sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256})
	default:
		return ErrorUnsupportedAlgorithm.Error(nil)
	}

	if e != nil {
		return ErrorVerifyFailed.Error(e)
	}

	return nil
}

func (m *model) RSAOAEPEncrypt(pub *rsa.PublicKey, mgfHash HashAlg, plaintext []byte) ([]byte, liberr.Error) {
	if pub == nil {
		return nil, ErrorEncryptFailed.Error(nil)
	}

	h := goHash(mgfHash)
	if h == 0 {
		return nil, ErrorUnsupportedAlgorithm.Error(nil)
	}

	out, e := rsa.EncryptOAEP(h.New(), m.rnd, pub, plaintext, nil)
	if e != nil {
		return nil, ErrorEncryptFailed.Error(e)
	}
	return out, nil
}

func (m *model) RSAOAEPDecrypt(key *rsa.PrivateKey, mgfHash HashAlg, ciphertext []byte) ([]byte, liberr.Error) {
	if key == nil {
		return nil, ErrorDecryptFailed.Error(nil)
	}

	h := goHash(mgfHash)
	if h == 0 {
		return nil, ErrorUnsupportedAlgorithm.Error(nil)
	}

	out, e := rsa.DecryptOAEP(h.New(), m.rnd, key, ciphertext, nil)
	if e != nil {
		return nil, ErrorDecryptFailed.Error(e)
	}
	return out, nil
}

func (m *model) RSAPKCS1Encrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, liberr.Error) {
	if pub == nil {
		return nil, ErrorEncryptFailed.Error(nil)
	}

	out, e := rsa.EncryptPKCS1v15(m.rnd, pub, plaintext)
	if e != nil {
		return nil, ErrorEncryptFailed.Error(e)
	}
	return out, nil
}

func (m *model) RSAPKCS1Decrypt(key *rsa.PrivateKey, ciphertext []byte) ([]byte, liberr.Error) {
	if key == nil {
		return nil, ErrorDecryptFailed.Error(nil)
	}

	out, e := rsa.DecryptPKCS1v15(m.rnd, key, ciphertext)
	if e != nil {
		return nil, ErrorDecryptFailed.Error(e)
	}
	return out, nil
}

func (m *model) AESCBCEncrypt(key, iv, plaintext []byte) ([]byte, liberr.Error) {
	blk, e := aes.NewCipher(key)
	if e != nil {
		return nil, ErrorEncryptFailed.Error(e)
	}

	if len(plaintext)%blk.BlockSize() != 0 {
		return nil, ErrorInvalidBlockSize.Error(nil)
	}
	if len(iv) != blk.BlockSize() {
		return nil, ErrorEncryptFailed.Error(nil)
	}

	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(blk, iv).CryptBlocks(out, plaintext)
	return out, nil
}

func (m *model) AESCBCDecrypt(key, iv, ciphertext []byte) ([]byte, liberr.Error) {
	blk, e := aes.NewCipher(key)
	if e != nil {
		return nil, ErrorDecryptFailed.Error(e)
	}

	if len(ciphertext)%blk.BlockSize() != 0 {
		return nil, ErrorInvalidBlockSize.Error(nil)
	}
	if len(iv) != blk.BlockSize() {
		return nil, ErrorDecryptFailed.Error(nil)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(blk, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

// AESCTRCrypt runs AES-CTR, which is its own inverse: the same call
// encrypts or decrypts depending on whether data is plaintext or
// ciphertext.
func (m *model) AESCTRCrypt(key, iv, data []byte) ([]byte, liberr.Error) {
	blk, e := aes.NewCipher(key)
	if e != nil {
		return nil, ErrorEncryptFailed.Error(e)
	}
	if len(iv) != blk.BlockSize() {
		return nil, ErrorEncryptFailed.Error(nil)
	}

	out := make([]byte, len(data))
	cipher.NewCTR(blk, iv).XORKeyStream(out, data)
	return out, nil
}

func (m *model) RandomBytes(n int) ([]byte, liberr.Error) {
	if n < 0 {
		return nil, ErrorRandomFailed.Error(nil)
	}

	b := make([]byte, n)
	if _, e := io.ReadFull(m.rnd, b); e != nil {
		return nil, ErrorRandomFailed.Error(e)
	}
	return b, nil
}

func (m *model) ParseCertificate(der []byte) (*Certificate, liberr.Error) {
	x, e := x509.ParseCertificate(der)
	if e != nil {
		return nil, ErrorCertParse.Error(e)
	}

	c := &Certificate{
		Raw:       append([]byte(nil), der...),
		Subject:   x.Subject,
		Issuer:    x.Issuer,
		NotBefore: x.NotBefore,
		NotAfter:  x.NotAfter,
		KeyUsage:  x.KeyUsage,
		IsCA:      x.IsCA,
		x:         x,
	}
	c.Thumbprint = sha1.Sum(der)

	for _, ext := range x.Extensions {
		if ext.Id.Equal(asn1.ObjectIdentifier{2, 5, 29, 17}) {
			c.SANRaw = ext.Value
			break
		}
	}

	return c, nil
}

func (m *model) VerifyChain(leaf *Certificate, intermediates, roots []*Certificate, crls [][]byte, opt VerifyOptions) VerifyFlag {
	if leaf == nil || leaf.x == nil {
		return VerifyParseError
	}

	at := opt.At
	if at.IsZero() {
		at = time.Now()
	}

	var flags VerifyFlag

	if at.Before(leaf.NotBefore) {
		flags |= VerifyFuture
	}
	if at.After(leaf.NotAfter) {
		flags |= VerifyExpired
	}

	if opt.MinKeyBits > 0 {
		if pub, ok := leaf.x.PublicKey.(*rsa.PublicKey); ok && pub.N.BitLen() < opt.MinKeyBits {
			flags |= VerifyUntrusted
		}
	}

	interPool := x509.NewCertPool()
	for _, c := range intermediates {
		if c != nil && c.x != nil {
			interPool.AddCert(c.x)
		}
	}

	rootPool := x509.NewCertPool()
	for _, c := range roots {
		if c != nil && c.x != nil {
			rootPool.AddCert(c.x)
		}
	}

	if _, e := leaf.x.Verify(x509.VerifyOptions{
		Intermediates: interPool,
		Roots:         rootPool,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); e != nil && flags&(VerifyExpired|VerifyFuture) == 0 {
		flags |= VerifyUntrusted
	}

	flags |= checkRevocation(leaf, crls)

	return flags
}

func checkRevocation(leaf *Certificate, crls [][]byte) VerifyFlag {
	if len(crls) == 0 {
		return VerifyCRLMissing
	}

	for _, raw := range crls {
		list, e := x509.ParseRevocationList(raw)
		if e != nil {
			continue
		}
		for _, rc := range list.RevokedCertificateEntries {
			if rc.SerialNumber != nil && leaf.x.SerialNumber != nil && rc.SerialNumber.Cmp(leaf.x.SerialNumber) == 0 {
				return VerifyRevoked
			}
		}
	}

	return VerifyOK
}

func (m *model) PHash(alg HashAlg, secret, seed []byte, outLen int) ([]byte, liberr.Error) {
	var hFn func(key []byte) hash
	switch alg {
	case HashSHA1:
		hFn = func(key []byte) hash { return hmac.New(sha1.New, key) }
	case HashSHA256:
		hFn = func(key []byte) hash { return hmac.New(sha256.New, key) }
	default:
		return nil, ErrorUnsupportedAlgorithm.Error(nil)
	}

	out := make([]byte, 0, outLen)

	a := seed
	for len(out) < outLen {
		hm := hFn(secret)
		if _, e := hm.Write(a); e != nil {
			return nil, ErrorKeyDeriveFailed.Error(e)
		}
		a = hm.Sum(nil)

		hm2 := hFn(secret)
		if _, e := hm2.Write(a); e != nil {
			return nil, ErrorKeyDeriveFailed.Error(e)
		}
		if _, e := hm2.Write(seed); e != nil {
			return nil, ErrorKeyDeriveFailed.Error(e)
		}
		out = append(out, hm2.Sum(nil)...)
	}

	return out[:outLen], nil
}
