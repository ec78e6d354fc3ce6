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

package secpolicy

import (
	"crypto/rsa"
	"sync"

	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/errors"
)

type asymEncMode uint8

const (
	asymEncNone asymEncMode = iota
	asymEncOAEP
	asymEncPKCS1
)

type symEncMode uint8

const (
	symEncNone symEncMode = iota
	symEncCBC
	symEncCTR
)

type policy struct {
	uri        URI
	hashAlg    libcry.HashAlg
	signAlg    libcry.SignAlg
	asymEnc    asymEncMode
	symEnc     symEncMode
	keyLen     KeyLengths
	symKeyLen  SymmetricKeyLengths
	prov       libcry.Provider

	mu   sync.RWMutex
	cert *libcry.Certificate
	key  *rsa.PrivateKey
}

// New builds the Policy bound to uri against prov. Returns
// ErrorUnknownPolicy for any URI outside the fixed table (spec §4.3).
func New(prov libcry.Provider, uri URI) (Policy, errors.Error) {
	switch uri {
	case URINone:
		return &policy{uri: uri, prov: prov}, nil
	case URIBasic128Rsa15:
		return &policy{
			uri: uri, prov: prov,
			hashAlg: libcry.HashSHA1, signAlg: libcry.SignRSAPKCS1SHA1,
			asymEnc: asymEncPKCS1, symEnc: symEncCBC,
			keyLen:    KeyLengths{MinBits: 1024, MaxBits: 2048},
			symKeyLen: SymmetricKeyLengths{SigningKeyLen: 20, EncryptingKeyLen: 16, IVLen: 16},
		}, nil
	case URIBasic256:
		return &policy{
			uri: uri, prov: prov,
			hashAlg: libcry.HashSHA1, signAlg: libcry.SignRSAPKCS1SHA1,
			asymEnc: asymEncOAEP, symEnc: symEncCBC,
			keyLen:    KeyLengths{MinBits: 1024, MaxBits: 4096},
			symKeyLen: SymmetricKeyLengths{SigningKeyLen: 20, EncryptingKeyLen: 32, IVLen: 16},
		}, nil
	case URIAes256Sha256RsaPss:
		return &policy{
			uri: uri, prov: prov,
			hashAlg: libcry.HashSHA256, signAlg: libcry.SignRSAPSSSHA256,
			asymEnc: asymEncOAEP, symEnc: symEncCBC,
			keyLen:    KeyLengths{MinBits: 2048, MaxBits: 4096},
			symKeyLen: SymmetricKeyLengths{SigningKeyLen: 32, EncryptingKeyLen: 32, IVLen: 16},
		}, nil
	case URIPubSubAes128Ctr:
		return &policy{
			uri: uri, prov: prov,
			hashAlg: libcry.HashSHA256,
			asymEnc: asymEncNone, symEnc: symEncCTR,
			symKeyLen: SymmetricKeyLengths{SigningKeyLen: 32, EncryptingKeyLen: 16, IVLen: 16},
		}, nil
	}

	return nil, ErrorUnknownPolicy.Error(nil)
}

func (p *policy) URI() URI                    { return p.uri }
func (p *policy) KeyLengths() KeyLengths      { return p.keyLen }
func (p *policy) HashAlg() libcry.HashAlg     { return p.hashAlg }

func (p *policy) AsymmetricSign(key *rsa.PrivateKey, data []byte) ([]byte, errors.Error) {
	if p.uri == URINone || p.uri == URIPubSubAes128Ctr {
		return nil, ErrorOperationNotSupported.Error(nil)
	}
	digest, e := p.prov.Hash(p.hashAlg, data)
	if e != nil {
		return nil, e
	}
	return p.prov.RSASign(key, p.signAlg, digest)
}

func (p *policy) AsymmetricVerify(pub *rsa.PublicKey, data, sig []byte) errors.Error {
	if p.uri == URINone || p.uri == URIPubSubAes128Ctr {
		return ErrorOperationNotSupported.Error(nil)
	}
	digest, e := p.prov.Hash(p.hashAlg, data)
	if e != nil {
		return e
	}
	return p.prov.RSAVerify(pub, p.signAlg, digest, sig)
}

func (p *policy) AsymmetricEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, errors.Error) {
	switch p.asymEnc {
	case asymEncOAEP:
		return p.prov.RSAOAEPEncrypt(pub, p.hashAlg, plaintext)
	case asymEncPKCS1:
		return p.prov.RSAPKCS1Encrypt(pub, plaintext)
	}
	return nil, ErrorOperationNotSupported.Error(nil)
}

func (p *policy) AsymmetricDecrypt(key *rsa.PrivateKey, ciphertext []byte) ([]byte, errors.Error) {
	switch p.asymEnc {
	case asymEncOAEP:
		return p.prov.RSAOAEPDecrypt(key, p.hashAlg, ciphertext)
	case asymEncPKCS1:
		return p.prov.RSAPKCS1Decrypt(key, ciphertext)
	}
	return nil, ErrorOperationNotSupported.Error(nil)
}

func (p *policy) DeriveSymmetricKeys(secret, seed []byte) (SymmetricKeys, errors.Error) {
	if p.uri == URINone {
		return SymmetricKeys{}, ErrorOperationNotSupported.Error(nil)
	}

	total := p.symKeyLen.SigningKeyLen + p.symKeyLen.EncryptingKeyLen + p.symKeyLen.IVLen
	out, e := p.prov.PHash(p.hashAlg, secret, seed, total)
	if e != nil {
		return SymmetricKeys{}, e
	}

	sk := out[:p.symKeyLen.SigningKeyLen]
	ek := out[p.symKeyLen.SigningKeyLen : p.symKeyLen.SigningKeyLen+p.symKeyLen.EncryptingKeyLen]
	iv := out[p.symKeyLen.SigningKeyLen+p.symKeyLen.EncryptingKeyLen:]

	return SymmetricKeys{SigningKey: sk, EncryptingKey: ek, IV: iv}, nil
}

func (p *policy) SymmetricSign(signingKey, data []byte) ([]byte, errors.Error) {
	if p.uri == URINone {
		return nil, ErrorOperationNotSupported.Error(nil)
	}
	return p.prov.HMAC(p.hashAlg, signingKey, data)
}

func (p *policy) SymmetricVerify(signingKey, data, mac []byte) errors.Error {
	if p.uri == URINone {
		return ErrorOperationNotSupported.Error(nil)
	}
	want, e := p.prov.HMAC(p.hashAlg, signingKey, data)
	if e != nil {
		return e
	}
	if !libcry.VerifyMAC(want, mac) {
		return ErrorInvalidKeyLength.Error(nil)
	}
	return nil
}

func (p *policy) SymmetricEncrypt(encryptingKey, iv, plaintext []byte) ([]byte, errors.Error) {
	switch p.symEnc {
	case symEncCBC:
		return p.prov.AESCBCEncrypt(encryptingKey, iv, plaintext)
	case symEncCTR:
		return p.prov.AESCTRCrypt(encryptingKey, iv, plaintext)
	}
	return nil, ErrorOperationNotSupported.Error(nil)
}

func (p *policy) SymmetricDecrypt(encryptingKey, iv, ciphertext []byte) ([]byte, errors.Error) {
	switch p.symEnc {
	case symEncCBC:
		return p.prov.AESCBCDecrypt(encryptingKey, iv, ciphertext)
	case symEncCTR:
		return p.prov.AESCTRCrypt(encryptingKey, iv, ciphertext)
	}
	return nil, ErrorOperationNotSupported.Error(nil)
}

func (p *policy) LocalCertificate() *libcry.Certificate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cert
}

func (p *policy) LocalKey() *rsa.PrivateKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.key
}

func (p *policy) UpdateCertificateAndKey(cert *libcry.Certificate, key *rsa.PrivateKey) errors.Error {
	if p.keyLen.MinBits > 0 && key != nil {
		bits := key.N.BitLen()
		if bits < p.keyLen.MinBits || (p.keyLen.MaxBits > 0 && bits > p.keyLen.MaxBits) {
			return ErrorInvalidKeyLength.Error(nil)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cert, p.key = cert, key
	return nil
}

type registry struct {
	prov libcry.Provider
	mu   sync.Mutex
	reg  map[URI]Policy
}

// NewRegistry returns a Registry that lazily builds and caches one
// Policy per URI, so every SecureChannel sharing a policy shares its
// hot-swapped certificate/key pair too.
func NewRegistry(prov libcry.Provider) Registry {
	return &registry{prov: prov, reg: make(map[URI]Policy)}
}

func (r *registry) Get(uri URI) (Policy, errors.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.reg[uri]; ok {
		return p, nil
	}

	p, e := New(r.prov, uri)
	if e != nil {
		return nil, e
	}

	r.reg[uri] = p
	return p, nil
}
