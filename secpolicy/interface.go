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

// Package secpolicy binds concrete algorithms to the CryptoProvider
// primitives (spec C3): the fixed policy table (None, Basic128Rsa15,
// Basic256, Aes256Sha256RsaPss, PubSubAes128Ctr), symmetric key
// derivation via P_HASH, and the local certificate+key hot-swap.
package secpolicy

import (
	"crypto/rsa"

	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/errors"
)

// URI identifies a policy the way it appears on the wire.
type URI string

const (
	URINone               URI = "http://opcfoundation.org/UA/SecurityPolicy#None"
	URIBasic128Rsa15      URI = "http://opcfoundation.org/UA/SecurityPolicy#Basic128Rsa15"
	URIBasic256           URI = "http://opcfoundation.org/UA/SecurityPolicy#Basic256"
	URIAes256Sha256RsaPss URI = "http://opcfoundation.org/UA/SecurityPolicy#Aes256Sha256RsaPss"
	URIPubSubAes128Ctr    URI = "http://opcfoundation.org/UA/PubSub#Aes128CTR"
)

// KeyLengths bounds the leaf RSA modulus this policy will accept.
type KeyLengths struct {
	MinBits int
	MaxBits int
}

// SymmetricKeyLengths gives the byte lengths P_HASH output is sliced into:
// signing key | encrypting key | IV.
type SymmetricKeyLengths struct {
	SigningKeyLen    int
	EncryptingKeyLen int
	IVLen            int
}

// SymmetricKeys is the result of one key-derivation round (spec §4.3/§4.5):
// distinct material for each direction (client-to-server, server-to-client).
type SymmetricKeys struct {
	SigningKey    []byte
	EncryptingKey []byte
	IV            []byte
}

// Policy is the bound algorithm set for one SecurityPolicy URI. It is
// immutable except for the local cert/key pair, which is hot-swappable.
type Policy interface {
	URI() URI
	KeyLengths() KeyLengths
	HashAlg() libcry.HashAlg

	// AsymmetricSign/Verify sign or verify an OPN handshake payload with
	// the local/remote certificate's key, per this policy's asym-sig alg.
	AsymmetricSign(key *rsa.PrivateKey, data []byte) ([]byte, errors.Error)
	AsymmetricVerify(pub *rsa.PublicKey, data, sig []byte) errors.Error

	// AsymmetricEncrypt/Decrypt wrap the OPN handshake's symmetric seed
	// exchange, per this policy's asym-enc alg.
	AsymmetricEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, errors.Error)
	AsymmetricDecrypt(key *rsa.PrivateKey, ciphertext []byte) ([]byte, errors.Error)

	// DeriveSymmetricKeys runs P_HASH(secret, seed) and slices the
	// output per this policy's SymmetricKeyLengths.
	DeriveSymmetricKeys(secret, seed []byte) (SymmetricKeys, errors.Error)

	// SymmetricSign/Verify MAC a MSG/CLO chunk body with the derived
	// signing key, per this policy's sym-sig alg.
	SymmetricSign(signingKey, data []byte) ([]byte, errors.Error)
	SymmetricVerify(signingKey, data, mac []byte) errors.Error

	// SymmetricEncrypt/Decrypt apply the policy's sym-enc alg (AES-CBC
	// or AES-CTR) using the derived encrypting key and IV.
	SymmetricEncrypt(encryptingKey, iv, plaintext []byte) ([]byte, errors.Error)
	SymmetricDecrypt(encryptingKey, iv, ciphertext []byte) ([]byte, errors.Error)

	// LocalCertificate/LocalKey return the currently-bound application
	// instance certificate and private key for this policy, or nil for
	// the None policy.
	LocalCertificate() *libcry.Certificate
	LocalKey() *rsa.PrivateKey

	// UpdateCertificateAndKey hot-swaps the local cert/key pair (spec
	// §4.3); the caller (server glue) is responsible for tearing down
	// every open SecureChannel bound to this policy afterward.
	UpdateCertificateAndKey(cert *libcry.Certificate, key *rsa.PrivateKey) errors.Error
}

// Registry resolves a SecurityPolicy URI to its bound Policy.
type Registry interface {
	Get(uri URI) (Policy, errors.Error)
}
