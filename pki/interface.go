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

// Package pki implements the PKI/TrustStore capability (spec C2): per-group
// trusted/issuer certificate and CRL lists, a bounded rejected-certificate
// FIFO, and the certificate verification algorithm OPC UA servers run on
// every incoming application instance certificate.
package pki

import (
	"strings"

	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/errors"
	"github.com/nabbar/opcua-core/statuscode"
)

// Group identifies one of the standard certificate groups a server keeps
// distinct trust state for.
type Group uint8

const (
	GroupApplication Group = iota
	GroupHTTPS
	GroupUserToken
)

// TrustList is a raw-DER snapshot of one list (trusted or issuer certs/CRLs).
type TrustList struct {
	Certificates [][]byte
	CRLs         [][]byte
}

// Mask selects which parts of a TrustList get_trust_list returns.
type Mask uint8

const (
	MaskTrustedCerts Mask = 1 << iota
	MaskTrustedCRLs
	MaskIssuerCerts
	MaskIssuerCRLs
)

const MaskAll = MaskTrustedCerts | MaskTrustedCRLs | MaskIssuerCerts | MaskIssuerCRLs

// Store is the PKI/TrustStore capability set. A Store is safe for
// concurrent use; all mutating operations take an internal lock.
type Store interface {
	GetTrustList(g Group, mask Mask) TrustList
	SetTrustList(g Group, trusted, issuer TrustList) errors.Error
	AddToTrustList(g Group, trusted, issuer TrustList) errors.Error
	RemoveFromTrustList(g Group, trusted, issuer TrustList) errors.Error

	GetRejectedList(g Group) [][]byte
	AddToRejectedList(g Group, der []byte)

	// VerifyCertificate runs the certificate verification algorithm
	// (spec §4.2) and returns the resulting status code kind. A
	// rejectable outcome also appends der to the group's rejected list.
	VerifyCertificate(g Group, der []byte, minKeyBits int) statuscode.Kind

	// VerifyApplicationURI checks uri appears as a substring of the
	// leaf's raw v3 subjectAltName extension octets -- the deliberately
	// permissive match OPC UA specifies, not a structured SAN parse.
	VerifyApplicationURI(cert *libcry.Certificate, uri string) bool
}

// MaxTrustListSize, when non-zero, bounds the aggregate byte size SetTrustList
// will accept for one group before rejecting the mutation outright.
type Limits struct {
	MaxTrustListSize    int
	MaxRejectedListSize int // 0 = unbounded
}

// containsDER reports whether der is present in list by byte equality.
func containsDER(list [][]byte, der []byte) bool {
	for _, c := range list {
		if string(c) == string(der) {
			return true
		}
	}
	return false
}

// unionDER appends every entry of add not already present in base.
func unionDER(base, add [][]byte) [][]byte {
	out := base
	for _, c := range add {
		if !containsDER(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// diffDER removes every entry of rm from base.
func diffDER(base, rm [][]byte) [][]byte {
	out := base[:0:0]
	for _, c := range base {
		if !containsDER(rm, c) {
			out = append(out, c)
		}
	}
	return out
}

// containsSubstring implements the permissive SAN match: uri must appear
// literally within the raw extension bytes.
func containsSubstring(raw []byte, uri string) bool {
	return strings.Contains(string(raw), uri)
}
