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

// Package statuscode enumerates the OPC UA Binary status codes this server
// can emit on the wire, and maps the internal error kinds produced by the
// rest of the core (crypto, pki, channel, session, dispatch, gds) onto them.
// Status codes are never constructed ad hoc at a call site; every exported
// boundary that closes a channel, rejects a request, or fails a GDS method
// goes through Of or one of the fixed constants below.
package statuscode

import "fmt"

// Code is an OPC UA Binary status code. The high 16 bits are the severity +
// sub-code identifying value per the OPC UA Part 6 encoding; this package
// only needs equality and a human-readable name, not the severity bits.
type Code uint32

const (
	Good Code = 0x00000000

	BadInternalError            Code = 0x80020000
	BadOutOfMemory               Code = 0x80030000
	BadTimeout                   Code = 0x800A0000
	BadTcpMessageTypeInvalid     Code = 0x807D0000
	BadTcpInternalError          Code = 0x807E0000
	BadSecurityChecksFailed      Code = 0x80130000
	BadCertificateInvalid        Code = 0x80120000
	BadCertificateTimeInvalid    Code = 0x80140000
	BadCertificateUntrusted      Code = 0x80160000
	BadCertificateRevoked        Code = 0x80170000
	BadCertificateIssuerRevoked  Code = 0x80180000
	BadCertificateUseNotAllowed  Code = 0x80190000
	BadCertificateRevocationUnknown       Code = 0x801A0000
	BadCertificateIssuerRevocationUnknown Code = 0x801B0000
	BadSessionIdInvalid          Code = 0x80250000
	BadSessionNotActivated       Code = 0x80260000
	BadSessionClosed             Code = 0x80AA0000
	BadUserAccessDenied          Code = 0x801F0000
	BadInvalidArgument           Code = 0x80AB0000
	BadSecureChannelClosed       Code = 0x80860000
	BadSecureChannelIdInvalid    Code = 0x80010000
	BadRequestTimeout            Code = 0x800E0000
	BadTransactionPending        Code = 0x80AA0001 // not a real OPC UA code; reserved local extension
	BadInvalidState              Code = 0x80AF0000
	GoodCompletesAsynchronously  Code = 0x002E0000
)

var name = map[Code]string{
	Good:                                  "Good",
	BadInternalError:                      "BadInternalError",
	BadOutOfMemory:                        "BadOutOfMemory",
	BadTimeout:                            "BadTimeout",
	BadTcpMessageTypeInvalid:              "BadTcpMessageTypeInvalid",
	BadTcpInternalError:                   "BadTcpInternalError",
	BadSecurityChecksFailed:               "BadSecurityChecksFailed",
	BadCertificateInvalid:                 "BadCertificateInvalid",
	BadCertificateTimeInvalid:             "BadCertificateTimeInvalid",
	BadCertificateUntrusted:               "BadCertificateUntrusted",
	BadCertificateRevoked:                 "BadCertificateRevoked",
	BadCertificateIssuerRevoked:           "BadCertificateIssuerRevoked",
	BadCertificateUseNotAllowed:           "BadCertificateUseNotAllowed",
	BadCertificateRevocationUnknown:       "BadCertificateRevocationUnknown",
	BadCertificateIssuerRevocationUnknown: "BadCertificateIssuerRevocationUnknown",
	BadSessionIdInvalid:                   "BadSessionIdInvalid",
	BadSessionNotActivated:                "BadSessionNotActivated",
	BadSessionClosed:                      "BadSessionClosed",
	BadUserAccessDenied:                   "BadUserAccessDenied",
	BadInvalidArgument:                    "BadInvalidArgument",
	BadSecureChannelClosed:                "BadSecureChannelClosed",
	BadSecureChannelIdInvalid:             "BadSecureChannelIdInvalid",
	BadRequestTimeout:                     "BadRequestTimeout",
	BadTransactionPending:                 "BadTransactionPending",
	BadInvalidState:                       "BadInvalidState",
	GoodCompletesAsynchronously:           "GoodCompletesAsynchronously",
}

// String returns the status code's symbolic name, or its hex value if
// unknown.
func (c Code) String() string {
	if n, k := name[c]; k {
		return n
	}
	return fmt.Sprintf("0x%08X", uint32(c))
}

// IsGood reports whether the severity bits indicate success. OPC UA
// encodes severity in the top two bits: 00 = Good, 01 = Uncertain, 10 = Bad.
func (c Code) IsGood() bool {
	return uint32(c)>>30 == 0
}

// IsBad reports whether the severity bits indicate failure.
func (c Code) IsBad() bool {
	return uint32(c)>>30 == 2
}

// Kind is the abstract error kind produced internally by the core (spec
// §7), independent of how it is eventually encoded on the wire.
type Kind uint8

const (
	KindNone Kind = iota
	KindMalformedMessage
	KindSecurityChecksFailed
	KindCertificateUntrusted
	KindCertificateTimeInvalid
	KindCertificateRevoked
	KindCertificateUseNotAllowed
	KindCertificateRevocationUnknown
	KindCertificateIssuerRevocationUnknown
	KindSessionNotActivated
	KindSessionIdInvalid
	KindUserAccessDenied
	KindTransactionPending
	KindInvalidState
	KindTimeout
	KindOutOfMemory
	KindInternal
	KindInvalidArgument
	KindSecureChannelClosed
	KindSessionClosed
)

var ofKind = map[Kind]Code{
	KindNone:                               Good,
	KindMalformedMessage:                   BadTcpMessageTypeInvalid,
	KindSecurityChecksFailed:               BadSecurityChecksFailed,
	KindCertificateUntrusted:               BadCertificateUntrusted,
	KindCertificateTimeInvalid:             BadCertificateTimeInvalid,
	KindCertificateRevoked:                 BadCertificateRevoked,
	KindCertificateUseNotAllowed:           BadCertificateUseNotAllowed,
	KindCertificateRevocationUnknown:       BadCertificateRevocationUnknown,
	KindCertificateIssuerRevocationUnknown: BadCertificateIssuerRevocationUnknown,
	KindSessionNotActivated:                BadSessionNotActivated,
	KindSessionIdInvalid:                   BadSessionIdInvalid,
	KindUserAccessDenied:                   BadUserAccessDenied,
	KindTransactionPending:                 BadTransactionPending,
	KindInvalidState:                       BadInvalidState,
	KindTimeout:                            BadTimeout,
	KindOutOfMemory:                        BadOutOfMemory,
	KindInternal:                           BadInternalError,
	KindInvalidArgument:                    BadInvalidArgument,
	KindSecureChannelClosed:                BadSecureChannelClosed,
	KindSessionClosed:                      BadSessionClosed,
}

// Of maps an abstract error Kind to its wire status code. Unknown kinds map
// to BadInternalError rather than Good, so a missing mapping fails closed.
func Of(k Kind) Code {
	if c, ok := ofKind[k]; ok {
		return c
	}
	return BadInternalError
}

// Rejectable reports whether a certificate verification failure of this
// Kind must also append the certificate's DER to the owning group's
// rejected list (spec §4.2).
func Rejectable(k Kind) bool {
	switch k {
	case KindCertificateUntrusted, KindCertificateUseNotAllowed,
		KindCertificateRevocationUnknown, KindCertificateIssuerRevocationUnknown:
		return true
	default:
		return false
	}
}
