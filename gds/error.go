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

import "github.com/nabbar/opcua-core/errors"

const (
	ErrorTransactionPending errors.CodeError = iota + errors.MinPkgGDS
	ErrorNotTransactionOwner
	ErrorUnknownGroup
	ErrorObjectOpen
	ErrorHandleNotFound
	ErrorWrongMode
	ErrorKeyMismatch
	ErrorCertificateIsCA
	ErrorMalformedTrustList
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorTransactionPending)
	errors.RegisterIdFctMessage(ErrorTransactionPending, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorTransactionPending:
		return "a transaction owned by another session is already pending"
	case ErrorNotTransactionOwner:
		return "caller does not own the pending transaction"
	case ErrorUnknownGroup:
		return "no such certificate group is administered"
	case ErrorObjectOpen:
		return "trust list object has an open file handle"
	case ErrorHandleNotFound:
		return "no open file handle with that id"
	case ErrorWrongMode:
		return "operation not valid for the handle's open mode"
	case ErrorKeyMismatch:
		return "private key does not match the supplied certificate"
	case ErrorCertificateIsCA:
		return "certificate authority certificates cannot be added as trusted"
	case ErrorMalformedTrustList:
		return "trust list buffer could not be decoded"
	}

	return ""
}
