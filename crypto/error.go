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

import "github.com/nabbar/opcua-core/errors"

const (
	ErrorUnsupportedAlgorithm errors.CodeError = iota + errors.MinPkgCryptoProvider
	ErrorHashFailed
	ErrorSignFailed
	ErrorVerifyFailed
	ErrorEncryptFailed
	ErrorDecryptFailed
	ErrorRandomFailed
	ErrorCertParse
	ErrorKeyParse
	ErrorInvalidBlockSize
	ErrorKeyDeriveFailed
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorUnsupportedAlgorithm)
	errors.RegisterIdFctMessage(ErrorUnsupportedAlgorithm, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorUnsupportedAlgorithm:
		return "unsupported algorithm for this operation"
	case ErrorHashFailed:
		return "hash computation failed"
	case ErrorSignFailed:
		return "signature generation failed"
	case ErrorVerifyFailed:
		return "signature verification failed"
	case ErrorEncryptFailed:
		return "encryption failed"
	case ErrorDecryptFailed:
		return "decryption failed"
	case ErrorRandomFailed:
		return "random generation failed"
	case ErrorCertParse:
		return "certificate parse failed"
	case ErrorKeyParse:
		return "private key parse failed"
	case ErrorInvalidBlockSize:
		return "data is not a multiple of the cipher block size"
	case ErrorKeyDeriveFailed:
		return "key derivation failed"
	}

	return ""
}
