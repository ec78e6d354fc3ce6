/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

package errors

// Package-reserved ranges for CodeError constants. Each package that wants
// its own error codes picks a base here and offsets from it with iota, the
// same way the original golib packages did before this module was narrowed
// to the secure-channel/session core.
const (
	MinPkgCertificate = 300
	MinPkgConfig      = 500
	MinPkgCrypt       = 900
	MinPkgDatabase    = 1000
	MinPkgIOUtils     = 1400
	MinPkgLogger      = 1600

	MinPkgCryptoProvider = 4000
	MinPkgPKI            = 4100
	MinPkgSecPolicy      = 4200
	MinPkgChunk          = 4300
	MinPkgChannel        = 4400
	MinPkgSession        = 4500
	MinPkgAsyncOp        = 4600
	MinPkgScheduler      = 4700
	MinPkgBatch          = 4800
	MinPkgGDS            = 4900
	MinPkgDispatch       = 5000
	MinPkgServer         = 5100
	MinPkgStatusCode     = 5200

	MinAvailable = 6000

	// MIN_AVAILABLE @Deprecated use MinAvailable constant
	MIN_AVAILABLE = MinAvailable
)
