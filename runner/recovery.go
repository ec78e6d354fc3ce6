/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package runner holds the small pieces background goroutines across
// the module share: a panic recovery logger so a single misbehaving
// hook or worker can't take the process down silently.
package runner

import (
	"fmt"
	"os"
)

// RecoveryCaller logs a recovered panic with the name of the caller
// that triggered the deferred recover, along with any extra context
// strings. It is a no-op if rec is nil.
func RecoveryCaller(caller string, rec any, extra ...string) {
	if rec == nil {
		return
	}

	msg := fmt.Sprintf("recovered panic in %s: %v", caller, rec)
	for _, e := range extra {
		msg += " | " + e
	}

	_, _ = fmt.Fprintln(os.Stderr, msg)
}
