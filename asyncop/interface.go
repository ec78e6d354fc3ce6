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

// Package asyncop implements the AsyncOperationTable (spec C7): a
// generation-guarded parking table for service handlers that return
// GoodCompletesAsynchronously, so a completion or cancellation delivered
// against a stale or already-settled handle is a silent, observable
// no-op rather than a double-delivery.
package asyncop

import (
	"time"

	"github.com/nabbar/opcua-core/statuscode"
)

// Kind identifies the operation family a parked request belongs to, used
// by the BatchCoalescer (C9) to group completions.
type Kind uint8

const (
	KindRead Kind = iota
	KindWrite
	KindCall
	KindBrowse
)

// Result is delivered to a parked operation's OnComplete callback exactly
// once, either from Complete, Cancel, or Sweep.
type Result struct {
	Value  interface{}
	Status statuscode.Kind
}

// Request describes the operation being parked.
type Request struct {
	ChannelID  uint64
	RequestID  uint32
	SessionID  uint64
	Kind       Kind
	Deadline   time.Time
	OnComplete func(Result)
}

// Handle is an opaque parking-table ticket. The zero Handle never
// matches a live slot.
type Handle struct {
	index      uint32
	generation uint32
}

// Table is the AsyncOperationTable capability set. Safe for concurrent use.
type Table interface {
	// Park records req and returns a handle a later Complete/Cancel must
	// present to settle it.
	Park(req Request) Handle

	// Complete applies result to the operation parked under h. Returns
	// false if h is stale (already completed, cancelled, or swept) --
	// the at-most-once guarantee from spec §4.7.
	Complete(h Handle, result Result) bool

	// Cancel settles h with statuscode reason, same at-most-once
	// discipline as Complete.
	Cancel(h Handle, reason statuscode.Kind) bool

	// Sweep cancels every parked operation whose deadline is at or
	// before now with KindTimeout, and returns how many were swept.
	Sweep(now time.Time) int

	// CancelChannel cancels every operation parked under channelID with
	// SecureChannelClosed (spec §5 cancellation policy).
	CancelChannel(channelID uint64) int

	// CancelSession cancels every operation parked under sessionID with
	// SessionClosed.
	CancelSession(sessionID uint64) int

	// Len reports the number of currently parked operations.
	Len() int
}
