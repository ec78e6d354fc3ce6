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

// Package batch implements the BatchCoalescer (spec C9): it accumulates
// operations keyed by kind and flushes them as one group, either when
// the group reaches its configured size or when a timer armed on the
// group's first entry expires, delivering each entry's result back
// through the AsyncOperationTable (C7).
package batch

import (
	"time"

	"github.com/nabbar/opcua-core/asyncop"
)

// Entry is one operation submitted into a coalescing group.
type Entry struct {
	Handle asyncop.Handle
	Kind   asyncop.Kind
	Op     interface{}
}

// Reducer processes one flushed group, returning exactly one Result per
// input Entry, in the same order.
type Reducer func(ops []Entry) []asyncop.Result

// Config bounds one kind's coalescing group and supplies the reducer
// that turns a flushed group into per-entry results.
type Config struct {
	MaxBatch int
	Timeout  time.Duration
	Reduce   Reducer
}

// Coalescer groups Submit calls by asyncop.Kind and flushes each group
// through its configured Reducer, delivering results via the
// AsyncOperationTable. Not safe for concurrent use from multiple
// goroutines without external synchronization -- it is driven from the
// single-threaded event loop like the rest of the server's core.
type Coalescer interface {
	// Configure binds cfg to kind; must be called before the first
	// Submit for that kind.
	Configure(kind asyncop.Kind, cfg Config)

	// Submit accumulates op into its kind's pending group. The caller
	// has already parked handle in the AsyncOperationTable. Submit
	// arms the group's flush timer (on the Scheduler) if op is the
	// group's first pending entry since its last flush.
	Submit(now time.Time, kind asyncop.Kind, handle asyncop.Handle, op interface{})

	// Flush immediately coalesces and reduces every pending entry for
	// kind, regardless of size or timer state. A no-op if kind has no
	// pending entries.
	Flush(kind asyncop.Kind)

	// Pending reports how many entries are currently queued for kind.
	Pending(kind asyncop.Kind) int
}
