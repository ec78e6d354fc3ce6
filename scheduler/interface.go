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

// Package scheduler implements the event loop's monotonic callback
// scheduler (spec C8): a time-ordered list of pending fires, burst
// batching of close-together entries sharing an interval, safe
// self-removal mid-dispatch, and drift-bounded rescheduling.
package scheduler

import "time"

// ID identifies one scheduled entry for later removal.
type ID uint64

// Callback is invoked when an entry fires. now is the time the
// scheduler observed at dispatch, not the entry's original deadline.
type Callback func(now time.Time)

// Scheduler is a single-threaded, non-blocking callback list; Dispatch
// must be called from the owning event-loop goroutine only.
type Scheduler interface {
	// Add registers callback to first fire at now+interval, then every
	// interval thereafter if repeat is true, once otherwise. Add never
	// blocks.
	Add(now time.Time, interval time.Duration, repeat bool, callback Callback) ID

	// Remove deletes an entry by id; a no-op if it already fired (for a
	// non-repeating entry) or was already removed.
	Remove(id ID)

	// NextFire reports the earliest pending deadline, or the zero Time
	// if nothing is scheduled -- the event loop uses this to size its
	// next blocking wait.
	NextFire() (time.Time, bool)

	// Dispatch runs every entry whose next_fire is <= now, in ascending
	// deadline order. A callback may call Remove(itself) or Add new
	// entries during its own execution; Dispatch tolerates both.
	Dispatch(now time.Time)

	// Len reports the number of entries currently scheduled.
	Len() int
}
