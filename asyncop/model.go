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

package asyncop

import (
	"sync"
	"time"

	"github.com/nabbar/opcua-core/statuscode"
)

type slot struct {
	occupied   bool
	generation uint32
	req        Request
}

type table struct {
	mu       sync.Mutex
	slots    []slot
	freelist []uint32
}

// New returns an empty Table.
func New() Table {
	return &table{}
}

func (t *table) Park(req Request) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.freelist); n > 0 {
		idx = t.freelist[n-1]
		t.freelist = t.freelist[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, slot{})
	}

	t.slots[idx].occupied = true
	t.slots[idx].req = req

	return Handle{index: idx, generation: t.slots[idx].generation}
}

// settle applies result to h's slot if h is still current, then frees the
// slot and bumps its generation so any later call against the same
// handle is rejected (spec §4.7 at-most-once discipline).
func (t *table) settle(h Handle, result Result) bool {
	t.mu.Lock()

	if int(h.index) >= len(t.slots) {
		t.mu.Unlock()
		return false
	}

	s := &t.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		t.mu.Unlock()
		return false
	}

	cb := s.req.OnComplete
	s.occupied = false
	s.generation++
	s.req = Request{}
	t.freelist = append(t.freelist, h.index)

	t.mu.Unlock()

	if cb != nil {
		cb(result)
	}
	return true
}

func (t *table) Complete(h Handle, result Result) bool {
	return t.settle(h, result)
}

func (t *table) Cancel(h Handle, reason statuscode.Kind) bool {
	return t.settle(h, Result{Status: reason})
}

func (t *table) Sweep(now time.Time) int {
	return t.cancelMatching(func(r Request) bool {
		return !r.Deadline.IsZero() && !now.Before(r.Deadline)
	}, statuscode.KindTimeout)
}

func (t *table) CancelChannel(channelID uint64) int {
	return t.cancelMatching(func(r Request) bool {
		return r.ChannelID == channelID
	}, statuscode.KindSecureChannelClosed)
}

func (t *table) CancelSession(sessionID uint64) int {
	return t.cancelMatching(func(r Request) bool {
		return r.SessionID == sessionID
	}, statuscode.KindSessionClosed)
}

// cancelMatching gathers handles for occupied slots matching pred under
// the lock, then settles each outside the lock so OnComplete callbacks
// never run while holding t.mu.
func (t *table) cancelMatching(pred func(Request) bool, reason statuscode.Kind) int {
	t.mu.Lock()
	var matched []Handle
	for i := range t.slots {
		s := &t.slots[i]
		if s.occupied && pred(s.req) {
			matched = append(matched, Handle{index: uint32(i), generation: s.generation})
		}
	}
	t.mu.Unlock()

	n := 0
	for _, h := range matched {
		if t.settle(h, Result{Status: reason}) {
			n++
		}
	}
	return n
}

func (t *table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots) - len(t.freelist)
}
