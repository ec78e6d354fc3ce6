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

package scheduler

import (
	"container/list"
	"time"
)

// burstWindow is how close two entries' next_fire must be to get merged
// onto the same deadline (spec §4.8 "bursty dispatch runs in one pass").
const burstWindow = 5 * time.Millisecond

type entry struct {
	id       ID
	nextFire time.Time
	interval time.Duration
	repeat   bool
	callback Callback
	elem     *list.Element
}

type scheduler struct {
	entries *list.List // sorted ascending by nextFire, value type *entry
	byID    map[ID]*entry
	nextID  ID
}

// New returns an empty Scheduler.
func New() Scheduler {
	return &scheduler{
		entries: list.New(),
		byID:    make(map[ID]*entry),
	}
}

func (s *scheduler) Add(now time.Time, interval time.Duration, repeat bool, callback Callback) ID {
	s.nextID++
	e := &entry{
		id:       s.nextID,
		nextFire: now.Add(interval),
		interval: interval,
		repeat:   repeat,
		callback: callback,
	}
	s.insert(e)
	s.byID[e.id] = e
	return e.id
}

// insert places e into the sorted list, merging onto an existing entry's
// deadline when it falls within burstWindow of one already scheduled for
// the same interval (spec §4.8 batching).
func (s *scheduler) insert(e *entry) {
	for el := s.entries.Front(); el != nil; el = el.Next() {
		other := el.Value.(*entry)
		if other.interval == e.interval && absDuration(other.nextFire.Sub(e.nextFire)) <= burstWindow {
			e.nextFire = other.nextFire
		}
		if e.nextFire.Before(other.nextFire) {
			e.elem = s.entries.InsertBefore(e, el)
			return
		}
	}
	e.elem = s.entries.PushBack(e)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func (s *scheduler) Remove(id ID) {
	e, ok := s.byID[id]
	if !ok {
		return
	}
	s.entries.Remove(e.elem)
	delete(s.byID, id)
}

func (s *scheduler) NextFire() (time.Time, bool) {
	front := s.entries.Front()
	if front == nil {
		return time.Time{}, false
	}
	return front.Value.(*entry).nextFire, true
}

// Dispatch walks the list from the head, firing every due entry. Because
// a callback may remove itself (or others) mid-walk, it re-reads Front()
// after each fire instead of following a saved "next" pointer into a
// node the callback may have already unlinked (spec §4.8).
func (s *scheduler) Dispatch(now time.Time) {
	for {
		front := s.entries.Front()
		if front == nil {
			return
		}
		e := front.Value.(*entry)
		if e.nextFire.After(now) {
			return
		}

		s.entries.Remove(front)
		delete(s.byID, e.id)

		e.callback(now)

		if e.repeat {
			next := e.nextFire.Add(e.interval)
			if next.Before(now.Add(time.Nanosecond)) {
				// drift: dispatch itself took longer than interval.
				next = now.Add(time.Nanosecond)
			}
			e.nextFire = next
			e.elem = nil
			s.insert(e)
			s.byID[e.id] = e
		}
	}
}

func (s *scheduler) Len() int {
	return s.entries.Len()
}
