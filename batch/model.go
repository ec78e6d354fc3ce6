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

package batch

import (
	"time"

	"github.com/nabbar/opcua-core/asyncop"
	"github.com/nabbar/opcua-core/scheduler"
)

type group struct {
	cfg     Config
	pending []Entry
	timerID scheduler.ID
	armed   bool
}

type coalescer struct {
	table  asyncop.Table
	sched  scheduler.Scheduler
	groups map[asyncop.Kind]*group
}

// New returns a Coalescer that parks nothing itself: it only settles
// handles already parked by the caller via table, and arms flush timers
// on sched.
func New(table asyncop.Table, sched scheduler.Scheduler) Coalescer {
	return &coalescer{
		table:  table,
		sched:  sched,
		groups: make(map[asyncop.Kind]*group),
	}
}

func (c *coalescer) Configure(kind asyncop.Kind, cfg Config) {
	c.groups[kind] = &group{cfg: cfg}
}

func (c *coalescer) group(kind asyncop.Kind) *group {
	g, ok := c.groups[kind]
	if !ok {
		g = &group{}
		c.groups[kind] = g
	}
	return g
}

func (c *coalescer) Submit(now time.Time, kind asyncop.Kind, handle asyncop.Handle, op interface{}) {
	g := c.group(kind)
	g.pending = append(g.pending, Entry{Handle: handle, Kind: kind, Op: op})

	if !g.armed && g.cfg.Timeout > 0 {
		g.armed = true
		g.timerID = c.sched.Add(now, g.cfg.Timeout, false, func(time.Time) {
			c.Flush(kind)
		})
	}

	if g.cfg.MaxBatch > 0 && len(g.pending) >= g.cfg.MaxBatch {
		c.Flush(kind)
	}
}

func (c *coalescer) Flush(kind asyncop.Kind) {
	g, ok := c.groups[kind]
	if !ok || len(g.pending) == 0 {
		return
	}

	batch := g.pending
	g.pending = nil
	if g.armed {
		c.sched.Remove(g.timerID)
		g.armed = false
	}

	var results []asyncop.Result
	if g.cfg.Reduce != nil {
		results = g.cfg.Reduce(batch)
	}

	for i, e := range batch {
		var r asyncop.Result
		if i < len(results) {
			r = results[i]
		}
		c.table.Complete(e.Handle, r)
	}
}

func (c *coalescer) Pending(kind asyncop.Kind) int {
	g, ok := c.groups[kind]
	if !ok {
		return 0
	}
	return len(g.pending)
}
