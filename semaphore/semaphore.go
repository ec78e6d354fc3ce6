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

// Package semaphore caps the number of concurrent async workers a caller
// spawns. It wraps golang.org/x/sync/semaphore for the bounded case and a
// sync.WaitGroup for the unlimited case, and doubles as a context.Context so
// a worker goroutine can select on semaphore cancellation directly. An
// optional mpb progress group can be attached so long-running worker pools
// report visible progress.
package semaphore

import (
	"context"
	"runtime"
	"sync"

	xsem "golang.org/x/sync/semaphore"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Semaphore bounds concurrent workers started from a single owner
// goroutine and exposes the owning context directly.
type Semaphore interface {
	context.Context

	// New returns an independent Semaphore with the same weight, whose
	// context is derived from this one.
	New() Semaphore

	// Weighted returns the configured worker limit, or -1 if unlimited.
	Weighted() int64

	// NewWorker blocks until a worker slot is available or the
	// semaphore's context is done.
	NewWorker() error
	// NewWorkerTry attempts to acquire a worker slot without blocking.
	NewWorkerTry() bool
	// DeferWorker releases a worker slot acquired by NewWorker(Try).
	DeferWorker()
	// WaitAll blocks until every acquired worker slot has been released.
	WaitAll() error
	// DeferMain waits for every worker then cancels the semaphore's
	// context, for use in the owner's shutdown path.
	DeferMain()

	// GetMPB returns the progress group backing the Bar* constructors,
	// or nil if this Semaphore was created without progress support.
	GetMPB() *mpb.Progress

	// BarBytes returns a byte-count progress bar, queued after
	// queueAfter if given.
	BarBytes(title, label string, total int64, drop bool, queueAfter Bar) Bar
	// BarTime returns an elapsed-time progress bar.
	BarTime(title, label string, total int64, drop bool, queueAfter Bar) Bar
	// BarNumber returns a plain counter progress bar.
	BarNumber(title, label string, total int64, drop bool, queueAfter Bar) Bar
	// BarOpts returns a bare progress bar with no decorators.
	BarOpts(total int64, drop bool) Bar
}

// Bar is a single progress bar bound to the Semaphore that created it. Its
// worker methods let a caller pace concurrent increments through the same
// slot accounting as the owning Semaphore.
type Bar interface {
	Total() int64
	Current() int64
	Inc(n int)
	Inc64(n int64)
	Dec(n int)
	Reset(total, current int64)
	Complete()
	Completed() bool

	NewWorker() error
	DeferWorker()
}

// MaxSimultaneous returns GOMAXPROCS(0), the default worker limit used when
// New is called with nbrSimultaneous == 0.
func MaxSimultaneous() int {
	return runtime.GOMAXPROCS(0)
}

// SetSimultaneous clamps n into [1, MaxSimultaneous()].
func SetSimultaneous(n int64) int64 {
	max := int64(MaxSimultaneous())
	if n < 1 || n > max {
		return max
	}
	return n
}

type sem struct {
	context.Context
	cancel context.CancelFunc

	n int64
	w *xsem.Weighted
	g *sync.WaitGroup

	p *mpb.Progress
}

// New returns a Semaphore limited to nbrSimultaneous concurrent workers.
// nbrSimultaneous == 0 uses MaxSimultaneous(); a negative value means
// unlimited, backed by a sync.WaitGroup instead of a weighted semaphore.
// withProgress attaches an mpb progress group for the Bar* constructors.
func New(ctx context.Context, nbrSimultaneous int, withProgress bool) Semaphore {
	if ctx == nil {
		ctx = context.Background()
	}

	cctx, cancel := context.WithCancel(ctx)

	s := &sem{Context: cctx, cancel: cancel}

	n := int64(nbrSimultaneous)
	if n < 0 {
		s.n = -1
		s.g = &sync.WaitGroup{}
	} else {
		if n == 0 {
			n = int64(MaxSimultaneous())
		}
		s.n = n
		s.w = xsem.NewWeighted(n)
	}

	if withProgress {
		s.p = mpb.NewWithContext(cctx)
	}

	return s
}

// NewSemaphoreWithContext is an alias of New without progress support, for
// callers that only need worker-slot accounting.
func NewSemaphoreWithContext(ctx context.Context, nbrSimultaneous int) Semaphore {
	return New(ctx, nbrSimultaneous, false)
}

func (s *sem) New() Semaphore {
	return New(s.Context, int(s.n), s.p != nil)
}

func (s *sem) Weighted() int64 {
	return s.n
}

func (s *sem) NewWorker() error {
	if s.w == nil {
		s.g.Add(1)
		return nil
	}
	return s.w.Acquire(s.Context, 1)
}

func (s *sem) NewWorkerTry() bool {
	if s.w == nil {
		s.g.Add(1)
		return true
	}
	return s.w.TryAcquire(1)
}

func (s *sem) DeferWorker() {
	if s.w == nil {
		s.g.Done()
		return
	}
	s.w.Release(1)
}

func (s *sem) WaitAll() error {
	if s.w == nil {
		s.g.Wait()
		return nil
	}

	if e := s.w.Acquire(context.Background(), s.n); e != nil {
		return e
	}
	s.w.Release(s.n)
	return nil
}

func (s *sem) DeferMain() {
	_ = s.WaitAll()
	if s.p != nil {
		s.p.Wait()
	}
	s.cancel()
}

func (s *sem) GetMPB() *mpb.Progress {
	return s.p
}

func (s *sem) newBar(total int64, drop bool, queueAfter Bar, opts ...mpb.BarOption) Bar {
	if s.p == nil {
		return &noProgressBar{}
	}

	var wait *mpb.Bar
	if b, ok := queueAfter.(*pgbBar); ok && b != nil {
		wait = b.b
	}

	options := append([]mpb.BarOption{}, opts...)
	if wait != nil {
		options = append(options, mpb.BarQueueAfter(wait, drop))
	}

	b := s.p.AddBar(total, options...)
	return &pgbBar{sem: s, b: b, total: total}
}

func (s *sem) BarBytes(title, label string, total int64, drop bool, queueAfter Bar) Bar {
	return s.newBar(total, drop, queueAfter,
		mpb.PrependDecorators(decor.Name(title), decor.Name(" "+label)),
		mpb.AppendDecorators(decor.CountersKibiByte("% .2f / % .2f")),
	)
}

func (s *sem) BarTime(title, label string, total int64, drop bool, queueAfter Bar) Bar {
	return s.newBar(total, drop, queueAfter,
		mpb.PrependDecorators(decor.Name(title), decor.Name(" "+label)),
		mpb.AppendDecorators(decor.Elapsed(decor.ET_STYLE_GO)),
	)
}

func (s *sem) BarNumber(title, label string, total int64, drop bool, queueAfter Bar) Bar {
	return s.newBar(total, drop, queueAfter,
		mpb.PrependDecorators(decor.Name(title), decor.Name(" "+label)),
		mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
	)
}

func (s *sem) BarOpts(total int64, drop bool) Bar {
	return s.newBar(total, drop, nil)
}

// pgbBar wraps a live mpb.Bar.
type pgbBar struct {
	sem   *sem
	b     *mpb.Bar
	total int64
}

func (p *pgbBar) Total() int64        { return p.total }
func (p *pgbBar) Current() int64      { return p.b.Current() }
func (p *pgbBar) Inc(n int)           { p.b.IncrBy(n) }
func (p *pgbBar) Inc64(n int64)       { p.b.IncrBy(int(n)) }
func (p *pgbBar) Dec(n int)           { p.b.IncrBy(-n) }
func (p *pgbBar) Reset(total, cur int64) {
	p.total = total
	p.b.SetCurrent(cur)
}
func (p *pgbBar) Complete()      { p.b.SetCurrent(p.total) }
func (p *pgbBar) Completed() bool { return p.b.Completed() }

func (p *pgbBar) NewWorker() error {
	return p.sem.NewWorker()
}

func (p *pgbBar) DeferWorker() {
	p.b.IncrBy(1)
	p.sem.DeferWorker()
}

// noProgressBar is returned when the owning Semaphore carries no mpb
// progress group; it tracks nothing and always reports a zero total, per
// the Semaphore's no-progress contract.
type noProgressBar struct {
	mu      sync.Mutex
	current int64
	done    bool
}

func (n *noProgressBar) Total() int64 { return 0 }

func (n *noProgressBar) Current() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *noProgressBar) Inc(d int) { n.Inc64(int64(d)) }

func (n *noProgressBar) Inc64(d int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current += d
}

func (n *noProgressBar) Dec(d int) { n.Inc64(-int64(d)) }

func (n *noProgressBar) Reset(total, cur int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = cur
}

func (n *noProgressBar) Complete() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.done = true
}

func (n *noProgressBar) Completed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.done
}

func (n *noProgressBar) NewWorker() error { return nil }
func (n *noProgressBar) DeferWorker()     {}
