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

// Package startStop wraps a run/close function pair into a restartable
// background goroutine with uptime and last-error tracking, the shape
// every hook and the chunk aggregator need for their lifecycle.
package startStop

import (
	"context"
	"errors"
	"sync"
	"time"

	libatm "github.com/nabbar/opcua-core/atomic"
)

var ErrStillRunning = errors.New("startstop: already running")

// FuncRun is the background loop. It must return when ctx is done.
type FuncRun func(ctx context.Context) error

// FuncClose is called once to release resources after the run loop
// has returned, whether from Stop or context cancellation.
type FuncClose func(ctx context.Context) error

// StartStop is a restartable background goroutine with basic health
// introspection.
type StartStop interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	IsRunning() bool
	Uptime() time.Duration
	ErrorsLast() error
	ErrorsList() []error
}

const maxErrors = 16

type ss struct {
	mu      sync.Mutex
	run     FuncRun
	clos    FuncClose
	running libatm.Value[bool]
	started libatm.Value[time.Time]
	cancel  context.CancelFunc
	done    chan struct{}
	errs    libatm.Value[[]error]
}

// New returns a StartStop driving run in a background goroutine, and
// calling closeRun once the goroutine returns.
func New(run FuncRun, closeRun FuncClose) StartStop {
	return &ss{
		run:     run,
		clos:    closeRun,
		running: libatm.NewValue[bool](),
		started: libatm.NewValue[time.Time](),
		errs:    libatm.NewValue[[]error](),
	}
}

func (o *ss) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running.Load() {
		return ErrStillRunning
	}

	if ctx == nil {
		ctx = context.Background()
	}

	cctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.started.Store(time.Now())
	o.running.Store(true)

	go func() {
		defer close(o.done)
		defer o.running.Store(false)

		if e := o.run(cctx); e != nil {
			o.pushErr(e)
		}

		if o.clos != nil {
			cctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			if e := o.clos(cctx2); e != nil {
				o.pushErr(e)
			}
		}
	}()

	return nil
}

func (o *ss) Stop(ctx context.Context) error {
	o.mu.Lock()
	cancel := o.cancel
	done := o.done
	o.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if done == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *ss) Restart(ctx context.Context) error {
	if e := o.Stop(ctx); e != nil {
		return e
	}
	return o.Start(ctx)
}

func (o *ss) IsRunning() bool {
	return o.running.Load()
}

func (o *ss) Uptime() time.Duration {
	if !o.running.Load() {
		return 0
	}
	t := o.started.Load()
	if t.IsZero() {
		return 0
	}
	return time.Since(t)
}

func (o *ss) pushErr(e error) {
	l := o.errs.Load()
	l = append(l, e)
	if len(l) > maxErrors {
		l = l[len(l)-maxErrors:]
	}
	o.errs.Store(l)
}

func (o *ss) ErrorsLast() error {
	l := o.errs.Load()
	if len(l) < 1 {
		return nil
	}
	return l[len(l)-1]
}

func (o *ss) ErrorsList() []error {
	return o.errs.Load()
}
