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

// Package pidcontroller generates a non-linear step sequence between two
// bounds using a discrete PID loop, the same way a retry/backoff
// schedule ramps from a short initial delay to a long ceiling without
// a hand-tuned exponential table.
package pidcontroller

import "context"

// Controller steps a value from a start toward a target, correcting
// on each call using proportional, integral and derivative terms.
type Controller interface {
	// Next feeds the current value back in and returns the next step.
	Next(current, target float64) float64
	// RangeCtx generates the sequence of steps from start to target,
	// stopping early if ctx is canceled.
	RangeCtx(ctx context.Context, start, target float64) []float64
}

type pid struct {
	kp, ki, kd float64
	integral   float64
	lastErr    float64
	hasLast    bool
}

// New returns a Controller with the given proportional, integral and
// derivative rates.
func New(rateP, rateI, rateD float64) Controller {
	return &pid{kp: rateP, ki: rateI, kd: rateD}
}

func (p *pid) Next(current, target float64) float64 {
	err := target - current

	p.integral += err
	var deriv float64
	if p.hasLast {
		deriv = err - p.lastErr
	}
	p.lastErr = err
	p.hasLast = true

	correction := p.kp*err + p.ki*p.integral + p.kd*deriv

	return current + correction
}

const maxSteps = 4096

func (p *pid) RangeCtx(ctx context.Context, start, target float64) []float64 {
	var (
		res     = []float64{start}
		current = start
	)

	ascending := target >= start

	for i := 0; i < maxSteps; i++ {
		select {
		case <-ctx.Done():
			return res
		default:
		}

		if ascending && current >= target {
			break
		}
		if !ascending && current <= target {
			break
		}

		current = p.Next(current, target)

		if ascending && current > target {
			current = target
		}
		if !ascending && current < target {
			current = target
		}

		res = append(res, current)

		if current == target {
			break
		}
	}

	if res[len(res)-1] != target {
		res = append(res, target)
	}

	return res
}
