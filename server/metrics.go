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

package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the live gauges the scheduler tick refreshes every
// pass: channel/session population and the depth of the two queues that
// can build up backlog (parked async ops, sessions awaiting sweep).
type Metrics interface {
	SetChannelCount(n int)
	SetSessionCount(n int)
	SetAsyncPending(n int)
	SetSchedulerLen(n int)
}

type prometheusMetrics struct {
	channels  prometheus.Gauge
	sessions  prometheus.Gauge
	asyncLen  prometheus.Gauge
	schedLen  prometheus.Gauge
}

// NewPrometheusMetrics registers four gauges on reg and returns a Metrics
// that updates them. Passing a dedicated *prometheus.Registry (rather
// than the global default) keeps repeated Server construction in tests
// from colliding on duplicate registration.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) Metrics {
	m := &prometheusMetrics{
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "channels_open",
			Help: "Number of SecureChannels currently open.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active",
			Help: "Number of sessions currently tracked by the SessionManager.",
		}),
		asyncLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "async_operations_pending",
			Help: "Number of operations currently parked in the AsyncOperationTable.",
		}),
		schedLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "scheduler_timers_armed",
			Help: "Number of timers currently armed on the Scheduler.",
		}),
	}
	reg.MustRegister(m.channels, m.sessions, m.asyncLen, m.schedLen)
	return m
}

func (m *prometheusMetrics) SetChannelCount(n int) { m.channels.Set(float64(n)) }
func (m *prometheusMetrics) SetSessionCount(n int) { m.sessions.Set(float64(n)) }
func (m *prometheusMetrics) SetAsyncPending(n int) { m.asyncLen.Set(float64(n)) }
func (m *prometheusMetrics) SetSchedulerLen(n int) { m.schedLen.Set(float64(n)) }

// noopMetrics is used when Config.Metrics is nil, so model.go never has
// to nil-check before updating a gauge.
type noopMetrics struct{}

func (noopMetrics) SetChannelCount(int) {}
func (noopMetrics) SetSessionCount(int) {}
func (noopMetrics) SetAsyncPending(int) {}
func (noopMetrics) SetSchedulerLen(int) {}
