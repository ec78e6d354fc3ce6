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

// Package server wires the CryptoProvider (C1) through ServiceDispatcher
// (C11) components into one OPC UA Binary listener, following the
// single-threaded cooperative event loop spec §5 describes: network I/O
// and AsyncOperationTable parking are the only suspension points, and the
// Scheduler's periodic callbacks drive every timeout/sweep/flush.
package server

import (
	"net"
	"time"

	"github.com/nabbar/opcua-core/asyncop"
	"github.com/nabbar/opcua-core/batch"
	libcry "github.com/nabbar/opcua-core/crypto"
	"github.com/nabbar/opcua-core/dispatch"
	"github.com/nabbar/opcua-core/errors"
	"github.com/nabbar/opcua-core/gds"
	liblog "github.com/nabbar/opcua-core/logger"
	"github.com/nabbar/opcua-core/pki"
	"github.com/nabbar/opcua-core/scheduler"
	"github.com/nabbar/opcua-core/secpolicy"
	"github.com/nabbar/opcua-core/session"
)

// Built-in service type ids the server registers on its own Dispatcher
// in addition to whatever application services Config.Services adds.
// CreateSession/ActivateSession/CloseSession are handled ahead of
// dispatch.Dispatcher (spec §4.6: they run before any session exists to
// resolve a token against), the rest run as ordinary registered Handlers.
const (
	ServiceCreateSession uint32 = iota + 1
	ServiceActivateSession
	ServiceCloseSession
	ServiceGetRejectedList
	ServiceUpdateCertificate
	ServiceCreateSigningRequest
	ServiceApplyChanges
	ServiceRead

	// ServiceFirstFree is the first service type id free for Config.Services
	// to register application-specific handlers under.
	ServiceFirstFree
)

// Settings is the spec §6 configurable-parameters table, decoded from
// viper/cobra flags by the config package and handed to New verbatim.
type Settings struct {
	ListenAddress string `mapstructure:"listen-address" validate:"required"`

	MaxTrustListSize      int           `mapstructure:"max-trust-listsize" validate:"gte=0"`
	MaxRejectedListSize   int           `mapstructure:"max-rejected-listsize" validate:"gte=0"`
	BatchTimeout          time.Duration `mapstructure:"batch-timeout-ms" validate:"gte=0"`
	MaxBatchSize          int           `mapstructure:"max-batch-size" validate:"gte=0"`
	AsyncOperationTimeout time.Duration `mapstructure:"async-operation-timeout-ms" validate:"gte=0"`
	CheckSessionInterval  time.Duration `mapstructure:"check-session-interval-ms" validate:"gte=0"`

	DefaultSessionTimeout time.Duration `mapstructure:"default-session-timeout-ms" validate:"gte=0"`
	MaxSessionTimeout     time.Duration `mapstructure:"max-session-timeout-ms" validate:"gte=0"`

	DefaultChannelLifetime   time.Duration `mapstructure:"default-channel-lifetime-ms" validate:"gte=0"`
	MaxChannelLifetime       time.Duration `mapstructure:"max-channel-lifetime-ms" validate:"gte=0"`
	ChannelInactivityTimeout time.Duration `mapstructure:"channel-inactivity-timeout-ms" validate:"gte=0"`
	MaxChunkSize             uint32        `mapstructure:"max-chunk-size" validate:"gte=0"`

	MinKeyBits int `mapstructure:"min-key-bits" validate:"gte=0"`

	// PrimaryPolicy is the SecurityPolicy URI new channels present their
	// handshake identity (cert/key) under before the client's own policy
	// selection is known.
	PrimaryPolicy secpolicy.URI `mapstructure:"primary-policy" validate:"required"`
}

// DefaultSettings matches the spec §6 table's defaults.
func DefaultSettings() Settings {
	return Settings{
		ListenAddress:            "0.0.0.0:4840",
		MaxTrustListSize:         65535,
		MaxRejectedListSize:      100,
		BatchTimeout:             20 * time.Millisecond,
		MaxBatchSize:             10,
		AsyncOperationTimeout:    5 * time.Second,
		CheckSessionInterval:     10 * time.Second,
		DefaultSessionTimeout:    time.Minute,
		MaxSessionTimeout:        time.Hour,
		DefaultChannelLifetime:   time.Hour,
		MaxChannelLifetime:       24 * time.Hour,
		ChannelInactivityTimeout: 60 * time.Second,
		MaxChunkSize:             64 * 1024,
		MinKeyBits:               2048,
		PrimaryPolicy:            secpolicy.URIBasic256,
	}
}

// Config bundles the settings and collaborators a Server is built from.
// Crypto/PKI/Policies are shared, read-mostly across every channel and
// session the server creates.
type Config struct {
	Settings Settings

	Crypto   libcry.Provider
	PKI      pki.Store
	Policies secpolicy.Registry
	PKIGroup pki.Group

	// Services lets the caller register application-specific handlers
	// (beyond the built-in session/GDS ones) before Start. The key is
	// the serviceTypeID the client's request carries.
	Services map[uint32]dispatch.Handler

	Log     liblog.FuncLog
	Metrics Metrics
}

// Server owns the listener, every per-channel state machine, and the
// background scheduler tick; it is the one long-lived object cmd/opcua-serve
// constructs and runs.
type Server interface {
	// Start opens the listener and launches the accept loop and the
	// scheduler/sweep background loop. It returns once the listener is
	// bound; both loops keep running until Stop.
	Start() errors.Error

	// Stop closes the listener, cancels every open channel, and stops
	// the background loop. Safe to call even if Start failed partway.
	Stop()

	// Addr returns the listener's bound address, or nil before Start or
	// after Stop. Useful when Settings.ListenAddress asks for an
	// ephemeral port (":0").
	Addr() net.Addr

	// Sessions/Async/Scheduler/Batch/GDS/Dispatch expose the wired
	// collaborators, mainly so tests and cmd/opcua-serve's admin surface
	// can inspect live state without the server re-exposing every method
	// on a dozen narrower interfaces.
	Sessions() session.Manager
	Async() asyncop.Table
	Scheduler() scheduler.Scheduler
	Batch() batch.Coalescer
	GDS() gds.Manager
	Dispatch() dispatch.Dispatcher

	// ChannelCount/SessionCount back the prometheus gauges; exported so
	// Metrics implementations outside this package could poll them too.
	ChannelCount() int
	SessionCount() int
}

// New builds a Server from cfg. Channels and sessions are created lazily
// as connections and CreateSession requests arrive.
func New(cfg Config) Server {
	return newServer(cfg)
}
