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

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/nabbar/opcua-core/asyncop"
	"github.com/nabbar/opcua-core/batch"
	"github.com/nabbar/opcua-core/channel"
	libchk "github.com/nabbar/opcua-core/chunk"
	"github.com/nabbar/opcua-core/dispatch"
	"github.com/nabbar/opcua-core/errors"
	"github.com/nabbar/opcua-core/gds"
	liblog "github.com/nabbar/opcua-core/logger"
	"github.com/nabbar/opcua-core/pki"
	"github.com/nabbar/opcua-core/runner/startStop"
	"github.com/nabbar/opcua-core/scheduler"
	"github.com/nabbar/opcua-core/secpolicy"
	"github.com/nabbar/opcua-core/session"
	"github.com/nabbar/opcua-core/statuscode"
)

// inboundMsg is one raw chunk handed from a connection's reader goroutine
// to the single event-loop goroutine. A nil raw means the connection
// closed or errored and the channel should be torn down.
type inboundMsg struct {
	channelID uint32
	raw       []byte
}

// srv is the only implementation of Server. Every field below except mu,
// listener, nextChan, channels, conns and inbound is driven exclusively
// from the runLoop goroutine once Start returns, per spec §5's
// single-threaded cooperative event loop -- reader goroutines only ever
// perform the blocking network read and hand the result to inbound.
type srv struct {
	cfg Config
	log liblog.FuncLog
	met Metrics

	mu           sync.Mutex
	listener     net.Listener
	nextChan     uint32
	channels     map[uint32]channel.Channel
	conns        map[uint32]net.Conn
	loopCtx      context.Context
	sessionCount int

	sessions session.Manager
	async    asyncop.Table
	sched    scheduler.Scheduler
	coalesce batch.Coalescer
	gdsM     gds.Manager
	disp     dispatch.Dispatcher

	inbound chan inboundMsg
	loop    startStop.StartStop
}

func newServer(cfg Config) *srv {
	st := cfg.Settings

	s := &srv{
		cfg:      cfg,
		met:      cfg.Metrics,
		channels: make(map[uint32]channel.Channel),
		conns:    make(map[uint32]net.Conn),
		inbound:  make(chan inboundMsg, 64),
		nextChan: 1,
	}
	if s.met == nil {
		s.met = noopMetrics{}
	}
	s.log = cfg.Log

	s.sessions = session.New(session.Config{
		Crypto:         cfg.Crypto,
		DefaultTimeout: st.DefaultSessionTimeout,
		MaxTimeout:     st.MaxSessionTimeout,
	})
	s.async = asyncop.New()
	s.sched = scheduler.New()
	s.coalesce = batch.New(s.async, s.sched)

	policies := make(map[pki.Group]secpolicy.Policy, 1)
	if p, perr := cfg.Policies.Get(st.PrimaryPolicy); perr == nil {
		policies[cfg.PKIGroup] = p
	}
	s.gdsM = gds.New(gds.Config{
		Crypto:           cfg.Crypto,
		PKI:              cfg.PKI,
		Policies:         policies,
		MinKeyBits:       st.MinKeyBits,
		LivenessInterval: st.CheckSessionInterval,
	})

	s.disp = dispatch.New(dispatch.Config{
		Sessions:       s.sessions,
		Async:          s.async,
		OnAsyncResult:  s.deliverAsyncResult,
		DefaultTimeout: st.AsyncOperationTimeout,
	})
	s.registerBuiltinServices()
	for id, h := range cfg.Services {
		s.disp.Register(id, h)
	}

	s.loop = startStop.New(s.runLoop, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, ch := range s.channels {
			s.closeChannelLocked(id, ch, statuscode.KindSecureChannelClosed)
		}
		for id, conn := range s.conns {
			_ = conn.Close()
			delete(s.conns, id)
		}
		return nil
	})

	return s
}

func (s *srv) Start() errors.Error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return ErrorAlreadyStarted.Error(nil)
	}
	ln, err := net.Listen("tcp", s.cfg.Settings.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return ErrorListenFailed.Error(err)
	}
	s.listener = ln
	s.mu.Unlock()

	now := time.Now()
	s.armPeriodicTasks(now)

	if e := s.loop.Start(context.Background()); e != nil {
		return ErrorAlreadyStarted.Error(e)
	}
	go s.acceptLoop()

	if s.log != nil {
		s.log().Info("opcua server listening", nil, ln.Addr().String())
	}
	return nil
}

func (s *srv) Stop() {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	_ = s.loop.Stop(context.Background())
}

func (s *srv) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *srv) Sessions() session.Manager      { return s.sessions }
func (s *srv) Async() asyncop.Table           { return s.async }
func (s *srv) Scheduler() scheduler.Scheduler { return s.sched }
func (s *srv) Batch() batch.Coalescer         { return s.coalesce }
func (s *srv) GDS() gds.Manager               { return s.gdsM }
func (s *srv) Dispatch() dispatch.Dispatcher  { return s.disp }

func (s *srv) ChannelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

func (s *srv) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionCount
}

// addSessionCount adjusts the live session count SessionCount/Metrics
// report; SessionManager has no Count method of its own, only the
// enumerations CreateSession/Sweep/Close already hand back.
func (s *srv) addSessionCount(delta int) {
	s.mu.Lock()
	s.sessionCount += delta
	s.mu.Unlock()
}

func (s *srv) armPeriodicTasks(now time.Time) {
	st := s.cfg.Settings

	s.sched.Add(now, st.CheckSessionInterval, true, func(now time.Time) {
		expired := s.sessions.Sweep(now)
		if len(expired) > 0 {
			s.addSessionCount(-len(expired))
		}
		s.gdsM.Sweep(now, s.sessionAlive)
	})
	s.sched.Add(now, st.AsyncOperationTimeout, true, func(now time.Time) {
		s.async.Sweep(now)
	})
	s.sched.Add(now, st.ChannelInactivityTimeout, true, func(now time.Time) {
		s.sweepChannels(now)
	})
}

func (s *srv) sessionAlive(sessionID uint64) bool {
	_, ok := s.sessions.Get(sessionID)
	return ok
}

func (s *srv) sweepChannels(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.channels {
		if ch.CheckInactivity(now) {
			conn := s.conns[id]
			s.closeChannelLocked(id, ch, statuscode.KindTimeout)
			delete(s.conns, id)
			if conn != nil {
				_ = conn.Close()
			}
		}
	}
}

// closeChannelLocked must be called with s.mu held. It transitions ch to
// Closed, detaches (without destroying) every session it had bound, and
// cancels any operation still parked under it. Callers are responsible
// for closing and removing the underlying net.Conn from s.conns.
func (s *srv) closeChannelLocked(id uint32, ch channel.Channel, reason statuscode.Kind) {
	ch.Close(reason)
	s.sessions.DetachChannel(uint64(id))
	s.async.CancelChannel(uint64(id))
	delete(s.channels, id)
}

// runLoop is the single-threaded cooperative event loop spec §5
// describes: it drains inbound chunks from every connection and fires
// scheduler callbacks, never blocking anywhere except this select.
func (s *srv) runLoop(ctx context.Context) error {
	s.mu.Lock()
	s.loopCtx = ctx
	s.mu.Unlock()

	for {
		wait := time.Second
		if next, ok := s.sched.NextFire(); ok {
			if d := time.Until(next); d > 0 {
				wait = d
			} else {
				wait = 0
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.inbound:
			s.handleInbound(msg)
		case <-time.After(wait):
			now := time.Now()
			s.sched.Dispatch(now)
			s.refreshMetrics()
		}
	}
}

func (s *srv) refreshMetrics() {
	s.mu.Lock()
	n := len(s.channels)
	s.mu.Unlock()

	s.met.SetChannelCount(n)
	s.met.SetSessionCount(s.SessionCount())
	s.met.SetAsyncPending(s.async.Len())
	s.met.SetSchedulerLen(s.sched.Len())
}

// acceptLoop runs on its own goroutine; newChannel only touches the
// mutex-guarded maps, so it is safe to call here even though every other
// channel.Channel method is reserved for the event-loop goroutine.
func (s *srv) acceptLoop() {
	for {
		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()
		if ln == nil {
			return
		}

		conn, err := ln.Accept()
		if err != nil {
			return
		}

		channelID, cerr := s.newChannel(conn)
		if cerr != nil {
			_ = conn.Close()
			continue
		}
		go s.readConn(channelID, conn)
	}
}

func (s *srv) newChannel(conn net.Conn) (uint32, errors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	policy, perr := s.cfg.Policies.Get(s.cfg.Settings.PrimaryPolicy)
	if perr != nil {
		return 0, ErrorNoPrimaryPolicy.Error(nil)
	}

	id := s.nextChan
	s.nextChan++

	ch := channel.New(id, channel.Config{
		Crypto:            s.cfg.Crypto,
		PKI:               s.cfg.PKI,
		Policies:          s.cfg.Policies,
		PKIGroup:          s.cfg.PKIGroup,
		MinKeyBits:        s.cfg.Settings.MinKeyBits,
		DefaultLifetime:   s.cfg.Settings.DefaultChannelLifetime,
		MaxLifetime:       s.cfg.Settings.MaxChannelLifetime,
		InactivityTimeout: s.cfg.Settings.ChannelInactivityTimeout,
		MaxChunkSize:      s.cfg.Settings.MaxChunkSize,
	}, policy.LocalCertificate(), policy.LocalKey())

	s.channels[id] = ch
	s.conns[id] = conn
	return id, nil
}

// readConn only ever performs the blocking network read spec §5 allows
// off the event-loop goroutine; every decoded chunk is handed to inbound
// for runLoop to process serially.
func (s *srv) readConn(channelID uint32, conn net.Conn) {
	for {
		raw, err := readChunk(conn)
		if err != nil {
			s.sendInbound(inboundMsg{channelID: channelID, raw: nil})
			return
		}
		s.sendInbound(inboundMsg{channelID: channelID, raw: raw})
	}
}

func (s *srv) sendInbound(msg inboundMsg) {
	s.mu.Lock()
	ctx := s.loopCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	select {
	case s.inbound <- msg:
	case <-ctx.Done():
	}
}

func (s *srv) handleInbound(msg inboundMsg) {
	s.mu.Lock()
	ch, ok := s.channels[msg.channelID]
	conn := s.conns[msg.channelID]
	s.mu.Unlock()
	if !ok {
		return
	}

	if msg.raw == nil {
		s.mu.Lock()
		s.closeChannelLocked(msg.channelID, ch, statuscode.KindSecureChannelClosed)
		delete(s.conns, msg.channelID)
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	switch messageType(msg.raw) {
	case libchk.MsgHEL:
		s.handleHello(conn, ch, msg.raw)
	case libchk.MsgOPN:
		s.handleOpen(msg.channelID, conn, ch, msg.raw)
	case libchk.MsgMSG:
		s.handleMessage(time.Now(), msg.channelID, conn, ch, msg.raw)
	case libchk.MsgCLO:
		s.handleCloseMessage(msg.channelID, conn, ch, msg.raw)
	}
}

func (s *srv) handleHello(conn net.Conn, ch channel.Channel, raw []byte) {
	info, _, err := decodeHello(raw)
	if err != nil {
		return
	}
	negotiated, herr := ch.HandleHello(info)
	if herr != nil {
		return
	}
	_, _ = conn.Write(encodeAck(negotiated))
}

func (s *srv) handleOpen(channelID uint32, conn net.Conn, ch channel.Channel, raw []byte) {
	requestID, req, derr := ch.DecodeOpenRequest(raw)
	if derr != nil {
		s.abortChannel(channelID, conn, ch)
		return
	}

	resp, oerr := ch.OpenSecureChannel(req)
	if oerr != nil {
		s.abortChannel(channelID, conn, ch)
		return
	}

	chunks, eerr := ch.EncodeOpenResponse(requestID, resp)
	if eerr != nil {
		return
	}
	s.writeChunksTo(conn, chunks)
}

func (s *srv) handleMessage(now time.Time, channelID uint32, conn net.Conn, ch channel.Channel, raw []byte) {
	_, requestID, payload, done, derr := ch.DecodeMessage(raw)
	if derr != nil || !done {
		return
	}
	ch.Touch(now)

	authToken, requestHandle, serviceTypeID, body, perr := peekRequestHeader(payload)
	if perr != nil {
		return
	}

	var out []byte
	switch serviceTypeID {
	case ServiceCreateSession:
		status, respBody := s.serviceCreateSession(ch, uint64(channelID), body)
		out = dispatch.EncodeResponse(requestHandle, status, respBody)
	case ServiceActivateSession:
		status, respBody := s.serviceActivateSession(uint64(channelID), authToken, body)
		out = dispatch.EncodeResponse(requestHandle, status, respBody)
	case ServiceCloseSession:
		status, respBody := s.serviceCloseSession(authToken)
		out = dispatch.EncodeResponse(requestHandle, status, respBody)
	default:
		resp, async, derr2 := s.disp.Dispatch(now, uint64(channelID), requestID, payload)
		if derr2 != nil || async {
			return
		}
		out = resp
	}

	chunks, eerr := ch.EncodeMessage(libchk.MsgMSG, requestID, out)
	if eerr != nil {
		return
	}
	s.writeChunksTo(conn, chunks)
}

func (s *srv) handleCloseMessage(channelID uint32, conn net.Conn, ch channel.Channel, raw []byte) {
	_, _, _, _, _ = ch.DecodeMessage(raw) // best-effort; CLO carries no reply
	s.abortChannel(channelID, conn, ch)
}

func (s *srv) abortChannel(channelID uint32, conn net.Conn, ch channel.Channel) {
	s.mu.Lock()
	s.closeChannelLocked(channelID, ch, statuscode.KindSecureChannelClosed)
	delete(s.conns, channelID)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *srv) writeChunksTo(conn net.Conn, chunks [][]byte) {
	for _, c := range chunks {
		if _, err := conn.Write(c); err != nil {
			return
		}
	}
}

// deliverAsyncResult is the dispatch.AsyncResponder wired into
// dispatch.Config.OnAsyncResult. asyncop settles parked operations from
// Complete/Cancel/Sweep, all of which only ever run on the event-loop
// goroutine, so encoding and writing here needs no extra synchronization.
func (s *srv) deliverAsyncResult(channelID uint64, requestID, requestHandle uint32, result asyncop.Result) {
	s.mu.Lock()
	ch, ok := s.channels[uint32(channelID)]
	conn := s.conns[uint32(channelID)]
	s.mu.Unlock()
	if !ok || conn == nil {
		return
	}

	body, _ := result.Value.([]byte)
	out := dispatch.EncodeResponse(requestHandle, result.Status, body)

	chunks, eerr := ch.EncodeMessage(libchk.MsgMSG, requestID, out)
	if eerr != nil {
		return
	}
	s.writeChunksTo(conn, chunks)
}
