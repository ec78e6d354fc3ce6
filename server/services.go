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
	"time"

	"github.com/nabbar/opcua-core/channel"
	"github.com/nabbar/opcua-core/dispatch"
	"github.com/nabbar/opcua-core/pki"
	"github.com/nabbar/opcua-core/session"
	"github.com/nabbar/opcua-core/statuscode"
)

// CreateSession/ActivateSession/CloseSession carry no resolvable
// authentication token the way every other service does (CreateSession
// has none yet; ActivateSession's and CloseSession's identify the
// session itself rather than an already-activated one dispatch.Dispatcher
// could bind), so the event loop special-cases all three ahead of
// Dispatch, matching the ServiceCreateSession doc comment in interface.go.

func (s *srv) serviceCreateSession(ch channel.Channel, channelID uint64, body []byte) (statuscode.Kind, []byte) {
	timeoutMs, _, err := getUint32(body)
	if err != nil {
		return statuscode.KindInvalidArgument, nil
	}

	sess, cerr := s.sessions.CreateSession(channelID, time.Duration(timeoutMs)*time.Millisecond)
	if cerr != nil {
		return statuscode.KindInvalidState, nil
	}
	ch.BindSession(sess.ID())
	s.addSessionCount(1)

	var out []byte
	out = putUint64(out, sess.ID())
	out = putBytesField(out, sess.AuthenticationToken())
	return statuscode.KindNone, out
}

func (s *srv) serviceActivateSession(channelID uint64, authToken, body []byte) (statuscode.Kind, []byte) {
	sess, ok := s.sessions.GetByToken(authToken)
	if !ok {
		return statuscode.KindSessionIdInvalid, nil
	}

	cert, rest, err := getBytesField(body)
	if err != nil {
		return statuscode.KindInvalidArgument, nil
	}
	sig, rest, err := getBytesField(rest)
	if err != nil {
		return statuscode.KindInvalidArgument, nil
	}
	serverCert, rest, err := getBytesField(rest)
	if err != nil {
		return statuscode.KindInvalidArgument, nil
	}
	serverNonce, _, err := getBytesField(rest)
	if err != nil {
		return statuscode.KindInvalidArgument, nil
	}

	identity := session.UserIdentity{Certificate: cert, Signature: sig}
	if aerr := sess.Activate(channelID, identity, serverCert, serverNonce); aerr != nil {
		return statuscode.KindInvalidArgument, nil
	}
	return statuscode.KindNone, nil
}

func (s *srv) serviceCloseSession(authToken []byte) (statuscode.Kind, []byte) {
	sess, ok := s.sessions.GetByToken(authToken)
	if !ok {
		return statuscode.KindSessionIdInvalid, nil
	}
	s.sessions.Close(sess.ID())
	s.addSessionCount(-1)
	return statuscode.KindNone, nil
}

// registerBuiltinServices binds the GDS-backed services (spec §4.10) to
// the Dispatcher as ordinary Handlers -- unlike the three above, each of
// these requires an already-activated session dispatch.Dispatch resolves
// the normal way.
func (s *srv) registerBuiltinServices() {
	s.disp.Register(ServiceGetRejectedList, s.handleGetRejectedList)
	s.disp.Register(ServiceUpdateCertificate, s.handleUpdateCertificate)
	s.disp.Register(ServiceCreateSigningRequest, s.handleCreateSigningRequest)
	s.disp.Register(ServiceApplyChanges, s.handleApplyChanges)
	s.disp.Register(ServiceRead, s.handleTrustListRead)
}

func (s *srv) handleGetRejectedList(_ dispatch.ServiceContext, _ []byte) dispatch.Result {
	list := s.gdsM.GetRejectedList()
	var out []byte
	out = putUint32(out, uint32(len(list)))
	for _, der := range list {
		out = putBytesField(out, der)
	}
	return dispatch.Result{Status: statuscode.KindNone, Body: out}
}

func (s *srv) handleUpdateCertificate(ctx dispatch.ServiceContext, body []byte) dispatch.Result {
	group, rest, err := getGroup(body)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}
	certTypeID, rest, err := getBytesField(rest)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}
	cert, rest, err := getBytesField(rest)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}
	issuerChain, rest, err := getBytesField(rest)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}
	privateKey, _, err := getBytesField(rest)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}

	applyRequired, uerr := s.gdsM.UpdateCertificate(ctx.Session.ID(), group, string(certTypeID), cert, issuerChain, privateKey)
	if uerr != nil {
		return dispatch.Result{Status: statuscode.KindInvalidState}
	}

	out := []byte{0}
	if applyRequired {
		out[0] = 1
	}
	return dispatch.Result{Status: statuscode.KindNone, Body: out}
}

func (s *srv) handleCreateSigningRequest(ctx dispatch.ServiceContext, body []byte) dispatch.Result {
	group, rest, err := getGroup(body)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}
	certTypeID, rest, err := getBytesField(rest)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}
	subject, rest, err := getBytesField(rest)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}
	regenerateKey, rest, err := getBool(rest)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}
	nonce, _, err := getBytesField(rest)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}

	csr, cerr := s.gdsM.CreateSigningRequest(ctx.Session.ID(), group, string(certTypeID), string(subject), regenerateKey, nonce)
	if cerr != nil {
		return dispatch.Result{Status: statuscode.KindInvalidState}
	}
	return dispatch.Result{Status: statuscode.KindNone, Body: putBytesField(nil, csr)}
}

// handleApplyChanges commits the calling session's pending GDS
// transaction. A changed local certificate invalidates every open
// channel's handshake identity regardless of which group it belongs to,
// since channel.Channel does not expose which policy/group it negotiated
// under -- documented as a deliberate simplification in DESIGN.md.
func (s *srv) handleApplyChanges(ctx dispatch.ServiceContext, _ []byte) dispatch.Result {
	aerr := s.gdsM.ApplyChanges(ctx.Session.ID(), func(_, certChanged map[pki.Group]bool) {
		if len(certChanged) == 0 {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, ch := range s.channels {
			s.closeChannelLocked(id, ch, statuscode.KindSecureChannelClosed)
			if conn, ok := s.conns[id]; ok {
				_ = conn.Close()
				delete(s.conns, id)
			}
		}
	})
	if aerr != nil {
		return dispatch.Result{Status: statuscode.KindInvalidState}
	}
	return dispatch.Result{Status: statuscode.KindNone}
}

func (s *srv) handleTrustListRead(ctx dispatch.ServiceContext, body []byte) dispatch.Result {
	group, rest, err := getGroup(body)
	if err != nil {
		return dispatch.Result{Status: statuscode.KindInvalidArgument}
	}
	mask := pki.MaskAll
	if len(rest) >= 1 {
		mask = pki.Mask(rest[0])
	}

	sessionID := ctx.Session.ID()
	handle, herr := s.gdsM.OpenWithMasks(sessionID, group, mask)
	if herr != nil {
		return dispatch.Result{Status: statuscode.KindInvalidState}
	}
	defer func() { _ = s.gdsM.Close(sessionID, group, handle) }()

	var out []byte
	for {
		chunk, rerr := s.gdsM.Read(sessionID, group, handle, 4096)
		if rerr != nil {
			return dispatch.Result{Status: statuscode.KindInvalidState}
		}
		if len(chunk) == 0 {
			break
		}
		out = append(out, chunk...)
	}
	return dispatch.Result{Status: statuscode.KindNone, Body: putBytesField(nil, out)}
}
