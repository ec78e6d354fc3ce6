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

package dispatch

import (
	"encoding/binary"
	stderrors "errors"
	"time"

	"github.com/nabbar/opcua-core/asyncop"
	"github.com/nabbar/opcua-core/errors"
	"github.com/nabbar/opcua-core/session"
	"github.com/nabbar/opcua-core/statuscode"
)

var errTruncated = stderrors.New("dispatch: truncated request header")

// requestHeader is the decoded fixed-layout preamble every MSG payload
// carries ahead of its service-specific body (spec §4.11 step 1).
type requestHeader struct {
	authToken         []byte
	requestHandle     uint32
	timeoutHint       time.Duration
	returnDiagnostics uint32
	serviceTypeID     uint32
}

type dispatcher struct {
	cfg      Config
	handlers map[uint32]Handler
}

// New returns a Dispatcher with no handlers registered.
func New(cfg Config) Dispatcher {
	return &dispatcher{
		cfg:      cfg,
		handlers: make(map[uint32]Handler),
	}
}

func (d *dispatcher) Register(serviceTypeID uint32, handler Handler) {
	d.handlers[serviceTypeID] = handler
}

func (d *dispatcher) Dispatch(now time.Time, channelID uint64, requestID uint32, payload []byte) ([]byte, bool, errors.Error) {
	hdr, body, herr := decodeRequestHeader(payload)
	if herr != nil {
		return nil, false, ErrorMalformedHeader.Error(nil)
	}

	sess, status := d.resolveSession(channelID, hdr.authToken)
	if status != statuscode.KindNone {
		return encodeResponse(hdr.requestHandle, status, nil), false, nil
	}

	if !sess.TryAcquire() {
		return encodeResponse(hdr.requestHandle, statuscode.KindInvalidState, nil), false, nil
	}

	sess.Touch(now)

	handler, ok := d.handlers[hdr.serviceTypeID]
	if !ok {
		sess.Release()
		return encodeResponse(hdr.requestHandle, statuscode.KindInvalidArgument, nil), false, nil
	}

	result := handler(ServiceContext{ChannelID: channelID, Session: sess}, body)

	if !result.Async {
		sess.Release()
		return encodeResponse(hdr.requestHandle, result.Status, result.Body), false, nil
	}

	deadline := result.Deadline
	if deadline.IsZero() && hdr.timeoutHint > 0 {
		deadline = now.Add(hdr.timeoutHint)
	}
	if deadline.IsZero() && d.cfg.DefaultTimeout > 0 {
		deadline = now.Add(d.cfg.DefaultTimeout)
	}

	d.cfg.Async.Park(asyncop.Request{
		ChannelID: channelID,
		SessionID: sess.ID(),
		RequestID: requestID,
		Kind:      result.AsyncKind,
		Deadline:  deadline,
		OnComplete: func(r asyncop.Result) {
			sess.Release()
			if d.cfg.OnAsyncResult != nil {
				d.cfg.OnAsyncResult(channelID, requestID, hdr.requestHandle, r)
			}
		},
	})

	return nil, true, nil
}

// resolveSession implements spec §4.11 step 2: token lookup, state and
// channel-binding checks. A non-KindNone status means the caller should
// encode it straight into a response rather than proceed further.
func (d *dispatcher) resolveSession(channelID uint64, token []byte) (session.Session, statuscode.Kind) {
	sess, ok := d.cfg.Sessions.GetByToken(token)
	if !ok {
		return nil, statuscode.KindSessionIdInvalid
	}
	if sess.State() != session.StateActivated {
		return nil, statuscode.KindSessionNotActivated
	}
	if !sess.CheckBinding(channelID) {
		return nil, statuscode.KindSessionNotActivated
	}
	return sess, statuscode.KindNone
}

func decodeRequestHeader(raw []byte) (requestHeader, []byte, error) {
	var h requestHeader

	token, rest, err := getBytesField(raw)
	if err != nil {
		return h, nil, err
	}
	h.authToken = token

	v, rest, err := getUint32(rest)
	if err != nil {
		return h, nil, err
	}
	h.requestHandle = v

	v, rest, err = getUint32(rest)
	if err != nil {
		return h, nil, err
	}
	h.timeoutHint = time.Duration(v) * time.Millisecond

	v, rest, err = getUint32(rest)
	if err != nil {
		return h, nil, err
	}
	h.returnDiagnostics = v

	v, rest, err = getUint32(rest)
	if err != nil {
		return h, nil, err
	}
	h.serviceTypeID = v

	return h, rest, nil
}

// EncodeRequest builds the wire payload Dispatch expects: the request
// header described by decodeRequestHeader followed by body. Exported so
// the server glue can address a session by its authentication token
// without duplicating this package's framing.
func EncodeRequest(authToken []byte, requestHandle uint32, timeoutHint time.Duration, serviceTypeID uint32, body []byte) []byte {
	var out []byte
	out = putBytesField(out, authToken)
	out = putUint32(out, requestHandle)
	out = putUint32(out, uint32(timeoutHint/time.Millisecond))
	out = putUint32(out, 0)
	out = putUint32(out, serviceTypeID)
	return append(out, body...)
}

// DecodeResponse parses a payload Dispatch returned synchronously, or
// that an AsyncResponder received, into its requestHandle/status/body.
func DecodeResponse(raw []byte) (requestHandle uint32, status statuscode.Code, body []byte, err error) {
	requestHandle, rest, err := getUint32(raw)
	if err != nil {
		return 0, 0, nil, err
	}
	v, rest, err := getUint32(rest)
	if err != nil {
		return 0, 0, nil, err
	}
	return requestHandle, statuscode.Code(v), rest, nil
}

// EncodeResponse builds the same [requestHandle|serviceResult|body] wire
// layout Dispatch's synchronous return value uses, so an AsyncResponder
// can hand a settled asyncop.Result to the channel/chunk layer the same
// way a synchronous response would have been encoded.
func EncodeResponse(requestHandle uint32, status statuscode.Kind, body []byte) []byte {
	return encodeResponse(requestHandle, status, body)
}

func putBytesField(dst, v []byte) []byte {
	dst = putUint32(dst, uint32(len(v)))
	return append(dst, v...)
}

func encodeResponse(requestHandle uint32, status statuscode.Kind, body []byte) []byte {
	out := make([]byte, 0, 8+len(body))
	out = putUint32(out, requestHandle)
	out = putUint32(out, uint32(statuscode.Of(status)))
	return append(out, body...)
}

func putUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func getUint32(src []byte) (uint32, []byte, error) {
	if len(src) < 4 {
		return 0, nil, errTruncated
	}
	return binary.LittleEndian.Uint32(src[:4]), src[4:], nil
}

func getBytesField(src []byte) ([]byte, []byte, error) {
	l, rest, err := getUint32(src)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(rest)) < l {
		return nil, nil, errTruncated
	}
	return rest[:l], rest[l:], nil
}
