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

// Package dispatch implements the ServiceDispatcher (spec C11): per MSG
// payload, it decodes the request header, resolves and binds the
// session, invokes the registered service handler, and either encodes a
// synchronous response or parks the request in the AsyncOperationTable
// (C7) for later delivery.
package dispatch

import (
	"time"

	"github.com/nabbar/opcua-core/asyncop"
	"github.com/nabbar/opcua-core/errors"
	"github.com/nabbar/opcua-core/session"
	"github.com/nabbar/opcua-core/statuscode"
)

// ServiceContext is handed to every service handler: the channel the
// request arrived on and the session it was resolved against.
type ServiceContext struct {
	ChannelID uint64
	Session   session.Session
}

// Result is a handler's outcome. A handler either finishes synchronously
// (Async false, Body/Status set) or signals it will complete later
// (Async true); in the latter case AsyncKind groups it for the
// BatchCoalescer (C9) and Deadline bounds how long it may stay parked.
type Result struct {
	Async     bool
	Body      []byte
	Status    statuscode.Kind
	AsyncKind asyncop.Kind
	Deadline  time.Time
}

// Handler processes one decoded service request body and returns a Result.
type Handler func(ctx ServiceContext, body []byte) Result

// AsyncResponder delivers the response for a request that completed
// asynchronously, once the AsyncOperationTable settles it. The caller
// (server glue) encodes and sends it the same way Dispatch's synchronous
// return value would have been sent.
type AsyncResponder func(channelID uint64, requestID, requestHandle uint32, result asyncop.Result)

// Config binds a Dispatcher to the collaborators it looks up sessions
// and parks async operations through.
type Config struct {
	Sessions       session.Manager
	Async          asyncop.Table
	OnAsyncResult  AsyncResponder
	DefaultTimeout time.Duration
}

// Dispatcher is the ServiceDispatcher capability set (spec §4.11). Not
// safe for concurrent use -- driven from the single-threaded event loop.
type Dispatcher interface {
	// Register binds handler to serviceTypeID, the 4-byte little-endian
	// tag every decoded request body leads with.
	Register(serviceTypeID uint32, handler Handler)

	// Dispatch decodes payload (one MSG chunk's reassembled body),
	// resolves and binds the owning session, and runs the registered
	// handler. A non-nil returned byte slice is a complete response
	// body ready to hand to the channel/chunk framer as one MSG; a nil
	// slice with async true means no response is ready yet -- it will
	// arrive later via Config.OnAsyncResult. err is non-nil only for a
	// payload too malformed to build any response from at all.
	Dispatch(now time.Time, channelID uint64, requestID uint32, payload []byte) (response []byte, async bool, err errors.Error)
}
