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
	"encoding/binary"
	stderrors "errors"
	"io"
	"net"

	"github.com/nabbar/opcua-core/channel"
	libchk "github.com/nabbar/opcua-core/chunk"
	"github.com/nabbar/opcua-core/pki"
)

var errTruncated = stderrors.New("server: truncated chunk")

const commonHeaderSize = 3 + 1 + 4

// readChunk reads one complete wire chunk off conn: the 8-byte common
// header (msg_type, chunk_type, size) followed by size-8 more bytes, per
// spec §4.4's framing. HEL/ACK/ERR are always a single such chunk.
func readChunk(conn net.Conn) ([]byte, error) {
	hdr := make([]byte, commonHeaderSize)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[4:8])
	if size < commonHeaderSize {
		return nil, errTruncated
	}
	raw := make([]byte, size)
	copy(raw, hdr)
	if _, err := io.ReadFull(conn, raw[commonHeaderSize:]); err != nil {
		return nil, err
	}
	return raw, nil
}

// decodeHello parses a HEL chunk's body: protocolVersion, three buffer
// sizes, maxChunkCount, then a length-prefixed endpoint URL.
func decodeHello(raw []byte) (channel.HelloInfo, string, error) {
	var info channel.HelloInfo
	body := raw[commonHeaderSize:]

	v, body, err := getUint32(body)
	if err != nil {
		return info, "", err
	}
	_ = v // protocolVersion -- only version 0 is defined, nothing to branch on

	if info.ReceiveBufferSize, body, err = getUint32(body); err != nil {
		return info, "", err
	}
	if info.SendBufferSize, body, err = getUint32(body); err != nil {
		return info, "", err
	}
	if info.MaxMessageSize, body, err = getUint32(body); err != nil {
		return info, "", err
	}
	if info.MaxChunkCount, body, err = getUint32(body); err != nil {
		return info, "", err
	}
	url, _, err := getBytesField(body)
	if err != nil {
		return info, "", err
	}
	return info, string(url), nil
}

// encodeAck frames info as a single ACK chunk.
func encodeAck(info channel.HelloInfo) []byte {
	var body []byte
	body = putUint32(body, 0) // protocolVersion
	body = putUint32(body, info.ReceiveBufferSize)
	body = putUint32(body, info.SendBufferSize)
	body = putUint32(body, info.MaxMessageSize)
	body = putUint32(body, info.MaxChunkCount)

	out := make([]byte, 0, commonHeaderSize+len(body))
	out = append(out, libchk.MsgACK[:]...)
	out = append(out, byte(libchk.ChunkFinal))
	out = putUint32(out, uint32(commonHeaderSize+len(body)))
	out = append(out, body...)
	return out
}

func messageType(raw []byte) libchk.MessageType {
	var mt libchk.MessageType
	copy(mt[:], raw[:3])
	return mt
}

// peekRequestHeader parses the same [authToken|requestHandle|timeoutHint|
// returnDiagnostics|serviceTypeID] preamble dispatch.decodeRequestHeader
// does, so the event loop can special-case CreateSession/ActivateSession/
// CloseSession -- which arrive with no session yet resolvable -- before
// handing anything else to the Dispatcher.
func peekRequestHeader(payload []byte) (authToken []byte, requestHandle, serviceTypeID uint32, body []byte, err error) {
	authToken, rest, err := getBytesField(payload)
	if err != nil {
		return nil, 0, 0, nil, err
	}
	requestHandle, rest, err = getUint32(rest)
	if err != nil {
		return nil, 0, 0, nil, err
	}
	if _, rest, err = getUint32(rest); err != nil { // timeoutHint, unused here
		return nil, 0, 0, nil, err
	}
	if _, rest, err = getUint32(rest); err != nil { // returnDiagnostics, unused here
		return nil, 0, 0, nil, err
	}
	serviceTypeID, rest, err = getUint32(rest)
	if err != nil {
		return nil, 0, 0, nil, err
	}
	return authToken, requestHandle, serviceTypeID, rest, nil
}

func getGroup(src []byte) (pki.Group, []byte, error) {
	if len(src) < 1 {
		return 0, nil, errTruncated
	}
	return pki.Group(src[0]), src[1:], nil
}

func getBool(src []byte) (bool, []byte, error) {
	if len(src) < 1 {
		return false, nil, errTruncated
	}
	return src[0] != 0, src[1:], nil
}

func putBytesField(dst, v []byte) []byte {
	dst = putUint32(dst, uint32(len(v)))
	return append(dst, v...)
}

func putUint64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func getUint64(src []byte) (uint64, []byte, error) {
	if len(src) < 8 {
		return 0, nil, errTruncated
	}
	return binary.LittleEndian.Uint64(src[:8]), src[8:], nil
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
