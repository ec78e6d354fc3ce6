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

package chunk

import (
	"encoding/binary"

	"github.com/nabbar/opcua-core/errors"
)

type framer struct{}

// New returns a Framer. It carries no state of its own; sequence counters
// and security contexts are supplied per call by the owning SecureChannel.
func New() Framer {
	return &framer{}
}

func putUint32Field(dst []byte, v []byte) []byte {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(v)))
	dst = append(dst, l[:]...)
	return append(dst, v...)
}

func getUint32Field(src []byte) (v []byte, rest []byte, err errors.Error) {
	if len(src) < 4 {
		return nil, nil, ErrorMalformedHeader.Error(nil)
	}
	l := binary.LittleEndian.Uint32(src[:4])
	src = src[4:]
	if uint32(len(src)) < l {
		return nil, nil, ErrorMalformedHeader.Error(nil)
	}
	return src[:l], src[l:], nil
}

func encodeAsym(h *AsymmetricSecurityHeader) []byte {
	var b []byte
	b = putUint32Field(b, []byte(h.PolicyURI))
	b = putUint32Field(b, h.SenderCertificate)
	b = putUint32Field(b, h.ReceiverThumbprint)
	return b
}

func decodeAsym(src []byte) (*AsymmetricSecurityHeader, []byte, errors.Error) {
	uri, rest, err := getUint32Field(src)
	if err != nil {
		return nil, nil, err
	}
	cert, rest, err := getUint32Field(rest)
	if err != nil {
		return nil, nil, err
	}
	thumb, rest, err := getUint32Field(rest)
	if err != nil {
		return nil, nil, err
	}
	return &AsymmetricSecurityHeader{
		PolicyURI:          string(uri),
		SenderCertificate:  cert,
		ReceiverThumbprint: thumb,
	}, rest, nil
}

func encodeSym(h *SymmetricSecurityHeader) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], h.TokenID)
	return b[:]
}

func decodeSym(src []byte) (*SymmetricSecurityHeader, []byte, errors.Error) {
	if len(src) < 4 {
		return nil, nil, ErrorMalformedHeader.Error(nil)
	}
	return &SymmetricSecurityHeader{TokenID: binary.LittleEndian.Uint32(src[:4])}, src[4:], nil
}

func encodeSeq(h SequenceHeader) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], h.SequenceNumber)
	binary.LittleEndian.PutUint32(b[4:8], h.RequestID)
	return b[:]
}

func decodeSeq(src []byte) (SequenceHeader, []byte, errors.Error) {
	if len(src) < 8 {
		return SequenceHeader{}, nil, ErrorMalformedHeader.Error(nil)
	}
	return SequenceHeader{
		SequenceNumber: binary.LittleEndian.Uint32(src[0:4]),
		RequestID:      binary.LittleEndian.Uint32(src[4:8]),
	}, src[8:], nil
}

func putCommonHeader(msgType MessageType, ct ChunkType, size uint32) []byte {
	b := make([]byte, headerFixedSize)
	copy(b[0:3], msgType[:])
	b[3] = byte(ct)
	binary.LittleEndian.PutUint32(b[4:8], size)
	return b
}

func getCommonHeader(src []byte) (msgType MessageType, ct ChunkType, size uint32, err errors.Error) {
	if len(src) < headerFixedSize {
		return MessageType{}, 0, 0, ErrorMalformedHeader.Error(nil)
	}
	copy(msgType[:], src[0:3])
	ct = ChunkType(src[3])
	size = binary.LittleEndian.Uint32(src[4:8])
	return msgType, ct, size, nil
}

// PeekAsymmetricHeader reads the common+asymmetric-security header of an
// OPN chunk without touching the secured body, so a caller can resolve a
// SecurityPolicy and sender certificate before it has anything able to
// decrypt the body itself.
func PeekAsymmetricHeader(raw []byte) (MessageType, *AsymmetricSecurityHeader, errors.Error) {
	msgType, _, size, err := getCommonHeader(raw)
	if err != nil {
		return msgType, nil, err
	}
	if size != uint32(len(raw)) {
		return msgType, nil, ErrorChunkTooLarge.Error(nil)
	}
	hdr, _, err := decodeAsym(raw[headerFixedSize:])
	if err != nil {
		return msgType, nil, err
	}
	return msgType, hdr, nil
}

// PeekSymmetricHeader reads the common+symmetric-security header of a
// MSG/CLO chunk without touching the secured body, so a caller can pick
// the token (current or previous) to verify and decrypt with.
func PeekSymmetricHeader(raw []byte) (MessageType, *SymmetricSecurityHeader, errors.Error) {
	msgType, _, size, err := getCommonHeader(raw)
	if err != nil {
		return msgType, nil, err
	}
	if size != uint32(len(raw)) {
		return msgType, nil, ErrorChunkTooLarge.Error(nil)
	}
	hdr, _, err := decodeSym(raw[headerFixedSize:])
	if err != nil {
		return msgType, nil, err
	}
	return msgType, hdr, nil
}

func (f *framer) EncodeError(code uint32, reason string) []byte {
	body := make([]byte, 0, 4+4+len(reason))
	var c [4]byte
	binary.LittleEndian.PutUint32(c[:], code)
	body = append(body, c[:]...)
	body = putUint32Field(body, []byte(reason))

	header := putCommonHeader(MsgERR, ChunkFinal, uint32(headerFixedSize+len(body)))
	return append(header, body...)
}

func (f *framer) EncodeSend(msgType MessageType, requestID uint32, seq *SequenceCounter, asym *AsymmetricSecurityHeader, sym *SymmetricSecurityHeader, body []byte, sec SecurityContext, maxChunkSize uint32) ([][]byte, errors.Error) {
	if !msgType.securedMessage() {
		header := putCommonHeader(msgType, ChunkFinal, uint32(headerFixedSize+len(body)))
		return [][]byte{append(header, body...)}, nil
	}

	if sec == nil {
		return nil, ErrorMissingSecurityContext.Error(nil)
	}

	var secHeader []byte
	switch msgType {
	case MsgOPN:
		if asym == nil {
			return nil, ErrorMissingSecurityContext.Error(nil)
		}
		secHeader = encodeAsym(asym)
	case MsgMSG, MsgCLO:
		if sym == nil {
			return nil, ErrorMissingSecurityContext.Error(nil)
		}
		secHeader = encodeSym(sym)
	}

	overhead := headerFixedSize + len(secHeader) + 8 + sec.SignatureSize()
	if sec.BlockSize() > 1 {
		overhead += sec.BlockSize() - 1
	}
	if uint32(overhead) >= maxChunkSize {
		return nil, ErrorChunkTooLarge.Error(nil)
	}
	maxBody := int(maxChunkSize) - overhead

	var pieces [][]byte
	if len(body) == 0 {
		pieces = [][]byte{{}}
	} else {
		for off := 0; off < len(body); off += maxBody {
			end := off + maxBody
			if end > len(body) {
				end = len(body)
			}
			pieces = append(pieces, body[off:end])
		}
	}

	chunks := make([][]byte, 0, len(pieces))
	for i, piece := range pieces {
		ct := ChunkContinue
		if i == len(pieces)-1 {
			ct = ChunkFinal
		}

		plain := append(encodeSeq(SequenceHeader{SequenceNumber: seq.Next(), RequestID: requestID}), piece...)
		authHeader := putCommonHeader(msgType, ct, 0)
		authHeader = append(authHeader, secHeader...)

		secured, err := sec.SignAndEncrypt(authHeader, plain)
		if err != nil {
			return nil, err
		}

		total := headerFixedSize + len(secHeader) + len(secured)
		chunk := putCommonHeader(msgType, ct, uint32(total))
		chunk = append(chunk, secHeader...)
		chunk = append(chunk, secured...)
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

type reassembler struct {
	active    bool
	msgType   MessageType
	requestID uint32
	haveLast  bool
	lastSeq   uint32
	buf       []byte
}

// NewReassembler returns a Reassembler for one message direction of one channel.
func NewReassembler() Reassembler {
	return &reassembler{}
}

func (r *reassembler) Reset() {
	r.active = false
	r.haveLast = false
	r.lastSeq = 0
	r.buf = nil
}

func (r *reassembler) Feed(raw []byte, sec SecurityContext, maxChunkSize uint32) (MessageType, uint32, []byte, bool, errors.Error) {
	msgType, ct, size, err := getCommonHeader(raw)
	if err != nil {
		return MessageType{}, 0, nil, false, err
	}
	if size != uint32(len(raw)) || size > maxChunkSize {
		return msgType, 0, nil, false, ErrorChunkTooLarge.Error(nil)
	}

	if !msgType.securedMessage() {
		return msgType, 0, raw[headerFixedSize:], true, nil
	}
	if sec == nil {
		return msgType, 0, nil, false, ErrorMissingSecurityContext.Error(nil)
	}

	rest := raw[headerFixedSize:]
	authHeader := raw[:headerFixedSize]

	var secHeaderLen int
	switch msgType {
	case MsgOPN:
		_, tail, derr := decodeAsym(rest)
		if derr != nil {
			return msgType, 0, nil, false, derr
		}
		secHeaderLen = len(rest) - len(tail)
	case MsgMSG, MsgCLO:
		_, tail, derr := decodeSym(rest)
		if derr != nil {
			return msgType, 0, nil, false, derr
		}
		secHeaderLen = len(rest) - len(tail)
	default:
		return msgType, 0, nil, false, ErrorUnknownMessageType.Error(nil)
	}

	authHeader = append(append([]byte{}, authHeader...), rest[:secHeaderLen]...)
	securedBody := rest[secHeaderLen:]

	plain, verr := sec.VerifyAndDecrypt(authHeader, securedBody)
	if verr != nil {
		return msgType, 0, nil, false, verr
	}

	seqHdr, piece, derr := decodeSeq(plain)
	if derr != nil {
		return msgType, 0, nil, false, derr
	}

	if ct == ChunkAbort {
		r.Reset()
		return msgType, seqHdr.RequestID, nil, false, nil
	}

	if r.haveLast && !IsLegalSuccessor(r.lastSeq, seqHdr.SequenceNumber) {
		r.Reset()
		return msgType, seqHdr.RequestID, nil, false, ErrorSequenceDiscontinuity.Error(nil)
	}
	r.lastSeq = seqHdr.SequenceNumber
	r.haveLast = true

	if !r.active {
		r.active = true
		r.msgType = msgType
		r.requestID = seqHdr.RequestID
		r.buf = nil
	} else if r.requestID != seqHdr.RequestID {
		r.Reset()
		return msgType, seqHdr.RequestID, nil, false, ErrorMalformedHeader.Error(nil)
	}

	r.buf = append(r.buf, piece...)

	if ct == ChunkContinue {
		return msgType, seqHdr.RequestID, nil, false, nil
	}

	// ct == ChunkFinal
	payload := r.buf
	reqID := r.requestID
	mType := r.msgType
	r.Reset()
	return mType, reqID, payload, true, nil
}
