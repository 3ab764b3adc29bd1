// Copyright (c) 2020-2023, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package wire

import "fmt"

// Message is a Header paired with its raw, not-yet-type-switched body bytes.
// Fabric Adapter implementations (§4.6) carry Messages in serialized form
// (Serialize / ParseMessage); the channel
// processor and channel stub decode the body according to Header.MessageType.
type Message struct {
	Header Header
	Body   []byte
}

// NewMessage builds a Message from a header template and an already-serialized
// body, filling in TotalLength and, if useChecksum, BodyChecksum.
func NewMessage(h Header, body []byte, useChecksum bool) Message {
	h.TotalLength = uint32(HeaderLen + len(body))
	h.HeaderVersion = HeaderVersion
	if useChecksum {
		h.BodyChecksum = Checksum(body)
	} else {
		h.BodyChecksum = 0
	}
	return Message{Header: h, Body: body}
}

// Serialize renders the Message to its complete wire form: header followed by body.
func (m *Message) Serialize() []byte {
	buf := make([]byte, HeaderLen+len(m.Body))
	m.Header.Marshal(buf[:HeaderLen])
	copy(buf[HeaderLen:], m.Body)
	return buf
}

// ParseMessage decodes one framed Message from the front of data. It returns
// the message, the number of bytes consumed, and an error. A nil error with
// consumed == 0 means data does not yet contain one complete message (the
// caller, typically a stream reader, should wait for more bytes); this is not
// itself a validation failure.
func ParseMessage(data []byte) (Message, int, error) {
	if len(data) < HeaderLen {
		return Message{}, 0, nil
	}
	h := UnmarshalHeader(data[:HeaderLen])
	if err := ValidateHeaderStructure(h); err != nil {
		return Message{}, 0, err
	}
	total := int(h.TotalLength)
	if len(data) < total {
		return Message{}, 0, nil
	}
	body := append([]byte(nil), data[HeaderLen:total]...)
	if h.BodyChecksum != 0 && Checksum(body) != h.BodyChecksum {
		return Message{}, 0, fmt.Errorf("wire: body checksum mismatch for %s from rank %d", h.MessageType, h.SourceRank)
	}
	return Message{Header: h, Body: body}, total, nil
}

// ValidateHeaderStructure applies the header-only validation rules of §4.1
// that do not require simulator/session context (message_type enum membership,
// total_length bounds). The source_rank-matches-transport, timestamp-vs-safe-time,
// and sequence-monotonicity rules require session state and are checked by the
// channel processor's receive loop, not here; the channel stub's receive loop
// checks only the timestamp rule.
func ValidateHeaderStructure(h Header) error {
	if !h.MessageType.IsValid() {
		return fmt.Errorf("wire: invalid message_type %d", uint32(h.MessageType))
	}
	if h.TotalLength < HeaderLen || h.TotalLength > MaxMessageSize {
		return fmt.Errorf("wire: total_length %d out of range [%d, %d]", h.TotalLength, HeaderLen, MaxMessageSize)
	}
	return nil
}
