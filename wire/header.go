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

// Package wire implements the fixed-layout message header and per-type bodies
// that cross the fabric between the channel processor and the channel stubs.
// Every type here is a pure byte-layout concern: no simulator state lives in
// this package (per spec §4.1).
package wire

import (
	"encoding/binary"
	"math"
)

// MessageType enumerates the wire message types (§6).
type MessageType uint32

const (
	DeviceRegister   MessageType = 100
	ConfigDelayModel MessageType = 101
	ConfigLossModel  MessageType = 102
	TxRequest        MessageType = 103
	DeviceRemove     MessageType = 104
	PositionUpdate   MessageType = 105

	RxNotification MessageType = 200
	TxStartNotify  MessageType = 201
	TxEndNotify    MessageType = 202
	ConfigAck      MessageType = 203
	ErrorNotify    MessageType = 204

	Heartbeat MessageType = 301
)

// IsValid reports whether t is one of the enumerated message types (§4.1 validation rule 1).
func (t MessageType) IsValid() bool {
	switch t {
	case DeviceRegister, ConfigDelayModel, ConfigLossModel, TxRequest, DeviceRemove, PositionUpdate,
		RxNotification, TxStartNotify, TxEndNotify, ConfigAck, ErrorNotify, Heartbeat:
		return true
	default:
		return false
	}
}

func (t MessageType) String() string {
	switch t {
	case DeviceRegister:
		return "DEVICE_REGISTER"
	case ConfigDelayModel:
		return "CONFIG_DELAY_MODEL"
	case ConfigLossModel:
		return "CONFIG_LOSS_MODEL"
	case TxRequest:
		return "TX_REQUEST"
	case DeviceRemove:
		return "DEVICE_REMOVE"
	case PositionUpdate:
		return "POSITION_UPDATE"
	case RxNotification:
		return "RX_NOTIFICATION"
	case TxStartNotify:
		return "TX_START_NOTIFY"
	case TxEndNotify:
		return "TX_END_NOTIFY"
	case ConfigAck:
		return "CONFIG_ACK"
	case ErrorNotify:
		return "ERROR_NOTIFY"
	case Heartbeat:
		return "HEARTBEAT"
	default:
		return "UNKNOWN"
	}
}

const (
	// HeaderLen is the fixed wire header size in bytes (§6).
	HeaderLen = 44

	// MaxMessageSize is the recommended upper bound on total_length (§4.1).
	MaxMessageSize = 1 << 20 // 1 MiB

	// HeaderVersion is the only header_version this implementation emits or accepts.
	HeaderVersion uint32 = 1
)

// Header is the fixed 44-byte message header (§6), network byte order.
type Header struct {
	MessageType      MessageType
	TotalLength      uint32
	SourceRank       uint32
	DestinationRank  uint32
	TimestampNs      uint64
	SequenceNumber   uint32
	DeviceId         uint32
	Reserved         uint32
	HeaderVersion    uint32
	BodyChecksum     uint32
}

// Marshal writes the header into the first HeaderLen bytes of buf, which must be
// at least HeaderLen bytes long.
func (h *Header) Marshal(buf []byte) {
	_ = buf[HeaderLen-1]
	binary.BigEndian.PutUint32(buf[0:4], uint32(h.MessageType))
	binary.BigEndian.PutUint32(buf[4:8], h.TotalLength)
	binary.BigEndian.PutUint32(buf[8:12], h.SourceRank)
	binary.BigEndian.PutUint32(buf[12:16], h.DestinationRank)
	binary.BigEndian.PutUint64(buf[16:24], h.TimestampNs)
	binary.BigEndian.PutUint32(buf[24:28], h.SequenceNumber)
	binary.BigEndian.PutUint32(buf[28:32], h.DeviceId)
	binary.BigEndian.PutUint32(buf[32:36], h.Reserved)
	binary.BigEndian.PutUint32(buf[36:40], h.HeaderVersion)
	binary.BigEndian.PutUint32(buf[40:44], h.BodyChecksum)
}

// UnmarshalHeader parses a Header from the first HeaderLen bytes of buf.
func UnmarshalHeader(buf []byte) Header {
	_ = buf[HeaderLen-1]
	return Header{
		MessageType:     MessageType(binary.BigEndian.Uint32(buf[0:4])),
		TotalLength:     binary.BigEndian.Uint32(buf[4:8]),
		SourceRank:      binary.BigEndian.Uint32(buf[8:12]),
		DestinationRank: binary.BigEndian.Uint32(buf[12:16]),
		TimestampNs:     binary.BigEndian.Uint64(buf[16:24]),
		SequenceNumber:  binary.BigEndian.Uint32(buf[24:28]),
		DeviceId:        binary.BigEndian.Uint32(buf[28:32]),
		Reserved:        binary.BigEndian.Uint32(buf[32:36]),
		HeaderVersion:   binary.BigEndian.Uint32(buf[36:40]),
		BodyChecksum:    binary.BigEndian.Uint32(buf[40:44]),
	}
}

// Checksum computes the xor-fold of body as 32-bit big-endian words (§6). A
// trailing partial word is zero-padded. The result is 0 whenever the words
// XOR to 0 (an empty body, for one); a header BodyChecksum of 0 means "off",
// so ParseMessage does not verify such a body.
func Checksum(body []byte) uint32 {
	var sum uint32
	n := len(body)
	for i := 0; i+4 <= n; i += 4 {
		sum ^= binary.BigEndian.Uint32(body[i : i+4])
	}
	if rem := n % 4; rem != 0 {
		var last [4]byte
		copy(last[:], body[n-rem:])
		sum ^= binary.BigEndian.Uint32(last[:])
	}
	return sum
}

// PowerWattsToPicowatts converts linear watts to the canonical wire encoding:
// watts * 10^12, rounded to the nearest integer (§4.1, §6).
func PowerWattsToPicowatts(watts float64) uint64 {
	pw := watts * 1e12
	if pw < 0 {
		pw = 0
	}
	return uint64(math.Round(pw))
}

// PowerPicowattsToWatts is the inverse of PowerWattsToPicowatts.
func PowerPicowattsToWatts(pw uint64) float64 {
	return float64(pw) / 1e12
}

// DbmToWatts is the wire package's dBm-to-watts conversion, per the Design
// Notes resolution of the original's inconsistent dBm<->watt scaling:
// P_w = 10^((P_dBm - 30) / 10). The propagation package (and cmd/deviced
// through it) uses its own propagation.DbmToWatts with the same formula
// rather than this function.
func DbmToWatts(dbm float64) float64 {
	return math.Pow(10, (dbm-30)/10)
}

// WattsToDbm is the inverse of DbmToWatts.
func WattsToDbm(watts float64) float64 {
	if watts <= 0 {
		return math.Inf(-1)
	}
	return 10*math.Log10(watts) + 30
}
