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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		MessageType:     TxRequest,
		TotalLength:     123,
		SourceRank:      1,
		DestinationRank: 0,
		TimestampNs:     1234567890,
		SequenceNumber:  42,
		DeviceId:        7,
		HeaderVersion:   HeaderVersion,
		BodyChecksum:    0xdeadbeef,
	}
	buf := make([]byte, HeaderLen)
	h.Marshal(buf)
	got := UnmarshalHeader(buf)
	assert.Equal(t, h, got)
}

func TestMessageRoundTrip(t *testing.T) {
	body := TxRequestBody{
		DeviceId:  3,
		PhyId:     0,
		TxPowerPw: PowerWattsToPicowatts(0.1),
		Payload:   []byte{1, 2, 3, 4},
		TxVector:  []byte{9, 9},
	}
	bodyBytes := body.Serialize()
	msg := NewMessage(Header{
		MessageType:     TxRequest,
		SourceRank:      1,
		DestinationRank: 0,
		TimestampNs:     100,
		SequenceNumber:  1,
		DeviceId:        3,
	}, bodyBytes, true)

	wire := msg.Serialize()
	parsed, n, err := ParseMessage(wire)
	require.NoError(t, err)
	assert.Equal(t, len(wire), n)
	assert.Equal(t, TxRequest, parsed.Header.MessageType)
	assert.Equal(t, uint32(1), parsed.Header.SequenceNumber)

	gotBody, err := ParseTxRequestBody(parsed.Body)
	require.NoError(t, err)
	assert.Equal(t, body.DeviceId, gotBody.DeviceId)
	assert.Equal(t, body.TxPowerPw, gotBody.TxPowerPw)
	assert.Equal(t, body.Payload, gotBody.Payload)
	assert.Equal(t, body.TxVector, gotBody.TxVector)
}

func TestParseMessageIncomplete(t *testing.T) {
	h := Header{MessageType: Heartbeat, TotalLength: HeaderLen}
	buf := make([]byte, HeaderLen)
	h.Marshal(buf)
	// Only the header; claim a larger total_length so the parser waits for more bytes.
	h.TotalLength = HeaderLen + 10
	h.Marshal(buf)

	msg, n, err := ParseMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, Message{}, msg)
}

func TestParseMessageRejectsUnknownType(t *testing.T) {
	h := Header{MessageType: MessageType(9999), TotalLength: HeaderLen}
	buf := make([]byte, HeaderLen)
	h.Marshal(buf)
	_, _, err := ParseMessage(buf)
	require.Error(t, err)
}

func TestParseMessageRejectsBadLength(t *testing.T) {
	h := Header{MessageType: Heartbeat, TotalLength: 3}
	buf := make([]byte, HeaderLen)
	h.Marshal(buf)
	_, _, err := ParseMessage(buf)
	require.Error(t, err)
}

func TestChecksumDetectsCorruption(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	msg := NewMessage(Header{MessageType: Heartbeat}, body, true)
	wireBytes := msg.Serialize()
	wireBytes[HeaderLen] ^= 0xff // corrupt first body byte
	_, _, err := ParseMessage(wireBytes)
	require.Error(t, err)
}

func TestRxNotificationBodyRoundTrip(t *testing.T) {
	b := RxNotificationBody{
		ReceiverDeviceId:    2,
		TransmitterDeviceId: 1,
		PhyId:               0,
		RxPowerPw:           PowerWattsToPicowatts(1e-9),
		RxPowerDbm:          -60.05,
		PathLossDb:          60.05,
		DistanceM:           10.0,
		FrequencyHz:         2400000000,
		PropagationDelayNs:  33,
		TxTimestampNs:       1000,
		Payload:             []byte("hello"),
	}
	data := b.Serialize()
	got, err := ParseRxNotificationBody(data)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestDeviceRegisterBodyRoundTrip(t *testing.T) {
	b := DeviceRegisterBody{
		PhyId:           1,
		PhyType:         2,
		ChannelNumber:   11,
		ChannelWidthMhz: 20,
		NodeId:          5,
		PosX:            1.5,
		PosY:            -2.5,
		PosZ:            0,
	}
	data := b.Serialize()
	got, err := ParseDeviceRegisterBody(data)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestConfigAckBodyRoundTrip(t *testing.T) {
	b := ConfigAckBody{Kind: AckKindRegister, AssignedDeviceId: 9, AckedSequence: 4}
	data := b.Serialize()
	got, err := ParseConfigAckBody(data)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestDbmWattsConversionRoundTrips(t *testing.T) {
	cases := []float64{-100, -60, -30, 0, 20}
	for _, dbm := range cases {
		w := DbmToWatts(dbm)
		back := WattsToDbm(w)
		assert.InDelta(t, dbm, back, 1e-9)
	}
}
