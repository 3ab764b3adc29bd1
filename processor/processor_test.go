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

package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakpahana/distchan/fabric"
	"github.com/lakpahana/distchan/progctx"
	"github.com/lakpahana/distchan/wire"
)

func newTestProcessor(t *testing.T, hub *fabric.LoopbackHub) (*Processor, *fabric.LoopbackAdapter) {
	t.Helper()
	channelFab := hub.Adapter(0, 2, 64)
	deviceFab := hub.Adapter(1, 2, 64)

	ctx := progctx.New(context.Background())
	p, err := Init(ctx, channelFab)
	require.NoError(t, err)
	return p, deviceFab
}

func sendRegister(t *testing.T, deviceFab *fabric.LoopbackAdapter, seq uint32, nodeId uint32, x, y, z float64) {
	t.Helper()
	body := wire.DeviceRegisterBody{PhyId: 0, NodeId: nodeId, PosX: x, PosY: y, PosZ: z}
	h := wire.Header{
		MessageType:     wire.DeviceRegister,
		SourceRank:      1,
		DestinationRank: 0,
		SequenceNumber:  seq,
	}
	msg := wire.NewMessage(h, body.Serialize(), true)
	require.NoError(t, deviceFab.Send(0, wire.TagRegister, msg.Serialize()))
}

func TestInitFailsOnNonChannelRank(t *testing.T) {
	hub := fabric.NewLoopbackHub()
	deviceFab := hub.Adapter(1, 2, 64)
	ctx := progctx.New(context.Background())
	_, err := Init(ctx, deviceFab)
	assert.Error(t, err)
}

func TestDeviceRegisterAssignsIdAndAcks(t *testing.T) {
	hub := fabric.NewLoopbackHub()
	p, deviceFab := newTestProcessor(t, hub)

	sendRegister(t, deviceFab, 1, 42, 0, 0, 0)
	p.RunOnce()

	assert.Equal(t, 1, p.Registry.Len())

	var gotAck wire.ConfigAckBody
	deviceFab.Drain(func(sourceRank, tag uint32, data []byte) {
		msg, _, err := wire.ParseMessage(data)
		require.NoError(t, err)
		require.Equal(t, wire.ConfigAck, msg.Header.MessageType)
		gotAck, err = wire.ParseConfigAckBody(msg.Body)
		require.NoError(t, err)
	})
	assert.Equal(t, wire.AckKindRegister, gotAck.Kind)
	assert.Equal(t, uint32(1), gotAck.AssignedDeviceId)
	assert.Equal(t, uint32(1), gotAck.AckedSequence)
}

// §8 scenario 5: sequence regression is fatal.
func TestSequenceRegressionIsFatal(t *testing.T) {
	hub := fabric.NewLoopbackHub()
	p, deviceFab := newTestProcessor(t, hub)

	sendRegister(t, deviceFab, 10, 1, 0, 0, 0)
	p.RunOnce()
	assert.False(t, p.ctx.IsFatal())

	sendRegister(t, deviceFab, 9, 2, 0, 0, 0) // regression: 9 after 10
	p.RunOnce()
	assert.True(t, p.ctx.IsFatal())
}

func TestTxRequestFromUnknownTransmitterIsDroppedLocally(t *testing.T) {
	hub := fabric.NewLoopbackHub()
	p, deviceFab := newTestProcessor(t, hub)

	body := wire.TxRequestBody{DeviceId: 999, TxPowerPw: wire.PowerWattsToPicowatts(0.1)}
	h := wire.Header{MessageType: wire.TxRequest, SourceRank: 1, SequenceNumber: 1, DeviceId: 999}
	msg := wire.NewMessage(h, body.Serialize(), true)
	require.NoError(t, deviceFab.Send(0, wire.TagTx, msg.Serialize()))

	p.RunOnce()

	assert.False(t, p.ctx.IsFatal())
	assert.Equal(t, uint64(1), p.Stats.Snapshot().TxRequestsDroppedUnknownTransmitter)
}

func TestZeroPowerTxRequestIsNoop(t *testing.T) {
	hub := fabric.NewLoopbackHub()
	p, deviceFab := newTestProcessor(t, hub)

	sendRegister(t, deviceFab, 1, 1, 0, 0, 0)
	p.RunOnce()
	deviceFab.Drain(func(uint32, uint32, []byte) {}) // discard ACK

	body := wire.TxRequestBody{DeviceId: 1, TxPowerPw: 0}
	h := wire.Header{MessageType: wire.TxRequest, SourceRank: 1, SequenceNumber: 2, DeviceId: 1}
	msg := wire.NewMessage(h, body.Serialize(), true)
	require.NoError(t, deviceFab.Send(0, wire.TagTx, msg.Serialize()))
	p.RunOnce()

	assert.Equal(t, uint64(1), p.Stats.Snapshot().TxRequestsDroppedZeroPower)
	assert.Equal(t, uint64(0), p.Stats.Snapshot().RxNotificationsSent)
}

func TestTxRequestFansOutRxNotifications(t *testing.T) {
	hub := fabric.NewLoopbackHub()
	p, deviceFab := newTestProcessor(t, hub)

	sendRegister(t, deviceFab, 1, 1, 0, 0, 0)
	p.RunOnce()
	deviceFab.Drain(func(uint32, uint32, []byte) {}) // discard ACK #1

	sendRegister(t, deviceFab, 2, 2, 10, 0, 0)
	p.RunOnce()
	deviceFab.Drain(func(uint32, uint32, []byte) {}) // discard ACK #2

	body := wire.TxRequestBody{DeviceId: 1, TxPowerPw: wire.PowerWattsToPicowatts(0.1)}
	h := wire.Header{MessageType: wire.TxRequest, SourceRank: 1, SequenceNumber: 3, DeviceId: 1, TimestampNs: 1000}
	msg := wire.NewMessage(h, body.Serialize(), true)
	require.NoError(t, deviceFab.Send(0, wire.TagTx, msg.Serialize()))
	p.RunOnce()

	var rxCount int
	deviceFab.Drain(func(sourceRank, tag uint32, data []byte) {
		m, _, err := wire.ParseMessage(data)
		require.NoError(t, err)
		assert.Equal(t, wire.RxNotification, m.Header.MessageType)
		rxCount++
	})
	assert.Equal(t, 1, rxCount)
	assert.Equal(t, uint64(1), p.Stats.Snapshot().RxNotificationsSent)
}
