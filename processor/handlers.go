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
	"github.com/lakpahana/distchan/chanerr"
	"github.com/lakpahana/distchan/logger"
	"github.com/lakpahana/distchan/propagation"
	"github.com/lakpahana/distchan/registry"
	"github.com/lakpahana/distchan/wire"
)

func (p *Processor) handleDeviceRegister(h wire.Header, body []byte) {
	b, err := wire.ParseDeviceRegisterBody(body)
	if err != nil {
		p.dropLocal(h, chanerr.NewLocal(chanerr.ProtocolViolation, "bad DEVICE_REGISTER body: %v", err))
		return
	}

	antenna := registry.Antenna{GainDbi: b.AntennaGainDbi}
	id := p.Registry.Register(h.SourceRank, b.NodeId, b.PhyId,
		registry.Position{X: b.PosX, Y: b.PosY, Z: b.PosZ}, antenna, b.Frequencies, h.TimestampNs)
	p.Stats.IncDevicesRegistered()
	logger.Infof("device registered: id=%d rank=%d node_id=%d phy_id=%d", id, h.SourceRank, b.NodeId, b.PhyId)

	ack := wire.ConfigAckBody{Kind: wire.AckKindRegister, AssignedDeviceId: id, AckedSequence: h.SequenceNumber}
	p.sendAck(h, ack)
}

func (p *Processor) handleDeviceRemove(h wire.Header) {
	p.Registry.Deregister(h.DeviceId)
	p.Stats.IncDevicesDeregistered()
	logger.Infof("device deregistered: id=%d rank=%d", h.DeviceId, h.SourceRank)
}

func (p *Processor) handleConfig(h wire.Header, body []byte, want wire.ConfigType) {
	b, err := wire.ParseConfigBody(body)
	if err != nil {
		p.dropLocal(h, chanerr.NewLocal(chanerr.ProtocolViolation, "bad CONFIG body: %v", err))
		return
	}
	if b.Type != want {
		p.dropLocal(h, chanerr.NewLocal(chanerr.ProtocolViolation, "config_type %d does not match message type %s", b.Type, h.MessageType))
		return
	}

	// The params blob is opaque to the core (§9 "Interface abstraction over
	// models"); this implementation ships only the built-in free-space and
	// ITU-T indoor models, selected by model_type_hash, with no further
	// parameter parsing required for either.
	switch want {
	case wire.ConfigTypeLoss:
		if b.ModelTypeHash == indoorLossModelHash {
			p.Engine.Loss = propagation.IndoorLossModel{}.WithDefaults()
		} else {
			p.Engine.Loss = propagation.FreeSpaceLossModel{}
		}
		logger.Infof("loss model configured: %s (hash=%d) rank=%d", p.Engine.Loss.Name(), b.ModelTypeHash, h.SourceRank)
	case wire.ConfigTypeDelay:
		p.Engine.Delay = propagation.LightSpeedDelayModel{}
		logger.Infof("delay model configured: %s (hash=%d) rank=%d", p.Engine.Delay.Name(), b.ModelTypeHash, h.SourceRank)
	}

	p.sendAck(h, wire.ConfigAckBody{Kind: wire.AckKindConfig, AckedSequence: h.SequenceNumber})
}

// indoorLossModelHash is the model_type_hash this implementation recognizes
// as selecting propagation.IndoorLossModel; any other value keeps the
// default free-space model, per §9's "opaque blob" contract (the core
// recognizes its own built-in models by hash and treats anything else as
// the default rather than failing).
const indoorLossModelHash = 1

func (p *Processor) handlePositionUpdate(h wire.Header, body []byte) {
	b, err := wire.ParsePositionUpdateBody(body)
	if err != nil {
		p.dropLocal(h, chanerr.NewLocal(chanerr.ProtocolViolation, "bad POSITION_UPDATE body: %v", err))
		return
	}
	ok := p.Registry.UpdatePosition(b.DeviceId, registry.Position{X: b.PosX, Y: b.PosY, Z: b.PosZ}, h.TimestampNs)
	if !ok {
		p.dropLocal(h, chanerr.NewLocal(chanerr.UnknownDevice, "position update for unknown or stale device %d", b.DeviceId))
		return
	}
	p.Stats.IncPositionUpdatesApplied()
}

func (p *Processor) handleTxRequest(h wire.Header, body []byte) {
	b, err := wire.ParseTxRequestBody(body)
	if err != nil {
		p.dropLocal(h, chanerr.NewLocal(chanerr.ProtocolViolation, "bad TX_REQUEST body: %v", err))
		return
	}

	transmitter, ok := p.Registry.Get(b.DeviceId)
	if !ok {
		p.Stats.IncTxRequestsDroppedUnknownTransmitter()
		p.dropLocal(h, chanerr.NewLocal(chanerr.UnknownDevice, "TX_REQUEST from unknown transmitter device %d", b.DeviceId))
		return
	}
	if transmitter.OwningRank != h.SourceRank {
		p.dropLocal(h, chanerr.NewLocal(chanerr.ProtocolViolation,
			"TX_REQUEST device %d is owned by rank %d, not requesting rank %d", b.DeviceId, transmitter.OwningRank, h.SourceRank))
		return
	}

	txPowerWatts := wire.PowerPicowattsToWatts(b.TxPowerPw)
	if txPowerWatts <= 0 {
		p.Stats.IncTxRequestsDroppedZeroPower()
		logger.Debugf("TX_REQUEST from device %d dropped: non-positive power", b.DeviceId)
		return
	}

	tx := propagation.Transmission{
		Transmitter:    transmitter,
		TxPowerDbm:     wire.WattsToDbm(txPowerWatts),
		FrequencyHz:    transmissionFrequencyOf(h),
		TxTimestampNs:  h.TimestampNs,
		SequenceNumber: h.SequenceNumber,
	}
	snapshot := p.Registry.SnapshotAll()
	receptions := p.Engine.Propagate(tx, snapshot)
	p.Stats.IncTxRequestsProcessed()

	var sent uint64
	for _, r := range receptions {
		rxBody := wire.RxNotificationBody{
			ReceiverDeviceId:    r.Receiver.Id,
			TransmitterDeviceId: transmitter.Id,
			PhyId:               b.PhyId,
			RxPowerPw:           wire.PowerWattsToPicowatts(r.RxPowerWatts),
			RxPowerDbm:          r.RxPowerDbm,
			PathLossDb:          r.PathLossDb,
			DistanceM:           r.DistanceM,
			FrequencyHz:         tx.FrequencyHz,
			PropagationDelayNs:  r.PropagationDelayNs,
			TxTimestampNs:       tx.TxTimestampNs,
			Payload:             b.Payload,
		}
		rxHeader := wire.Header{
			MessageType:     wire.RxNotification,
			SourceRank:      p.rank,
			DestinationRank: r.Receiver.OwningRank,
			TimestampNs:     r.ArrivalTimestampNs,
			SequenceNumber:  h.SequenceNumber,
			DeviceId:        r.Receiver.Id,
		}
		out := wire.NewMessage(rxHeader, rxBody.Serialize(), true)
		if err := p.fab.Send(r.Receiver.OwningRank, wire.TagRx, out.Serialize()); err != nil {
			p.fail(chanerr.NewFatal(chanerr.FabricError, "failed to send RX_NOTIFICATION to rank %d: %v", r.Receiver.OwningRank, err))
			return
		}
		sent++
	}
	p.Stats.AddRxNotificationsSent(sent)
}

// transmissionFrequencyOf extracts the transmission frequency. The
// TX_REQUEST body (§6) does not itself carry a frequency field: a Processor
// serves exactly one logical channel (§2 "one channel stub per logical
// channel"), so the carrier frequency is a fixed property of the channel
// instance rather than a per-message value.
func transmissionFrequencyOf(h wire.Header) uint32 {
	return defaultChannelFrequencyHz
}

// defaultChannelFrequencyHz is the carrier frequency assumed for this
// logical channel instance (2.4GHz ISM band), since a Processor serves
// exactly one logical channel and the wire protocol does not carry a
// per-message frequency override on TX_REQUEST.
const defaultChannelFrequencyHz = 2400000000

func (p *Processor) sendAck(h wire.Header, body wire.ConfigAckBody) {
	respHeader := wire.Header{
		MessageType:     wire.ConfigAck,
		SourceRank:      p.rank,
		DestinationRank: h.SourceRank,
		TimestampNs:     p.fab.BarrierTime(),
		SequenceNumber:  h.SequenceNumber,
		DeviceId:        body.AssignedDeviceId,
	}
	out := wire.NewMessage(respHeader, body.Serialize(), true)
	if err := p.fab.Send(h.SourceRank, wire.TagAck, out.Serialize()); err != nil {
		p.fail(chanerr.NewFatal(chanerr.FabricError, "failed to send CONFIG_ACK to rank %d: %v", h.SourceRank, err))
	}
}
