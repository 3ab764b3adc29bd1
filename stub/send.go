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

package stub

import (
	"math"

	"github.com/lakpahana/distchan/chanerr"
	"github.com/lakpahana/distchan/logger"
	"github.com/lakpahana/distchan/propagation"
	"github.com/lakpahana/distchan/registry"
	"github.com/lakpahana/distchan/wire"
)

// Send implements §4.5's send(sender_radio, payload, tx_power, tx_vector):
// emit TX_REQUEST with the current simulation time as the transmission
// timestamp. In distributed mode the local channel object never performs
// propagation itself.
func (s *Stub) Send(senderRadio Radio, payload []byte, txPowerWatts float64, txVector []byte) error {
	id, ok := s.deviceIdFor(senderRadio)
	if !ok {
		return chanerr.NewLocal(chanerr.UnknownDevice, "send: radio node_id=%d phy_id=%d is not attached", senderRadio.NodeId(), senderRadio.PhyId())
	}

	if s.fallback {
		return s.sendFallback(id, senderRadio, payload, txPowerWatts)
	}

	body := wire.TxRequestBody{
		DeviceId:  id,
		PhyId:     senderRadio.PhyId(),
		TxPowerPw: wire.PowerWattsToPicowatts(txPowerWatts),
		Payload:   payload,
		TxVector:  txVector,
	}
	h := wire.Header{
		MessageType:    wire.TxRequest,
		SourceRank:     s.rank,
		TimestampNs:    s.fab.BarrierTime(),
		SequenceNumber: s.nextSequence(),
		DeviceId:       id,
	}
	msg := wire.NewMessage(h, body.Serialize(), true)
	if err := s.fab.Send(0, wire.TagTx, msg.Serialize()); err != nil {
		return chanerr.NewFatal(chanerr.FabricError, "send: TX_REQUEST failed: %v", err)
	}
	return nil
}

// sendFallback applies propagation in-process (§4.5 "Fallback mode"),
// delivering receptions synchronously to every attached local radio.
func (s *Stub) sendFallback(id registry.DeviceId, senderRadio Radio, payload []byte, txPowerWatts float64) error {
	if txPowerWatts <= 0 {
		s.Stats.IncTxRequestsDroppedZeroPower()
		return nil
	}
	transmitter, ok := s.fallbackReg.Get(id)
	if !ok {
		return chanerr.NewLocal(chanerr.UnknownDevice, "send: device %d not found in fallback registry", id)
	}
	tx := propagation.Transmission{
		Transmitter: transmitter,
		TxPowerDbm:  wire.WattsToDbm(txPowerWatts),
		FrequencyHz: defaultChannelFrequencyHz,
	}
	snapshot := s.fallbackReg.SnapshotAll()
	receptions := s.fallbackEngine.Propagate(tx, snapshot)
	s.Stats.IncTxRequestsProcessed()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range receptions {
		radio, ok := s.radiosById[r.Receiver.Id]
		if !ok {
			continue // receiver lives on a different fallback stub instance sharing this registry
		}
		radio.Receive(Reception{
			TransmitterDeviceId: transmitter.Id,
			RxPowerDbm:          r.RxPowerDbm,
			PathLossDb:          r.PathLossDb,
			DistanceM:           r.DistanceM,
			FrequencyHz:         tx.FrequencyHz,
			TxTimestampNs:       tx.TxTimestampNs,
			ArrivalTimestampNs:  r.ArrivalTimestampNs,
			Payload:             payload,
		})
	}
	s.Stats.AddRxNotificationsSent(uint64(len(receptions)))
	return nil
}

// defaultChannelFrequencyHz mirrors processor.defaultChannelFrequencyHz: a
// stub, like the processor it talks to, serves exactly one logical channel.
const defaultChannelFrequencyHz = 2400000000

// SetLossModel implements §4.5's set_loss_model(model): serialize the
// model's configuration and emit CONFIG_LOSS_MODEL, keeping local state so
// queries issued before the channel rank acknowledges stay consistent.
func (s *Stub) SetLossModel(name string, modelTypeHash uint32, params []byte) error {
	s.mu.Lock()
	s.lossModelName = name
	s.mu.Unlock()
	if s.fallback {
		if modelTypeHash == indoorLossModelHash {
			s.fallbackEngine.Loss = propagation.IndoorLossModel{}.WithDefaults()
		} else {
			s.fallbackEngine.Loss = propagation.FreeSpaceLossModel{}
		}
		return nil
	}
	return s.sendConfig(wire.ConfigLossModel, wire.ConfigTypeLoss, modelTypeHash, params)
}

// SetDelayModel implements §4.5's set_delay_model(model) analogously.
func (s *Stub) SetDelayModel(name string, modelTypeHash uint32, params []byte) error {
	s.mu.Lock()
	s.delayModelName = name
	s.mu.Unlock()
	if s.fallback {
		s.fallbackEngine.Delay = propagation.LightSpeedDelayModel{}
		return nil
	}
	return s.sendConfig(wire.ConfigDelayModel, wire.ConfigTypeDelay, modelTypeHash, params)
}

// indoorLossModelHash matches processor.indoorLossModelHash: the one
// model_type_hash value this implementation recognizes as the ITU-T indoor
// loss model, defaulting to free-space otherwise.
const indoorLossModelHash = 1

func (s *Stub) sendConfig(msgType wire.MessageType, configType wire.ConfigType, modelTypeHash uint32, params []byte) error {
	seq := s.nextSequence()
	pending := &pendingConfig{sequence: seq, done: make(chan struct{}, 1)}
	s.mu.Lock()
	s.pendingCfg[seq] = pending
	s.mu.Unlock()

	body := wire.ConfigBody{Type: configType, ModelTypeHash: modelTypeHash, Params: params}
	h := wire.Header{
		MessageType:    msgType,
		SourceRank:     s.rank,
		TimestampNs:    s.fab.BarrierTime(),
		SequenceNumber: seq,
	}
	msg := wire.NewMessage(h, body.Serialize(), true)
	if err := s.fab.Send(0, wire.TagConfig, msg.Serialize()); err != nil {
		s.mu.Lock()
		delete(s.pendingCfg, seq)
		s.mu.Unlock()
		return chanerr.NewFatal(chanerr.FabricError, "sendConfig: send failed: %v", err)
	}
	logger.Infof("stub: config %s sent seq=%d", msgType, seq)
	return nil
}

func (s *Stub) resolveConfigAck(ack wire.ConfigAckBody) {
	s.mu.Lock()
	_, ok := s.pendingCfg[ack.AckedSequence]
	if ok {
		delete(s.pendingCfg, ack.AckedSequence)
	}
	s.mu.Unlock()
	if !ok {
		logger.Warnf("stub: CONFIG_ACK for unknown pending config sequence %d", ack.AckedSequence)
	}
}

// NotifyPositionChanged implements §4.5's notify_position_changed: emit
// POSITION_UPDATE unless the reported position has moved less than the
// configured epsilon since the last sent update.
func (s *Stub) NotifyPositionChanged(radio Radio, newPosition registry.Position) error {
	id, ok := s.deviceIdFor(radio)
	if !ok {
		return chanerr.NewLocal(chanerr.UnknownDevice, "notify_position_changed: radio not attached")
	}

	s.mu.Lock()
	last, hasLast := s.lastPosition[id]
	moved := !hasLast || distance3D(last, newPosition) > s.positionEpsilonM
	if moved {
		s.lastPosition[id] = newPosition
	}
	s.mu.Unlock()

	if !moved {
		s.Stats.IncPositionUpdatesSuppressed()
		return nil
	}

	if s.fallback {
		s.fallbackReg.UpdatePosition(id, newPosition, 0)
		s.Stats.IncPositionUpdatesApplied()
		return nil
	}

	body := wire.PositionUpdateBody{DeviceId: id, PosX: newPosition.X, PosY: newPosition.Y, PosZ: newPosition.Z}
	h := wire.Header{
		MessageType:    wire.PositionUpdate,
		SourceRank:     s.rank,
		TimestampNs:    s.fab.BarrierTime(),
		SequenceNumber: s.nextSequence(),
		DeviceId:       id,
	}
	msg := wire.NewMessage(h, body.Serialize(), true)
	if err := s.fab.Send(0, wire.TagPosition, msg.Serialize()); err != nil {
		return chanerr.NewFatal(chanerr.FabricError, "notify_position_changed: send failed: %v", err)
	}
	s.Stats.IncPositionUpdatesApplied()
	return nil
}

func distance3D(a, b registry.Position) float64 {
	d := a.Sub(b)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}
