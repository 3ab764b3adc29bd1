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
	"fmt"
	"time"

	"github.com/lakpahana/distchan/chanerr"
	"github.com/lakpahana/distchan/logger"
	"github.com/lakpahana/distchan/registry"
	"github.com/lakpahana/distchan/wire"
)

// Attach implements §4.5's attach(radio): gather the radio's identity,
// emit DEVICE_REGISTER, and block until the matching CONFIG_ACK arrives or
// the registration timeout elapses.
func (s *Stub) Attach(radio Radio) (registry.DeviceId, error) {
	if s.fallback {
		return s.attachFallback(radio)
	}

	seq := s.nextSequence()
	pending := &pendingRegister{
		radio:    radio,
		sequence: seq,
		done:     make(chan registry.DeviceId, 1),
		failed:   make(chan error, 1),
	}
	s.mu.Lock()
	s.pendingReg[seq] = pending
	s.mu.Unlock()

	body := wire.DeviceRegisterBody{
		PhyId:          radio.PhyId(),
		NodeId:         radio.NodeId(),
		PosX:           radio.Position().X,
		PosY:           radio.Position().Y,
		PosZ:           radio.Position().Z,
		AntennaGainDbi: radio.Antenna().GainDbi,
		Frequencies:    radio.Frequencies(),
	}
	h := wire.Header{
		MessageType:    wire.DeviceRegister,
		SourceRank:     s.rank,
		TimestampNs:    s.fab.BarrierTime(),
		SequenceNumber: seq,
	}
	msg := wire.NewMessage(h, body.Serialize(), true)
	if err := s.fab.Send(0, wire.TagRegister, msg.Serialize()); err != nil {
		s.clearPendingReg(seq)
		return 0, chanerr.NewFatal(chanerr.FabricError, "attach: DEVICE_REGISTER send failed: %v", err)
	}

	select {
	case id := <-pending.done:
		s.mu.Lock()
		s.radiosById[id] = radio
		s.idByNodePhy[[2]uint32{radio.NodeId(), radio.PhyId()}] = id
		s.lastPosition[id] = radio.Position()
		s.mu.Unlock()
		logger.Infof("stub: attached radio node_id=%d phy_id=%d as device %d", radio.NodeId(), radio.PhyId(), id)
		return id, nil
	case err := <-pending.failed:
		return 0, err
	case <-time.After(s.registrationTimeout):
		s.clearPendingReg(seq)
		return 0, chanerr.NewFatal(chanerr.RegistrationTimeout,
			"attach: no CONFIG_ACK within %s for node_id=%d phy_id=%d", s.registrationTimeout, radio.NodeId(), radio.PhyId())
	}
}

func (s *Stub) attachFallback(radio Radio) (registry.DeviceId, error) {
	id := s.fallbackReg.Register(s.rank, radio.NodeId(), radio.PhyId(),
		radio.Position(), radio.Antenna(), radio.Frequencies(), 0)
	s.mu.Lock()
	s.radiosById[id] = radio
	s.idByNodePhy[[2]uint32{radio.NodeId(), radio.PhyId()}] = id
	s.lastPosition[id] = radio.Position()
	s.mu.Unlock()
	s.Stats.IncDevicesRegistered()
	return id, nil
}

func (s *Stub) clearPendingReg(seq uint32) {
	s.mu.Lock()
	delete(s.pendingReg, seq)
	s.mu.Unlock()
}

// resolveRegisterAck finalizes a pending attach() once CONFIG_ACK arrives
// (§4.5 "when the matching ACK arrives, finalize the mapping").
func (s *Stub) resolveRegisterAck(ack wire.ConfigAckBody) {
	s.mu.Lock()
	pending, ok := s.pendingReg[ack.AckedSequence]
	if ok {
		delete(s.pendingReg, ack.AckedSequence)
	}
	s.mu.Unlock()
	if !ok {
		logger.Warnf("stub: CONFIG_ACK for unknown pending register sequence %d", ack.AckedSequence)
		return
	}
	pending.done <- ack.AssignedDeviceId
}

func (s *Stub) failRegisterAck(contextSequence uint32, msg string) {
	s.mu.Lock()
	pending, ok := s.pendingReg[contextSequence]
	if ok {
		delete(s.pendingReg, contextSequence)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	pending.failed <- fmt.Errorf("attach failed: %s", msg)
}
