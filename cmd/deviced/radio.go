// Copyright (c) 2020-2024, The OTNS Authors.
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

package main

import (
	"github.com/lakpahana/distchan/logger"
	"github.com/lakpahana/distchan/registry"
	"github.com/lakpahana/distchan/stub"
)

// simRadio is a small deterministic stand-in for the upper layer (the MAC/PHY
// a real device would run above the channel). It exists only so cmd/deviced
// has something concrete to Attach/Send/NotifyPositionChanged on behalf of;
// the protocol and propagation logic it exercises live entirely in package
// stub and package propagation.
type simRadio struct {
	nodeId uint32
	phyId  uint32
	pos    registry.Position
	ant    registry.Antenna
	freqs  []uint32

	received int
}

func newSimRadio(nodeId, phyId uint32, pos registry.Position) *simRadio {
	return &simRadio{
		nodeId: nodeId,
		phyId:  phyId,
		pos:    pos,
		ant:    registry.Antenna{GainDbi: 0},
		freqs:  []uint32{2400000000},
	}
}

func (r *simRadio) NodeId() uint32             { return r.nodeId }
func (r *simRadio) PhyId() uint32              { return r.phyId }
func (r *simRadio) Position() registry.Position { return r.pos }
func (r *simRadio) Antenna() registry.Antenna   { return r.ant }
func (r *simRadio) Frequencies() []uint32       { return r.freqs }

func (r *simRadio) Receive(rx stub.Reception) {
	r.received++
	logger.Infof("deviced: node=%d phy=%d received %d byte(s) from device=%d rx_power_dbm=%.2f",
		r.nodeId, r.phyId, len(rx.Payload), rx.TransmitterDeviceId, rx.RxPowerDbm)
}
