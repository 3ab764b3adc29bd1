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

// Package stub implements the Channel Stub (§4.5): the per-device-process
// object that presents the same operation surface as the in-process channel
// so radios attach to it transparently, while actually translating every
// call into a wire message sent over the fabric (or, in fallback mode,
// applying it directly against a local registry and propagation engine).
package stub

import (
	"sync"
	"time"

	"github.com/lakpahana/distchan/chanerr"
	"github.com/lakpahana/distchan/fabric"
	"github.com/lakpahana/distchan/logger"
	"github.com/lakpahana/distchan/progctx"
	"github.com/lakpahana/distchan/propagation"
	"github.com/lakpahana/distchan/registry"
	"github.com/lakpahana/distchan/stats"
	"github.com/lakpahana/distchan/wire"
)

// DefaultRegistrationTimeout is the wall-clock bound attach() waits for a
// CONFIG_ACK before failing loudly (§4.5 "registration is mandatory").
const DefaultRegistrationTimeout = time.Second

// DefaultPositionEpsilonM is the minimum position delta that triggers a
// POSITION_UPDATE send (§4.5 "Suppress sends whose reported position has
// not moved by more than a configurable epsilon").
const DefaultPositionEpsilonM = 1.0

// Radio is the upstream collaborator a Stub attaches to: the physical-layer
// entry point that originates transmissions and receives deliveries. It is
// deliberately minimal since the MAC/PHY above the channel is a non-goal.
type Radio interface {
	NodeId() uint32
	PhyId() uint32
	Position() registry.Position
	Antenna() registry.Antenna
	Frequencies() []uint32

	// Receive is called by the stub's dispatch loop when a transmission
	// reaches this radio (§4.5 "deliver immediately" / "schedule ... at
	// now + delay").
	Receive(r Reception)
}

// Reception mirrors what the monolithic in-process channel would have
// delivered to a radio directly (§4.5 "construct a reception object
// equivalent to what the monolithic channel would have delivered").
type Reception struct {
	TransmitterDeviceId uint32
	RxPowerDbm          float64
	PathLossDb          float64
	DistanceM           float64
	FrequencyHz         uint32
	TxTimestampNs       uint64
	ArrivalTimestampNs  uint64
	Payload             []byte
}

type pendingRegister struct {
	radio    Radio
	sequence uint32
	done     chan registry.DeviceId
	failed   chan error
}

type pendingConfig struct {
	sequence uint32
	done     chan struct{}
}

// Stub is one device-rank's channel stub (§4.5).
type Stub struct {
	ctx  *progctx.ProgCtx
	rank uint32
	fab  fabric.Adapter

	registrationTimeout time.Duration
	positionEpsilonM    float64

	// Fallback mode runs with no fabric: operations apply directly to a
	// local registry/engine copy (§4.5 "Fallback mode").
	fallback        bool
	fallbackReg     *registry.Registry
	fallbackEngine  *propagation.Engine

	Stats stats.Counters

	mu           sync.Mutex
	nextSeq      uint32
	radiosById   map[uint32]Radio
	idByNodePhy  map[[2]uint32]uint32
	lastPosition map[uint32]registry.Position
	pendingReg   map[uint32]*pendingRegister // keyed by sequence
	pendingCfg   map[uint32]*pendingConfig    // keyed by sequence

	lossModelName  string
	delayModelName string
}

// New creates a distributed-mode stub driven by fab.
func New(ctx *progctx.ProgCtx, fab fabric.Adapter) *Stub {
	rank, _ := fab.Identity()
	return &Stub{
		ctx:                 ctx,
		rank:                rank,
		fab:                 fab,
		registrationTimeout: DefaultRegistrationTimeout,
		positionEpsilonM:    DefaultPositionEpsilonM,
		radiosById:          make(map[uint32]Radio),
		idByNodePhy:         make(map[[2]uint32]uint32),
		lastPosition:        make(map[uint32]registry.Position),
		pendingReg:          make(map[uint32]*pendingRegister),
		pendingCfg:          make(map[uint32]*pendingConfig),
	}
}

// NewFallback creates a single-process stub with no fabric: operations are
// applied directly against reg/engine, which the caller may share with
// other fallback stubs in the same process to model multiple device ranks
// collapsed onto one channel rank (§4.5 "Fallback mode").
func NewFallback(ctx *progctx.ProgCtx, reg *registry.Registry, engine *propagation.Engine) *Stub {
	return &Stub{
		ctx:                 ctx,
		registrationTimeout: DefaultRegistrationTimeout,
		positionEpsilonM:    DefaultPositionEpsilonM,
		fallback:            true,
		fallbackReg:         reg,
		fallbackEngine:      engine,
		radiosById:          make(map[uint32]Radio),
		idByNodePhy:         make(map[[2]uint32]uint32),
		lastPosition:        make(map[uint32]registry.Position),
		pendingReg:          make(map[uint32]*pendingRegister),
		pendingCfg:          make(map[uint32]*pendingConfig),
	}
}

// SetRegistrationTimeout overrides DefaultRegistrationTimeout.
func (s *Stub) SetRegistrationTimeout(d time.Duration) { s.registrationTimeout = d }

// SetPositionEpsilonM overrides DefaultPositionEpsilonM.
func (s *Stub) SetPositionEpsilonM(eps float64) { s.positionEpsilonM = eps }

func (s *Stub) nextSequence() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

func (s *Stub) deviceIdFor(radio Radio) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.idByNodePhy[[2]uint32{radio.NodeId(), radio.PhyId()}]
	return id, ok
}
