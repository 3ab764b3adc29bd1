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

// Package processor implements the Channel Processor (§4.4): the long-lived
// service on the channel rank that drives a receive loop over the fabric,
// applies messages to the device registry and propagation engine, and emits
// RX_NOTIFICATIONs.
package processor

import (
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

// timestampToleranceNs is §4.1's "one-second tolerance" lookahead slack for
// the timestamp-vs-safe-time header check: a violation is logged and
// counted, not dropped, since the host scheduler (not this package) is the
// authority on causality.
const timestampToleranceNs = uint64(time.Second)

// seqKey identifies one (source_rank, message_type) FIFO stream for the
// sequence-number monotonicity check (§5 "Ordering guarantees", §8).
type seqKey struct {
	sourceRank  uint32
	messageType wire.MessageType
}

// Processor is the channel processor (§4.4). It owns the device registry and
// the propagation engine exclusively (§5 "Shared-resource policy"); nothing
// else in the process touches either.
type Processor struct {
	ctx   *progctx.ProgCtx
	rank  uint32
	world uint32
	fab   fabric.Adapter

	Registry *registry.Registry
	Engine   *propagation.Engine
	Stats    stats.Counters

	lastSeq map[seqKey]uint32
}

// Init implements §4.4's init(rank, world_size): it fails fast unless rank
// equals the channel rank reported by the fabric's own identity.
func Init(ctx *progctx.ProgCtx, fab fabric.Adapter) (*Processor, error) {
	rank, world := fab.Identity()
	if rank != 0 {
		return nil, chanerr.NewFatal(chanerr.ProtocolViolation,
			"channel processor init called on rank %d; must run on the channel rank (0)", rank)
	}
	p := &Processor{
		ctx:      ctx,
		rank:     rank,
		world:    world,
		fab:      fab,
		Registry: registry.New(),
		Engine:   propagation.NewDefaultEngine(),
		lastSeq:  make(map[seqKey]uint32),
	}
	logger.Infof("channel processor initialized: rank=%d world_size=%d", rank, world)
	return p, nil
}

// RunOnce drains every message currently available on the fabric and applies
// each one, then returns. This is the cooperative unit the host scheduler
// drives on every safe-time advance (§4.4 "run").
func (p *Processor) RunOnce() {
	p.fab.Drain(p.handleInbound)
}

// Run polls RunOnce every pollInterval until ctx is done, for a process that
// is not itself embedded in a host scheduler loop (§4.4 "run", §5 "periodic
// polling").
func (p *Processor) Run(pollInterval time.Duration) {
	p.ctx.WaitAdd("channel-processor", 1)
	defer p.ctx.WaitDone("channel-processor")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	done := p.ctx.Done()
	for {
		select {
		case <-done:
			p.Shutdown()
			return
		case <-ticker.C:
			p.RunOnce()
		}
	}
}

// Shutdown implements §4.4's shutdown: clears the registry and releases the
// fabric hook. Pending sends have already left via non-blocking Send calls,
// so there is nothing further to flush here beyond closing the adapter.
func (p *Processor) Shutdown() {
	snap := p.Stats.Snapshot()
	logger.Infof("%s", snap.String())
	for _, rec := range p.Registry.SnapshotAll() {
		p.Registry.Deregister(rec.Id)
	}
	if err := p.fab.Close(); err != nil {
		logger.Warnf("channel processor: fabric close: %v", err)
	}
}

func (p *Processor) fail(err *chanerr.Error) {
	logger.Errorf("channel processor: fatal: %v", err)
	p.ctx.Cancel(err)
}

// handleInbound is the fabric Drain callback: validate framing, enforce
// sequence monotonicity, then dispatch by message type (§4.4 "Message
// handlers").
func (p *Processor) handleInbound(sourceRank uint32, tag uint32, data []byte) {
	msg, n, err := wire.ParseMessage(data)
	if err != nil {
		p.fail(chanerr.NewFatal(chanerr.ProtocolViolation, "malformed message from rank %d: %v", sourceRank, err))
		return
	}
	if n == 0 || n != len(data) {
		p.fail(chanerr.NewFatal(chanerr.ProtocolViolation,
			"incomplete or trailing bytes in framed message from rank %d (consumed %d of %d)", sourceRank, n, len(data)))
		return
	}
	h := msg.Header

	if h.SourceRank != sourceRank {
		p.fail(chanerr.NewFatal(chanerr.ProtocolViolation,
			"header source_rank %d does not match transport source rank %d", h.SourceRank, sourceRank))
		return
	}

	key := seqKey{sourceRank: sourceRank, messageType: h.MessageType}
	if last, ok := p.lastSeq[key]; ok && h.SequenceNumber <= last {
		p.fail(chanerr.NewFatal(chanerr.ProtocolViolation,
			"sequence regression from rank %d type %s: got %d, previously observed %d",
			sourceRank, h.MessageType, h.SequenceNumber, last))
		return
	}
	p.lastSeq[key] = h.SequenceNumber

	if safe := p.fab.BarrierTime(); h.TimestampNs > safe+timestampToleranceNs {
		p.Stats.IncTimestampToleranceViolations()
		logger.Warnf("channel processor: timestamp %d from rank %d type %s exceeds safe time %d + tolerance %d; "+
			"the host scheduler is the authority on causality, processing anyway",
			h.TimestampNs, sourceRank, h.MessageType, safe, timestampToleranceNs)
	}

	logger.Tracef("recv t=%d type=%s src=%d dst=%d device=%d seq=%d",
		h.TimestampNs, h.MessageType, h.SourceRank, h.DestinationRank, h.DeviceId, h.SequenceNumber)

	switch h.MessageType {
	case wire.DeviceRegister:
		p.handleDeviceRegister(h, msg.Body)
	case wire.DeviceRemove:
		p.handleDeviceRemove(h)
	case wire.ConfigLossModel:
		p.handleConfig(h, msg.Body, wire.ConfigTypeLoss)
	case wire.ConfigDelayModel:
		p.handleConfig(h, msg.Body, wire.ConfigTypeDelay)
	case wire.PositionUpdate:
		p.handlePositionUpdate(h, msg.Body)
	case wire.TxRequest:
		p.handleTxRequest(h, msg.Body)
	case wire.Heartbeat:
		p.Stats.IncHeartbeatsObserved()
	default:
		p.dropLocal(h, chanerr.NewLocal(chanerr.ProtocolViolation, "unexpected message type %s from rank %d", h.MessageType, sourceRank))
	}
}

// dropLocal implements the local (non-fatal) half of §7's propagation
// policy: log, count, and optionally notify the source rank, then continue.
func (p *Processor) dropLocal(h wire.Header, cerr *chanerr.Error) {
	switch cerr.Kind {
	case chanerr.UnknownDevice:
		p.Stats.IncDroppedUnknownDevice()
	case chanerr.ModelError:
		p.Stats.IncDroppedModelError()
	default:
		p.Stats.IncDroppedProtocolViolation()
	}
	logger.Warnf("channel processor: dropping message type %s from rank %d: %v", h.MessageType, h.SourceRank, cerr)
	p.sendError(h, cerr)
}

func (p *Processor) sendError(h wire.Header, cerr *chanerr.Error) {
	body := wire.ErrorBody{
		Kind:            toWireErrorKind(cerr.Kind),
		ContextSequence: h.SequenceNumber,
		Message:         cerr.Error(),
	}
	bodyBytes := body.Serialize()
	respHeader := wire.Header{
		MessageType:     wire.ErrorNotify,
		SourceRank:      p.rank,
		DestinationRank: h.SourceRank,
		TimestampNs:     p.fab.BarrierTime(),
		SequenceNumber:  h.SequenceNumber,
		DeviceId:        h.DeviceId,
	}
	out := wire.NewMessage(respHeader, bodyBytes, true)
	if err := p.fab.Send(h.SourceRank, wire.TagError, out.Serialize()); err != nil {
		p.fail(chanerr.NewFatal(chanerr.FabricError, "failed to send ERROR_NOTIFY to rank %d: %v", h.SourceRank, err))
		return
	}
	p.Stats.IncErrorNotifiesSent()
}

func toWireErrorKind(k chanerr.Kind) wire.ErrorKind {
	switch k {
	case chanerr.ProtocolViolation:
		return wire.ErrorKindProtocolViolation
	case chanerr.UnknownDevice:
		return wire.ErrorKindUnknownDevice
	case chanerr.CausalViolation:
		return wire.ErrorKindCausalViolation
	case chanerr.ModelError:
		return wire.ErrorKindModelError
	case chanerr.FabricError:
		return wire.ErrorKindFabricError
	case chanerr.RegistrationTimeout:
		return wire.ErrorKindRegistrationTimeout
	default:
		return wire.ErrorKindShutdown
	}
}
