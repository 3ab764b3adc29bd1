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
	"time"

	"github.com/lakpahana/distchan/chanerr"
	"github.com/lakpahana/distchan/logger"
	"github.com/lakpahana/distchan/wire"
)

// DefaultHeartbeatInterval matches SPEC_FULL.md's heartbeat liveness
// mechanism (config.HeartbeatInterval default).
const DefaultHeartbeatInterval = time.Second

// timestampToleranceNs mirrors processor.timestampToleranceNs: §4.1's
// "one-second tolerance" lookahead slack for the timestamp-vs-safe-time
// header check on the stub's receive side.
const timestampToleranceNs = uint64(time.Second)

// RunOnce drains every message currently available from the fabric and
// dispatches each one (§4.5 "Operations driven downward from the fabric
// receive loop"). It is a no-op in fallback mode, where there is no fabric
// to drain.
func (s *Stub) RunOnce() {
	if s.fallback {
		return
	}
	s.fab.Drain(s.handleInbound)
}

// Run polls RunOnce and sends periodic heartbeats until ctx is done.
func (s *Stub) Run(pollInterval, heartbeatInterval time.Duration) {
	if s.fallback {
		return
	}
	s.ctx.WaitAdd("channel-stub", 1)
	defer s.ctx.WaitDone("channel-stub")

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	hbTicker := time.NewTicker(heartbeatInterval)
	defer hbTicker.Stop()

	done := s.ctx.Done()
	for {
		select {
		case <-done:
			return
		case <-pollTicker.C:
			s.RunOnce()
		case <-hbTicker.C:
			s.sendHeartbeat()
		}
	}
}

func (s *Stub) sendHeartbeat() {
	h := wire.Header{
		MessageType:    wire.Heartbeat,
		SourceRank:     s.rank,
		TimestampNs:    s.fab.BarrierTime(),
		SequenceNumber: s.nextSequence(),
	}
	msg := wire.NewMessage(h, nil, true)
	if err := s.fab.Send(0, wire.TagHeartbeat, msg.Serialize()); err != nil {
		logger.Warnf("stub: heartbeat send failed: %v", err)
	}
}

func (s *Stub) handleInbound(sourceRank uint32, tag uint32, data []byte) {
	msg, n, err := wire.ParseMessage(data)
	if err != nil || n != len(data) {
		s.fail(chanerr.NewFatal(chanerr.ProtocolViolation, "stub: malformed message from rank %d: %v", sourceRank, err))
		return
	}
	h := msg.Header

	if safe := s.fab.BarrierTime(); h.TimestampNs > safe+timestampToleranceNs {
		s.Stats.IncTimestampToleranceViolations()
		logger.Warnf("stub: timestamp %d from rank %d type %s exceeds safe time %d + tolerance %d; "+
			"the host scheduler is the authority on causality, processing anyway",
			h.TimestampNs, sourceRank, h.MessageType, safe, timestampToleranceNs)
	}

	switch h.MessageType {
	case wire.RxNotification:
		s.handleRxNotification(h, msg.Body)
	case wire.ConfigAck:
		s.handleConfigAck(msg.Body)
	case wire.ErrorNotify:
		s.handleErrorNotify(h, msg.Body)
	case wire.Heartbeat:
		// observed-only (§4.4); no liveness tracking is done on heartbeats.
	default:
		logger.Warnf("stub: unexpected message type %s from rank %d", h.MessageType, sourceRank)
	}
}

func (s *Stub) fail(err *chanerr.Error) {
	logger.Errorf("stub: fatal: %v", err)
	s.ctx.Cancel(err)
}

// handleRxNotification implements §4.5's delivery rule: locate the target
// radio, compute delay against now, and either deliver immediately, defer
// to a future time, or fail on a negative delay (causal violation).
func (s *Stub) handleRxNotification(h wire.Header, body []byte) {
	b, err := wire.ParseRxNotificationBody(body)
	if err != nil {
		logger.Warnf("stub: bad RX_NOTIFICATION body: %v", err)
		return
	}

	s.mu.Lock()
	radio, ok := s.radiosById[b.ReceiverDeviceId]
	s.mu.Unlock()
	if !ok {
		logger.Warnf("stub: RX_NOTIFICATION for unattached device %d", b.ReceiverDeviceId)
		return
	}

	now := s.fab.BarrierTime()
	delay := int64(h.TimestampNs) - int64(now)
	reception := Reception{
		TransmitterDeviceId: b.TransmitterDeviceId,
		RxPowerDbm:          b.RxPowerDbm,
		PathLossDb:          b.PathLossDb,
		DistanceM:           b.DistanceM,
		FrequencyHz:         b.FrequencyHz,
		TxTimestampNs:       b.TxTimestampNs,
		ArrivalTimestampNs:  h.TimestampNs,
		Payload:             b.Payload,
	}

	switch {
	case delay < 0:
		s.fail(chanerr.NewFatal(chanerr.CausalViolation,
			"RX_NOTIFICATION for device %d arrives %dns in the past (now=%d, arrival=%d)",
			b.ReceiverDeviceId, -delay, now, h.TimestampNs))
	case delay == 0:
		radio.Receive(reception)
	default:
		// Deferred delivery: scheduleDelivery invokes radio.Receive from a
		// timer goroutine once delay has elapsed.
		s.scheduleDelivery(radio, reception, time.Duration(delay)*time.Nanosecond)
	}
}

// scheduleDelivery defers delivery by the given duration using a plain
// timer goroutine. A host scheduler embedding the stub inside an
// event-driven simulation may instead call radio.Receive directly at its
// own notion of now+delay; this default keeps the stub self-sufficient
// when no richer scheduler is present (e.g. cmd/deviced).
func (s *Stub) scheduleDelivery(radio Radio, reception Reception, delay time.Duration) {
	s.ctx.WaitAdd("stub-delivery", 1)
	go func() {
		defer s.ctx.WaitDone("stub-delivery")
		select {
		case <-time.After(delay):
			radio.Receive(reception)
		case <-s.ctx.Done():
		}
	}()
}

func (s *Stub) handleConfigAck(body []byte) {
	b, err := wire.ParseConfigAckBody(body)
	if err != nil {
		logger.Warnf("stub: bad CONFIG_ACK body: %v", err)
		return
	}
	switch b.Kind {
	case wire.AckKindRegister:
		s.resolveRegisterAck(b)
	case wire.AckKindConfig:
		s.resolveConfigAck(b)
	}
}

// handleErrorNotify implements §4.5's "On ERROR_RESPONSE: log and, for the
// originating operation class, fail or escalate according to the error
// kind (§7)".
func (s *Stub) handleErrorNotify(h wire.Header, body []byte) {
	b, err := wire.ParseErrorBody(body)
	if err != nil {
		logger.Warnf("stub: bad ERROR_NOTIFY body: %v", err)
		return
	}
	logger.Warnf("stub: ERROR_NOTIFY kind=%d context_seq=%d: %s", b.Kind, b.ContextSequence, b.Message)

	switch b.Kind {
	case wire.ErrorKindRegistrationTimeout, wire.ErrorKindCausalViolation, wire.ErrorKindFabricError:
		s.failRegisterAck(b.ContextSequence, b.Message)
	default:
		// Unknown-device / model-error / protocol-violation on a single
		// message are local to the channel rank (§7); the stub has no
		// pending operation to resolve for those beyond logging.
	}
}
