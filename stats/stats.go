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

// Package stats implements the per-run summary counters required by §7
// ("Non-fatal drops are counted and reported in a per-run summary").
package stats

import (
	"fmt"
	"sync/atomic"
)

// Counters holds the channel processor's running totals. All fields are
// accessed through atomic operations so a diagnostics goroutine can read a
// Snapshot while the receive loop keeps incrementing them (§5 notes the core
// itself is single-threaded, but a CLI or metrics poller reading counters
// from outside that loop is not).
type Counters struct {
	DevicesRegistered    uint64
	DevicesDeregistered  uint64
	PositionUpdatesApplied uint64
	PositionUpdatesSuppressed uint64
	TxRequestsProcessed  uint64
	TxRequestsDroppedUnknownTransmitter uint64
	TxRequestsDroppedZeroPower uint64
	RxNotificationsSent  uint64
	HeartbeatsObserved   uint64

	DroppedProtocolViolation uint64
	DroppedUnknownDevice     uint64
	DroppedModelError        uint64
	ErrorNotifiesSent        uint64

	TimestampToleranceViolations uint64
}

func (c *Counters) IncDevicesRegistered()    { atomic.AddUint64(&c.DevicesRegistered, 1) }
func (c *Counters) IncDevicesDeregistered()  { atomic.AddUint64(&c.DevicesDeregistered, 1) }
func (c *Counters) IncPositionUpdatesApplied() { atomic.AddUint64(&c.PositionUpdatesApplied, 1) }
func (c *Counters) IncPositionUpdatesSuppressed() {
	atomic.AddUint64(&c.PositionUpdatesSuppressed, 1)
}
func (c *Counters) IncTxRequestsProcessed() { atomic.AddUint64(&c.TxRequestsProcessed, 1) }
func (c *Counters) IncTxRequestsDroppedUnknownTransmitter() {
	atomic.AddUint64(&c.TxRequestsDroppedUnknownTransmitter, 1)
}
func (c *Counters) IncTxRequestsDroppedZeroPower() {
	atomic.AddUint64(&c.TxRequestsDroppedZeroPower, 1)
}
func (c *Counters) AddRxNotificationsSent(n uint64) { atomic.AddUint64(&c.RxNotificationsSent, n) }
func (c *Counters) IncHeartbeatsObserved()          { atomic.AddUint64(&c.HeartbeatsObserved, 1) }
func (c *Counters) IncDroppedProtocolViolation()    { atomic.AddUint64(&c.DroppedProtocolViolation, 1) }
func (c *Counters) IncDroppedUnknownDevice()        { atomic.AddUint64(&c.DroppedUnknownDevice, 1) }
func (c *Counters) IncDroppedModelError()           { atomic.AddUint64(&c.DroppedModelError, 1) }
func (c *Counters) IncErrorNotifiesSent()           { atomic.AddUint64(&c.ErrorNotifiesSent, 1) }
func (c *Counters) IncTimestampToleranceViolations() {
	atomic.AddUint64(&c.TimestampToleranceViolations, 1)
}

// Snapshot is a point-in-time, non-atomic copy of Counters suitable for
// logging or serialization.
type Snapshot struct {
	DevicesRegistered                   uint64
	DevicesDeregistered                 uint64
	PositionUpdatesApplied              uint64
	PositionUpdatesSuppressed           uint64
	TxRequestsProcessed                 uint64
	TxRequestsDroppedUnknownTransmitter uint64
	TxRequestsDroppedZeroPower          uint64
	RxNotificationsSent                 uint64
	HeartbeatsObserved                  uint64
	DroppedProtocolViolation            uint64
	DroppedUnknownDevice                uint64
	DroppedModelError                   uint64
	ErrorNotifiesSent                   uint64
	TimestampToleranceViolations        uint64
}

// Snapshot reads every counter atomically and returns the result by value.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		DevicesRegistered:                   atomic.LoadUint64(&c.DevicesRegistered),
		DevicesDeregistered:                 atomic.LoadUint64(&c.DevicesDeregistered),
		PositionUpdatesApplied:              atomic.LoadUint64(&c.PositionUpdatesApplied),
		PositionUpdatesSuppressed:           atomic.LoadUint64(&c.PositionUpdatesSuppressed),
		TxRequestsProcessed:                 atomic.LoadUint64(&c.TxRequestsProcessed),
		TxRequestsDroppedUnknownTransmitter: atomic.LoadUint64(&c.TxRequestsDroppedUnknownTransmitter),
		TxRequestsDroppedZeroPower:          atomic.LoadUint64(&c.TxRequestsDroppedZeroPower),
		RxNotificationsSent:                 atomic.LoadUint64(&c.RxNotificationsSent),
		HeartbeatsObserved:                  atomic.LoadUint64(&c.HeartbeatsObserved),
		DroppedProtocolViolation:            atomic.LoadUint64(&c.DroppedProtocolViolation),
		DroppedUnknownDevice:                atomic.LoadUint64(&c.DroppedUnknownDevice),
		DroppedModelError:                   atomic.LoadUint64(&c.DroppedModelError),
		ErrorNotifiesSent:                   atomic.LoadUint64(&c.ErrorNotifiesSent),
		TimestampToleranceViolations:        atomic.LoadUint64(&c.TimestampToleranceViolations),
	}
}

// String renders the snapshot as the single-line per-run summary record.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"run summary: devices_registered=%d devices_deregistered=%d tx_processed=%d rx_sent=%d "+
			"position_updates_applied=%d position_updates_suppressed=%d heartbeats=%d "+
			"dropped_protocol_violation=%d dropped_unknown_device=%d dropped_model_error=%d error_notifies_sent=%d "+
			"timestamp_tolerance_violations=%d",
		s.DevicesRegistered, s.DevicesDeregistered, s.TxRequestsProcessed, s.RxNotificationsSent,
		s.PositionUpdatesApplied, s.PositionUpdatesSuppressed, s.HeartbeatsObserved,
		s.DroppedProtocolViolation, s.DroppedUnknownDevice, s.DroppedModelError, s.ErrorNotifiesSent,
		s.TimestampToleranceViolations)
}
