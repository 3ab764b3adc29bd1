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

package fabric

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// LoopbackHub wires a set of LoopbackAdapters together in-process, so a
// single-process test scenario can exercise the channel processor and stub
// without any real network I/O. The channel stub's fallback mode (§4.5) uses
// no fabric at all and does not need it.
// It plays the role the TCP full mesh plays for DialTCPAdapter.
type LoopbackHub struct {
	mu       sync.Mutex
	adapters map[uint32]*LoopbackAdapter
}

// NewLoopbackHub creates an empty hub. Call Adapter for each rank that
// should participate before any of them Send.
func NewLoopbackHub() *LoopbackHub {
	return &LoopbackHub{adapters: make(map[uint32]*LoopbackAdapter)}
}

// Adapter returns (creating if needed) the LoopbackAdapter for rank within
// this hub, with the given world size and inbox capacity.
func (h *LoopbackHub) Adapter(rank uint32, worldSize uint32, inboxSize int) *LoopbackAdapter {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a, ok := h.adapters[rank]; ok {
		return a
	}
	a := &LoopbackAdapter{
		rank:      rank,
		worldSize: worldSize,
		hub:       h,
		inbox:     make(chan Inbound, inboxSize),
	}
	h.adapters[rank] = a
	return a
}

func (h *LoopbackHub) deliver(targetRank uint32, msg Inbound) error {
	h.mu.Lock()
	target, ok := h.adapters[targetRank]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("fabric: loopback hub has no rank %d", targetRank)
	}
	select {
	case target.inbox <- msg:
		return nil
	default:
		return fmt.Errorf("fabric: loopback inbox for rank %d is full", targetRank)
	}
}

// LoopbackAdapter is an in-process Adapter implementation: Send hands the
// payload directly to the target's inbox channel via the shared hub, with
// no goroutines and no serialization of its own.
type LoopbackAdapter struct {
	rank      uint32
	worldSize uint32
	hub       *LoopbackHub
	inbox     chan Inbound

	barrierTime uint64 // accessed via atomic
}

func (a *LoopbackAdapter) Identity() (rank uint32, worldSize uint32) {
	return a.rank, a.worldSize
}

func (a *LoopbackAdapter) Send(targetRank uint32, tag uint32, data []byte) error {
	cp := append([]byte(nil), data...)
	return a.hub.deliver(targetRank, Inbound{SourceRank: a.rank, Tag: tag, Data: cp})
}

func (a *LoopbackAdapter) Drain(cb Callback) {
	for {
		select {
		case msg := <-a.inbox:
			cb(msg.SourceRank, msg.Tag, msg.Data)
		default:
			return
		}
	}
}

func (a *LoopbackAdapter) BarrierTime() uint64 {
	return atomic.LoadUint64(&a.barrierTime)
}

func (a *LoopbackAdapter) AdvanceBarrier(t uint64) {
	atomic.StoreUint64(&a.barrierTime, t)
}

func (a *LoopbackAdapter) Close() error { return nil }
