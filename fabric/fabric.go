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

// Package fabric implements the Fabric Adapter (§4.6): a thin,
// MPI-flavored abstraction over the message-passing primitives the channel
// processor and channel stubs use to exchange wire.Messages, with a
// non-blocking send, a polled non-blocking receive, rank identity, and the
// current safe-time barrier.
package fabric

// Inbound is one message handed to a Drain callback: the originating rank,
// an application-defined tag (carried alongside the framed bytes, not part
// of the wire.Header), and the raw framed bytes of one wire.Message.
type Inbound struct {
	SourceRank uint32
	Tag        uint32
	Data       []byte
}

// Callback is invoked once per currently-available inbound message by Drain.
type Callback func(sourceRank uint32, tag uint32, data []byte)

// Adapter is the Fabric Adapter interface of §4.6. Implementations must
// never block in Send or Drain (§4.6 "Suspension points"); the only blocking
// point a conforming implementation may introduce is, internally, the
// background I/O goroutines that feed the non-blocking surface.
type Adapter interface {
	// Identity returns this process's rank and the world size (total rank
	// count), per §4.6 "identity() -> (rank, world_size)".
	Identity() (rank uint32, worldSize uint32)

	// Send queues data for delivery to targetRank tagged with tag. It
	// returns once the bytes have been queued for transmission (§4.6
	// "non-blocking; returns after the bytes have been queued"); the
	// caller must not reuse data afterward, since ownership transfers to
	// the adapter until the underlying primitive reports completion.
	Send(targetRank uint32, tag uint32, data []byte) error

	// Drain invokes cb once for every message currently available,
	// without blocking (§4.6 "polled receive... must not block").
	Drain(cb Callback)

	// BarrierTime returns the current safe simulation time under
	// conservative synchronization (§4.6 "barrier_time()"), used to
	// validate timestamps on outgoing and incoming messages.
	BarrierTime() uint64

	// AdvanceBarrier is called by the host simulation loop as it advances
	// through safe-time windows; it is not part of §4.6's adapter
	// contract proper but is the hook by which this process's local
	// notion of barrier_time is kept current.
	AdvanceBarrier(t uint64)

	// Close releases the adapter's resources. After Close, Send/Drain must
	// not be called.
	Close() error
}
