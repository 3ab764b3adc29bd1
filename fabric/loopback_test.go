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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackSendDrainRoundTrip(t *testing.T) {
	hub := NewLoopbackHub()
	a0 := hub.Adapter(0, 2, 16)
	a1 := hub.Adapter(1, 2, 16)

	require.NoError(t, a1.Send(0, 42, []byte("hello")))

	var got []byte
	var gotTag, gotRank uint32
	a0.Drain(func(sourceRank, tag uint32, data []byte) {
		gotRank, gotTag, got = sourceRank, tag, data
	})

	assert.Equal(t, uint32(1), gotRank)
	assert.Equal(t, uint32(42), gotTag)
	assert.Equal(t, []byte("hello"), got)
}

func TestLoopbackDrainIsNonBlockingWhenEmpty(t *testing.T) {
	hub := NewLoopbackHub()
	a0 := hub.Adapter(0, 1, 16)
	called := false
	a0.Drain(func(uint32, uint32, []byte) { called = true })
	assert.False(t, called)
}

func TestLoopbackSendToUnknownRankErrors(t *testing.T) {
	hub := NewLoopbackHub()
	a0 := hub.Adapter(0, 2, 16)
	err := a0.Send(99, 0, []byte("x"))
	assert.Error(t, err)
}

func TestLoopbackIdentity(t *testing.T) {
	hub := NewLoopbackHub()
	a0 := hub.Adapter(3, 5, 4)
	rank, world := a0.Identity()
	assert.Equal(t, uint32(3), rank)
	assert.Equal(t, uint32(5), world)
}

func TestLoopbackBarrierTime(t *testing.T) {
	hub := NewLoopbackHub()
	a0 := hub.Adapter(0, 1, 4)
	assert.Equal(t, uint64(0), a0.BarrierTime())
	a0.AdvanceBarrier(123)
	assert.Equal(t, uint64(123), a0.BarrierTime())
}
