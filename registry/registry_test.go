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

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAssignsMonotoneIds(t *testing.T) {
	r := New()
	id1 := r.Register(1, 10, 0, Position{}, Antenna{}, nil, 0)
	id2 := r.Register(1, 11, 0, Position{}, Antenna{}, nil, 0)
	assert.Equal(t, DeviceId(1), id1)
	assert.Equal(t, DeviceId(2), id2)
}

func TestRegisterIsIdempotentOnSameTuple(t *testing.T) {
	r := New()
	id1 := r.Register(1, 10, 0, Position{X: 1}, Antenna{}, nil, 100)
	id2 := r.Register(1, 10, 0, Position{X: 2}, Antenna{}, nil, 200)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, r.Len())

	rec, ok := r.Get(id1)
	assert.True(t, ok)
	assert.Equal(t, 2.0, rec.Position.X)
	assert.Equal(t, uint64(200), rec.LastSeenNs)
}

func TestIdsAreNeverReusedAfterDeregister(t *testing.T) {
	r := New()
	id1 := r.Register(1, 10, 0, Position{}, Antenna{}, nil, 0)
	r.Deregister(id1)
	id2 := r.Register(1, 11, 0, Position{}, Antenna{}, nil, 0)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, DeviceId(2), id2)

	_, ok := r.Get(id1)
	assert.False(t, ok)
}

func TestUpdatePositionRejectsStaleTimestamp(t *testing.T) {
	r := New()
	id := r.Register(1, 10, 0, Position{}, Antenna{}, nil, 100)

	ok := r.UpdatePosition(id, Position{X: 5}, 50)
	assert.False(t, ok)

	rec, _ := r.Get(id)
	assert.Equal(t, 0.0, rec.Position.X)
	assert.Equal(t, uint64(100), rec.LastSeenNs)
}

func TestUpdatePositionAcceptsNonDecreasingTimestamp(t *testing.T) {
	r := New()
	id := r.Register(1, 10, 0, Position{}, Antenna{}, nil, 100)

	ok := r.UpdatePosition(id, Position{X: 5}, 150)
	assert.True(t, ok)

	rec, _ := r.Get(id)
	assert.Equal(t, 5.0, rec.Position.X)
	assert.Equal(t, uint64(150), rec.LastSeenNs)
}

func TestUpdatePositionUnknownDeviceReturnsFalse(t *testing.T) {
	r := New()
	ok := r.UpdatePosition(999, Position{}, 0)
	assert.False(t, ok)
}

func TestSnapshotAllIsSortedByDeviceId(t *testing.T) {
	r := New()
	r.Register(1, 30, 0, Position{}, Antenna{}, nil, 0)
	r.Register(1, 10, 0, Position{}, Antenna{}, nil, 0)
	r.Register(1, 20, 0, Position{}, Antenna{}, nil, 0)

	snap := r.SnapshotAll()
	assert.Len(t, snap, 3)
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].Id, snap[i].Id)
	}
}

func TestSupportsFrequencyEmptySetMeansAll(t *testing.T) {
	rec := Record{}
	assert.True(t, rec.SupportsFrequency(2400000000))

	rec.Frequencies = map[uint32]struct{}{2400000000: {}}
	assert.True(t, rec.SupportsFrequency(2400000000))
	assert.False(t, rec.SupportsFrequency(5000000000))
}

func TestDeregisterUnknownDeviceIsNoop(t *testing.T) {
	r := New()
	assert.NotPanics(t, func() { r.Deregister(123) })
}
