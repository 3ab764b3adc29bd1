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

package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakpahana/distchan/registry"
)

func rec(id registry.DeviceId, rank uint32, x float64) registry.Record {
	return registry.Record{Id: id, OwningRank: rank, Position: registry.Position{X: x}}
}

// Scenario 1 (§8): single receiver, free-space.
func TestPropagateSingleReceiverFreeSpace(t *testing.T) {
	e := NewDefaultEngine()
	tx := Transmission{
		Transmitter:   rec(1, 0, 0),
		TxPowerDbm:    20.0,
		FrequencyHz:   2400000000,
		TxTimestampNs: 0,
	}
	snapshot := []registry.Record{tx.Transmitter, rec(2, 1, 10)}

	out := e.Propagate(tx, snapshot)
	require.Len(t, out, 1)
	assert.Equal(t, registry.DeviceId(2), out[0].Receiver.Id)
	assert.InDelta(t, 10.0, out[0].DistanceM, 1e-9)
	assert.Equal(t, uint64(33), out[0].PropagationDelayNs)
	assert.InDelta(t, 60.05, out[0].PathLossDb, 0.01)
}

// Scenario 2 (§8): three receivers, ordered fan-out.
func TestPropagateThreeReceiversOrderedFanOut(t *testing.T) {
	e := NewDefaultEngine()
	tx := Transmission{
		Transmitter: rec(1, 0, 0),
		TxPowerDbm:  16.0,
		FrequencyHz: 2400000000,
	}
	snapshot := []registry.Record{
		tx.Transmitter,
		rec(2, 0, 10),
		rec(3, 0, 20),
		rec(4, 0, 30),
	}

	out := e.Propagate(tx, snapshot)
	require.Len(t, out, 3)
	assert.Equal(t, registry.DeviceId(2), out[0].Receiver.Id)
	assert.Equal(t, registry.DeviceId(3), out[1].Receiver.Id)
	assert.Equal(t, registry.DeviceId(4), out[2].Receiver.Id)

	for i := 1; i < len(out); i++ {
		assert.Greater(t, out[i].DistanceM, out[i-1].DistanceM)
		assert.GreaterOrEqual(t, out[i].PropagationDelayNs, out[i-1].PropagationDelayNs)
	}
}

func TestPropagateSkipsTransmitterItself(t *testing.T) {
	e := NewDefaultEngine()
	tx := Transmission{Transmitter: rec(1, 0, 0), TxPowerDbm: 0, FrequencyHz: 2400000000}
	out := e.Propagate(tx, []registry.Record{tx.Transmitter})
	assert.Empty(t, out)
}

func TestPropagateSkipsFrequencyIncompatibleReceiver(t *testing.T) {
	e := NewDefaultEngine()
	tx := Transmission{Transmitter: rec(1, 0, 0), TxPowerDbm: 20, FrequencyHz: 2400000000}
	other := rec(2, 1, 5)
	other.Frequencies = map[uint32]struct{}{5000000000: {}}
	out := e.Propagate(tx, []registry.Record{tx.Transmitter, other})
	assert.Empty(t, out)
}

func TestPropagateSkipsBelowReceptionThreshold(t *testing.T) {
	e := NewDefaultEngine()
	tx := Transmission{Transmitter: rec(1, 0, 0), TxPowerDbm: -200, FrequencyHz: 2400000000}
	out := e.Propagate(tx, []registry.Record{tx.Transmitter, rec(2, 1, 10)})
	assert.Empty(t, out)
}

func TestPropagateZeroDistanceUsesZeroPathLoss(t *testing.T) {
	e := NewDefaultEngine()
	tx := Transmission{Transmitter: rec(1, 0, 0), TxPowerDbm: 10, FrequencyHz: 2400000000}
	out := e.Propagate(tx, []registry.Record{tx.Transmitter, rec(2, 1, 0)})
	require.Len(t, out, 1)
	assert.Equal(t, 0.0, out[0].PathLossDb)
	assert.Equal(t, 10.0, out[0].RxPowerDbm)
}

func TestDbmWattsConversionMatchesCanonicalFormula(t *testing.T) {
	assert.InDelta(t, 0.1, DbmToWatts(20.0), 1e-12)
	assert.InDelta(t, 20.0, WattsToDbm(0.1), 1e-9)
}
