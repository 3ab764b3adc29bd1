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
	"math"
	"sort"

	"github.com/lakpahana/distchan/logger"
	"github.com/lakpahana/distchan/registry"
)

// DefaultReceptionThresholdDbm is the default global reception threshold
// (§9 Design Notes, SPEC_FULL.md "Reception threshold as global param"): a
// receiver whose computed RSSI falls below this is not sent an
// RX_NOTIFICATION at all, rather than being sent one it will just discard.
const DefaultReceptionThresholdDbm = -96.0

// Transmission describes one TX_REQUEST as seen by the propagation engine,
// already resolved to a registry record (§4.3 inputs).
type Transmission struct {
	Transmitter    registry.Record
	TxPowerDbm     float64
	FrequencyHz    uint32
	TxTimestampNs  uint64
	SequenceNumber uint32
}

// Reception is one fan-out result: what the channel processor should frame
// as an RX_NOTIFICATION to Receiver.OwningRank (§4.4 "emission policy").
type Reception struct {
	Receiver           registry.Record
	RxPowerDbm         float64
	RxPowerWatts       float64
	PathLossDb         float64
	DistanceM          float64
	PropagationDelayNs uint64
	// ArrivalTimestampNs = Transmission.TxTimestampNs + PropagationDelayNs,
	// the simulation time at which the RX_NOTIFICATION becomes deliverable.
	ArrivalTimestampNs uint64
}

// Engine is the propagation engine (§4.3): a pair of pluggable models plus
// the reception-threshold gate and the fan-out loop over a device registry
// snapshot.
type Engine struct {
	Loss                  LossModel
	Delay                 DelayModel
	ReceptionThresholdDbm float64
}

// NewDefaultEngine builds the propagation engine's default configuration
// (free-space loss, light-speed delay, -96dBm reception threshold) used
// until a CONFIG_LOSS_MODEL / CONFIG_DELAY_MODEL message overrides it.
func NewDefaultEngine() *Engine {
	return &Engine{
		Loss:                  FreeSpaceLossModel{},
		Delay:                 LightSpeedDelayModel{},
		ReceptionThresholdDbm: DefaultReceptionThresholdDbm,
	}
}

// Propagate implements §4.3's per-transmission fan-out: for every live
// device in snapshot other than the transmitter that supports tx's
// frequency, compute path loss/delay/RSSI and gate on the reception
// threshold. Candidates are iterated and returned in device-id order for
// determinism (§4.3 "in device-id order for determinism"); snapshot is
// expected to already be sorted (registry.Registry.SnapshotAll guarantees
// this), but Propagate sorts defensively so it never depends on caller
// discipline.
func (e *Engine) Propagate(tx Transmission, snapshot []registry.Record) []Reception {
	ordered := append([]registry.Record(nil), snapshot...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Id < ordered[j].Id })

	receptions := make([]Reception, 0, len(ordered))
	for _, rx := range ordered {
		if rx.Id == tx.Transmitter.Id {
			continue
		}
		if !rx.SupportsFrequency(tx.FrequencyHz) {
			continue
		}

		distanceM := distance3D(tx.Transmitter.Position, rx.Position)
		if math.IsInf(distanceM, 0) || math.IsNaN(distanceM) {
			logger.Warnf("propagation: distance overflow between device %d and device %d; receiver skipped", tx.Transmitter.Id, rx.Id)
			continue
		}

		var pathLossDb float64
		if distanceM == 0 {
			pathLossDb = 0
		} else {
			pathLossDb = e.Loss.PathLossDb(distanceM, tx.Transmitter.Antenna.GainDbi, rx.Antenna.GainDbi, tx.FrequencyHz)
		}
		rxPowerDbm := tx.TxPowerDbm - pathLossDb
		if rxPowerDbm < e.ReceptionThresholdDbm {
			continue
		}

		delayNs := e.Delay.DelayNs(distanceM)
		receptions = append(receptions, Reception{
			Receiver:           rx,
			RxPowerDbm:         rxPowerDbm,
			RxPowerWatts:       DbmToWatts(rxPowerDbm),
			PathLossDb:         pathLossDb,
			DistanceM:          distanceM,
			PropagationDelayNs: delayNs,
			ArrivalTimestampNs: tx.TxTimestampNs + delayNs,
		})
	}
	return receptions
}

func distance3D(a, b registry.Position) float64 {
	d := a.Sub(b)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}
