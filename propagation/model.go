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

// Package propagation implements the propagation engine (§4.3): pluggable
// loss and delay models, and the per-transmission fan-out that turns one
// TX_REQUEST into zero or more RX_NOTIFICATIONs.
package propagation

import "math"

// SpeedOfLightMetersPerSec is c, used to convert distance to propagation
// delay (§3, §9 "Units").
const SpeedOfLightMetersPerSec = 299792458.0

// paround rounds a dB-scale parameter to two decimal digits, matching the
// precision the default loss model's coefficients are specified to.
func paround(v float64) float64 {
	return math.Round(v*100.0) / 100.0
}

// LossModel computes the path loss in dB between a transmitter and a
// receiver separated by distanceM meters, given each side's antenna gain and
// the carrier frequency (§4.3 "loss model interface").
type LossModel interface {
	// Name identifies the model for CONFIG_LOSS_MODEL acknowledgement/logging.
	Name() string
	// PathLossDb returns the path loss in dB, always >= 0.
	PathLossDb(distanceM float64, txAntennaGainDbi, rxAntennaGainDbi float64, frequencyHz uint32) float64
}

// DelayModel computes the propagation delay in nanoseconds for a signal
// traveling distanceM meters (§4.3 "delay model interface").
type DelayModel interface {
	Name() string
	DelayNs(distanceM float64) uint64
}

// FreeSpaceLossModel implements the default free-space path loss model
// referenced by §9 Design Notes and supplemented with antenna gain per
// SPEC_FULL.md's "Antenna gain in default loss model" addition:
//
//	FSPL_dB(d, f) = 20*log10(d) + 20*log10(f) + 20*log10(4*pi/c)
//	pathLossDb    = FSPL_dB - txAntennaGainDbi - rxAntennaGainDbi
//
// distanceM below 1 cm is clamped to 1 cm to avoid a negative/undefined log
// argument, matching the indoor model's own near-field clamp.
type FreeSpaceLossModel struct{}

func (FreeSpaceLossModel) Name() string { return "free-space" }

func (FreeSpaceLossModel) PathLossDb(distanceM float64, txAntennaGainDbi, rxAntennaGainDbi float64, frequencyHz uint32) float64 {
	d := distanceM
	if d < 0.01 {
		d = 0.01
	}
	fsplDb := 20.0*math.Log10(d) + 20.0*math.Log10(float64(frequencyHz)) + 20.0*math.Log10(4.0*math.Pi/SpeedOfLightMetersPerSec)
	lossDb := fsplDb - txAntennaGainDbi - rxAntennaGainDbi
	if lossDb < 0.0 {
		lossDb = 0.0
	}
	return paround(lossDb)
}

// IndoorLossModel is the ITU-T indoor attenuation model (see
// https://en.wikipedia.org/wiki/ITU_model_for_indoor_attenuation), offered
// as an alternative CONFIG_LOSS_MODEL selection.
type IndoorLossModel struct {
	// ExponentDb and FixedLossDb are the model's distance-exponent and
	// fixed-loss coefficients in dB; zero values default to the 2.4GHz
	// ITU-T indoor coefficients on first use via WithDefaults.
	ExponentDb  float64
	FixedLossDb float64
}

// WithDefaults returns m with the standard 2.4GHz ITU-T indoor coefficients
// filled in where the caller left them zero.
func (m IndoorLossModel) WithDefaults() IndoorLossModel {
	if m.ExponentDb == 0 {
		m.ExponentDb = 30.0
	}
	if m.FixedLossDb == 0 {
		m.FixedLossDb = paround(20.0*math.Log10(2400) - 28.0)
	}
	return m
}

func (IndoorLossModel) Name() string { return "indoor-itu" }

func (m IndoorLossModel) PathLossDb(distanceM float64, txAntennaGainDbi, rxAntennaGainDbi float64, frequencyHz uint32) float64 {
	m = m.WithDefaults()
	lossDb := 0.0
	if distanceM >= 0.01 {
		lossDb = m.ExponentDb*math.Log10(distanceM) + m.FixedLossDb
		if lossDb < 0.0 {
			lossDb = 0.0
		}
	}
	lossDb -= txAntennaGainDbi + rxAntennaGainDbi
	if lossDb < 0.0 {
		lossDb = 0.0
	}
	return paround(lossDb)
}

// ConstantDelayModel returns a fixed delay regardless of distance, useful
// for tests and for scenarios that want to isolate loss-model behavior from
// delay-model behavior.
type ConstantDelayModel struct {
	DelayNsValue uint64
}

func (ConstantDelayModel) Name() string { return "constant" }

func (m ConstantDelayModel) DelayNs(distanceM float64) uint64 {
	return m.DelayNsValue
}

// LightSpeedDelayModel computes propagation delay as distance / c, the
// default delay model per §9 Design Notes.
type LightSpeedDelayModel struct{}

func (LightSpeedDelayModel) Name() string { return "light-speed" }

func (LightSpeedDelayModel) DelayNs(distanceM float64) uint64 {
	seconds := distanceM / SpeedOfLightMetersPerSec
	return uint64(math.Round(seconds * 1e9))
}

// DbmToWatts and WattsToDbm mirror wire.DbmToWatts/WattsToDbm; duplicated
// here (rather than imported) because propagation must not depend on wire
// (§4.3 is wire-format-agnostic, §9 "Interface abstraction over models").
func DbmToWatts(dbm float64) float64 {
	return math.Pow(10, (dbm-30.0)/10.0)
}

func WattsToDbm(watts float64) float64 {
	if watts <= 0 {
		return math.Inf(-1)
	}
	return 10.0*math.Log10(watts) + 30.0
}
