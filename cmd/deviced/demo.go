// Copyright (c) 2020-2024, The OTNS Authors.
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

package main

import (
	"fmt"
	"time"

	"github.com/lakpahana/distchan/logger"
	"github.com/lakpahana/distchan/progctx"
	"github.com/lakpahana/distchan/propagation"
	"github.com/lakpahana/distchan/stub"
)

// runDemoTransmitter periodically sends a small payload, purely so a solo
// deviced instance has observable traffic to show in the channeld console's
// `counters` output; real traffic generation is a non-goal of the channel
// layer this repo implements.
func runDemoTransmitter(ctx *progctx.ProgCtx, s *stub.Stub, radio *simRadio, txPowerDbm float64) {
	ctx.WaitAdd("demo-transmitter", 1)
	defer ctx.WaitDone("demo-transmitter")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq++
			payload := []byte(fmt.Sprintf("hello-%d", seq))
			txPowerWatts := propagation.DbmToWatts(txPowerDbm)
			if err := s.Send(radio, payload, txPowerWatts, nil); err != nil {
				logger.Warnf("deviced: demo send failed: %v", err)
			}
		}
	}
}
