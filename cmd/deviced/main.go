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

// deviced runs a channel stub (§4.5) for one device rank, attaching a small
// deterministic radio-simulator harness in place of the real MAC/PHY that
// would sit above the channel on an actual device.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lakpahana/distchan/config"
	"github.com/lakpahana/distchan/fabric"
	"github.com/lakpahana/distchan/logger"
	"github.com/lakpahana/distchan/progctx"
	"github.com/lakpahana/distchan/registry"
	"github.com/lakpahana/distchan/stub"
)

type cmdArgs struct {
	ConfigPath string
	LogLevel   string
	Rank       uint
	NodeId     uint
	PhyId      uint
	X, Y, Z    float64
	TxPowerDbm float64
}

var args cmdArgs

func parseArgs() {
	flag.StringVar(&args.ConfigPath, "config", "", "path to a run configuration YAML file")
	flag.StringVar(&args.LogLevel, "log", "info", "set logging level")
	flag.UintVar(&args.Rank, "rank", 1, "this device's source rank")
	flag.UintVar(&args.NodeId, "node-id", 1, "simulated radio's node id")
	flag.UintVar(&args.PhyId, "phy-id", 0, "simulated radio's phy id")
	flag.Float64Var(&args.X, "x", 0, "simulated radio's x position")
	flag.Float64Var(&args.Y, "y", 0, "simulated radio's y position")
	flag.Float64Var(&args.Z, "z", 0, "simulated radio's z position")
	flag.Float64Var(&args.TxPowerDbm, "tx-power-dbm", 0, "transmit power for periodic demo transmissions, in dBm")
	flag.Parse()
}

func loadConfig() *config.RunConfig {
	if args.ConfigPath == "" {
		return config.DefaultRunConfig()
	}
	cfg, err := config.LoadRunConfig(args.ConfigPath)
	if err != nil {
		logger.Fatalf("deviced: %+v", err)
	}
	return cfg
}

func handleSignals(ctx *progctx.ProgCtx) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)

	ctx.WaitAdd("handleSignals", 1)
	go func() {
		defer ctx.WaitDone("handleSignals")
		select {
		case sig := <-c:
			logger.Infof("deviced: signal received: %v", sig)
			ctx.Cancel(nil)
		case <-ctx.Done():
			return
		}
	}()
}

// runBarrierPump advances fab's safe-time barrier at wall-clock rate: this
// process has no separate host simulator driving conservative
// synchronization (§4.6 "inherited from the host simulator"), so in a real-
// time deployment wall-clock elapsed time since start is that host's stand-
// in notion of safe time, kept non-trivial so §4.1's timestamp-tolerance
// check has something real to compare against.
func runBarrierPump(ctx *progctx.ProgCtx, fab fabric.Adapter, interval time.Duration) {
	ctx.WaitAdd("barrier-pump", 1)
	go func() {
		defer ctx.WaitDone("barrier-pump")
		start := time.Now()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		done := ctx.Done()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fab.AdvanceBarrier(uint64(time.Since(start).Nanoseconds()))
			}
		}
	}()
}

func main() {
	parseArgs()
	logger.SetLevel(logger.ParseLevel(args.LogLevel))

	cfg := loadConfig()
	rank := uint32(args.Rank)
	if rank == cfg.ChannelRank {
		logger.Fatalf("deviced: rank %d collides with the channel rank; pick a distinct device rank", rank)
	}

	ctx := progctx.New(context.Background())
	handleSignals(ctx)

	addresses := map[uint32]string{}
	for r, addr := range cfg.PeerAddresses {
		addresses[r] = addr
	}
	if _, ok := addresses[rank]; !ok {
		logger.Fatalf("deviced: no listen address configured for rank %d under peer_addresses", rank)
	}
	addresses[cfg.ChannelRank] = cfg.ListenAddress

	fab, err := fabric.DialTCPAdapter(rank, addresses, 64)
	if err != nil {
		logger.Fatalf("deviced: %+v", err)
	}

	s := stub.New(ctx, fab)
	s.SetRegistrationTimeout(cfg.RegistrationTimeout)
	s.SetPositionEpsilonM(cfg.PositionEpsilonM)

	radio := newSimRadio(uint32(args.NodeId), uint32(args.PhyId),
		registry.Position{X: args.X, Y: args.Y, Z: args.Z})

	deviceId, err := s.Attach(radio)
	if err != nil {
		logger.Fatalf("deviced: attach: %+v", err)
	}
	logger.Infof("deviced: attached as device_id=%d node_id=%d phy_id=%d", deviceId, radio.NodeId(), radio.PhyId())

	runBarrierPump(ctx, fab, cfg.PollInterval)
	go s.Run(cfg.PollInterval, cfg.HeartbeatInterval)

	if args.TxPowerDbm != 0 {
		go runDemoTransmitter(ctx, s, radio, args.TxPowerDbm)
	}

	logger.Infof("deviced: waiting to stop gracefully ...")
	ctx.Wait()
	if ctx.IsFatal() {
		os.Exit(1)
	}
	os.Exit(0)
}
