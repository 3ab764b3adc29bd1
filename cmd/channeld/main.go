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

// channeld runs the channel processor (§4.4) on rank 0 of a distributed
// run, with an attached operator console.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/lakpahana/distchan/cli"
	"github.com/lakpahana/distchan/config"
	"github.com/lakpahana/distchan/fabric"
	"github.com/lakpahana/distchan/logger"
	"github.com/lakpahana/distchan/processor"
	"github.com/lakpahana/distchan/progctx"
)

type cmdArgs struct {
	ConfigPath string
	LogLevel   string
	Console    bool
}

var args cmdArgs

func parseArgs() {
	flag.StringVar(&args.ConfigPath, "config", "", "path to a run configuration YAML file")
	flag.StringVar(&args.LogLevel, "log", "info", "set logging level")
	flag.BoolVar(&args.Console, "console", true, "attach the interactive operator console")
	flag.Parse()
}

func loadConfig() *config.RunConfig {
	if args.ConfigPath == "" {
		return config.DefaultRunConfig()
	}
	cfg, err := config.LoadRunConfig(args.ConfigPath)
	if err != nil {
		logger.Fatalf("channeld: %+v", err)
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
			logger.Infof("channeld: signal received: %v", sig)
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
	if cfg.ChannelRank != 0 {
		logger.Fatalf("channeld: channel_rank must be 0, got %d", cfg.ChannelRank)
	}

	ctx := progctx.New(context.Background())
	handleSignals(ctx)

	addresses := map[uint32]string{}
	for rank, addr := range cfg.PeerAddresses {
		addresses[rank] = addr
	}
	addresses[cfg.ChannelRank] = cfg.ListenAddress

	var fab fabric.Adapter
	if cfg.WorldSize <= 1 {
		fab = fabric.NewLoopbackHub().Adapter(0, 1, 64)
	} else {
		tcp, err := fabric.DialTCPAdapter(cfg.ChannelRank, addresses, 64)
		if err != nil {
			logger.Fatalf("channeld: %+v", err)
		}
		fab = tcp
	}

	proc, err := processor.Init(ctx, fab)
	if err != nil {
		logger.Fatalf("channeld: %+v", err)
	}
	proc.Engine.ReceptionThresholdDbm = cfg.ReceptionThresholdDbm

	runBarrierPump(ctx, fab, cfg.PollInterval)
	go proc.Run(cfg.PollInterval)

	if args.Console {
		rt := cli.NewCmdRunner(proc)
		go func() {
			err := cli.Cli.Run(rt, nil)
			ctx.Cancel(errors.Wrapf(err, "console exit"))
		}()
	}

	logger.Infof("channeld: waiting to stop gracefully ...")
	ctx.Wait()
	if ctx.IsFatal() {
		os.Exit(1)
	}
	os.Exit(0)
}
