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

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/lakpahana/distchan/processor"
	"github.com/lakpahana/distchan/propagation"
	"github.com/lakpahana/distchan/registry"
)

const Prompt = "channel> "

// CommandContext carries one parsed Command through its handler, the way
// the teacher's own CommandContext threads a *Command plus an error sink
// through each `execute*` call.
type CommandContext struct {
	context.Context
	*Command
	rt  *CmdRunner
	out io.Writer
	err error
}

func (cc *CommandContext) outputf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cc.out, format, args...)
}

func (cc *CommandContext) errorf(format string, args ...interface{}) {
	cc.err = errors.Errorf(format, args...)
}

func (cc *CommandContext) Err() error {
	return cc.err
}

// CmdRunner is the operator console attached to a running channel
// processor (SPEC_FULL.md §2.1). It reaches into the processor's exported
// Registry/Engine/Stats directly rather than round-tripping through the
// fabric, since the console runs in-process on the channel rank.
type CmdRunner struct {
	proc *processor.Processor
}

func NewCmdRunner(proc *processor.Processor) *CmdRunner {
	return &CmdRunner{proc: proc}
}

func (rt *CmdRunner) GetPrompt() string {
	return Prompt
}

func (rt *CmdRunner) HandleCommand(cmdline string, output io.Writer) error {
	cmd := &Command{}
	if err := ParseBytes([]byte(cmdline), cmd); err != nil {
		_, werr := fmt.Fprintf(output, "Error: %v\n", err)
		return werr
	}

	cc := rt.Execute(cmd, output)
	if cc.Err() != nil {
		_, err := fmt.Fprintf(output, "Error: %v\n", cc.Err())
		return err
	}
	_, err := fmt.Fprintf(output, "Done\n")
	return err
}

func (rt *CmdRunner) Execute(cmd *Command, output io.Writer) (cc *CommandContext) {
	cc = &CommandContext{Command: cmd, rt: rt, out: output}

	defer func() {
		if rerr := recover(); rerr != nil {
			if err, ok := rerr.(error); ok {
				cc.err = errors.Wrapf(err, "panic")
			} else {
				cc.err = errors.Errorf("panic: %v", rerr)
			}
		}
	}()

	switch {
	case cmd.Devices != nil:
		rt.executeDevices(cc)
	case cmd.Register != nil:
		rt.executeRegister(cc, cmd.Register)
	case cmd.Remove != nil:
		rt.executeRemove(cc, cmd.Remove)
	case cmd.Tx != nil:
		rt.executeTx(cc, cmd.Tx)
	case cmd.Loss != nil:
		rt.executeLoss(cc, cmd.Loss)
	case cmd.Delay != nil:
		rt.executeDelay(cc, cmd.Delay)
	case cmd.Counters != nil:
		rt.executeCounters(cc)
	case cmd.Help != nil:
		rt.executeHelp(cc, cmd.Help)
	case cmd.Exit != nil:
		// handled by the REPL driver (runcli.go) on io.EOF/exit; nothing to do here.
	}
	return cc
}

func (rt *CmdRunner) executeDevices(cc *CommandContext) {
	for _, rec := range rt.proc.Registry.SnapshotAll() {
		cc.outputf("device=%d rank=%d node_id=%d phy_id=%d pos=(%.2f,%.2f,%.2f) last_seen=%d\n",
			rec.Id, rec.OwningRank, rec.NodeId, rec.PhyId, rec.Position.X, rec.Position.Y, rec.Position.Z, rec.LastSeenNs)
	}
}

func (rt *CmdRunner) executeRegister(cc *CommandContext, c *RegisterCmd) {
	id := rt.proc.Registry.Register(uint32(c.Rank), uint32(c.NodeId), uint32(c.PhyId),
		registry.Position{X: c.X, Y: c.Y, Z: c.Z}, registry.Antenna{}, nil, 0)
	cc.outputf("assigned device_id=%d\n", id)
}

func (rt *CmdRunner) executeRemove(cc *CommandContext, c *RemoveCmd) {
	rt.proc.Registry.Deregister(uint32(c.DeviceId))
}

func (rt *CmdRunner) executeTx(cc *CommandContext, c *TxCmd) {
	transmitter, ok := rt.proc.Registry.Get(uint32(c.DeviceId))
	if !ok {
		cc.errorf("unknown device %d", c.DeviceId)
		return
	}
	tx := propagation.Transmission{
		Transmitter: transmitter,
		TxPowerDbm:  c.TxPowerDbm,
		FrequencyHz: 2400000000,
	}
	receptions := rt.proc.Engine.Propagate(tx, rt.proc.Registry.SnapshotAll())
	cc.outputf("%d receiver(s):\n", len(receptions))
	for _, r := range receptions {
		cc.outputf("  device=%d rx_power_dbm=%.2f path_loss_db=%.2f distance_m=%.2f delay_ns=%d\n",
			r.Receiver.Id, r.RxPowerDbm, r.PathLossDb, r.DistanceM, r.PropagationDelayNs)
	}
}

func (rt *CmdRunner) executeLoss(cc *CommandContext, c *LossCmd) {
	switch c.Name {
	case "indoor":
		rt.proc.Engine.Loss = propagation.IndoorLossModel{}.WithDefaults()
	default:
		rt.proc.Engine.Loss = propagation.FreeSpaceLossModel{}
	}
	cc.outputf("loss model: %s\n", rt.proc.Engine.Loss.Name())
}

func (rt *CmdRunner) executeDelay(cc *CommandContext, c *DelayCmd) {
	rt.proc.Engine.Delay = propagation.LightSpeedDelayModel{}
	cc.outputf("delay model: %s\n", rt.proc.Engine.Delay.Name())
}

func (rt *CmdRunner) executeCounters(cc *CommandContext) {
	cc.outputf("%s\n", rt.proc.Stats.Snapshot().String())
}

func (rt *CmdRunner) executeHelp(cc *CommandContext, c *HelpCmd) {
	h := newHelp()
	if c.Command == nil {
		cc.outputf("%s", h.outputGeneralHelp())
		return
	}
	cc.outputf("%s", h.outputCommandHelp(*c.Command))
}
