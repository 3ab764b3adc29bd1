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

// This file defines the grammar of every operator-console command.

package cli

import (
	"github.com/alecthomas/participle"
)

// Command is the top-level grammar alternation for the channel-rank
// operator console.
type Command struct {
	Devices  *DevicesCmd  `  @@` //nolint
	Register *RegisterCmd `| @@` //nolint
	Remove   *RemoveCmd   `| @@` //nolint
	Tx       *TxCmd       `| @@` //nolint
	Loss     *LossCmd     `| @@` //nolint
	Delay    *DelayCmd    `| @@` //nolint
	Counters *CountersCmd `| @@` //nolint
	Help     *HelpCmd     `| @@` //nolint
	Exit     *ExitCmd     `| @@` //nolint
}

// HelpCmd prints help for one command, or every command if none is given.
type HelpCmd struct {
	Cmd     struct{} `"help"`    //nolint
	Command *string  `[ @String ]` //nolint
}

// DevicesCmd lists every device currently in the registry.
type DevicesCmd struct {
	Cmd struct{} `"devices"` //nolint
}

// RegisterCmd manually registers a device, as if a DEVICE_REGISTER had
// arrived from the given source rank.
type RegisterCmd struct {
	Cmd    struct{} `"register"`           //nolint
	Rank   int      `@Int`                 //nolint
	NodeId int      `@Int`                 //nolint
	PhyId  int      `@Int`                 //nolint
	X      float64  `(@Int|@Float)`        //nolint
	Y      float64  `(@Int|@Float)`        //nolint
	Z      float64  `(@Int|@Float)`        //nolint
}

// RemoveCmd deregisters a device by id.
type RemoveCmd struct {
	Cmd      struct{} `"remove"` //nolint
	DeviceId int      `@Int`     //nolint
}

// TxCmd injects a TX_REQUEST from a registered device, expressed as
// transmit power in dBm for operator convenience (passed in dBm to the
// processor's propagation engine).
type TxCmd struct {
	Cmd         struct{} `"tx"`           //nolint
	DeviceId    int      `@Int`           //nolint
	TxPowerDbm  float64  `(@Int|@Float)`  //nolint
}

// LossCmd switches the active loss model by name ("free-space" or
// "indoor").
type LossCmd struct {
	Cmd  struct{} `"loss"`                      //nolint
	Name string   `@("free-space" | "indoor")`  //nolint
}

// DelayCmd switches the active delay model by name ("light-speed").
type DelayCmd struct {
	Cmd  struct{} `"delay"`         //nolint
	Name string   `@("light-speed")` //nolint
}

// CountersCmd prints the current per-run summary.
type CountersCmd struct {
	Cmd struct{} `"counters"` //nolint
}

// ExitCmd leaves the console.
type ExitCmd struct {
	Cmd struct{} `"exit"` //nolint
}

var commandParser = participle.MustBuild(&Command{})

// ParseBytes parses one command line into cmd.
func ParseBytes(b []byte, cmd *Command) error {
	return commandParser.ParseBytes(b, cmd)
}
