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

package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakpahana/distchan/fabric"
	"github.com/lakpahana/distchan/processor"
	"github.com/lakpahana/distchan/progctx"
)

func newTestRunner(t *testing.T) *CmdRunner {
	t.Helper()
	hub := fabric.NewLoopbackHub()
	fab := hub.Adapter(0, 1, 16)
	ctx := progctx.New(context.Background())
	proc, err := processor.Init(ctx, fab)
	require.NoError(t, err)
	return NewCmdRunner(proc)
}

func TestParseDevicesCommand(t *testing.T) {
	cmd := &Command{}
	require.NoError(t, ParseBytes([]byte("devices"), cmd))
	assert.NotNil(t, cmd.Devices)
}

func TestParseRegisterCommand(t *testing.T) {
	cmd := &Command{}
	require.NoError(t, ParseBytes([]byte(`register 1 42 0 1.5 2.5 0`), cmd))
	require.NotNil(t, cmd.Register)
	assert.Equal(t, 1, cmd.Register.Rank)
	assert.Equal(t, 42, cmd.Register.NodeId)
	assert.Equal(t, 1.5, cmd.Register.X)
}

func TestRegisterThenDevicesShowsIt(t *testing.T) {
	rt := newTestRunner(t)
	var out bytes.Buffer

	require.NoError(t, rt.HandleCommand("register 1 42 0 0 0 0", &out))
	assert.Contains(t, out.String(), "assigned device_id=1")

	out.Reset()
	require.NoError(t, rt.HandleCommand("devices", &out))
	assert.Contains(t, out.String(), "device=1")
	assert.Contains(t, out.String(), "node_id=42")
}

func TestTxUnknownDeviceReportsError(t *testing.T) {
	rt := newTestRunner(t)
	var out bytes.Buffer
	require.NoError(t, rt.HandleCommand("tx 999 20", &out))
	assert.Contains(t, out.String(), "Error:")
}

func TestLossModelSwitch(t *testing.T) {
	rt := newTestRunner(t)
	var out bytes.Buffer
	require.NoError(t, rt.HandleCommand("loss indoor", &out))
	assert.Contains(t, out.String(), "indoor")
}

func TestHelpWithNoArgListsEveryCommand(t *testing.T) {
	rt := newTestRunner(t)
	var out bytes.Buffer
	require.NoError(t, rt.HandleCommand("help", &out))
	assert.Contains(t, out.String(), "devices")
	assert.Contains(t, out.String(), "register")
}
