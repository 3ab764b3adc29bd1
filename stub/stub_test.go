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

package stub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakpahana/distchan/fabric"
	"github.com/lakpahana/distchan/processor"
	"github.com/lakpahana/distchan/progctx"
	"github.com/lakpahana/distchan/propagation"
	"github.com/lakpahana/distchan/registry"
)

// fakeRadio is a minimal Radio for tests: fixed identity/position, and a
// channel capturing every delivered Reception.
type fakeRadio struct {
	nodeId, phyId uint32
	pos           registry.Position
	mu            sync.Mutex
	received      []Reception
}

func (r *fakeRadio) NodeId() uint32                  { return r.nodeId }
func (r *fakeRadio) PhyId() uint32                    { return r.phyId }
func (r *fakeRadio) Position() registry.Position      { return r.pos }
func (r *fakeRadio) Antenna() registry.Antenna        { return registry.Antenna{} }
func (r *fakeRadio) Frequencies() []uint32            { return nil }
func (r *fakeRadio) Receive(rc Reception) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, rc)
}
func (r *fakeRadio) receivedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func TestFallbackAttachSendDeliversReception(t *testing.T) {
	reg := registry.New()
	engine := propagation.NewDefaultEngine()
	ctx := progctx.New(context.Background())

	stubA := NewFallback(ctx, reg, engine)
	stubB := NewFallback(ctx, reg, engine)

	radioA := &fakeRadio{nodeId: 1, phyId: 0, pos: registry.Position{X: 0, Y: 0, Z: 0}}
	radioB := &fakeRadio{nodeId: 2, phyId: 0, pos: registry.Position{X: 10, Y: 0, Z: 0}}

	_, err := stubA.Attach(radioA)
	require.NoError(t, err)
	_, err = stubB.Attach(radioB)
	require.NoError(t, err)

	err = stubA.Send(radioA, []byte("hello"), 0.1, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, radioB.receivedCount())
	assert.Equal(t, 0, radioA.receivedCount())
}

func TestFallbackZeroPowerSendDeliversNothing(t *testing.T) {
	reg := registry.New()
	engine := propagation.NewDefaultEngine()
	ctx := progctx.New(context.Background())
	s := NewFallback(ctx, reg, engine)

	radioA := &fakeRadio{nodeId: 1, phyId: 0}
	radioB := &fakeRadio{nodeId: 2, phyId: 0, pos: registry.Position{X: 5}}
	_, err := s.Attach(radioA)
	require.NoError(t, err)
	_, err = s.Attach(radioB)
	require.NoError(t, err)

	require.NoError(t, s.Send(radioA, nil, 0, nil))
	assert.Equal(t, 0, radioB.receivedCount())
	assert.Equal(t, uint64(1), s.Stats.Snapshot().TxRequestsDroppedZeroPower)
}

func TestNotifyPositionChangedSuppressesSmallMoves(t *testing.T) {
	reg := registry.New()
	engine := propagation.NewDefaultEngine()
	ctx := progctx.New(context.Background())
	s := NewFallback(ctx, reg, engine)

	radio := &fakeRadio{nodeId: 1, phyId: 0, pos: registry.Position{X: 0, Y: 0, Z: 0}}
	_, err := s.Attach(radio)
	require.NoError(t, err)

	require.NoError(t, s.NotifyPositionChanged(radio, registry.Position{X: 0.5}))
	assert.Equal(t, uint64(1), s.Stats.Snapshot().PositionUpdatesSuppressed)

	require.NoError(t, s.NotifyPositionChanged(radio, registry.Position{X: 2}))
	assert.Equal(t, uint64(1), s.Stats.Snapshot().PositionUpdatesApplied)
}

// TestDistributedAttachSendOverLoopback exercises the stub against a real
// Channel Processor through an in-process fabric, confirming the
// distributed path produces the same reception a fallback stub would.
func TestDistributedAttachSendOverLoopback(t *testing.T) {
	hub := fabric.NewLoopbackHub()
	channelFab := hub.Adapter(0, 3, 64)
	fabA := hub.Adapter(1, 3, 64)
	fabB := hub.Adapter(2, 3, 64)

	procCtx := progctx.New(context.Background())
	proc, err := processor.Init(procCtx, channelFab)
	require.NoError(t, err)

	ctxA := progctx.New(context.Background())
	ctxB := progctx.New(context.Background())
	stubA := New(ctxA, fabA)
	stubB := New(ctxB, fabB)
	stubA.SetRegistrationTimeout(time.Second)
	stubB.SetRegistrationTimeout(time.Second)

	radioA := &fakeRadio{nodeId: 1, phyId: 0, pos: registry.Position{X: 0, Y: 0, Z: 0}}
	radioB := &fakeRadio{nodeId: 2, phyId: 0, pos: registry.Position{X: 10, Y: 0, Z: 0}}

	pumpUntil := func(done <-chan error, stubs ...*Stub) error {
		deadline := time.After(2 * time.Second)
		for {
			select {
			case err := <-done:
				return err
			case <-deadline:
				t.Fatal("timed out waiting for stub operation")
				return nil
			case <-time.After(time.Millisecond):
				proc.RunOnce()
				for _, s := range stubs {
					s.RunOnce()
				}
			}
		}
	}

	attachDone := make(chan error, 1)
	go func() { _, e := stubA.Attach(radioA); attachDone <- e }()
	require.NoError(t, pumpUntil(attachDone, stubA))

	attachDone = make(chan error, 1)
	go func() { _, e := stubB.Attach(radioB); attachDone <- e }()
	require.NoError(t, pumpUntil(attachDone, stubB))

	require.NoError(t, stubA.Send(radioA, []byte("x"), 0.1, nil))
	for i := 0; i < 5; i++ {
		proc.RunOnce()
		stubB.RunOnce()
	}

	assert.Equal(t, 1, radioB.receivedCount())
}
