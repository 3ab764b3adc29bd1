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

// Package registry implements the device registry (§4.2): the table inside
// the channel processor mapping device id to owning rank, position, antenna
// parameters, supported frequencies, and last-seen timestamp. It is a pure
// data structure with the mutation rules of §4.2/§3 and has no knowledge of
// the fabric or the wire format.
package registry

import (
	"sort"
	"sync"

	"github.com/lakpahana/distchan/logger"
)

// DeviceId is the globally unique id assigned by the channel processor on
// first registration (§3).
type DeviceId = uint32

// Position is a three-dimensional position in meters.
type Position struct {
	X, Y, Z float64
}

// Sub returns the vector p - o.
func (p Position) Sub(o Position) Position {
	return Position{p.X - o.X, p.Y - o.Y, p.Z - o.Z}
}

// Antenna carries the antenna parameters of a device (§3 "antenna gain").
type Antenna struct {
	GainDbi float64
}

// Record is one device registry entry (§3 "Device record").
type Record struct {
	Id          DeviceId
	OwningRank  uint32
	NodeId      uint32
	PhyId       uint32
	Position    Position
	Antenna     Antenna
	Frequencies map[uint32]struct{} // empty set means "all frequencies supported"
	LastSeenNs  uint64
	Active      bool
}

// SupportsFrequency reports whether r can receive on frequencyHz (§4.3 step 2).
func (r *Record) SupportsFrequency(frequencyHz uint32) bool {
	if len(r.Frequencies) == 0 {
		return true
	}
	_, ok := r.Frequencies[frequencyHz]
	return ok
}

type registrationKey struct {
	sourceRank uint32
	nodeId     uint32
	phyId      uint32
}

// Registry is the channel processor's exclusively-owned device table (§3
// "Ownership"). All methods are safe for concurrent use, though the channel
// processor in practice calls them only from its single receive-loop
// goroutine (§5).
type Registry struct {
	mu         sync.Mutex
	devices    map[DeviceId]*Record
	byKey      map[registrationKey]DeviceId
	nextId     DeviceId
}

// New creates an empty Registry. Device ids are assigned starting from 1;
// 0 is never a valid device id, matching the wire header's "0 if not
// applicable" convention for the device_id field (§6).
func New() *Registry {
	return &Registry{
		devices: make(map[DeviceId]*Record),
		byKey:   make(map[registrationKey]DeviceId),
		nextId:  1,
	}
}

// Register implements §4.2's register operation, including the idempotent
// (source_rank, node_id, phy_id) behavior: a second registration of the same
// tuple returns the previously assigned id and refreshes position/frequencies
// instead of inserting a duplicate.
func (r *Registry) Register(sourceRank, nodeId, phyId uint32, pos Position, antenna Antenna,
	frequencies []uint32, nowNs uint64) DeviceId {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registrationKey{sourceRank, nodeId, phyId}
	if id, ok := r.byKey[key]; ok {
		rec := r.devices[id]
		rec.Position = pos
		rec.Antenna = antenna
		rec.Frequencies = toFreqSet(frequencies)
		rec.LastSeenNs = maxU64(rec.LastSeenNs, nowNs)
		return id
	}

	id := r.nextId
	r.nextId++
	r.devices[id] = &Record{
		Id:          id,
		OwningRank:  sourceRank,
		NodeId:      nodeId,
		PhyId:       phyId,
		Position:    pos,
		Antenna:     antenna,
		Frequencies: toFreqSet(frequencies),
		LastSeenNs:  nowNs,
		Active:      true,
	}
	r.byKey[key] = id
	return id
}

// Deregister implements §4.2's deregister operation: removes the record. If
// the id is unknown, logs and returns without error (never propagates a fault
// across the process boundary for this case, per §4.2 "Failure semantics").
func (r *Registry) Deregister(id DeviceId) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		logger.Infof("registry: deregister of unknown device id %d ignored", id)
		return
	}
	delete(r.byKey, registrationKey{rec.OwningRank, rec.NodeId, rec.PhyId})
	delete(r.devices, id)
}

// UpdatePosition implements §4.2's update_position operation. A position
// update whose timestamp is strictly older than the stored last_seen is
// discarded (§3 invariant: last_seen is non-decreasing; position reflects the
// latest update at or before the current safe time). Returns false if the id
// is unknown or the update was discarded.
func (r *Registry) UpdatePosition(id DeviceId, pos Position, eventTimestampNs uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		logger.Infof("registry: position update for unknown device id %d ignored", id)
		return false
	}
	if eventTimestampNs < rec.LastSeenNs {
		logger.Infof("registry: stale position update for device id %d (event %d < last_seen %d) discarded",
			id, eventTimestampNs, rec.LastSeenNs)
		return false
	}
	rec.Position = pos
	rec.LastSeenNs = eventTimestampNs
	return true
}

// Get returns a copy of the record for id and whether it exists (§4.2
// "get(device_id)"). Callers must check the bool: none of these operations
// throw across the process boundary (§4.2 "Failure semantics").
func (r *Registry) Get(id DeviceId) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// SnapshotAll returns a read-only projection of every live record, sorted by
// device id, per §4.3's "in device-id order for determinism" requirement.
func (r *Registry) SnapshotAll() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.devices))
	for _, rec := range r.devices {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// Len reports the number of live device records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

func toFreqSet(freqs []uint32) map[uint32]struct{} {
	if len(freqs) == 0 {
		return nil
	}
	set := make(map[uint32]struct{}, len(freqs))
	for _, f := range freqs {
		set[f] = struct{}{}
	}
	return set
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
