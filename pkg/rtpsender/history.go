// Copyright 2026 Atrium RTC, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rtpsender

import "sync"

type historyEntry struct {
	valid          bool
	seq            uint16
	captureTimeMs  int64
	storedAtMs     int64
	lastSendTimeMs int64
	bytes          []byte
}

// PacketHistory is a bounded ring of recently sent media packets, keyed by
// sequence number modulo the ring's capacity, used to resolve NACKs and to
// source redundant-payload padding. A miss is never an error.
type PacketHistory struct {
	mu      sync.Mutex
	enabled bool
	slots   []historyEntry
	clock   Clock
}

// NewPacketHistory returns a PacketHistory with zero capacity; call
// SetCapacity before use.
func NewPacketHistory(clock Clock) *PacketHistory {
	return &PacketHistory{clock: clock}
}

// SetCapacity resizes the ring, discarding any previously stored packets.
// A capacity of zero disables storage entirely.
func (h *PacketHistory) SetCapacity(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 {
		h.enabled = false
		h.slots = nil
		return
	}
	h.enabled = true
	h.slots = make([]historyEntry, n)
}

// IsEnabled reports whether the history is currently storing packets.
func (h *PacketHistory) IsEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

// Put inserts packet keyed by its sequence number, unless storage is
// StorageDontStore. On ring wrap, whatever previously occupied the slot is
// silently evicted.
func (h *PacketHistory) Put(packet []byte, captureTimeMs int64, storage StorageType) error {
	if storage == StorageDontStore {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled || len(h.slots) == 0 {
		return nil
	}
	hdr, err := parseRTPHeader(packet)
	if err != nil {
		return ErrStorageFailure
	}
	slot := int(hdr.seq) % len(h.slots)
	buf := make([]byte, len(packet))
	copy(buf, packet)
	h.slots[slot] = historyEntry{
		valid:         true,
		seq:           hdr.seq,
		captureTimeMs: captureTimeMs,
		storedAtMs:    h.clock.NowMs(),
		bytes:         buf,
	}
	return nil
}

// GetAndMarkSent returns the stored packet for seq if present, if
// allowRetransmit is true, and if enough time has passed since the last
// time this entry was returned. On a hit, it stamps lastSendTimeMs to now
// before returning.
func (h *PacketHistory) GetAndMarkSent(seq uint16, minResendIntervalMs int64, allowRetransmit bool) ([]byte, int64, bool) {
	if !allowRetransmit {
		return nil, 0, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled || len(h.slots) == 0 {
		return nil, 0, false
	}
	slot := int(seq) % len(h.slots)
	e := &h.slots[slot]
	if !e.valid || e.seq != seq {
		return nil, 0, false
	}
	now := h.clock.NowMs()
	if e.lastSendTimeMs != 0 && now-e.lastSendTimeMs < minResendIntervalMs {
		return nil, 0, false
	}
	e.lastSendTimeMs = now
	out := make([]byte, len(e.bytes))
	copy(out, e.bytes)
	return out, e.captureTimeMs, true
}

// GetBestFitting returns the largest stored packet whose length does not
// exceed budget, breaking ties in favor of the most recently stored
// packet. Used to source redundant-payload padding.
func (h *PacketHistory) GetBestFitting(budget int) ([]byte, int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled {
		return nil, 0, false
	}
	bestIdx := -1
	for i := range h.slots {
		e := &h.slots[i]
		if !e.valid || len(e.bytes) > budget {
			continue
		}
		if bestIdx == -1 {
			bestIdx = i
			continue
		}
		b := &h.slots[bestIdx]
		if len(e.bytes) > len(b.bytes) || (len(e.bytes) == len(b.bytes) && e.storedAtMs >= b.storedAtMs) {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return nil, 0, false
	}
	e := &h.slots[bestIdx]
	out := make([]byte, len(e.bytes))
	copy(out, e.bytes)
	return out, e.captureTimeMs, true
}
