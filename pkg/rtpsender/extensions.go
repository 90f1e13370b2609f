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

// ExtensionKind is a closed set of the one-byte-form RTP header extensions
// this engine knows how to build and patch.
type ExtensionKind int

const (
	ExtTransmissionTimeOffset ExtensionKind = iota
	ExtAudioLevel
	ExtAbsoluteSendTime
)

// canonicalExtensionOrder fixes the iteration order used both to build the
// extension block and to compute each extension's cached offset within it.
// The order is arbitrary but must be stable across a process's lifetime;
// it does not need to match registration order.
var canonicalExtensionOrder = []ExtensionKind{
	ExtTransmissionTimeOffset,
	ExtAudioLevel,
	ExtAbsoluteSendTime,
}

type extensionRegistration struct {
	id     uint8
	offset uint16 // offset from the start of the extension area (post-CSRC), including the 4-byte profile header
}

// ExtensionMap tracks which extension kinds are active for a sender and at
// which 4-bit ID, and caches the byte offset of each active extension
// within the one-byte-form extension block so patchExtensionValue never has to
// re-walk the block to find it.
type ExtensionMap struct {
	mu   sync.Mutex
	regs map[ExtensionKind]extensionRegistration
}

// NewExtensionMap returns an empty ExtensionMap.
func NewExtensionMap() *ExtensionMap {
	return &ExtensionMap{regs: make(map[ExtensionKind]extensionRegistration)}
}

// Register assigns id to kind, replacing any previous assignment, and
// recomputes cached offsets for every registered extension.
func (m *ExtensionMap) Register(kind ExtensionKind, id uint8) error {
	if id < 1 || id > 14 {
		return ErrExtensionIDOutOfRange
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[kind] = extensionRegistration{id: id}
	m.recomputeOffsetsLocked()
	return nil
}

// Deregister removes kind from the map, if present.
func (m *ExtensionMap) Deregister(kind ExtensionKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.regs, kind)
	m.recomputeOffsetsLocked()
}

// IsRegistered reports whether kind currently has an assigned ID.
func (m *ExtensionMap) IsRegistered(kind ExtensionKind) bool {
	_, ok := m.lookup(kind)
	return ok
}

func (m *ExtensionMap) recomputeOffsetsLocked() {
	offset := uint16(oneByteExtensionHdrLen)
	for _, k := range canonicalExtensionOrder {
		r, ok := m.regs[k]
		if !ok {
			continue
		}
		r.offset = offset
		m.regs[k] = r
		offset += extensionBlockLen
	}
}

func (m *ExtensionMap) lookup(kind ExtensionKind) (extensionRegistration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[kind]
	return r, ok
}

// orderedKinds returns the currently-registered kinds in canonical order.
func (m *ExtensionMap) orderedKinds() []ExtensionKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ExtensionKind, 0, len(m.regs))
	for _, k := range canonicalExtensionOrder {
		if _, ok := m.regs[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
