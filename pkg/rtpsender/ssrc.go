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

import (
	"sync"
	"time"
)

// SSRCAllocator hands out process-unique, nonzero SSRCs and tracks their
// reference counts so a released identifier can be reused once no sender
// holds it.
type SSRCAllocator interface {
	Allocate() uint32
	Register(ssrc uint32)
	Release(ssrc uint32)
}

type defaultSSRCAllocator struct {
	mu   sync.Mutex
	refs map[uint32]int
	rng  *xorshiftRNG
}

// NewSSRCAllocator builds an SSRCAllocator seeded from rng. Tests should
// substitute a deterministic fake rather than use this directly when
// reproducibility matters.
func NewSSRCAllocator(rng *xorshiftRNG) SSRCAllocator {
	return &defaultSSRCAllocator{
		refs: make(map[uint32]int),
		rng:  rng,
	}
}

func (a *defaultSSRCAllocator) Allocate() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	for {
		v := a.rng.uint32()
		if v == 0 {
			continue
		}
		if _, taken := a.refs[v]; taken {
			continue
		}
		a.refs[v] = 1
		return v
	}
}

func (a *defaultSSRCAllocator) Register(ssrc uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refs[ssrc]++
}

func (a *defaultSSRCAllocator) Release(ssrc uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n, ok := a.refs[ssrc]; ok {
		if n <= 1 {
			delete(a.refs, ssrc)
		} else {
			a.refs[ssrc] = n - 1
		}
	}
}

var (
	globalAllocatorMu   sync.Mutex
	globalAllocator     SSRCAllocator
	globalAllocatorRefs int
)

// AcquireGlobalSSRCAllocator returns the process-wide SSRC allocator,
// creating it on first use and bumping a reference count. Callers must
// pair every acquire with ReleaseGlobalSSRCAllocator.
func AcquireGlobalSSRCAllocator() SSRCAllocator {
	globalAllocatorMu.Lock()
	defer globalAllocatorMu.Unlock()
	if globalAllocator == nil {
		globalAllocator = NewSSRCAllocator(newXorshiftRNG(uint64(time.Now().UnixNano())))
	}
	globalAllocatorRefs++
	return globalAllocator
}

// ReleaseGlobalSSRCAllocator drops a reference taken by
// AcquireGlobalSSRCAllocator; the singleton is torn down once the last
// reference is released.
func ReleaseGlobalSSRCAllocator() {
	globalAllocatorMu.Lock()
	defer globalAllocatorMu.Unlock()
	globalAllocatorRefs--
	if globalAllocatorRefs <= 0 {
		globalAllocator = nil
		globalAllocatorRefs = 0
	}
}
