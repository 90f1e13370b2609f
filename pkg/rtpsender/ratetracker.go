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

type rateSample struct {
	atMs  int64
	bytes int
}

// RateTracker maintains a fixed-window rolling byte-rate estimate. Two
// independent instances are used by SendEngine: one for overall sent
// bitrate, one for NACK-retransmitted bitrate.
type RateTracker struct {
	mu       sync.Mutex
	windowMs int64
	samples  []rateSample
	clock    Clock
}

// NewRateTracker returns a RateTracker with the given window.
func NewRateTracker(clock Clock, windowMs int64) *RateTracker {
	return &RateTracker{clock: clock, windowMs: windowMs}
}

// Update records bytes sent at the current time.
func (r *RateTracker) Update(bytes int) {
	if bytes <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, rateSample{atMs: r.clock.NowMs(), bytes: bytes})
}

// Process prunes samples that have fallen out of the window. It is meant
// to be called periodically (e.g. from SendEngine.ProcessBitrate) so the
// rate reported during a quiet period decays rather than reading stale.
func (r *RateTracker) Process() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.clock.NowMs())
}

func (r *RateTracker) pruneLocked(now int64) {
	cut := now - r.windowMs
	i := 0
	for i < len(r.samples) && r.samples[i].atMs < cut {
		i++
	}
	if i > 0 {
		r.samples = r.samples[i:]
	}
}

// BitrateBps returns the current windowed bitrate in bits per second.
func (r *RateTracker) BitrateBps() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.NowMs()
	r.pruneLocked(now)
	if len(r.samples) == 0 {
		return 0
	}
	var total int64
	for _, s := range r.samples {
		total += int64(s.bytes)
	}
	return uint32(total * 8 * 1000 / r.windowMs)
}

// SendDelayTracker maintains the sliding map of send-side delay samples
// described in spec.md §4.3 ("Send delay map").
type SendDelayTracker struct {
	mu       sync.Mutex
	windowMs int64
	samples  map[int64]int64 // now_ms -> delay_ms
	clock    Clock
}

// NewSendDelayTracker returns a SendDelayTracker bounded to windowMs.
func NewSendDelayTracker(clock Clock, windowMs int64) *SendDelayTracker {
	return &SendDelayTracker{clock: clock, windowMs: windowMs, samples: make(map[int64]int64)}
}

// Record stores a sample "now - capture" and drops anything older than the
// configured window.
func (t *SendDelayTracker) Record(captureTimeMs, nowMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples[nowMs] = nowMs - captureTimeMs
	cut := nowMs - t.windowMs
	for k := range t.samples {
		if k < cut {
			delete(t.samples, k)
		}
	}
}

// Summary returns the average and maximum delay among samples within
// windowMs of now, using rounded integer division for the average. It
// returns ok=false when no sample lies within the window.
func (t *SendDelayTracker) Summary(windowMs int64) (avgMs, maxMs int64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.NowMs()
	cut := now - windowMs
	var sum, n int64
	for k, d := range t.samples {
		if k < cut {
			continue
		}
		if d > maxMs {
			maxMs = d
		}
		sum += d
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	avgMs = (sum + n/2) / n
	return avgMs, maxMs, true
}
