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

// senderStats holds the per-stream counters guarded by the
// statistics-critsect (spec.md §5): separate media and RTX
// StreamDataCounters, the per-frame-type counters, and the registered
// callback pointers.
type senderStats struct {
	mu sync.Mutex

	media StreamDataCounters
	rtx   StreamDataCounters

	frameCounts map[FrameType]uint32

	frameCountObserver    FrameCountObserver
	delayObserver         SendSideDelayObserver
	dataCountersCallback  StreamDataCountersCallback
}

func newSenderStats() *senderStats {
	return &senderStats{frameCounts: make(map[FrameType]uint32)}
}

// reset zeroes both counter sets without touching sequence/timestamp
// state, supplementing the original's ResetDataCounters (see SPEC_FULL.md
// §12).
func (st *senderStats) reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.media = StreamDataCounters{}
	st.rtx = StreamDataCounters{}
}

func (st *senderStats) bumpFrameCount(frameType FrameType, ssrc uint32) {
	st.mu.Lock()
	st.frameCounts[frameType]++
	count := st.frameCounts[frameType]
	obs := st.frameCountObserver
	st.mu.Unlock()
	if obs != nil {
		obs.FrameCountUpdated(frameType, count, ssrc)
	}
}

func (st *senderStats) update(isRTX bool, isRetransmit, isFEC bool, totalLen, headerLen, paddingLen int, ssrc uint32) StreamDataCounters {
	st.mu.Lock()
	counters := &st.media
	if isRTX {
		counters = &st.rtx
	}
	counters.Packets++
	if isFEC {
		counters.FECPackets++
	}
	if isRetransmit {
		counters.RetransmittedPackets++
	} else {
		payloadLen := totalLen - headerLen - paddingLen
		if payloadLen < 0 {
			payloadLen = 0
		}
		counters.Bytes += uint64(payloadLen)
		counters.HeaderBytes += uint64(headerLen)
		counters.PaddingBytes += uint64(paddingLen)
	}
	snapshot := *counters
	cb := st.dataCountersCallback
	st.mu.Unlock()
	if cb != nil {
		cb.DataCountersUpdated(snapshot, ssrc)
	}
	return snapshot
}
