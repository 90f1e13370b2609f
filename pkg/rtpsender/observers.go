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

// BitrateStatisticsObserver is notified on each bitrate processing tick
// (see SendEngine.ProcessBitrate).
type BitrateStatisticsObserver interface {
	Notify(stats BitrateStatistics, ssrc uint32)
}

// FrameCountObserver is notified every time SendOutgoingData accepts a
// frame, after the per-frame-type counter has been incremented.
type FrameCountObserver interface {
	FrameCountUpdated(frameType FrameType, count uint32, ssrc uint32)
}

// SendSideDelayObserver is notified whenever a fresh send-delay summary is
// available (see RateTracker/SendDelayTracker.Summary).
type SendSideDelayObserver interface {
	SendSideDelayUpdated(avgMs, maxMs int64, ssrc uint32)
}

// StreamDataCountersCallback is notified after every send-stats update,
// for both the media and the RTX stream (disambiguated by ssrc).
type StreamDataCountersCallback interface {
	DataCountersUpdated(counters StreamDataCounters, ssrc uint32)
}
