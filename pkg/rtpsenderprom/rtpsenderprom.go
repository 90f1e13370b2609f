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

// Package rtpsenderprom publishes SendEngine's stream counters and bitrate
// notifications as Prometheus metrics.
package rtpsenderprom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atriumrtc/rtpsender/pkg/rtpsender"
)

const namespace = "rtpsender"

var ssrcLabels = []string{"ssrc"}

// Collector implements rtpsender.StreamDataCountersCallback,
// rtpsender.BitrateStatisticsObserver, and rtpsender.FrameCountObserver,
// publishing each notification as a Prometheus metric update. One
// Collector should be constructed per SendEngine instance; nodeID
// disambiguates multiple processes scraped by the same Prometheus target
// the way packets.go's ConstLabels does.
//
// StreamDataCounters arrives as an already-cumulative snapshot (see
// senderStats.update), so these are gauges set to the latest snapshot
// value rather than counters incremented by a delta.
type Collector struct {
	packetsTotal *prometheus.GaugeVec
	bytesTotal   *prometheus.GaugeVec
	fecTotal     *prometheus.GaugeVec
	rtxTotal     *prometheus.GaugeVec
	paddingBytes *prometheus.GaugeVec
	sentBitrate  prometheus.Gauge
	nackBitrate  prometheus.Gauge
	frameCount   *prometheus.CounterVec
}

// NewCollector builds and registers a Collector's metrics against reg.
func NewCollector(nodeID string, reg prometheus.Registerer) *Collector {
	constLabels := prometheus.Labels{"node_id": nodeID}
	c := &Collector{
		packetsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "packets",
			ConstLabels: constLabels,
		}, ssrcLabels),
		bytesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "bytes",
			ConstLabels: constLabels,
		}, ssrcLabels),
		fecTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "fec_packets",
			ConstLabels: constLabels,
		}, ssrcLabels),
		rtxTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "retransmitted_packets",
			ConstLabels: constLabels,
		}, ssrcLabels),
		paddingBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "padding_bytes",
			ConstLabels: constLabels,
		}, ssrcLabels),
		sentBitrate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "bitrate",
			Name:        "sent_bps",
			ConstLabels: constLabels,
		}),
		nackBitrate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "bitrate",
			Name:        "retransmit_bps",
			ConstLabels: constLabels,
		}),
		frameCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "frame",
			Name:        "count_total",
			ConstLabels: constLabels,
		}, []string{"ssrc", "frame_type"}),
	}

	reg.MustRegister(c.packetsTotal, c.bytesTotal, c.fecTotal, c.rtxTotal, c.paddingBytes, c.sentBitrate, c.nackBitrate, c.frameCount)
	return c
}

// DataCountersUpdated implements rtpsender.StreamDataCountersCallback. The
// engine calls this for both its media and RTX stream, each keyed by its
// own SSRC, so the ssrc label alone disambiguates the series.
func (c *Collector) DataCountersUpdated(counters rtpsender.StreamDataCounters, ssrc uint32) {
	label := prometheus.Labels{"ssrc": ssrcLabel(ssrc)}
	c.packetsTotal.With(label).Set(float64(counters.Packets))
	c.bytesTotal.With(label).Set(float64(counters.Bytes))
	c.fecTotal.With(label).Set(float64(counters.FECPackets))
	c.rtxTotal.With(label).Set(float64(counters.RetransmittedPackets))
	c.paddingBytes.With(label).Set(float64(counters.PaddingBytes))
}

// Notify implements rtpsender.BitrateStatisticsObserver.
func (c *Collector) Notify(stats rtpsender.BitrateStatistics, ssrc uint32) {
	c.sentBitrate.Set(float64(stats.TotalBps))
	c.nackBitrate.Set(float64(stats.RetransmitBps))
}

// FrameCountUpdated implements rtpsender.FrameCountObserver. count is
// itself cumulative, but frameCount is a genuine monotonic counter here,
// so each call increments it by one (the engine calls this once per
// accepted frame) rather than setting an absolute value.
func (c *Collector) FrameCountUpdated(frameType rtpsender.FrameType, count uint32, ssrc uint32) {
	c.frameCount.With(prometheus.Labels{
		"ssrc":       ssrcLabel(ssrc),
		"frame_type": frameType.String(),
	}).Inc()
}

func ssrcLabel(ssrc uint32) string {
	return strconv.FormatUint(uint64(ssrc), 10)
}
