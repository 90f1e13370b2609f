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

package rtpsenderprom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/atriumrtc/rtpsender/pkg/rtpsender"
)

func gaugeValue(t *testing.T, g *prometheus.GaugeVec, labels prometheus.Labels) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.With(labels).Write(&m))
	return m.GetGauge().GetValue()
}

func TestDataCountersUpdatedSetsLatestSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("node-a", reg)

	c.DataCountersUpdated(rtpsender.StreamDataCounters{Packets: 10, Bytes: 1000}, 42)
	c.DataCountersUpdated(rtpsender.StreamDataCounters{Packets: 25, Bytes: 2500}, 42)

	require.Equal(t, float64(25), gaugeValue(t, c.packetsTotal, prometheus.Labels{"ssrc": "42"}))
	require.Equal(t, float64(2500), gaugeValue(t, c.bytesTotal, prometheus.Labels{"ssrc": "42"}))
}

func TestDataCountersUpdatedKeepsStreamsSeparateBySSRC(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("node-a", reg)

	c.DataCountersUpdated(rtpsender.StreamDataCounters{Packets: 5}, 1) // media
	c.DataCountersUpdated(rtpsender.StreamDataCounters{Packets: 99}, 2) // rtx

	require.Equal(t, float64(5), gaugeValue(t, c.packetsTotal, prometheus.Labels{"ssrc": "1"}))
	require.Equal(t, float64(99), gaugeValue(t, c.packetsTotal, prometheus.Labels{"ssrc": "2"}))
}

func TestNotifySetsBitrateGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("node-a", reg)

	c.Notify(rtpsender.BitrateStatistics{TotalBps: 500000, RetransmitBps: 12000}, 1)

	var m dto.Metric
	require.NoError(t, c.sentBitrate.Write(&m))
	require.Equal(t, float64(500000), m.GetGauge().GetValue())
	require.NoError(t, c.nackBitrate.Write(&m))
	require.Equal(t, float64(12000), m.GetGauge().GetValue())
}

func TestFrameCountUpdatedIncrementsPerCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("node-a", reg)

	c.FrameCountUpdated(rtpsender.FrameAudio, 1, 7)
	c.FrameCountUpdated(rtpsender.FrameAudio, 2, 7)

	var m dto.Metric
	require.NoError(t, c.frameCount.With(prometheus.Labels{"ssrc": "7", "frame_type": rtpsender.FrameAudio.String()}).Write(&m))
	require.Equal(t, float64(2), m.GetCounter().GetValue())
}
