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

// Package rtppacketize provides reference rtpsender.AudioPacketizer and
// rtpsender.VideoPacketizer implementations, built on top of the SendSink
// contract a SendEngine hands its packetizer collaborators.
package rtppacketize

import (
	"github.com/atriumrtc/rtpsender/pkg/rtpsender"
)

// Audio is a single-packet-per-frame AudioPacketizer: a call to
// PacketizeAudio becomes exactly one RTP packet, which is how Opus,
// G.711, and other framed audio codecs that already produce one encoded
// unit per RTP packet are packetized. A payload longer than a positive
// MaxPayloadLength is instead split into MaxPayloadLength-sized packets.
type Audio struct {
	MaxPayloadLength int
}

// PacketizeAudio implements rtpsender.AudioPacketizer.
func (a *Audio) PacketizeAudio(sink rtpsender.SendSink, payloadType uint8, captureTimestamp uint32, captureTimeMs int64, payload []byte, frameType rtpsender.FrameType) error {
	maxLen := a.MaxPayloadLength
	if maxLen <= 0 || len(payload) <= maxLen {
		return emit(sink, payloadType, captureTimestamp, captureTimeMs, payload, true)
	}
	// Oversized audio payload (e.g. a large telephone-event burst): split
	// on maxLen boundaries, marker set only on the last fragment.
	for offset := 0; offset < len(payload); offset += maxLen {
		end := offset + maxLen
		if end > len(payload) {
			end = len(payload)
		}
		if err := emit(sink, payloadType, captureTimestamp, captureTimeMs, payload[offset:end], end == len(payload)); err != nil {
			return err
		}
	}
	return nil
}

// Video is a Fragmentation-driven VideoPacketizer: each entry in frag
// becomes one RTP packet, with the marker bit set only on the frame's
// final packet. A nil Fragmentation falls back to a single packet, for
// callers that do not pre-fragment (small keyframes, audio-rate video).
type Video struct{}

// PacketizeVideo implements rtpsender.VideoPacketizer.
func (v *Video) PacketizeVideo(sink rtpsender.SendSink, payloadType uint8, captureTimestamp uint32, captureTimeMs int64, payload []byte, frameType rtpsender.FrameType, frag *rtpsender.Fragmentation, codecInfo interface{}, typeHeader interface{}) error {
	if frag == nil || len(frag.Offsets) == 0 {
		return emit(sink, payloadType, captureTimestamp, captureTimeMs, payload, true)
	}
	for i, offset := range frag.Offsets {
		length := frag.Lengths[i]
		marker := i == len(frag.Offsets)-1
		if err := emit(sink, payloadType, captureTimestamp, captureTimeMs, payload[offset:offset+length], marker); err != nil {
			return err
		}
	}
	return nil
}

// emit builds one RTP packet through rtpsender.BuildHeader, drawing its
// SSRC, sequence number, and registered extensions from the sink, and
// hands the finished bytes to SendToNetwork. It goes through BuildHeader
// rather than a generic marshaler so the extension block it lays down
// keeps the offsets SendToNetwork's PatchTransmissionTimeOffset/
// PatchAbsoluteSendTime calls expect to find.
func emit(sink rtpsender.SendSink, payloadType uint8, timestamp uint32, captureTimeMs int64, payload []byte, marker bool) error {
	seq := sink.NextMediaSeq()
	header, headerLen := rtpsender.BuildHeader(payloadType, sink.SSRCMedia(), marker, timestamp, seq, nil, sink.Extensions())
	buf := make([]byte, headerLen+len(payload))
	copy(buf, header)
	copy(buf[headerLen:], payload)
	return sink.SendToNetwork(buf, len(payload), headerLen, captureTimeMs, rtpsender.StorageStoreOnce, rtpsender.PriorityNormal)
}
