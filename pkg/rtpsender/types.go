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

// FrameType distinguishes the kind of frame handed to SendOutgoingData.
type FrameType int

const (
	FrameAudio FrameType = iota
	FrameVideo
	FrameEmpty
)

func (f FrameType) String() string {
	switch f {
	case FrameAudio:
		return "audio"
	case FrameVideo:
		return "video"
	case FrameEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Priority is the scheduling priority a packet is submitted to the Pacer
// with.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// StorageType controls whether SendToNetwork inserts the packet into
// PacketHistory.
type StorageType int

const (
	StorageDontStore StorageType = iota
	StorageStoreOnce
)

// RTXMode is a bitmask over the retransmission behaviors a sender may use.
type RTXMode uint8

const (
	RTXOff               RTXMode = 0
	RTXRetransmit        RTXMode = 1 << 0
	RTXRedundantPayloads RTXMode = 1 << 1
)

// PayloadKind distinguishes an audio payload descriptor from a video one.
type PayloadKind int

const (
	PayloadAudio PayloadKind = iota
	PayloadVideo
)

// VideoCodecType enumerates the video codecs a PayloadDescriptor may name.
type VideoCodecType int

const (
	VideoCodecUnknown VideoCodecType = iota
	VideoCodecVP8
	VideoCodecVP9
	VideoCodecH264
	VideoCodecAV1
)

// AudioPayloadInfo describes an audio payload-type registration.
type AudioPayloadInfo struct {
	FrequencyHz uint32
	Channels    uint8
	RateBps     uint32
}

// VideoPayloadInfo describes a video payload-type registration.
type VideoPayloadInfo struct {
	CodecType     VideoCodecType
	MaxBitrateBps uint32
}

// PayloadDescriptor is the value half of a payload-type registration: a
// name plus exactly one of Audio or Video, selected by Kind.
type PayloadDescriptor struct {
	Kind  PayloadKind
	Name  string
	Audio AudioPayloadInfo
	Video VideoPayloadInfo
}

// Fragmentation describes how a video frame is split across multiple RTP
// packets; it is opaque to the engine and passed through to the
// VideoPacketizer collaborator.
type Fragmentation struct {
	Offsets []int
	Lengths []int
}

// StreamDataCounters accumulates per-stream send statistics, split between
// a sender's media stream and its RTX stream (see senderStats).
type StreamDataCounters struct {
	Packets              uint64
	FECPackets           uint64
	RetransmittedPackets uint64
	Bytes                uint64
	HeaderBytes          uint64
	PaddingBytes         uint64
}

// BitrateStatistics is the payload of a BitrateStatisticsObserver
// notification.
type BitrateStatistics struct {
	TotalBps      uint32
	RetransmitBps uint32
}

// RtpState is the persistable snapshot of a sender's protocol-level state,
// used to carry continuity across a sender reconfiguration (e.g. a
// simulcast layer switch that tears down and rebuilds the engine).
type RtpState struct {
	SequenceNumber     uint16
	StartTimestamp     uint32
	Timestamp          uint32
	CaptureTimeMs       int64
	LastTimestampTimeMs int64
	MediaHasBeenSent    bool
}
