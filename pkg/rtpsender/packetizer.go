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

// SendSink is the narrow back-reference a packetizer collaborator is given
// at construction so it can emit the packets it produces without holding a
// reference to the full SendEngine. This breaks the natural ownership
// cycle between the engine and its codec-specific packetizer.
type SendSink interface {
	SendToNetwork(buffer []byte, payloadLen, headerLen int, captureTimeMs int64, storage StorageType, priority Priority) error

	// SSRCMedia and NextMediaSeq expose just enough of SenderState for a
	// packetizer to build a well-formed header itself; SendToNetwork does
	// not rewrite either field, so whatever the packetizer puts in the
	// buffer it hands back is what goes on the wire.
	SSRCMedia() uint32
	NextMediaSeq() uint16
	Extensions() *ExtensionMap
}

// AudioPacketizer turns one encoded audio frame into one or more RTP
// packets, emitting each through the SendSink it is given. Codec-specific
// framing (e.g. Opus DTX, telephone-event) is entirely the packetizer's
// concern; the engine only arranges the call and accounts the result.
type AudioPacketizer interface {
	PacketizeAudio(sink SendSink, payloadType uint8, captureTimestamp uint32, captureTimeMs int64, payload []byte, frameType FrameType) error
}

// VideoPacketizer turns one encoded video frame into one or more RTP
// packets (applying Fragmentation when the caller supplies it), emitting
// each through the SendSink it is given.
type VideoPacketizer interface {
	PacketizeVideo(sink SendSink, payloadType uint8, captureTimestamp uint32, captureTimeMs int64, payload []byte, frameType FrameType, frag *Fragmentation, codecInfo interface{}, typeHeader interface{}) error
}
