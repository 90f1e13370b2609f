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

const (
	// MaxPaddingLength is the fixed payload size of a synthetic padding
	// packet, chosen as a multiple of 32 for SRTP block alignment.
	MaxPaddingLength = 224

	// SendDelayWindowMs bounds the send-side delay sample map.
	SendDelayWindowMs = 1000

	// NackBitrateWindowMs bounds the NACK byte-counter gate.
	NackBitrateWindowMs = 1000

	// NackByteCountSize is the number of slots in the NACK byte-counter
	// ring (oldest-first eviction, see SendEngine.OnReceivedNACK's gate).
	NackByteCountSize = 10

	// MaxCSRCs is the maximum number of contributing source identifiers
	// per packet.
	MaxCSRCs = 15

	// MinPayloadLength and MaxIPPacketSize bound SetMaxPayloadLength.
	MinPayloadLength = 100
	MaxIPPacketSize  = 65535

	// DefaultHistoryCapacity is used when a caller does not explicitly
	// size the PacketHistory ring.
	DefaultHistoryCapacity = 600

	// DefaultSentBitrateWindowMs sizes the overall sent-bitrate tracker;
	// the spec leaves this window unconstrained beyond "sliding window" so
	// it is set independently from the 1000ms NACK/delay windows.
	DefaultSentBitrateWindowMs = 2000

	rtpFixedHeaderLen  = 12
	rtpCSRCIdentifierLen = 4
	rtxOSNLen          = 2

	oneByteExtensionProfile = 0xBEDE
	oneByteExtensionHdrLen  = 4 // profile(2) + length(2)
	extensionBlockLen       = 4 // every defined extension occupies exactly 4 wire bytes
)
