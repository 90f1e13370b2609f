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
	"encoding/binary"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// SenderStateParams configures a new SenderState.
type SenderStateParams struct {
	Clock     Clock
	Audio     bool
	Allocator SSRCAllocator
	Rng       *xorshiftRNG
	Logger    *zap.SugaredLogger
}

// SenderState is the protocol-level state machine described in spec.md §3
// and §4.4: SSRCs, sequence numbers, timestamps, the CSRC list, registered
// payload types, the extension map, RTX mode, and target bitrate. Every
// mutator below is guarded by mu, playing the role of the send-critsect.
type SenderState struct {
	mu sync.Mutex

	clock     Clock
	audio     bool
	allocator SSRCAllocator
	rng       *xorshiftRNG
	logger    *zap.SugaredLogger

	ssrcMedia uint32
	ssrcRTX   uint32
	ssrcForced bool

	seqMedia   uint16
	seqRTX     uint16
	seqForced  bool

	startTimestamp       uint32
	startTimestampForced bool
	currentTimestamp     uint32
	lastTimestampMs      int64
	captureTimeMs        int64
	lastPacketMarkerBit  bool

	mediaHasBeenSent atomic.Bool
	sendingMedia     atomic.Bool

	rtxMode         RTXMode
	payloadTypeRTX  int // -1 when unset
	payloadTypeCurrent uint8
	hasCurrentPayloadType bool
	videoCodecType  VideoCodecType
	maxBitrateBps   uint32

	csrcs []uint32

	payloads map[uint8]PayloadDescriptor

	audioREDPayloadType int // -1 when unset
	fecEnabled           bool
	fecRedPayloadType    uint8
	fecPayloadType       uint8

	maxPayloadLength uint16

	ext *ExtensionMap
}

// NewSenderState constructs a SenderState with a freshly allocated media
// SSRC, a random initial sequence number, and no registered payload types.
func NewSenderState(p SenderStateParams) *SenderState {
	s := &SenderState{
		clock:                p.Clock,
		audio:                p.Audio,
		allocator:            p.Allocator,
		rng:                  p.Rng,
		logger:               p.Logger,
		payloadTypeRTX:       -1,
		audioREDPayloadType:  -1,
		payloads:             make(map[uint8]PayloadDescriptor),
		ext:                  NewExtensionMap(),
		maxPayloadLength:     1200,
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	if s.rng == nil {
		s.rng = newXorshiftRNG(uint64(time.Now().UnixNano()))
	}
	s.ssrcMedia = s.allocator.Allocate()
	s.ssrcRTX = s.allocator.Allocate()
	s.seqMedia = s.rng.initSeq()
	s.seqRTX = s.rng.initSeq()
	return s
}

// Close releases both SSRCs back to the allocator.
func (s *SenderState) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocator.Release(s.ssrcMedia)
	s.allocator.Release(s.ssrcRTX)
}

func (s *SenderState) IsAudio() bool { return s.audio }

// FillPaddingRandom fills b with pseudo-random bytes drawn from this
// sender's own seeded generator, used for padding packet bodies.
func (s *SenderState) FillPaddingRandom(b []byte) {
	s.rng.fillBytes(b)
}

func (s *SenderState) Extensions() *ExtensionMap { return s.ext }

func (s *SenderState) SSRCMedia() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ssrcMedia
}

func (s *SenderState) SSRCRTX() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ssrcRTX
}

func (s *SenderState) SeqMedia() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqMedia
}

// NextMediaSeq returns the next sequence number to use for a media packet
// and advances the counter, matching the "assigned in the order
// buildRTPHeader returns" ordering guarantee in spec.md §5.
func (s *SenderState) NextMediaSeq() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seqMedia
	s.seqMedia++
	return seq
}

func (s *SenderState) SendingMedia() bool { return s.sendingMedia.Load() }

// SetSendingStatus enables or disables the sender. Enabling seeds
// startTimestamp from the caller's RTP-time sample unless already forced.
// Disabling rotates SSRC and sequence number only if neither was
// externally forced, matching the original's "&& !ssrc_forced_" condition.
func (s *SenderState) SetSendingStatus(enabled bool, rtpTimeAtEnableSample uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasSending := s.sendingMedia.Load()
	if enabled && !wasSending {
		if !s.startTimestampForced {
			s.startTimestamp = rtpTimeAtEnableSample
		}
		s.currentTimestamp = s.startTimestamp
	} else if !enabled && wasSending {
		if !s.ssrcForced && !s.seqForced {
			s.allocator.Release(s.ssrcMedia)
			s.ssrcMedia = s.allocator.Allocate()
			s.seqMedia = s.rng.initSeq()
		}
	}
	s.sendingMedia.Store(enabled)
}

// SetStartTimestamp sets the start timestamp; when force is true it
// latches immediately, otherwise it only takes effect if not already
// latched by a previous forced call.
func (s *SenderState) SetStartTimestamp(ts uint32, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if force {
		s.startTimestamp = ts
		s.startTimestampForced = true
		return
	}
	if !s.startTimestampForced {
		s.startTimestamp = ts
	}
}

func (s *SenderState) StartTimestamp() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTimestamp
}

// SetTimestamp records the current RTP timestamp and capture time and
// stamps the wall-clock time of the update; PaddingSnapshot extrapolates
// from these values. SendEngine does not call it itself, so the values
// change only through SetTimestamp or SetState.
func (s *SenderState) SetTimestamp(ts uint32, captureTimeMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentTimestamp = ts
	s.captureTimeMs = captureTimeMs
	s.lastTimestampMs = s.clock.NowMs()
}

// SetSSRC replaces the media SSRC, releasing the old one and registering
// the new one with the allocator, and latches ssrc_forced. If the
// sequence number is not itself externally forced, it is regenerated.
func (s *SenderState) SetSSRC(ssrc uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocator.Release(s.ssrcMedia)
	s.allocator.Register(ssrc)
	s.ssrcMedia = ssrc
	s.ssrcForced = true
	if !s.seqForced {
		s.seqMedia = s.rng.initSeq()
	}
}

// GenerateNewSSRC draws a fresh, allocator-unique media SSRC without
// marking it as externally forced, through the same release/allocate
// path SetSendingStatus uses when it rotates identifiers on disable.
func (s *SenderState) GenerateNewSSRC() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocator.Release(s.ssrcMedia)
	s.ssrcMedia = s.allocator.Allocate()
	return s.ssrcMedia
}

// SetSeqForced pins the sequence number, exempting it from the automatic
// rotation SetSSRC/SetSendingStatus would otherwise perform.
func (s *SenderState) SetSeqForced(seq uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqMedia = seq
	s.seqForced = true
}

// SetCSRCs installs the contributing-source list, up to MaxCSRCs entries.
func (s *SenderState) SetCSRCs(csrcs []uint32) error {
	if len(csrcs) > MaxCSRCs {
		return ErrTooManyCSRCs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrcs = append([]uint32(nil), csrcs...)
	return nil
}

func (s *SenderState) CSRCs() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.csrcs...)
}

// SetMaxPayloadLength validates and installs the max payload length bound
// named in spec.md §6.
func (s *SenderState) SetMaxPayloadLength(n uint16) error {
	if n < MinPayloadLength || int(n) > MaxIPPacketSize {
		return ErrOutOfRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxPayloadLength = n
	return nil
}

func (s *SenderState) MaxPayloadLength() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxPayloadLength
}

// MaxDataPayloadLength computes the budget available to a packetizer
// after accounting for the fixed header, CSRCs, any registered
// extensions, and (when rtxOverhead is set) the 2-byte OSN prefix an RTX
// wrap would add.
func (s *SenderState) MaxDataPayloadLength(rtxOverhead bool) int {
	s.mu.Lock()
	numCSRCs := len(s.csrcs)
	maxLen := int(s.maxPayloadLength)
	s.mu.Unlock()

	_, headerLen := BuildHeader(0, 0, false, 0, 0, make([]uint32, numCSRCs), s.ext)
	budget := maxLen - headerLen
	if rtxOverhead {
		budget -= rtxOSNLen
	}
	if budget < 0 {
		return 0
	}
	return budget
}

// SetRTXMode installs the RTX bitmask.
func (s *SenderState) SetRTXMode(mode RTXMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rtxMode = mode
}

func (s *SenderState) RTXMode() RTXMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rtxMode
}

// SetPayloadTypeRTX sets the payload type used when wrapping a packet as
// RTX; pass -1 to leave the original payload-type byte untouched on wrap.
func (s *SenderState) SetPayloadTypeRTX(pt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloadTypeRTX = pt
}

func (s *SenderState) PayloadTypeRTX() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloadTypeRTX
}

// SetAudioRED registers the RED payload type for checkPayloadType's bypass
// branch (audio only).
func (s *SenderState) SetAudioRED(pt uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioREDPayloadType = int(pt)
}

func (s *SenderState) AudioREDPayloadType() (uint8, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioREDPayloadType < 0 {
		return 0, false
	}
	return uint8(s.audioREDPayloadType), true
}

// SetGenericFEC configures the video-side RED/FEC payload-type pair used
// by SendEngine's isFECPacket classification.
func (s *SenderState) SetGenericFEC(enabled bool, redPT, fecPT uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fecEnabled = enabled
	s.fecRedPayloadType = redPT
	s.fecPayloadType = fecPT
}

func (s *SenderState) FECConfig() (redPT, fecPT uint8, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fecRedPayloadType, s.fecPayloadType, s.fecEnabled
}

// RegisterPayload inserts or idempotently confirms a payload-type
// registration, per the rate-zero permissiveness rule in spec.md §4.4.
func (s *SenderState) RegisterPayload(pt uint8, desc PayloadDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.payloads[pt]
	if !ok {
		s.payloads[pt] = desc
		return nil
	}
	if existing.Kind != desc.Kind || existing.Name != desc.Name {
		return ErrUnregisteredPayload
	}
	switch desc.Kind {
	case PayloadAudio:
		if existing.Audio.FrequencyHz != desc.Audio.FrequencyHz || existing.Audio.Channels != desc.Audio.Channels {
			return ErrUnregisteredPayload
		}
		switch {
		case existing.Audio.RateBps == desc.Audio.RateBps:
			// identical, nothing to do
		case existing.Audio.RateBps == 0:
			existing.Audio.RateBps = desc.Audio.RateBps
			s.payloads[pt] = existing
		case desc.Audio.RateBps == 0:
			// incoming rate is permissively zero; keep existing rate
		default:
			return ErrUnregisteredPayload
		}
	case PayloadVideo:
		// same name + same kind is sufficient for video, per spec.md §4.4.
		s.payloads[pt] = desc
	}
	return nil
}

func (s *SenderState) DeregisterPayload(pt uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payloads, pt)
}

// CheckPayloadType implements spec.md §4.4's checkPayloadType: it accepts
// the audio RED bypass and the already-current payload type without state
// change, otherwise looks up the descriptor and, for a video descriptor on
// a video-configured sender, switches codec/bitrate and records the new
// active payload type. Audio/video kind mismatches are silently accepted
// (state still advances to record the new current payload type) per the
// open question in spec.md §9 — this is logged, not treated as failure.
func (s *SenderState) CheckPayloadType(pt uint8) (VideoCodecType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.audio {
		if red, ok2 := s.audioOkLocked(); ok2 && red == pt {
			return VideoCodecUnknown, nil
		}
	}
	if s.hasCurrentPayloadType && pt == s.payloadTypeCurrent {
		return s.videoCodecType, nil
	}
	desc, ok := s.payloads[pt]
	if !ok {
		return VideoCodecUnknown, ErrInvalidPayloadType
	}
	if desc.Kind == PayloadVideo {
		if !s.audio {
			s.videoCodecType = desc.Video.CodecType
			s.maxBitrateBps = desc.Video.MaxBitrateBps
		} else {
			s.logger.Warnw("checkPayloadType: video descriptor selected on audio-configured sender", "payloadType", pt)
		}
	} else {
		if s.audio {
			// nothing extra to latch for an audio descriptor besides the
			// current payload type, below.
		} else {
			s.logger.Warnw("checkPayloadType: audio descriptor selected on video-configured sender", "payloadType", pt)
		}
	}
	s.payloadTypeCurrent = pt
	s.hasCurrentPayloadType = true
	return s.videoCodecType, nil
}

func (s *SenderState) audioOkLocked() (uint8, bool) {
	if s.audioREDPayloadType < 0 {
		return 0, false
	}
	return uint8(s.audioREDPayloadType), true
}

// LatchMediaHasBeenSent transitions media_has_been_sent false->true; it is
// a no-op once already true, matching the monotonic invariant in
// spec.md §3.
func (s *SenderState) LatchMediaHasBeenSent() {
	s.mediaHasBeenSent.Store(true)
}

func (s *SenderState) MediaHasBeenSent() bool {
	return s.mediaHasBeenSent.Load()
}

// SetLastPacketMarkerBit records whether the most recently built media
// packet had the marker bit set, gating non-RTX padding.
func (s *SenderState) SetLastPacketMarkerBit(marker bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPacketMarkerBit = marker
}

// PaddingSnapshot returns the payload type, timestamp, and capture time to
// use for a synthetic padding packet at nowMs, extrapolating the
// timestamp and capture time forward from the values last recorded by
// SetTimestamp or SetState (a flat 90kHz assumption regardless of
// audio/video configuration).
func (s *SenderState) PaddingSnapshot(nowMs int64) (payloadType uint8, timestamp uint32, captureTimeMs int64, rtx RTXMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rtxMode&RTXRedundantPayloads != 0 && s.payloadTypeRTX >= 0 {
		payloadType = uint8(s.payloadTypeRTX)
	} else {
		payloadType = s.payloadTypeCurrent
	}
	timestamp = s.currentTimestamp
	captureTimeMs = s.captureTimeMs
	if s.lastTimestampMs > 0 {
		delta := nowMs - s.lastTimestampMs
		timestamp += uint32(delta) * 90
		captureTimeMs += delta
	}
	rtx = s.rtxMode
	return
}

// NextPaddingIdentity selects the SSRC/seq a synthetic padding packet
// should use and advances the relevant sequence counter, enforcing the
// gating rules in spec.md §4.5 sendPadData: without RTX, padding may only
// follow a marker-bit frame; with RTX, it requires either a prior
// successful media send or a registered AbsoluteSendTime extension.
func (s *SenderState) NextPaddingIdentity() (ssrc uint32, seq uint16, overRTX bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rtxMode == RTXOff {
		if !s.lastPacketMarkerBit {
			return 0, 0, false, false
		}
		ssrc = s.ssrcMedia
		seq = s.seqMedia
		s.seqMedia++
		return ssrc, seq, false, true
	}
	if !s.mediaHasBeenSent.Load() && !s.ext.IsRegistered(ExtAbsoluteSendTime) {
		return 0, 0, false, false
	}
	ssrc = s.ssrcRTX
	seq = s.seqRTX
	s.seqRTX++
	return ssrc, seq, true, true
}

// BuildRTXPacket wraps a stored media packet for retransmission: the
// header bytes are copied, the payload-type byte is rewritten (preserving
// the marker bit) when a payload_type_rtx is configured, seq and SSRC are
// rewritten to the RTX stream's own counters, and the original sequence
// number is inserted as a 2-byte OSN immediately after the header.
func (s *SenderState) BuildRTXPacket(original []byte, hdr parsedHeader) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(original)+rtxOSNLen)
	copy(out, original[:hdr.headerLen])
	if s.payloadTypeRTX >= 0 {
		out[1] = byte(s.payloadTypeRTX) & 0x7f
		if hdr.marker {
			out[1] |= 0x80
		}
	}
	binary.BigEndian.PutUint16(out[2:4], s.seqRTX)
	s.seqRTX++
	binary.BigEndian.PutUint32(out[8:12], s.ssrcRTX)
	binary.BigEndian.PutUint16(out[hdr.headerLen:hdr.headerLen+2], hdr.seq)
	copy(out[hdr.headerLen+rtxOSNLen:], original[hdr.headerLen:])
	return out
}

// GetState returns a persistable snapshot of the media stream's protocol
// state for carrying continuity across a sender reconfiguration.
func (s *SenderState) GetState() RtpState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RtpState{
		SequenceNumber:      s.seqMedia,
		StartTimestamp:      s.startTimestamp,
		Timestamp:           s.currentTimestamp,
		CaptureTimeMs:       s.captureTimeMs,
		LastTimestampTimeMs: s.lastTimestampMs,
		MediaHasBeenSent:    s.mediaHasBeenSent.Load(),
	}
}

// SetState restores a previously captured RtpState.
func (s *SenderState) SetState(st RtpState) {
	s.mu.Lock()
	s.seqMedia = st.SequenceNumber
	s.seqForced = true
	s.startTimestamp = st.StartTimestamp
	s.startTimestampForced = true
	s.currentTimestamp = st.Timestamp
	s.captureTimeMs = st.CaptureTimeMs
	s.lastTimestampMs = st.LastTimestampTimeMs
	s.mu.Unlock()
	s.mediaHasBeenSent.Store(st.MediaHasBeenSent)
}
