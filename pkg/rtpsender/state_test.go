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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterPayloadRateZeroIsPermissive(t *testing.T) {
	s := newTestState(NewFakeClock(0), true)
	require.NoError(t, s.RegisterPayload(100, PayloadDescriptor{
		Kind: PayloadAudio, Name: "opus",
		Audio: AudioPayloadInfo{FrequencyHz: 48000, Channels: 2, RateBps: 64000},
	}))
	// Re-registering with rate 0 is permissively treated as "don't care".
	require.NoError(t, s.RegisterPayload(100, PayloadDescriptor{
		Kind: PayloadAudio, Name: "opus",
		Audio: AudioPayloadInfo{FrequencyHz: 48000, Channels: 2, RateBps: 0},
	}))
}

func TestRegisterPayloadConflictingRateRejected(t *testing.T) {
	s := newTestState(NewFakeClock(0), true)
	require.NoError(t, s.RegisterPayload(100, PayloadDescriptor{
		Kind: PayloadAudio, Name: "opus",
		Audio: AudioPayloadInfo{FrequencyHz: 48000, Channels: 2, RateBps: 64000},
	}))
	err := s.RegisterPayload(100, PayloadDescriptor{
		Kind: PayloadAudio, Name: "opus",
		Audio: AudioPayloadInfo{FrequencyHz: 48000, Channels: 2, RateBps: 32000},
	})
	require.ErrorIs(t, err, ErrUnregisteredPayload)
}

func TestRegisterPayloadKindMismatchRejected(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	require.NoError(t, s.RegisterPayload(96, PayloadDescriptor{
		Kind: PayloadVideo, Name: "VP8",
		Video: VideoPayloadInfo{CodecType: VideoCodecVP8},
	}))
	err := s.RegisterPayload(96, PayloadDescriptor{
		Kind: PayloadAudio, Name: "opus",
	})
	require.ErrorIs(t, err, ErrUnregisteredPayload)
}

func TestCheckPayloadTypeREDBypass(t *testing.T) {
	s := newTestState(NewFakeClock(0), true)
	s.SetAudioRED(63)
	codec, err := s.CheckPayloadType(63)
	require.NoError(t, err)
	require.Equal(t, VideoCodecUnknown, codec)
}

func TestCheckPayloadTypeAlreadyCurrentBypass(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	require.NoError(t, s.RegisterPayload(96, PayloadDescriptor{
		Kind: PayloadVideo, Name: "VP8",
		Video: VideoPayloadInfo{CodecType: VideoCodecVP8, MaxBitrateBps: 1000000},
	}))
	_, err := s.CheckPayloadType(96)
	require.NoError(t, err)
	codec, err := s.CheckPayloadType(96)
	require.NoError(t, err)
	require.Equal(t, VideoCodecVP8, codec)
}

func TestCheckPayloadTypeVideoSwitch(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	require.NoError(t, s.RegisterPayload(96, PayloadDescriptor{
		Kind: PayloadVideo, Name: "VP8",
		Video: VideoPayloadInfo{CodecType: VideoCodecVP8, MaxBitrateBps: 1000000},
	}))
	require.NoError(t, s.RegisterPayload(98, PayloadDescriptor{
		Kind: PayloadVideo, Name: "VP9",
		Video: VideoPayloadInfo{CodecType: VideoCodecVP9, MaxBitrateBps: 2000000},
	}))
	codec, err := s.CheckPayloadType(98)
	require.NoError(t, err)
	require.Equal(t, VideoCodecVP9, codec)
}

func TestCheckPayloadTypeUnknownRejected(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	_, err := s.CheckPayloadType(55)
	require.ErrorIs(t, err, ErrInvalidPayloadType)
}

func TestCheckPayloadTypeAudioVideoMismatchAcceptedAndLogged(t *testing.T) {
	s := newTestState(NewFakeClock(0), true) // audio-configured sender
	require.NoError(t, s.RegisterPayload(96, PayloadDescriptor{
		Kind: PayloadVideo, Name: "VP8",
		Video: VideoPayloadInfo{CodecType: VideoCodecVP8, MaxBitrateBps: 1000000},
	}))
	// Mismatched kind is accepted (not an error) per the open-question
	// decision, but does not mutate codec/bitrate state.
	_, err := s.CheckPayloadType(96)
	require.NoError(t, err)
}

func TestSetSendingStatusRotatesOnDisableWhenUnforced(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	original := s.SSRCMedia()
	s.SetSendingStatus(true, 1000)
	require.True(t, s.SendingMedia())
	s.SetSendingStatus(false, 0)
	require.False(t, s.SendingMedia())
	require.NotEqual(t, original, s.SSRCMedia())
}

func TestSetSendingStatusDoesNotRotateWhenForced(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	s.SetSSRC(0xAAAABBBB)
	s.SetSeqForced(42)
	s.SetSendingStatus(true, 1000)
	s.SetSendingStatus(false, 0)
	require.Equal(t, uint32(0xAAAABBBB), s.SSRCMedia())
}

func TestSetSSRCAndGenerateNewSSRC(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	s.SetSSRC(0x12345678)
	require.Equal(t, uint32(0x12345678), s.SSRCMedia())

	next := s.GenerateNewSSRC()
	require.Equal(t, next, s.SSRCMedia())
	require.NotEqual(t, uint32(0x12345678), next)
}

func TestSetCSRCsTooManyRejected(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	csrcs := make([]uint32, MaxCSRCs+1)
	require.ErrorIs(t, s.SetCSRCs(csrcs), ErrTooManyCSRCs)
}

func TestSetCSRCsRoundTrip(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	require.NoError(t, s.SetCSRCs([]uint32{1, 2, 3}))
	require.Equal(t, []uint32{1, 2, 3}, s.CSRCs())
}

func TestNextPaddingIdentityGatingRTXOff(t *testing.T) {
	s := newTestState(NewFakeClock(1000), false)
	s.SetRTXMode(RTXOff)

	// No marker-bit frame sent yet: padding is not permitted.
	_, _, _, ok := s.NextPaddingIdentity()
	require.False(t, ok)

	s.SetLastPacketMarkerBit(true)
	ssrc, _, overRTX, ok := s.NextPaddingIdentity()
	require.True(t, ok)
	require.False(t, overRTX)
	require.Equal(t, s.SSRCMedia(), ssrc)
}

func TestNextPaddingIdentityGatingRTXOnRequiresMediaOrAbsSendTime(t *testing.T) {
	s := newTestState(NewFakeClock(1000), false)
	s.SetRTXMode(RTXRetransmit)

	_, _, _, ok := s.NextPaddingIdentity()
	require.False(t, ok, "no media sent yet and no AbsoluteSendTime registered")

	s.LatchMediaHasBeenSent()
	ssrc, _, overRTX, ok := s.NextPaddingIdentity()
	require.True(t, ok)
	require.True(t, overRTX)
	require.Equal(t, s.SSRCRTX(), ssrc)
}

func TestNextPaddingIdentityGatingRTXOnViaAbsSendTime(t *testing.T) {
	s := newTestState(NewFakeClock(1000), false)
	s.SetRTXMode(RTXRetransmit)
	require.NoError(t, s.Extensions().Register(ExtAbsoluteSendTime, 2))

	_, _, overRTX, ok := s.NextPaddingIdentity()
	require.True(t, ok)
	require.True(t, overRTX)
}

func TestBuildRTXPacketRewritesHeaderAndInsertsOSN(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	s.SetPayloadTypeRTX(121)

	original := buildTestPacket(1003, 50)
	hdr, err := parseRTPHeader(original)
	require.NoError(t, err)

	out := s.BuildRTXPacket(original, hdr)
	require.Equal(t, len(original)+rtxOSNLen, len(out))
	require.Equal(t, byte(121), out[1]&0x7f)
	require.Equal(t, s.SSRCRTX(), be32(out[8:12]))

	osn := be16(out[hdr.headerLen : hdr.headerLen+2])
	require.Equal(t, uint16(1003), osn)
}

func TestGetStateSetStateRoundTrip(t *testing.T) {
	s := newTestState(NewFakeClock(500), false)
	s.SetTimestamp(9000, 480)
	s.LatchMediaHasBeenSent()
	snap := s.GetState()

	s2 := newTestState(NewFakeClock(0), false)
	s2.SetState(snap)
	require.Equal(t, snap, s2.GetState())
}

func TestMaxDataPayloadLengthAccountsForRTXOverhead(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	require.NoError(t, s.SetMaxPayloadLength(1200))
	withoutRTX := s.MaxDataPayloadLength(false)
	withRTX := s.MaxDataPayloadLength(true)
	require.Equal(t, withoutRTX-rtxOSNLen, withRTX)
}

func TestSetMaxPayloadLengthOutOfRangeRejected(t *testing.T) {
	s := newTestState(NewFakeClock(0), false)
	require.ErrorIs(t, s.SetMaxPayloadLength(1), ErrOutOfRange)
	require.NoError(t, s.SetMaxPayloadLength(MinPayloadLength))
}
