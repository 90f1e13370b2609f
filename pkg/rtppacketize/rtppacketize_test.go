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

package rtppacketize

import (
	"sync"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/atriumrtc/rtpsender/pkg/rtpsender"
)

// recordingSink is a minimal rtpsender.SendSink fake that hands out
// sequence numbers from a counter and records every packet it is given,
// so tests can decode the result independently with pion/rtp rather than
// re-deriving offsets by hand.
type recordingSink struct {
	mu   sync.Mutex
	ssrc uint32
	seq  uint16
	ext  *rtpsender.ExtensionMap
	sent [][]byte
}

func newRecordingSink(ssrc uint32) *recordingSink {
	return &recordingSink{ssrc: ssrc, ext: rtpsender.NewExtensionMap()}
}

func (s *recordingSink) SendToNetwork(buffer []byte, payloadLen, headerLen int, captureTimeMs int64, storage rtpsender.StorageType, priority rtpsender.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(buffer))
	copy(buf, buffer)
	s.sent = append(s.sent, buf)
	return nil
}

func (s *recordingSink) SSRCMedia() uint32 { return s.ssrc }
func (s *recordingSink) NextMediaSeq() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seq
	s.seq++
	return seq
}
func (s *recordingSink) Extensions() *rtpsender.ExtensionMap { return s.ext }

func TestAudioPacketizerSinglePacketDecodesWithPionRTP(t *testing.T) {
	sink := newRecordingSink(0xA1A1A1A1)
	a := &Audio{}
	require.NoError(t, a.PacketizeAudio(sink, 111, 48000, 10, []byte("opus-frame"), rtpsender.FrameAudio))

	require.Len(t, sink.sent, 1)
	var pkt rtp.Packet
	require.NoError(t, pkt.Unmarshal(sink.sent[0]))
	require.Equal(t, uint8(111), pkt.PayloadType)
	require.Equal(t, sink.ssrc, pkt.SSRC)
	require.True(t, pkt.Marker)
	require.Equal(t, []byte("opus-frame"), pkt.Payload)
}

func TestAudioPacketizerSplitsOversizedPayload(t *testing.T) {
	sink := newRecordingSink(1)
	a := &Audio{MaxPayloadLength: 4}
	require.NoError(t, a.PacketizeAudio(sink, 0, 0, 0, []byte("abcdefgh"), rtpsender.FrameAudio))

	require.Len(t, sink.sent, 2)
	var first, second rtp.Packet
	require.NoError(t, first.Unmarshal(sink.sent[0]))
	require.NoError(t, second.Unmarshal(sink.sent[1]))
	require.False(t, first.Marker)
	require.True(t, second.Marker)
	require.Equal(t, first.SequenceNumber+1, second.SequenceNumber)
}

func TestVideoPacketizerFragmentsMarkOnlyLastPacket(t *testing.T) {
	sink := newRecordingSink(2)
	v := &Video{}
	payload := []byte("0123456789")
	frag := &rtpsender.Fragmentation{Offsets: []int{0, 5}, Lengths: []int{5, 5}}
	require.NoError(t, v.PacketizeVideo(sink, 96, 0, 0, payload, rtpsender.FrameVideo, frag, nil, nil))

	require.Len(t, sink.sent, 2)
	var first, second rtp.Packet
	require.NoError(t, first.Unmarshal(sink.sent[0]))
	require.NoError(t, second.Unmarshal(sink.sent[1]))
	require.False(t, first.Marker)
	require.True(t, second.Marker)
	require.Equal(t, []byte("01234"), first.Payload)
	require.Equal(t, []byte("56789"), second.Payload)
}

func TestVideoPacketizerNilFragmentationIsSinglePacket(t *testing.T) {
	sink := newRecordingSink(3)
	v := &Video{}
	require.NoError(t, v.PacketizeVideo(sink, 96, 0, 0, []byte("keyframe"), rtpsender.FrameVideo, nil, nil, nil))
	require.Len(t, sink.sent, 1)
}
