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

	"go.uber.org/zap"
)

// BuildHeader encodes a 12-byte-prefix RTP header plus optional CSRC list
// and one-byte-form extension block, per RFC 3550 / RFC 5285. It returns
// the full header bytes and their length; the caller appends payload (and,
// for padding packets, sets the padding bit and trailing length byte
// itself).
func BuildHeader(payloadType uint8, ssrc uint32, marker bool, timestamp uint32, seq uint16, csrcs []uint32, ext *ExtensionMap) ([]byte, int) {
	headerLen := rtpFixedHeaderLen + rtpCSRCIdentifierLen*len(csrcs)

	var extBytes []byte
	var kinds []ExtensionKind
	if ext != nil {
		kinds = ext.orderedKinds()
	}
	if len(kinds) > 0 {
		extBytes = buildExtensionBlock(ext, kinds)
		headerLen += len(extBytes)
	}

	buf := make([]byte, headerLen)
	buf[0] = 0x80 // version 2, padding 0
	buf[0] |= byte(len(csrcs) & 0x0f)
	if len(extBytes) > 0 {
		buf[0] |= 0x10
	}
	buf[1] = payloadType & 0x7f
	if marker {
		buf[1] |= 0x80
	}
	binary.BigEndian.PutUint16(buf[2:4], seq)
	binary.BigEndian.PutUint32(buf[4:8], timestamp)
	binary.BigEndian.PutUint32(buf[8:12], ssrc)

	pos := rtpFixedHeaderLen
	for _, c := range csrcs {
		binary.BigEndian.PutUint32(buf[pos:pos+4], c)
		pos += 4
	}
	if len(extBytes) > 0 {
		copy(buf[pos:], extBytes)
	}
	return buf, headerLen
}

// buildExtensionBlock lays out the 0xBEDE profile header followed by every
// registered extension's header byte and placeholder value, in canonical
// order. Every defined extension occupies exactly 4 wire bytes, so the
// total is always a multiple of 4; the length check below exists because
// the original asserts it, not because it can fail given the extensions
// this package defines.
func buildExtensionBlock(ext *ExtensionMap, kinds []ExtensionKind) []byte {
	totalValueBytes := len(kinds) * extensionBlockLen
	if totalValueBytes%4 != 0 {
		totalValueBytes += 4 - totalValueBytes%4
	}
	buf := make([]byte, oneByteExtensionHdrLen+totalValueBytes)
	binary.BigEndian.PutUint16(buf[0:2], oneByteExtensionProfile)
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalValueBytes/4))

	pos := oneByteExtensionHdrLen
	for _, k := range kinds {
		r, _ := ext.lookup(k)
		switch k {
		case ExtTransmissionTimeOffset:
			buf[pos] = (r.id << 4) | 0x2
			putInt24(buf[pos+1:pos+4], 0)
		case ExtAudioLevel:
			// Placeholder: voice=1, dBov=0. The real value is written only
			// through PatchAudioLevel.
			buf[pos] = (r.id << 4) | 0x0
			buf[pos+1] = 0x80
			buf[pos+2] = 0
			buf[pos+3] = 0
		case ExtAbsoluteSendTime:
			buf[pos] = (r.id << 4) | 0x2
			putUint24(buf[pos+1:pos+4], 0)
		}
		pos += extensionBlockLen
	}
	return buf
}

type parsedHeader struct {
	padding     bool
	extension   bool
	numCSRCs    int
	marker      bool
	payloadType uint8
	seq         uint16
	timestamp   uint32
	ssrc        uint32
	headerLen   int
	paddingLen  int
}

// parseRTPHeader extracts the fields this package needs from an encoded
// packet: SSRC, sequence number, header length (including any extension
// block), and padding length, without touching the payload bytes.
func parseRTPHeader(buf []byte) (parsedHeader, error) {
	if len(buf) < rtpFixedHeaderLen {
		return parsedHeader{}, ErrMalformedPacket
	}
	var h parsedHeader
	h.padding = buf[0]&0x20 != 0
	h.extension = buf[0]&0x10 != 0
	h.numCSRCs = int(buf[0] & 0x0f)
	h.marker = buf[1]&0x80 != 0
	h.payloadType = buf[1] & 0x7f
	h.seq = binary.BigEndian.Uint16(buf[2:4])
	h.timestamp = binary.BigEndian.Uint32(buf[4:8])
	h.ssrc = binary.BigEndian.Uint32(buf[8:12])

	pos := rtpFixedHeaderLen + rtpCSRCIdentifierLen*h.numCSRCs
	if len(buf) < pos {
		return h, ErrMalformedPacket
	}
	if h.extension {
		if len(buf) < pos+oneByteExtensionHdrLen {
			return h, ErrMalformedPacket
		}
		extLenWords := binary.BigEndian.Uint16(buf[pos+2 : pos+4])
		pos += oneByteExtensionHdrLen + int(extLenWords)*4
		if len(buf) < pos {
			return h, ErrMalformedPacket
		}
	}
	h.headerLen = pos
	if h.padding && len(buf) > 0 {
		h.paddingLen = int(buf[len(buf)-1])
	}
	return h, nil
}

// PatchTransmissionTimeOffset overwrites the TransmissionTimeOffset
// extension's value field in place with diffMs*90 (90kHz units), encoded
// as a signed 24-bit big-endian integer. A value outside the extension's
// range wraps rather than erroring; this package has no setter that
// range-checks a transmission time offset.
func PatchTransmissionTimeOffset(packet []byte, numCSRCs int, ext *ExtensionMap, diffMs int64, logger *zap.SugaredLogger) {
	patchExtensionValue(packet, numCSRCs, ext, ExtTransmissionTimeOffset, func(dst []byte) {
		putInt24(dst, int32(diffMs*90))
	}, logger)
}

// PatchAbsoluteSendTime overwrites the AbsoluteSendTime extension's value
// field in place with nowMs encoded as seconds with an 18-bit fractional
// part, per RFC: ((now_ms << 18) / 1000) & 0xFFFFFF.
func PatchAbsoluteSendTime(packet []byte, numCSRCs int, ext *ExtensionMap, nowMs int64, logger *zap.SugaredLogger) {
	patchExtensionValue(packet, numCSRCs, ext, ExtAbsoluteSendTime, func(dst []byte) {
		putUint24(dst, uint32(((nowMs<<18)/1000)&0x00FFFFFF))
	}, logger)
}

// PatchAudioLevel overwrites the AudioLevel extension's value byte in
// place; this is the only path that writes a meaningful audio level, the
// builder's initial value being a placeholder (see spec open questions).
func PatchAudioLevel(packet []byte, numCSRCs int, ext *ExtensionMap, voiced bool, dBov uint8, logger *zap.SugaredLogger) {
	patchExtensionValue(packet, numCSRCs, ext, ExtAudioLevel, func(dst []byte) {
		v := dBov & 0x7f
		if voiced {
			v |= 0x80
		}
		dst[0] = v
	}, logger)
}

// patchExtensionValue locates kind's cached offset, validates the profile
// bytes and the expected id/len header byte, and on success hands the
// value bytes (everything after the header byte, i.e. 3 bytes for the
// 24-bit extensions, 1 meaningful byte for AudioLevel) to write. Any
// validation failure leaves the packet unmodified; a missing profile
// header or a mismatched header byte is logged, while a packet too short
// to hold the extension is skipped silently.
func patchExtensionValue(packet []byte, numCSRCs int, ext *ExtensionMap, kind ExtensionKind, write func(dst []byte), logger *zap.SugaredLogger) {
	if ext == nil {
		return
	}
	r, ok := ext.lookup(kind)
	if !ok {
		return
	}
	blockStart := rtpFixedHeaderLen + rtpCSRCIdentifierLen*numCSRCs
	if len(packet) < blockStart+oneByteExtensionHdrLen {
		return
	}
	if binary.BigEndian.Uint16(packet[blockStart:blockStart+2]) != oneByteExtensionProfile {
		logWarn(logger, "rtp extension patch: missing 0xBEDE profile header", "kind", kind)
		return
	}
	pos := blockStart + int(r.offset)
	if len(packet) < pos+extensionBlockLen {
		return
	}
	var wantHeaderByte byte
	switch kind {
	case ExtTransmissionTimeOffset, ExtAbsoluteSendTime:
		wantHeaderByte = (r.id << 4) | 0x2
	case ExtAudioLevel:
		wantHeaderByte = r.id << 4
	}
	if packet[pos] != wantHeaderByte {
		logWarn(logger, "rtp extension patch: header byte mismatch", "kind", kind, "offset", pos)
		return
	}
	write(packet[pos+1 : pos+extensionBlockLen])
}

func logWarn(logger *zap.SugaredLogger, msg string, kv ...interface{}) {
	if logger == nil {
		return
	}
	logger.Warnw(msg, kv...)
}

// ParseTransmissionTimeOffset reads back the signed 24-bit value written
// by PatchTransmissionTimeOffset, for round-trip verification.
func ParseTransmissionTimeOffset(packet []byte, numCSRCs int, ext *ExtensionMap) (int32, bool) {
	dst, ok := extensionValueBytes(packet, numCSRCs, ext, ExtTransmissionTimeOffset)
	if !ok {
		return 0, false
	}
	return getInt24(dst), true
}

// ParseAbsoluteSendTime reads back the unsigned 24-bit value written by
// PatchAbsoluteSendTime.
func ParseAbsoluteSendTime(packet []byte, numCSRCs int, ext *ExtensionMap) (uint32, bool) {
	dst, ok := extensionValueBytes(packet, numCSRCs, ext, ExtAbsoluteSendTime)
	if !ok {
		return 0, false
	}
	return getUint24(dst), true
}

// ParseAudioLevel reads back the voice flag and dBov written by
// PatchAudioLevel.
func ParseAudioLevel(packet []byte, numCSRCs int, ext *ExtensionMap) (voiced bool, dBov uint8, ok bool) {
	dst, ok2 := extensionValueBytes(packet, numCSRCs, ext, ExtAudioLevel)
	if !ok2 {
		return false, 0, false
	}
	return dst[0]&0x80 != 0, dst[0] & 0x7f, true
}

func extensionValueBytes(packet []byte, numCSRCs int, ext *ExtensionMap, kind ExtensionKind) ([]byte, bool) {
	if ext == nil {
		return nil, false
	}
	r, ok := ext.lookup(kind)
	if !ok {
		return nil, false
	}
	blockStart := rtpFixedHeaderLen + rtpCSRCIdentifierLen*numCSRCs
	pos := blockStart + int(r.offset)
	if len(packet) < pos+extensionBlockLen {
		return nil, false
	}
	return packet[pos+1 : pos+extensionBlockLen], true
}

func putInt24(b []byte, v int32) {
	u := uint32(v) & 0x00ffffff
	b[0] = byte(u >> 16)
	b[1] = byte(u >> 8)
	b[2] = byte(u)
}

func getInt24(b []byte) int32 {
	u := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	if u&0x800000 != 0 {
		u |= 0xff000000
	}
	return int32(u)
}

func putUint24(b []byte, v uint32) {
	v &= 0x00ffffff
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func getUint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
