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
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// SendEngineParams configures a new SendEngine.
type SendEngineParams struct {
	Clock     Clock
	State     *SenderState
	Transport Transport
	Pacer     Pacer // optional; nil sends every packet synchronously
	ChannelID int

	HistoryCapacity int

	AudioPacketizer AudioPacketizer
	VideoPacketizer VideoPacketizer

	BitrateObserver BitrateStatisticsObserver
	FrameCountObserver FrameCountObserver
	DelayObserver      SendSideDelayObserver
	StatsCallback      StreamDataCountersCallback

	Logger *zap.SugaredLogger
}

// SendEngine orchestrates the three send paths named in spec.md §4.5:
// fresh media (SendOutgoingData/SendToNetwork), pacer-driven
// retransmission and padding (TimeToSendPacket/TimeToSendPadding), and
// NACK-triggered retransmission (OnReceivedNACK).
type SendEngine struct {
	clock     Clock
	state     *SenderState
	transport Transport
	pacer     Pacer
	channelID int

	history   *PacketHistory
	sentRate  *RateTracker
	nackRate  *RateTracker
	sendDelay *SendDelayTracker
	nackBytes *nackByteCounter

	audioPacketizer AudioPacketizer
	videoPacketizer VideoPacketizer

	stats *senderStats

	bitrateObserver BitrateStatisticsObserver

	targetBitrateBps atomic.Uint32

	logger *zap.SugaredLogger

	observerMu sync.Mutex
}

// NewSendEngine builds a SendEngine wired to the given collaborators.
func NewSendEngine(p SendEngineParams) *SendEngine {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	capacity := p.HistoryCapacity
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	history := NewPacketHistory(p.Clock)
	history.SetCapacity(capacity)

	stats := newSenderStats()
	stats.frameCountObserver = p.FrameCountObserver
	stats.delayObserver = p.DelayObserver
	stats.dataCountersCallback = p.StatsCallback

	e := &SendEngine{
		clock:           p.Clock,
		state:           p.State,
		transport:       p.Transport,
		pacer:           p.Pacer,
		channelID:       p.ChannelID,
		history:         history,
		sentRate:        NewRateTracker(p.Clock, DefaultSentBitrateWindowMs),
		nackRate:        NewRateTracker(p.Clock, NackBitrateWindowMs),
		sendDelay:       NewSendDelayTracker(p.Clock, SendDelayWindowMs),
		nackBytes:       &nackByteCounter{},
		audioPacketizer: p.AudioPacketizer,
		videoPacketizer: p.VideoPacketizer,
		stats:           stats,
		bitrateObserver: p.BitrateObserver,
		logger:          logger,
	}
	return e
}

// SetTargetBitrate installs the bitrate the NACK gate in OnReceivedNACK
// consumes as an input; padding is not sized from it. Congestion control
// itself is out of scope (see spec.md §1 Non-goals).
func (e *SendEngine) SetTargetBitrate(bps uint32) {
	e.targetBitrateBps.Store(bps)
}

func (e *SendEngine) TargetBitrate() uint32 {
	return e.targetBitrateBps.Load()
}

// ResetDataCounters zeroes the media/RTX stats without touching
// sequence/timestamp state (see SPEC_FULL.md §12).
func (e *SendEngine) ResetDataCounters() {
	e.stats.reset()
}

// History exposes the engine's PacketHistory, primarily for tests that
// need to assert on stored entries directly.
func (e *SendEngine) History() *PacketHistory { return e.history }

// SSRCMedia, NextMediaSeq, and Extensions complete the SendSink interface
// a packetizer collaborator is given: just enough of SenderState to build
// its own header, without a full back-reference to the engine.
func (e *SendEngine) SSRCMedia() uint32         { return e.state.SSRCMedia() }
func (e *SendEngine) NextMediaSeq() uint16      { return e.state.NextMediaSeq() }
func (e *SendEngine) Extensions() *ExtensionMap { return e.state.Extensions() }

// --- (A) SendOutgoingData ----------------------------------------------

// SendOutgoingData is the hot path for freshly encoded frames, per
// spec.md §4.5(A).
func (e *SendEngine) SendOutgoingData(frameType FrameType, payloadType uint8, captureTS uint32, captureTimeMs int64, payload []byte, frag *Fragmentation, codecInfo interface{}, typeHeader interface{}) error {
	if !e.state.SendingMedia() {
		return nil
	}
	ssrc := e.state.SSRCMedia()

	if _, err := e.state.CheckPayloadType(payloadType); err != nil {
		return ErrInvalidPayloadType
	}

	if e.state.IsAudio() {
		if e.audioPacketizer == nil {
			return ErrNoPacketizer
		}
		if err := e.audioPacketizer.PacketizeAudio(e, payloadType, captureTS, captureTimeMs, payload, frameType); err != nil {
			return err
		}
	} else {
		if frameType == FrameEmpty {
			e.stats.bumpFrameCount(frameType, ssrc)
			return nil
		}
		if e.videoPacketizer == nil {
			return ErrNoPacketizer
		}
		if err := e.videoPacketizer.PacketizeVideo(e, payloadType, captureTS, captureTimeMs, payload, frameType, frag, codecInfo, typeHeader); err != nil {
			return err
		}
	}
	e.stats.bumpFrameCount(frameType, ssrc)
	return nil
}

// --- (B) SendToNetwork ---------------------------------------------------

// SendToNetwork is the packetizer's emit primitive, per spec.md §4.5(B).
// It implements the SendSink interface packetizer collaborators are given.
func (e *SendEngine) SendToNetwork(buffer []byte, payloadLen, headerLen int, captureTimeMs int64, storage StorageType, priority Priority) error {
	hdr, err := parseRTPHeader(buffer)
	if err != nil {
		return ErrMalformedPacket
	}
	now := e.clock.NowMs()
	if captureTimeMs > 0 {
		PatchTransmissionTimeOffset(buffer, hdr.numCSRCs, e.state.Extensions(), now-captureTimeMs, e.logger)
	}
	PatchAbsoluteSendTime(buffer, hdr.numCSRCs, e.state.Extensions(), now, e.logger)

	if err := e.history.Put(buffer, captureTimeMs, storage); err != nil {
		return ErrStorageFailure
	}

	if e.pacer != nil && storage != StorageDontStore {
		accepted := e.pacer.SendPacket(priority, hdr.ssrc, hdr.seq, captureTimeMs, payloadLen, false)
		if !accepted {
			return nil
		}
	}

	if captureTimeMs > 0 {
		e.sendDelay.Record(captureTimeMs, now)
		e.reportSendDelay(hdr.ssrc)
	}

	n, sendErr := e.transport.SendPacket(e.channelID, buffer)
	if sendErr != nil || n <= 0 {
		e.logger.Warnw("rtpsender: transport failed to send packet", "error", sendErr, "seq", hdr.seq)
		return ErrTransportFailure
	}
	e.state.LatchMediaHasBeenSent()
	e.state.SetLastPacketMarkerBit(hdr.marker)
	e.accountSend(buffer, hdr, false, false)
	return nil
}

// --- (C) TimeToSendPacket ------------------------------------------------

// TimeToSendPacket is the pacer callback named in spec.md §4.5(C).
func (e *SendEngine) TimeToSendPacket(seq uint16, captureTimeMs int64, isRetransmit bool) bool {
	buf, _, found := e.history.GetAndMarkSent(seq, 0, true)
	if !found {
		return true
	}
	if !isRetransmit && captureTimeMs > 0 {
		e.sendDelay.Record(captureTimeMs, e.clock.NowMs())
		e.reportSendDelay(e.state.SSRCMedia())
	}
	sendOverRTX := isRetransmit && e.state.RTXMode()&RTXRetransmit != 0
	err := e.prepareAndSend(buf, captureTimeMs, sendOverRTX, isRetransmit)
	return err == nil
}

// prepareAndSend is the shared tail used by TimeToSendPacket,
// resendPacket, and the redundant-payload padding path: optionally rewrap
// as RTX, re-patch the time-sensitive extensions to reflect the current
// moment, transmit, and update statistics unconditionally (matching the
// original's behavior of accounting even a failed transmit).
func (e *SendEngine) prepareAndSend(buffer []byte, captureTimeMs int64, sendOverRTX, isRetransmit bool) error {
	hdr, err := parseRTPHeader(buffer)
	if err != nil {
		return err
	}
	toSend := buffer
	if sendOverRTX {
		toSend = e.state.BuildRTXPacket(buffer, hdr)
	}
	toSendHdr, err := parseRTPHeader(toSend)
	if err != nil {
		return err
	}

	now := e.clock.NowMs()
	if captureTimeMs > 0 {
		PatchTransmissionTimeOffset(toSend, toSendHdr.numCSRCs, e.state.Extensions(), now-captureTimeMs, e.logger)
	}
	PatchAbsoluteSendTime(toSend, toSendHdr.numCSRCs, e.state.Extensions(), now, e.logger)

	n, sendErr := e.transport.SendPacket(e.channelID, toSend)
	e.accountSend(toSend, toSendHdr, sendOverRTX, isRetransmit)
	if sendErr != nil || n <= 0 {
		e.logger.Warnw("rtpsender: transport failed to send packet", "error", sendErr, "seq", toSendHdr.seq)
		return ErrTransportFailure
	}
	e.state.LatchMediaHasBeenSent()
	return nil
}

// --- (D) TimeToSendPadding -----------------------------------------------

// TimeToSendPadding is the pacer-requested padding entry point, per
// spec.md §4.5(D).
func (e *SendEngine) TimeToSendPadding(budgetBytes int) int {
	if !e.state.SendingMedia() {
		return 0
	}
	payloadType, timestamp, captureTimeMs, rtxMode := e.state.PaddingSnapshot(e.clock.NowMs())

	bytesSent := 0
	if rtxMode&RTXRedundantPayloads != 0 {
		bytesSent = e.sendRedundantPayloads(budgetBytes)
	}
	remaining := budgetBytes - bytesSent
	if remaining > 0 {
		bytesSent += e.sendPadData(payloadType, timestamp, captureTimeMs, remaining)
	}
	return bytesSent
}

func (e *SendEngine) sendRedundantPayloads(budgetBytes int) int {
	bytesLeft := budgetBytes
	for bytesLeft > 0 {
		buf, captureTimeMs, ok := e.history.GetBestFitting(bytesLeft)
		if !ok {
			break
		}
		hdr, err := parseRTPHeader(buf)
		if err != nil {
			break
		}
		if err := e.prepareAndSend(buf, captureTimeMs, true, false); err != nil {
			break
		}
		bytesLeft -= len(buf) - hdr.headerLen
	}
	return budgetBytes - bytesLeft
}

// sendPadData generates synthetic padding packets of exactly
// MaxPaddingLength bytes each (residual budgets smaller than that are
// rounded up), per spec.md §4.5 sendPadData.
func (e *SendEngine) sendPadData(payloadType uint8, timestamp uint32, captureTimeMs int64, bytes int) int {
	if !e.state.SendingMedia() {
		return bytes
	}
	bytesSent := 0
	for bytes > 0 {
		const paddingLen = MaxPaddingLength

		ssrc, seq, overRTX, ok := e.state.NextPaddingIdentity()
		if !ok {
			return bytesSent
		}

		header, headerLen := BuildHeader(payloadType, ssrc, false, timestamp, seq, nil, e.state.Extensions())
		packet := make([]byte, headerLen+paddingLen)
		copy(packet, header)
		packet[0] |= 0x20 // padding bit
		e.state.FillPaddingRandom(packet[headerLen : headerLen+paddingLen-1])
		packet[headerLen+paddingLen-1] = byte(paddingLen)

		now := e.clock.NowMs()
		if captureTimeMs > 0 {
			PatchTransmissionTimeOffset(packet, 0, e.state.Extensions(), now-captureTimeMs, e.logger)
		}
		PatchAbsoluteSendTime(packet, 0, e.state.Extensions(), now, e.logger)

		n, sendErr := e.transport.SendPacket(e.channelID, packet)
		if sendErr != nil || n <= 0 {
			break
		}
		bytesSent += paddingLen

		hdr, _ := parseRTPHeader(packet)
		e.accountSend(packet, hdr, overRTX, false)
		bytes -= paddingLen
	}
	return bytesSent
}

// --- (E) OnReceivedNACK ---------------------------------------------------

// OnReceivedNACK implements spec.md §4.5(E): bandwidth-gated resend of a
// NACK'd sequence-number list.
func (e *SendEngine) OnReceivedNACK(seqList []uint16, avgRTTMs uint32) {
	now := e.clock.NowMs()
	target := e.TargetBitrate()
	if !e.nackBytes.processNACKBitRate(now, target) {
		e.logger.Infow("NACK bitrate reached", "targetBitrateBps", target)
		return
	}
	var bytesResent uint32
	minResendMs := int64(5) + int64(avgRTTMs)
	for _, seq := range seqList {
		n := e.resendPacket(seq, minResendMs)
		if n < 0 {
			break
		}
		if n == 0 {
			continue
		}
		bytesResent += uint32(n)
		if target != 0 && avgRTTMs != 0 {
			targetBytes := (target / 1000 * avgRTTMs) >> 3
			if bytesResent > targetBytes {
				break
			}
		}
	}
	if bytesResent > 0 {
		e.nackBytes.update(bytesResent, now)
		e.nackRate.Update(int(bytesResent))
	}
}

// resendPacket retrieves seq from history respecting minResendMs; if a
// Pacer is attached it submits at High priority and returns the length
// (the pacer will call back via TimeToSendPacket); otherwise it sends
// immediately through the shared prepare-and-send tail.
func (e *SendEngine) resendPacket(seq uint16, minResendMs int64) int {
	buf, captureTimeMs, found := e.history.GetAndMarkSent(seq, minResendMs, true)
	if !found {
		return 0
	}
	hdr, err := parseRTPHeader(buf)
	if err != nil {
		return -1
	}
	if e.pacer != nil {
		accepted := e.pacer.SendPacket(PriorityHigh, hdr.ssrc, hdr.seq, captureTimeMs, len(buf)-hdr.headerLen, true)
		if !accepted {
			return len(buf)
		}
	}
	sendOverRTX := e.state.RTXMode()&RTXRetransmit != 0
	if err := e.prepareAndSend(buf, captureTimeMs, sendOverRTX, true); err != nil {
		return -1
	}
	return len(buf)
}

// --- Bitrate processing ---------------------------------------------------

// ProcessBitrate prunes both rate trackers and, if a BitrateStatisticsObserver
// is registered, notifies it with the current sent/retransmit bitrates.
// Callers are expected to invoke this periodically (e.g. every second).
func (e *SendEngine) ProcessBitrate() {
	e.sentRate.Process()
	e.nackRate.Process()
	if e.bitrateObserver != nil {
		e.bitrateObserver.Notify(BitrateStatistics{
			TotalBps:      e.sentRate.BitrateBps(),
			RetransmitBps: e.nackRate.BitrateBps(),
		}, e.state.SSRCMedia())
	}
}

// --- Stats & helpers -------------------------------------------------------

func (e *SendEngine) reportSendDelay(ssrc uint32) {
	avg, max, ok := e.sendDelay.Summary(SendDelayWindowMs)
	if !ok {
		return
	}
	e.observerMu.Lock()
	obs := e.stats.delayObserver
	e.observerMu.Unlock()
	if obs != nil {
		obs.SendSideDelayUpdated(avg, max, ssrc)
	}
}

func (e *SendEngine) accountSend(buffer []byte, hdr parsedHeader, isRTX, isRetransmit bool) {
	e.sentRate.Update(len(buffer))
	ssrc := hdr.ssrc
	isFEC := e.isFECPacket(buffer, hdr)
	e.stats.update(isRTX, isRetransmit, isFEC, len(buffer), hdr.headerLen, hdr.paddingLen, ssrc)
}

// isFECPacket classifies a packet as FEC per spec.md §4.7: video only,
// the packet's payload type matches the registered RED payload type, and
// its first payload byte equals the registered FEC payload type.
func (e *SendEngine) isFECPacket(buffer []byte, hdr parsedHeader) bool {
	if e.state.IsAudio() {
		return false
	}
	redPT, fecPT, enabled := e.state.FECConfig()
	if !enabled || hdr.payloadType != redPT {
		return false
	}
	if len(buffer) <= hdr.headerLen {
		return false
	}
	return buffer[hdr.headerLen] == fecPT
}
