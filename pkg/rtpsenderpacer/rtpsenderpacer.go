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

// Package rtpsenderpacer provides a leaky-bucket rtpsender.Pacer: packets
// submitted above the configured bitrate budget are queued instead of sent,
// and released on a fixed interval by calling back into the packet sender's
// TimeToSendPacket, exactly the deferred/callback contract spec.md describes
// for the Pacer collaborator.
package rtpsenderpacer

import (
	"math/bits"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/atriumrtc/rtpsender/pkg/rtpsender"
)

// PacketSender is the callback surface a Leaky pacer re-enters once it has
// decided a queued packet may go out; SendEngine satisfies it directly.
type PacketSender interface {
	TimeToSendPacket(seq uint16, captureTimeMs int64, isRetransmit bool) bool
	TimeToSendPadding(budgetBytes int) int
}

type queuedPacket struct {
	seq           uint16
	captureTimeMs int64
	payloadSize   int
	isRetransmit  bool
}

// Leaky is a two-queue (High/Normal) token-bucket pacer: High-priority
// packets (retransmits) always drain before Normal ones. The bucket refills
// once per drainInterval proportional to the configured target bitrate; a
// zero target never admits immediately and adds no budget, so queued
// packets stay queued until a nonzero target is set, mirroring
// probe/paused states.
type Leaky struct {
	logger *zap.SugaredLogger
	sender PacketSender

	drainInterval time.Duration
	targetBps     atomic.Uint32

	mu         sync.Mutex
	budgetBits int64
	high       deque.Deque[queuedPacket]
	normal     deque.Deque[queuedPacket]

	stopCh chan struct{}
	doneCh chan struct{}
}

const defaultDrainIntervalMs = 5
const queueBaseCap = 64

// NewLeaky constructs a Leaky pacer and starts its drain goroutine. Call
// Stop when the owning SendEngine is torn down.
func NewLeaky(sender PacketSender, targetBitrateBps uint32, logger *zap.SugaredLogger) *Leaky {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &Leaky{
		logger:        logger,
		sender:        sender,
		drainInterval: defaultDrainIntervalMs * time.Millisecond,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	p.high.SetMinCapacity(uint(bits.TrailingZeros(uint(queueBaseCap))))
	p.normal.SetMinCapacity(uint(bits.TrailingZeros(uint(queueBaseCap))))
	p.targetBps.Store(targetBitrateBps)
	go p.drainLoop()
	return p
}

// SetTargetBitrate adjusts the refill rate the drain loop uses; callers
// typically mirror whatever they pass to SendEngine.SetTargetBitrate so the
// pacer's notion of budget and the NACK gate's notion of budget stay in
// step.
func (p *Leaky) SetTargetBitrate(bps uint32) {
	p.targetBps.Store(bps)
}

// SendPacket implements rtpsender.Pacer. A zero target bitrate means "pace
// everything" (no immediate admission); otherwise a packet is admitted
// immediately if the bucket currently holds enough budget, and queued
// (returning false) otherwise.
func (p *Leaky) SendPacket(priority rtpsender.Priority, ssrc uint32, seq uint16, captureTimeMs int64, payloadSize int, isRetransmit bool) bool {
	target := p.targetBps.Load()
	bits := int64(payloadSize) * 8

	p.mu.Lock()
	defer p.mu.Unlock()

	if target != 0 && p.budgetBits >= bits {
		p.budgetBits -= bits
		return true
	}

	q := queuedPacket{seq: seq, captureTimeMs: captureTimeMs, payloadSize: payloadSize, isRetransmit: isRetransmit}
	if priority == rtpsender.PriorityHigh {
		p.high.PushBack(q)
	} else {
		p.normal.PushBack(q)
	}
	return false
}

// Stop halts the drain goroutine. Any packets still queued are dropped
// without a TimeToSendPacket callback.
func (p *Leaky) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

func (p *Leaky) drainLoop() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.drainOnce()
		}
	}
}

func (p *Leaky) drainOnce() {
	target := p.targetBps.Load()

	p.mu.Lock()
	if target != 0 {
		p.budgetBits += int64(target) * int64(p.drainInterval/time.Millisecond) / 1000
	}
	budget := p.budgetBits
	budget = p.releaseLocked(&p.high, budget)
	if p.high.Len() == 0 {
		budget = p.releaseLocked(&p.normal, budget)
	}
	p.budgetBits = budget
	p.mu.Unlock()
}

// releaseLocked pops queued packets off the front of q in order while
// budget allows, stopping (with the rest of the queue intact) as soon as
// the next packet can't be afforded. Called with p.mu held.
func (p *Leaky) releaseLocked(q *deque.Deque[queuedPacket], budgetBits int64) int64 {
	for q.Len() > 0 {
		head := q.Front()
		bits := int64(head.payloadSize) * 8
		if budgetBits < bits {
			return budgetBits
		}
		q.PopFront()
		if !p.sender.TimeToSendPacket(head.seq, head.captureTimeMs, head.isRetransmit) {
			p.logger.Debugw("pacer: send rejected on drain", "seq", head.seq)
			continue
		}
		budgetBits -= bits
	}
	return budgetBits
}

var _ rtpsender.Pacer = (*Leaky)(nil)
