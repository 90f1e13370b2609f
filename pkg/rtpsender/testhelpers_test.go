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

import "sync"

// fakeTransport records every packet handed to it; it never fails unless
// failNext is set.
type fakeTransport struct {
	mu       sync.Mutex
	sent     [][]byte
	failNext bool
}

func (t *fakeTransport) SendPacket(channelID int, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failNext {
		t.failNext = false
		return 0, nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	t.sent = append(t.sent, buf)
	return len(data), nil
}

func (t *fakeTransport) packets() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// alwaysAcceptPacer accepts every submission immediately, so SendToNetwork
// and resendPacket always take the synchronous path in tests that don't
// care about pacer deferral.
type alwaysAcceptPacer struct {
	mu    sync.Mutex
	calls []pacerCall
}

type pacerCall struct {
	priority      Priority
	ssrc          uint32
	seq           uint16
	captureTimeMs int64
	payloadSize   int
	isRetransmit  bool
}

func (p *alwaysAcceptPacer) SendPacket(priority Priority, ssrc uint32, seq uint16, captureTimeMs int64, payloadSize int, isRetransmit bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pacerCall{priority, ssrc, seq, captureTimeMs, payloadSize, isRetransmit})
	return true
}

// deferringPacer defers every submission (as if queued), recording the
// call so a test can later drive TimeToSendPacket itself.
type deferringPacer struct {
	mu    sync.Mutex
	calls []pacerCall
}

func (p *deferringPacer) SendPacket(priority Priority, ssrc uint32, seq uint16, captureTimeMs int64, payloadSize int, isRetransmit bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pacerCall{priority, ssrc, seq, captureTimeMs, payloadSize, isRetransmit})
	return false
}

func newTestState(clock Clock, audio bool) *SenderState {
	alloc := NewSSRCAllocator(newXorshiftRNG(12345))
	return NewSenderState(SenderStateParams{
		Clock:     clock,
		Audio:     audio,
		Allocator: alloc,
		Rng:       newXorshiftRNG(67890),
	})
}
