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

func buildTestPacket(seq uint16, payloadLen int) []byte {
	hdr, headerLen := BuildHeader(96, 0x1234, false, 0, seq, nil, NewExtensionMap())
	buf := make([]byte, headerLen+payloadLen)
	copy(buf, hdr)
	return buf
}

func TestPacketHistoryPutAndGet(t *testing.T) {
	clock := NewFakeClock(1000)
	h := NewPacketHistory(clock)
	h.SetCapacity(16)

	pkt := buildTestPacket(5, 50)
	require.NoError(t, h.Put(pkt, 900, StorageStoreOnce))

	got, captureMs, ok := h.GetAndMarkSent(5, 0, true)
	require.True(t, ok)
	require.Equal(t, pkt, got)
	require.Equal(t, int64(900), captureMs)
}

func TestPacketHistoryDontStoreIsNoop(t *testing.T) {
	clock := NewFakeClock(1000)
	h := NewPacketHistory(clock)
	h.SetCapacity(16)

	pkt := buildTestPacket(5, 50)
	require.NoError(t, h.Put(pkt, 900, StorageDontStore))

	_, _, ok := h.GetAndMarkSent(5, 0, true)
	require.False(t, ok)
}

func TestPacketHistoryMinResendInterval(t *testing.T) {
	clock := NewFakeClock(1000)
	h := NewPacketHistory(clock)
	h.SetCapacity(16)

	pkt := buildTestPacket(5, 50)
	require.NoError(t, h.Put(pkt, 900, StorageStoreOnce))

	_, _, ok := h.GetAndMarkSent(5, 0, true)
	require.True(t, ok)

	// Immediately re-requesting within the min resend interval misses.
	_, _, ok = h.GetAndMarkSent(5, 100, true)
	require.False(t, ok)

	clock.Advance(101)
	_, _, ok = h.GetAndMarkSent(5, 100, true)
	require.True(t, ok)
}

func TestPacketHistoryAllowRetransmitFalse(t *testing.T) {
	clock := NewFakeClock(1000)
	h := NewPacketHistory(clock)
	h.SetCapacity(16)
	require.NoError(t, h.Put(buildTestPacket(5, 50), 900, StorageStoreOnce))

	_, _, ok := h.GetAndMarkSent(5, 0, false)
	require.False(t, ok)
}

func TestPacketHistoryRingEviction(t *testing.T) {
	clock := NewFakeClock(1000)
	h := NewPacketHistory(clock)
	h.SetCapacity(4)

	require.NoError(t, h.Put(buildTestPacket(1, 10), 0, StorageStoreOnce))
	require.NoError(t, h.Put(buildTestPacket(5, 10), 0, StorageStoreOnce)) // same slot as seq 1 (5 % 4 == 1 % 4)

	_, _, ok := h.GetAndMarkSent(1, 0, true)
	require.False(t, ok, "seq 1 should have been evicted by seq 5 sharing its slot")

	_, _, ok = h.GetAndMarkSent(5, 0, true)
	require.True(t, ok)
}

func TestPacketHistoryGetBestFitting(t *testing.T) {
	clock := NewFakeClock(1000)
	h := NewPacketHistory(clock)
	h.SetCapacity(16)

	require.NoError(t, h.Put(buildTestPacket(1, 50), 100, StorageStoreOnce))
	clock.Advance(1)
	require.NoError(t, h.Put(buildTestPacket(2, 100), 100, StorageStoreOnce))
	clock.Advance(1)
	require.NoError(t, h.Put(buildTestPacket(3, 30), 100, StorageStoreOnce))

	buf, _, ok := h.GetBestFitting(1000)
	require.True(t, ok)
	require.Equal(t, len(buildTestPacket(2, 100)), len(buf))

	buf, _, ok = h.GetBestFitting(12 + 40)
	require.True(t, ok)
	require.Equal(t, len(buildTestPacket(3, 30)), len(buf))

	_, _, ok = h.GetBestFitting(1)
	require.False(t, ok)
}

func TestPacketHistoryDisabledByZeroCapacity(t *testing.T) {
	clock := NewFakeClock(1000)
	h := NewPacketHistory(clock)
	require.False(t, h.IsEnabled())
	require.NoError(t, h.Put(buildTestPacket(1, 10), 0, StorageStoreOnce))
	_, _, ok := h.GetAndMarkSent(1, 0, true)
	require.False(t, ok)
}
