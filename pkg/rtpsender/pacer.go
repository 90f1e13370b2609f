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

// Pacer is the external scheduler that decides when a submitted packet may
// actually leave. SendPacket returns true when the packet should be sent
// immediately by the caller; false means the pacer has queued the packet
// and will call back into SendEngine.TimeToSendPacket (or
// SendEngine.TimeToSendPadding for padding budget requests) later, possibly
// from a different goroutine.
type Pacer interface {
	SendPacket(priority Priority, ssrc uint32, seq uint16, captureTimeMs int64, payloadSize int, isRetransmit bool) bool
}
