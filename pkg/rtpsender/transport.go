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

// Transport is the opaque sink a fully-built RTP packet is handed to.
// Implementations return the number of bytes written; a return of zero or
// less is treated as a failure.
type Transport interface {
	SendPacket(channelID int, data []byte) (int, error)
}
