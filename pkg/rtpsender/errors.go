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

import "errors"

var (
	// ErrInvalidPayloadType is returned when a payload type is negative or
	// is not the registered/current payload type at selection time.
	ErrInvalidPayloadType = errors.New("rtpsender: invalid payload type")

	// ErrUnregisteredPayload is returned by RegisterPayload when the key is
	// already registered with an incompatible descriptor.
	ErrUnregisteredPayload = errors.New("rtpsender: payload descriptor conflict")

	// ErrOutOfRange is returned by SetMaxPayloadLength when the length falls
	// outside [MinPayloadLength, MaxIPPacketSize]. Extension patch values are
	// not range-checked.
	ErrOutOfRange = errors.New("rtpsender: value out of range")

	// ErrStorageFailure is returned when PacketHistory rejects an insert.
	ErrStorageFailure = errors.New("rtpsender: packet history storage failed")

	// ErrTransportFailure is returned when the Transport collaborator
	// returns a non-positive byte count.
	ErrTransportFailure = errors.New("rtpsender: transport failed to send packet")

	// ErrNoPacketizer is returned by SendOutgoingData when no
	// AudioPacketizer/VideoPacketizer collaborator is attached for the
	// sender's configured kind.
	ErrNoPacketizer = errors.New("rtpsender: no packetizer attached")

	// ErrMalformedPacket is returned when a buffer handed to the engine is
	// too short to contain a valid RTP header.
	ErrMalformedPacket = errors.New("rtpsender: malformed RTP packet")

	// ErrExtensionIDOutOfRange is returned by ExtensionMap.Register for IDs
	// outside [1, 14].
	ErrExtensionIDOutOfRange = errors.New("rtpsender: extension id out of range")

	// ErrTooManyCSRCs is returned when more than 15 CSRCs are supplied.
	ErrTooManyCSRCs = errors.New("rtpsender: too many CSRCs")
)
