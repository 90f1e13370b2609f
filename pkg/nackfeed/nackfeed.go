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

// Package nackfeed turns incoming RTCP transport-layer NACK feedback into
// the flat sequence-number list SendEngine.OnReceivedNACK expects.
package nackfeed

import (
	"go.uber.org/zap"

	"github.com/pion/rtcp"
)

// NACKReceiver is the narrow subset of SendEngine this package drives.
type NACKReceiver interface {
	OnReceivedNACK(seqList []uint16, avgRTTMs uint32)
}

// Feed expands every *rtcp.TransportLayerNack addressed to mediaSSRC into a
// flat sequence list and forwards it to receiver, using avgRTTMs as the
// engine's minimum-resend-interval input. Packets addressed to a different
// SSRC (e.g. feedback for another sender sharing the same RTCP session)
// are ignored.
type Feed struct {
	receiver  NACKReceiver
	mediaSSRC uint32
	logger    *zap.SugaredLogger
}

// NewFeed builds a Feed that forwards NACKs for mediaSSRC to receiver.
func NewFeed(receiver NACKReceiver, mediaSSRC uint32, logger *zap.SugaredLogger) *Feed {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Feed{receiver: receiver, mediaSSRC: mediaSSRC, logger: logger}
}

// HandleRTCP inspects pkts for TransportLayerNack packets addressed to this
// feed's media SSRC and forwards their sequence lists to the receiver.
func (f *Feed) HandleRTCP(pkts []rtcp.Packet, avgRTTMs uint32) {
	for _, p := range pkts {
		nack, ok := p.(*rtcp.TransportLayerNack)
		if !ok {
			continue
		}
		if nack.MediaSSRC != f.mediaSSRC {
			continue
		}
		seqList := seqListFromNack(nack)
		if len(seqList) == 0 {
			continue
		}
		f.logger.Debugw("nackfeed: forwarding NACK", "ssrc", f.mediaSSRC, "count", len(seqList))
		f.receiver.OnReceivedNACK(seqList, avgRTTMs)
	}
}

// seqListFromNack flattens every NackPair's PID+BLP bitmask into the
// sequence numbers it names, in ascending order within each pair.
func seqListFromNack(nack *rtcp.TransportLayerNack) []uint16 {
	var out []uint16
	for _, pair := range nack.Nacks {
		out = append(out, pair.PacketList()...)
	}
	return out
}
