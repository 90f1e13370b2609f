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

// Command rtpsenderdemo wires a SendEngine to a real UDP socket, a
// Prometheus-backed stats collector, and an RTCP NACK feed, and sends
// synthetic audio frames at a fixed cadence until interrupted. It exists
// to exercise the package's external collaborators end to end, not as a
// production media server.
package main

import (
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/rtcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atriumrtc/rtpsender/pkg/nackfeed"
	"github.com/atriumrtc/rtpsender/pkg/rtppacketize"
	"github.com/atriumrtc/rtpsender/pkg/rtpsender"
	"github.com/atriumrtc/rtpsender/pkg/rtpsenderprom"
)

// udpTransport implements rtpsender.Transport over a single UDP socket
// connected to one remote peer; channelID is ignored since this demo
// sends exactly one stream.
type udpTransport struct {
	conn *net.UDPConn
}

func (t *udpTransport) SendPacket(channelID int, data []byte) (int, error) {
	return t.conn.Write(data)
}

func main() {
	remoteAddr := flag.String("remote", "127.0.0.1:5004", "RTP destination address")
	nackAddr := flag.String("nack-listen", "127.0.0.1:5005", "address to receive RTCP NACK feedback on")
	metricsAddr := flag.String("metrics-listen", "127.0.0.1:9105", "address to serve /metrics on")
	flag.Parse()

	logger := zap.NewExample().Sugar()
	defer logger.Sync()

	raddr, err := net.ResolveUDPAddr("udp", *remoteAddr)
	if err != nil {
		logger.Fatalw("resolve remote addr", "error", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		logger.Fatalw("dial udp", "error", err)
	}
	defer conn.Close()

	clock := rtpsender.SystemClock{}
	allocator := rtpsender.AcquireGlobalSSRCAllocator()
	defer rtpsender.ReleaseGlobalSSRCAllocator()

	state := rtpsender.NewSenderState(rtpsender.SenderStateParams{
		Clock:     clock,
		Audio:     true,
		Allocator: allocator,
		Logger:    logger,
	})
	if err := state.RegisterPayload(111, rtpsender.PayloadDescriptor{
		Kind: rtpsender.PayloadAudio,
		Name: "opus",
		Audio: rtpsender.AudioPayloadInfo{
			FrequencyHz: 48000,
			Channels:    2,
			RateBps:     64000,
		},
	}); err != nil {
		logger.Fatalw("register payload", "error", err)
	}
	state.SetRTXMode(rtpsender.RTXRetransmit)
	state.SetSendingStatus(true, 0)

	registry := prometheus.NewRegistry()
	collector := rtpsenderprom.NewCollector("rtpsenderdemo", registry)

	engine := rtpsender.NewSendEngine(rtpsender.SendEngineParams{
		Clock:              clock,
		State:              state,
		Transport:          &udpTransport{conn: conn},
		HistoryCapacity:    rtpsender.DefaultHistoryCapacity,
		AudioPacketizer:    &rtppacketize.Audio{MaxPayloadLength: 1100},
		BitrateObserver:    collector,
		FrameCountObserver: collector,
		StatsCallback:      collector,
		Logger:             logger,
	})

	feed := nackfeed.NewFeed(engine, state.SSRCMedia(), logger)
	go runNACKListener(*nackAddr, feed, engine, logger)

	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			logger.Errorw("metrics server exited", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	bitrateTicker := time.NewTicker(time.Second)
	defer bitrateTicker.Stop()

	var ts uint32
	silentFrame := make([]byte, 160)

	for {
		select {
		case <-ticker.C:
			now := time.Now().UnixMilli()
			if err := engine.SendOutgoingData(rtpsender.FrameAudio, 111, ts, now, silentFrame, nil, nil, nil); err != nil {
				logger.Warnw("send outgoing data", "error", err)
			}
			ts += 960 // 20ms at 48kHz
		case <-bitrateTicker.C:
			engine.ProcessBitrate()
		case <-sigCh:
			logger.Infow("shutting down")
			return
		}
	}
}

// runNACKListener reads raw RTCP packets off a UDP socket, forwards any
// TransportLayerNack it finds to feed, and drives the engine's target
// bitrate from any ReceiverEstimatedMaximumBitrate it finds. TWCC feedback
// (rtcp.TransportLayerCC) is deliberately not consumed here: turning it
// into a bitrate means running a bandwidth-estimation algorithm, which is
// congestion control, not feedback wiring.
func runNACKListener(addr string, feed *nackfeed.Feed, engine *rtpsender.SendEngine, logger *zap.SugaredLogger) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		logger.Errorw("resolve nack listen addr", "error", err)
		return
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		logger.Errorw("listen udp for nack feed", "error", err)
		return
	}
	defer conn.Close()

	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			logger.Warnw("nack feed read failed", "error", err)
			return
		}
		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			logger.Warnw("nack feed: malformed RTCP packet", "error", err)
			continue
		}
		feed.HandleRTCP(pkts, 20)
		applyREMB(pkts, engine, logger)
	}
}

// applyREMB scans pkts for a ReceiverEstimatedMaximumBitrate and, if found,
// passes its suggested bitrate straight through to SetTargetBitrate; the
// REMB sender has already done the estimation, this just relays it.
func applyREMB(pkts []rtcp.Packet, engine *rtpsender.SendEngine, logger *zap.SugaredLogger) {
	for _, p := range pkts {
		remb, ok := p.(*rtcp.ReceiverEstimatedMaximumBitrate)
		if !ok {
			continue
		}
		if remb.Bitrate <= 0 {
			continue
		}
		logger.Debugw("applying REMB", "bps", remb.Bitrate)
		engine.SetTargetBitrate(uint32(remb.Bitrate))
	}
}
