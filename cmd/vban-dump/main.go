// ABOUTME: Diagnostic tool that prints every VBAN packet arriving on a port
// ABOUTME: Shows header fields, frame counter gaps and per-packet peak level
package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vbanbridge/vbanbridge-go/pkg/audio"
	"github.com/vbanbridge/vbanbridge-go/pkg/vban"
)

var (
	listenAddr = flag.String("listen", fmt.Sprintf(":%d", vban.DefaultPort), "UDP address to listen on")
	count      = flag.Int("count", 0, "exit after this many packets (0 = forever)")
	verbose    = flag.Bool("v", false, "log malformed packets")
)

func main() {
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})

	addr, err := net.ResolveUDPAddr("udp4", *listenAddr)
	if err != nil {
		logrus.Fatalf("Bad listen address: %v", err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		logrus.Fatalf("Listen failed: %v", err)
	}
	defer conn.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.Close()
	}()

	fmt.Printf("Listening for VBAN on %s\n", conn.LocalAddr())

	buf := make([]byte, vban.MaxPacketSize+64)
	samples := make([]int16, 0, vban.MaxPayloadSize/2)
	last := map[string]uint32{}
	seen := 0

	for *count == 0 || seen < *count {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logrus.WithError(err).Warn("Read failed")
			time.Sleep(10 * time.Millisecond)
			continue
		}

		h, pcm, err := vban.DecodeTo(samples, buf[:n])
		if err != nil {
			if *verbose {
				logrus.WithError(err).WithField("from", from).Warn("Dropped packet")
			}
			continue
		}
		seen++

		key := from.String() + "/" + h.Name()
		gap := ""
		if prev, ok := last[key]; ok && h.FrameCounter != prev+1 {
			gap = fmt.Sprintf(" gap=%d", int64(h.FrameCounter)-int64(prev)-1)
		}
		last[key] = h.FrameCounter

		rate, _ := h.SampleRate()
		fmt.Printf("%-21s %-16q frame=%-10d %6dHz %3dch %3d frames %6.1f dBFS%s\n",
			from, h.Name(), h.FrameCounter, rate, h.Channels, h.Frames,
			audio.LinearToDB(float64(audio.Peak(pcm))), gap)
	}
}
