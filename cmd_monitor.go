// ABOUTME: monitor subcommand
// ABOUTME: Follows a running bridge's WebSocket stats feed in the TUI or as log lines
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vbanbridge/vbanbridge-go/internal/client"
	"github.com/vbanbridge/vbanbridge-go/internal/config"
	"github.com/vbanbridge/vbanbridge-go/internal/ui"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio"
)

var monitorPlain bool

var monitorCmd = &cobra.Command{
	Use:   "monitor <host:port>",
	Short: "Watch a running bridge's levels and counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return monitor(cfg, args[0])
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorPlain, "plain", false, "print stats as log lines instead of the TUI")
}

func monitor(cfg *config.Config, addr string) error {
	closer, err := setupLogging(cfg, !monitorPlain)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.NewClient(client.Config{ServerAddr: addr})
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = c.Connect(dialCtx)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()

	if monitorPlain {
		return followPlain(ctx, c)
	}

	tui := ui.New(fmt.Sprintf("vbanbridge monitor  %s", addr))
	tui.Send(ui.HelloMsg(c.Hello))

	go func() {
		for {
			select {
			case <-ctx.Done():
				tui.Stop()
				return
			case st := <-c.Stats:
				tui.Send(ui.StatsMsg(st.Stats))
			case <-c.Done():
				tui.Send(ui.DisconnectedMsg{Err: c.Err()})
				return
			}
		}
	}()

	return tui.Run()
}

func followPlain(ctx context.Context, c *client.Client) error {
	logrus.WithFields(logrus.Fields{
		"session": c.Hello.SessionID,
		"stream":  c.Hello.Stream,
		"rate":    c.Hello.SampleRate,
		"ch":      c.Hello.Channels,
		"remote":  c.Hello.Remote,
	}).Info("Connected to bridge")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return c.Err()
		case st := <-c.Stats:
			fmt.Printf("rx=%d tx=%d dropped=%d underruns=%d capture=%.1fdB playback=%.1fdB\n",
				st.PacketsReceived, st.PacketsSent, st.Dropped(), st.Underruns,
				audio.LinearToDB(float64(st.CapturePeak)), audio.LinearToDB(float64(st.PlaybackPeak)))
		}
	}
}
