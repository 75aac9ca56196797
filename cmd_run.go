// ABOUTME: run and send subcommands
// ABOUTME: Start a bridge session with a device, or feed it from a file, URL or tone
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vbanbridge/vbanbridge-go/internal/app"
	"github.com/vbanbridge/vbanbridge-go/internal/config"
	"github.com/vbanbridge/vbanbridge-go/internal/ui"
	"github.com/vbanbridge/vbanbridge-go/internal/version"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio/device"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio/source"
	"github.com/vbanbridge/vbanbridge-go/pkg/bridge"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bridge the local audio device with a remote peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runBridge(cfg, nil)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <file|url|tone>",
	Short: "Send an MP3, FLAC or WAV file, an HTTP stream or a test tone",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("backend") {
			cfg.Audio.Backend = device.BackendNone
		}

		input := "tone"
		if len(args) == 1 {
			input = args[0]
		}
		src, err := source.Open(input)
		if err != nil {
			return err
		}
		defer src.Close()

		return runBridge(cfg, src)
	},
}

func init() {
	addBridgeFlags(runCmd.Flags())
	addBridgeFlags(sendCmd.Flags())
}

func runBridge(cfg *config.Config, src source.Source) error {
	closer, err := setupLogging(cfg, cfg.Monitor.TUI)
	if err != nil {
		return err
	}
	defer closer.Close()

	logrus.WithField("version", version.Version).Info("Starting vbanbridge")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.Options{
		Config: cfg,
		Logger: logrus.StandardLogger(),
		Source: src,
	}

	if !cfg.Monitor.TUI {
		return app.NewBridge(opts).Run(ctx)
	}

	tui := ui.New(fmt.Sprintf("%s  %s", version.String(), cfg.Network.StreamName))
	opts.OnStats = func(st bridge.Stats) {
		tui.Send(ui.StatsMsg(st))
	}

	errCh := make(chan error, 1)
	go func() {
		err := app.NewBridge(opts).Run(ctx)
		if err != nil {
			tui.Send(ui.DisconnectedMsg{Err: err})
		}
		errCh <- err
		tui.Stop()
	}()

	if err := tui.Run(); err != nil {
		logrus.WithError(err).Error("TUI error")
	}
	stop()
	return <-errCh
}
