// ABOUTME: Entry point for the vbanbridge command
// ABOUTME: Defines the cobra root command, shared flags and logger setup
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vbanbridge/vbanbridge-go/internal/config"
	"github.com/vbanbridge/vbanbridge-go/internal/logging"
	"github.com/vbanbridge/vbanbridge-go/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "vbanbridge",
	Short:         "Bridge local audio to a VBAN peer over UDP",
	Long:          `vbanbridge streams 16-bit PCM between a local audio device and a remote VBAN peer, one stream in each direction over a single UDP socket.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./vbanbridge.ini)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text or json)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file")

	rootCmd.AddCommand(runCmd, sendCmd, monitorCmd, discoverCmd, devicesCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// addBridgeFlags registers the session and device flags shared by run and send
func addBridgeFlags(fs *pflag.FlagSet) {
	fs.String("remote-ip", "", `peer address, or "auto" to find it over mDNS by stream name`)
	fs.Int("port", 6980, "peer UDP port")
	fs.String("bind", "0.0.0.0", "local bind address")
	fs.Int("local-port", 6980, "local UDP port (0 for ephemeral)")
	fs.String("stream", "Stream1", "stream name sent and accepted (max 16 bytes)")
	fs.Bool("accept-any-sender", false, "accept packets from any source address")
	fs.Bool("accept-any-stream", false, "accept packets with any stream name")
	fs.Int("tos", 0, "IPv4 type-of-service byte for outgoing packets")
	fs.String("backend", "malgo", "audio backend (malgo, oto, portaudio, none)")
	fs.String("input-device", "", "capture device name")
	fs.String("output-device", "", "playback device name")
	fs.Int("sample-rate", 48000, "stream sample rate in Hz")
	fs.Int("channels", 2, "stream channel count")
	fs.Int("capture-channels", 1, "channels opened on the capture device")
	fs.Int("buffer", 4096, "ring buffer capacity in samples")
	fs.String("listen", "", "monitor HTTP address, e.g. 127.0.0.1:9680")
	fs.Bool("mdns", true, "advertise the session over mDNS")
	fs.Bool("tui", false, "show the terminal level monitor")
}

// loadConfig reads the config file and overlays the command's flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cfgFile, cmd.Flags())
}

// setupLogging applies the log section; quiet keeps the terminal free for the TUI
func setupLogging(cfg *config.Config, quiet bool) (io.Closer, error) {
	return logging.Setup(logrus.StandardLogger(), logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Quiet:  quiet,
	})
}
