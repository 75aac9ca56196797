// ABOUTME: INI configuration loading for the bridge
// ABOUTME: Layers defaults, config file, VBAN_* environment and command-line flags with viper
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vbanbridge/vbanbridge-go/pkg/audio/device"
	"github.com/vbanbridge/vbanbridge-go/pkg/bridge"
	"github.com/vbanbridge/vbanbridge-go/pkg/vban"
)

// EnvPrefix prefixes environment overrides, e.g. VBAN_NETWORK_REMOTE_IP
const EnvPrefix = "VBAN"

// RemoteAuto asks the app to resolve the peer by stream name over mDNS
const RemoteAuto = "auto"

type Config struct {
	Network NetworkConfig `mapstructure:"network"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Log     LogConfig     `mapstructure:"log"`
}

type NetworkConfig struct {
	RemoteIP        string `mapstructure:"remote_ip"`
	Port            int    `mapstructure:"port"`
	BindAddress     string `mapstructure:"bind_address"`
	LocalPort       int    `mapstructure:"local_port"`
	StreamName      string `mapstructure:"stream_name"`
	AcceptAnySender bool   `mapstructure:"accept_any_sender"`
	AcceptAnyStream bool   `mapstructure:"accept_any_stream"`
	TOS             int    `mapstructure:"tos"`
}

type AudioConfig struct {
	Backend         string `mapstructure:"backend"`
	InputDevice     string `mapstructure:"input_device"`
	OutputDevice    string `mapstructure:"output_device"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Channels        int    `mapstructure:"channels"`
	CaptureChannels int    `mapstructure:"capture_channels"`
	BufferSamples   int    `mapstructure:"buffer_samples"`
}

type MonitorConfig struct {
	// Listen is the monitor HTTP address; empty disables the endpoint
	Listen string `mapstructure:"listen"`
	MDNS   bool   `mapstructure:"mdns"`
	TUI    bool   `mapstructure:"tui"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

var defaults = map[string]interface{}{
	"network.remote_ip":         "",
	"network.port":              vban.DefaultPort,
	"network.bind_address":      "0.0.0.0",
	"network.local_port":        vban.DefaultPort,
	"network.stream_name":       "Stream1",
	"network.accept_any_sender": false,
	"network.accept_any_stream": false,
	"network.tos":               0,
	"audio.backend":             device.BackendMalgo,
	"audio.input_device":        "",
	"audio.output_device":       "",
	"audio.sample_rate":         vban.DefaultSampleRate,
	"audio.channels":            2,
	"audio.capture_channels":    1,
	"audio.buffer_samples":      bridge.DefaultBufferSamples,
	"monitor.listen":            "",
	"monitor.mdns":              true,
	"monitor.tui":               false,
	"log.level":                 "info",
	"log.format":                "text",
	"log.file":                  "",
}

// FlagKeys maps command-line flag names to configuration keys
var FlagKeys = map[string]string{
	"remote-ip":         "network.remote_ip",
	"port":              "network.port",
	"bind":              "network.bind_address",
	"local-port":        "network.local_port",
	"stream":            "network.stream_name",
	"accept-any-sender": "network.accept_any_sender",
	"accept-any-stream": "network.accept_any_stream",
	"tos":               "network.tos",
	"backend":           "audio.backend",
	"input-device":      "audio.input_device",
	"output-device":     "audio.output_device",
	"sample-rate":       "audio.sample_rate",
	"channels":          "audio.channels",
	"capture-channels":  "audio.capture_channels",
	"buffer":            "audio.buffer_samples",
	"listen":            "monitor.listen",
	"mdns":              "monitor.mdns",
	"tui":               "monitor.tui",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"log-file":          "log.file",
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	if err := newViper().Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load reads cfgFile (or vbanbridge.ini from the search path when empty),
// applies environment overrides and then any changed flags in fs.
func Load(cfgFile string, fs *pflag.FlagSet) (*Config, error) {
	v := newViper()
	v.SetConfigType("ini")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("vbanbridge")
		v.AddConfigPath(".")
		v.AddConfigPath(configDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range FlagKeys {
			if flag := fs.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// SessionConfig converts the network and audio sections into a session config
func (c *Config) SessionConfig() bridge.Config {
	return bridge.Config{
		RemoteIP:         c.Network.RemoteIP,
		Port:             c.Network.Port,
		BindAddress:      c.Network.BindAddress,
		LocalPort:        c.Network.LocalPort,
		StreamName:       c.Network.StreamName,
		SampleRate:       c.Audio.SampleRate,
		Channels:         c.Audio.Channels,
		BufferSamples:    c.Audio.BufferSamples,
		AcceptAnySender:  c.Network.AcceptAnySender,
		AcceptAnyStream:  c.Network.AcceptAnyStream,
		ReceiveTimeout:   bridge.DefaultReceiveTimeout,
		SendPollInterval: bridge.DefaultSendPollInterval,
		TOS:              c.Network.TOS,
	}
}

// DeviceConfig converts the audio section into a device config
func (c *Config) DeviceConfig() device.Config {
	return device.Config{
		SampleRate:      c.Audio.SampleRate,
		Channels:        c.Audio.Channels,
		CaptureChannels: c.Audio.CaptureChannels,
		InputDevice:     c.Audio.InputDevice,
		OutputDevice:    c.Audio.OutputDevice,
	}
}

// AutoRemote reports whether the peer should be discovered over mDNS
func (c *Config) AutoRemote() bool {
	return strings.EqualFold(c.Network.RemoteIP, RemoteAuto)
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vbanbridge")
	}
	return "/etc/vbanbridge"
}
