// ABOUTME: discover, devices and version subcommands
// ABOUTME: Small inspection helpers around mDNS and the audio backends
package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbanbridge/vbanbridge-go/internal/version"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio/device"
	"github.com/vbanbridge/vbanbridge-go/pkg/discovery"
)

var (
	discoverTimeout time.Duration
	devicesBackend  string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List bridges advertised over mDNS",
	RunE: func(cmd *cobra.Command, args []string) error {
		peers, err := discovery.Browse(cmd.Context(), discoverTimeout)
		if err != nil {
			return err
		}
		if len(peers) == 0 {
			fmt.Println("No bridges found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INSTANCE\tSTREAM\tADDRESS\tFORMAT\tSESSION")
		for _, p := range peers {
			fmt.Fprintf(w, "%s\t%s\t%s:%d\t%dHz/%dch\t%s\n",
				p.Instance, p.Stream, p.Host, p.Port, p.SampleRate, p.Channels, p.ID)
		}
		return w.Flush()
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices for a backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := device.ListDevices(devicesBackend)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BACKEND\tNAME\tCAPTURE\tPLAYBACK\tDEFAULT")
		for _, d := range infos {
			fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%t\n", d.Backend, d.Name, d.Capture, d.Playback, d.Default)
		}
		return w.Flush()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 3*time.Second, "how long to listen for answers")
	devicesCmd.Flags().StringVar(&devicesBackend, "backend", device.BackendMalgo, "audio backend to query")
}
