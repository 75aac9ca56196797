// ABOUTME: Version and product identification constants
// ABOUTME: Reported by the CLI, the monitor hello message and mDNS records
package version

import "fmt"

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.3.0"

const (
	Product      = "vbanbridge"
	Manufacturer = "vbanbridge contributors"
)

// String formats product and version for display
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
