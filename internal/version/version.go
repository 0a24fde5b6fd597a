// ABOUTME: Version information for resonate-play
// ABOUTME: Reported by the version command, the UI header and mDNS TXT records
package version

import (
	"fmt"
	"runtime"
)

const (
	Version      = "0.3.0"
	Product      = "Resonate Play"
	Manufacturer = "Resonate"
)

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("%s %s (%s %s/%s)", Product, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
