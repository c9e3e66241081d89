// ABOUTME: Build metadata constants
// ABOUTME: Shared by binaries for banners and diagnostics
package version

const (
	Version      = "0.1.0"
	Product      = "ScreenSquad Sync"
	Manufacturer = "ScreenSquad"
)
