//go:build !darwin

package debug

import (
	"os"
	"time"
)

// fileCreated falls back to the modification time where the platform does not
// expose a birth time through os.FileInfo.
func fileCreated(info os.FileInfo) time.Time {
	return info.ModTime()
}
