package countdown

import "fmt"

// FormatClock renders seconds as zero-padded "MM:SS".
// Minutes do not roll over into hours, 3600 renders as "60:00".
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatElapsed renders seconds as "Nm Ss"
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
