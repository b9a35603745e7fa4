package instrument

import (
	"fmt"
	"time"
)

// FormatElapsed renders a duration as a human-readable response time:
// "2 minute(s) and 3.50 second(s)" past the one-minute mark, "0.42 second(s)"
// below it. Seconds keep two decimal places.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := d.Seconds()
	minutes := int(secs) / 60
	if minutes > 0 {
		return fmt.Sprintf("%d minute(s) and %.2f second(s)", minutes, secs-float64(minutes)*60)
	}
	return fmt.Sprintf("%.2f second(s)", secs)
}
