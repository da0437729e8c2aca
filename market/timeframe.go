package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe names follow the M/H/D/W convention: M5, H1, D1, W1.
const (
	M1  = "M1"
	M5  = "M5"
	M15 = "M15"
	M30 = "M30"
	H1  = "H1"
	H4  = "H4"
	D1  = "D1"
	W1  = "W1"
)

// TimeframeDuration maps a timeframe name to its bar length.
func TimeframeDuration(tf string) (time.Duration, error) {
	switch strings.ToUpper(strings.TrimSpace(tf)) {
	case M1:
		return time.Minute, nil
	case M5:
		return 5 * time.Minute, nil
	case M15:
		return 15 * time.Minute, nil
	case M30:
		return 30 * time.Minute, nil
	case H1:
		return time.Hour, nil
	case H4:
		return 4 * time.Hour, nil
	case D1, "1D", "DAY":
		return 24 * time.Hour, nil
	case W1:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe: %s", tf)
	}
}

// TimeframeName is the inverse of TimeframeDuration.
func TimeframeName(d time.Duration) (string, error) {
	if d <= 0 {
		return "", fmt.Errorf("invalid timeframe duration: %s", d)
	}
	switch {
	case d < time.Hour && d%time.Minute == 0:
		return fmt.Sprintf("M%d", d/time.Minute), nil
	case d < 24*time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("H%d", d/time.Hour), nil
	case d == 7*24*time.Hour:
		return W1, nil
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("D%d", d/(24*time.Hour)), nil
	}
	return "", fmt.Errorf("cannot map timeframe: %s", d)
}
