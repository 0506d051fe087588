package etc

import (
	"fmt"
	"math"

	"github.com/nrednav/cuid2"
)

func NewFreshID() string {
	return cuid2.Generate()
}

// FormatOffset renders an audio offset in seconds as mm:ss.cc.
func FormatOffset(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	minutes := int(seconds) / 60
	rest := seconds - float64(minutes*60)
	return fmt.Sprintf("%02d:%05.2f", minutes, rest)
}
