// Package speech derives speaking metrics from a corrected transcript.
package speech

import (
	"math"
	"strings"

	"github.com/loqalabs/ortheloquence/internal/audio"
)

// Tics is the filler-word vocabulary, in reporting order.
var Tics = []string{"euh", "du coup", "ben", "genre", "quoi", "en fait"}

type Metrics struct {
	WordCount     int
	DurationSec   float64
	SpeechRateWPM float64
	TicCounts     map[string]int
}

// Analyze never fails; degenerate inputs yield zero values.
func Analyze(text string, wave audio.Waveform) Metrics {
	words := WordCount(text)
	duration := wave.DurationSeconds()
	return Metrics{
		WordCount:     words,
		DurationSec:   duration,
		SpeechRateWPM: round1(Rate(words, duration)),
		TicCounts:     CountTics(text),
	}
}

func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Rate returns words per minute, or 0 when duration is not positive.
func Rate(words int, durationSec float64) float64 {
	if durationSec <= 0 {
		return 0
	}
	return float64(words) / durationSec * 60
}

// CountTics counts case-insensitive, non-overlapping substring occurrences of
// every tic. A tic embedded in a longer word still counts.
func CountTics(text string) map[string]int {
	lower := strings.ToLower(text)
	counts := make(map[string]int, len(Tics))
	for _, tic := range Tics {
		counts[tic] = strings.Count(lower, tic)
	}
	return counts
}

// TotalTics sums the counts.
func TotalTics(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
