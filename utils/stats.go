package utils

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// populationWindow is the number of recent generations kept for population stats
const populationWindow = 64

// Stats for performance monitoring
type Stats struct {
	GenerationsPerSecond float64
	TotalGenerations     uint64
	StartTime            time.Time

	populations []float64
}

func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

// Update records one generation: its number, its population and how long it took
func (s *Stats) Update(generation uint64, population int, duration time.Duration) {
	s.TotalGenerations = generation
	if duration > 0 {
		s.GenerationsPerSecond = 1.0 / duration.Seconds()
	}

	s.populations = append(s.populations, float64(population))
	if len(s.populations) > populationWindow {
		s.populations = s.populations[len(s.populations)-populationWindow:]
	}
}

// Reset forgets recorded generations, used when the board is replaced
func (s *Stats) Reset() {
	s.GenerationsPerSecond = 0
	s.TotalGenerations = 0
	s.populations = s.populations[:0]
}

// Population returns the mean and standard deviation of the recent populations
func (s *Stats) Population() (mean, stdDev float64) {
	switch len(s.populations) {
	case 0:
		return 0, 0
	case 1:
		return s.populations[0], 0
	}
	return stat.MeanStdDev(s.populations, nil)
}
