package meter

import (
	"math"
	"time"
)

const DefaultWindow = 50

// Meter keeps a rolling window of batch durations so run mode can show
// how fast it is stepping.
type Meter struct {
	samples []float64
	head    int
}

func New(window int) *Meter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Meter{
		samples: make([]float64, window),
	}
}

func (m *Meter) Reset() {
	m.head = 0
	for i := range m.samples {
		m.samples[i] = 0
	}
}

// Record adds the duration of one batch.
func (m *Meter) Record(d time.Duration) {
	m.samples[m.head%len(m.samples)] = d.Seconds()
	m.head++
}

// Ms returns the average batch duration over the window, in
// milliseconds.
func (m *Meter) Ms() float64 {
	sum, n := m.window()
	if n == 0 {
		return 0
	}
	return sum / float64(n) * 1000
}

// Rate returns batches per second over the window.
func (m *Meter) Rate() int {
	sum, n := m.window()
	if n == 0 || sum == 0 {
		return 0
	}
	return int(math.Round(float64(n) / sum))
}

func (m *Meter) window() (sum float64, n int) {
	for _, s := range m.samples {
		sum += s
	}
	n = len(m.samples)
	if m.head < n {
		n = m.head
	}
	return sum, n
}
