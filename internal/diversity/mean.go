package diversity

import "gonum.org/v1/gonum/stat"

// Mean is a running mean over the last window values.
type Mean struct {
	buf  []float64
	next int
	full bool
}

func NewMean(window int) *Mean {
	if window < 1 {
		window = 1
	}
	return &Mean{buf: make([]float64, window)}
}

func (m *Mean) Add(v float64) {
	m.buf[m.next] = v
	m.next++
	if m.next == len(m.buf) {
		m.next = 0
		m.full = true
	}
}

// Value is the mean of the stored values, 0 before the first Add.
func (m *Mean) Value() float64 {
	if m.full {
		return stat.Mean(m.buf, nil)
	}
	if m.next == 0 {
		return 0
	}
	return stat.Mean(m.buf[:m.next], nil)
}

func (m *Mean) Len() int {
	if m.full {
		return len(m.buf)
	}
	return m.next
}
