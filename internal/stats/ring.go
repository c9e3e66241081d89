// ABOUTME: Fixed-capacity ring buffer for numeric samples
// ABOUTME: Overwrites the oldest entry on overflow and derives running statistics
package stats

import "math"

// Ring is a fixed-capacity circular sample store. Inserting past capacity
// evicts the oldest value. Ring is not goroutine-safe; the owning component
// serializes access.
type Ring struct {
	values []float64
	head   int // next write position
	count  int
}

// NewRing creates a ring buffer with the given capacity. Capacity below 1 is
// raised to 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{values: make([]float64, capacity)}
}

// Push inserts a value, evicting the oldest when full.
func (r *Ring) Push(v float64) {
	r.values[r.head] = v
	r.head = (r.head + 1) % len(r.values)
	if r.count < len(r.values) {
		r.count++
	}
}

// Count returns the number of stored values.
func (r *Ring) Count() int { return r.count }

// Capacity returns the fixed capacity.
func (r *Ring) Capacity() int { return len(r.values) }

// Clear discards all stored values.
func (r *Ring) Clear() {
	r.head = 0
	r.count = 0
}

// Values returns the stored values in insertion order, oldest first.
func (r *Ring) Values() []float64 {
	out := make([]float64, r.count)
	start := (r.head - r.count + len(r.values)) % len(r.values)
	for i := 0; i < r.count; i++ {
		out[i] = r.values[(start+i)%len(r.values)]
	}
	return out
}

// at returns the i-th stored value, oldest first. Caller checks bounds.
func (r *Ring) at(i int) float64 {
	start := (r.head - r.count + len(r.values)) % len(r.values)
	return r.values[(start+i)%len(r.values)]
}

// Last returns the most recently inserted value, or 0 when empty.
func (r *Ring) Last() float64 {
	if r.count == 0 {
		return 0
	}
	return r.at(r.count - 1)
}

// Average returns the mean of the stored values, or 0 when empty.
func (r *Ring) Average() float64 {
	if r.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.count; i++ {
		sum += r.at(i)
	}
	return sum / float64(r.count)
}

// Min returns the smallest stored value, or 0 when empty.
func (r *Ring) Min() float64 {
	if r.count == 0 {
		return 0
	}
	min := r.at(0)
	for i := 1; i < r.count; i++ {
		if v := r.at(i); v < min {
			min = v
		}
	}
	return min
}

// Max returns the largest stored value, or 0 when empty.
func (r *Ring) Max() float64 {
	if r.count == 0 {
		return 0
	}
	max := r.at(0)
	for i := 1; i < r.count; i++ {
		if v := r.at(i); v > max {
			max = v
		}
	}
	return max
}

// Jitter returns the spread (max - min) of the stored values.
func (r *Ring) Jitter() float64 {
	if r.count == 0 {
		return 0
	}
	return r.Max() - r.Min()
}

// Variance returns the population variance of the stored values.
func (r *Ring) Variance() float64 {
	if r.count == 0 {
		return 0
	}
	mean := r.Average()
	var sum float64
	for i := 0; i < r.count; i++ {
		d := r.at(i) - mean
		sum += d * d
	}
	return sum / float64(r.count)
}

// Trend returns a two-point slope over the last three samples:
// (newest - value three steps back) / 2. Returns 0 with fewer than
// three samples.
func (r *Ring) Trend() float64 {
	if r.count < 3 {
		return 0
	}
	return (r.at(r.count-1) - r.at(r.count-3)) / 2
}

// StdDev returns the population standard deviation of the stored values.
func (r *Ring) StdDev() float64 {
	return math.Sqrt(r.Variance())
}
