package offset

import "math"

// ToRadians converts an angle in degrees to radians.
func ToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Projection computes one displacement contribution for a sample.
type Projection func(s AxisSample, axis Axis, length float64) (float64, error)

// Vertical returns sin(s[axis]) * length.
func Vertical(s AxisSample, axis Axis, length float64) (float64, error) {
	v, ok := s.At(axis)
	if !ok {
		return 0, ErrInvalidAxis
	}
	return math.Sin(ToRadians(v)) * length, nil
}

// Horizontal returns sin(s[ReverseAxis(axis)]) * cos(s[axis]) * length.
func Horizontal(s AxisSample, axis Axis, length float64) (float64, error) {
	v, ok := s.At(axis)
	if !ok {
		return 0, ErrInvalidAxis
	}
	r, _ := s.At(ReverseAxis(axis))
	return math.Sin(ToRadians(r)) * math.Cos(ToRadians(v)) * length, nil
}

// SumOffsets applies f to every (sample, axis, length) triple and returns the
// sum. Mismatched slice lengths contribute nothing and return ok=false.
func SumOffsets(f Projection, samples []AxisSample, axes []Axis, lengths []float64) (float64, bool) {
	if len(samples) != len(axes) || len(samples) != len(lengths) {
		return 0, false
	}
	var total float64
	for i := range samples {
		v, err := f(samples[i], axes[i], lengths[i])
		if err != nil {
			return 0, false
		}
		total += v
	}
	return total, true
}

// JointOffsets applies f to every triple and returns the individual values.
// Mismatched slice lengths return nil.
func JointOffsets(f Projection, samples []AxisSample, axes []Axis, lengths []float64) []float64 {
	if len(samples) != len(axes) || len(samples) != len(lengths) {
		return nil
	}
	out := make([]float64, 0, len(samples))
	for i := range samples {
		v, err := f(samples[i], axes[i], lengths[i])
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}
