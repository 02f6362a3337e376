package offset

import (
	"fmt"
	"math"

	"github.com/banshee-data/gait.report/internal/dataset"
	"github.com/banshee-data/gait.report/internal/monitoring"
)

// MalformedPolicy decides what a batch run does with a frame it cannot
// project.
type MalformedPolicy int

const (
	// SkipMalformed drops the row and records its index in the Report.
	SkipMalformed MalformedPolicy = iota
	// ZeroFillMalformed emits an all-zero feature row so the output keeps
	// the input's row count.
	ZeroFillMalformed
)

// ParseMalformedPolicy accepts "skip" or "zero".
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch s {
	case "skip", "":
		return SkipMalformed, nil
	case "zero", "zero-fill":
		return ZeroFillMalformed, nil
	}
	return 0, fmt.Errorf("unknown malformed-row policy %q: expected skip or zero", s)
}

// Options configures a Pipeline.
type Options struct {
	Layout    Layout
	Selection AxisSelection
	Lengths   BodyLengths
	Malformed MalformedPolicy

	// TrackDistance records the min/max squared distance between the chest
	// projection and the midpoint of the two leg projections. Calibration aid.
	TrackDistance bool
}

// DefaultOptions returns aggregated output, (roll, pitch) selection, unit
// lengths, skip-on-malformed and no distance tracking.
func DefaultOptions() Options {
	return Options{
		Layout:    Aggregated,
		Selection: DefaultAxisSelection(),
		Lengths:   DefaultBodyLengths(),
		Malformed: SkipMalformed,
	}
}

// DistanceBounds holds the squared chest-to-leg-midpoint distance range
// observed while TrackDistance is enabled.
type DistanceBounds struct {
	Min  float64
	Max  float64
	Rows int
}

// Valid reports whether at least one row contributed.
func (b DistanceBounds) Valid() bool { return b.Rows > 0 }

func (b *DistanceBounds) observe(d float64) {
	if b.Rows == 0 || d < b.Min {
		b.Min = d
	}
	if b.Rows == 0 || d > b.Max {
		b.Max = d
	}
	b.Rows++
}

func (b *DistanceBounds) merge(o DistanceBounds) {
	if !o.Valid() {
		return
	}
	if b.Rows == 0 || o.Min < b.Min {
		b.Min = o.Min
	}
	if b.Rows == 0 || o.Max > b.Max {
		b.Max = o.Max
	}
	b.Rows += o.Rows
}

// Report summarises one batch run.
type Report struct {
	Rows        int // input rows seen
	Emitted     int // output rows written
	Skipped     int
	SkippedRows []int
	ZeroFilled  int
	Distance    DistanceBounds
}

func (r *Report) merge(o Report, rowOffset int) {
	r.Rows += o.Rows
	r.Emitted += o.Emitted
	r.Skipped += o.Skipped
	r.ZeroFilled += o.ZeroFilled
	for _, idx := range o.SkippedRows {
		r.SkippedRows = append(r.SkippedRows, idx+rowOffset)
	}
	r.Distance.merge(o.Distance)
}

// Pipeline projects raw frames into displacement features. It is not safe
// for concurrent use.
type Pipeline struct {
	opts     Options
	segments [5]BodySegmentSpec
	axes     []Axis
	lengths  []float64
	samples  []AxisSample
	bounds   DistanceBounds
}

// NewPipeline validates opts and builds a pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if err := opts.Selection.Validate(); err != nil {
		return nil, err
	}
	if opts.Layout != Aggregated && opts.Layout != JointWise {
		return nil, fmt.Errorf("unknown layout %d", int(opts.Layout))
	}
	for name, l := range map[string]float64{"chest": opts.Lengths.Chest, "shank": opts.Lengths.Shank, "thigh": opts.Lengths.Thigh} {
		if math.IsNaN(l) || math.IsInf(l, 0) || l <= 0 {
			return nil, fmt.Errorf("%s length must be positive and finite, got %v", name, l)
		}
	}

	p := &Pipeline{
		opts:     opts,
		segments: BodySegments(opts.Lengths),
		axes:     make([]Axis, 5),
		lengths:  make([]float64, 5),
		samples:  make([]AxisSample, 5),
	}
	for i, seg := range p.segments {
		p.axes[i] = opts.Selection.axisFor(seg.Segment)
		p.lengths[i] = seg.Length
	}
	return p, nil
}

// Options returns the pipeline configuration.
func (p *Pipeline) Options() Options { return p.opts }

// Columns returns the output column names.
func (p *Pipeline) Columns() []string { return p.opts.Layout.Columns() }

// Width returns the number of output features per frame.
func (p *Pipeline) Width() int { return p.opts.Layout.Width() }

// Bounds returns the distance bounds accumulated so far.
func (p *Pipeline) Bounds() DistanceBounds { return p.bounds }

// ResetBounds clears the accumulated distance bounds.
func (p *Pipeline) ResetBounds() { p.bounds = DistanceBounds{} }

func checkFrame(raw []float64) error {
	if len(raw) != FrameWidth {
		return fmt.Errorf("%w: got %d values, want %d", ErrMalformedFrame, len(raw), FrameWidth)
	}
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: value %d is %v", ErrMalformedFrame, i, v)
		}
	}
	return nil
}

// Frame projects one raw frame of FrameWidth angles into a feature vector
// in Columns() order.
func (p *Pipeline) Frame(raw []float64) ([]float64, error) {
	if err := checkFrame(raw); err != nil {
		return nil, err
	}
	for i, seg := range p.segments {
		p.samples[i] = seg.Sample(raw)
	}
	vert := JointOffsets(Vertical, p.samples, p.axes, p.lengths)
	horiz := JointOffsets(Horizontal, p.samples, p.axes, p.lengths)
	if vert == nil || horiz == nil {
		return nil, fmt.Errorf("%w: projection failed", ErrMalformedFrame)
	}

	if p.opts.TrackDistance {
		v, h := groupSums(vert), groupSums(horiz)
		d1 := v[0] - (v[1]+v[2])/2
		d2 := h[0] - (h[1]+h[2])/2
		p.bounds.observe(d1*d1 + d2*d2)
	}

	if p.opts.Layout == JointWise {
		return append(vert, horiz...), nil
	}
	v, h := groupSums(vert), groupSums(horiz)
	return []float64{v[0], v[1], v[2], h[0], h[1], h[2]}, nil
}

// groupSums folds per-joint values (chest, l_shank, l_thigh, r_shank,
// r_thigh) into limb groups (chest, left leg, right leg).
func groupSums(j []float64) [3]float64 {
	return [3]float64{j[0], j[1] + j[2], j[3] + j[4]}
}

// Run projects every row of a raw-angle dataset. The first FrameWidth
// columns of each row are used.
func (p *Pipeline) Run(in *dataset.Dataset) (*dataset.Dataset, Report, error) {
	out := dataset.New(p.Columns())
	rep, err := p.RunInto(in, out)
	if err != nil {
		return nil, rep, err
	}
	return out, rep, nil
}

// RunInto projects every row of in and appends the features to out.
func (p *Pipeline) RunInto(in, out *dataset.Dataset) (Report, error) {
	var rep Report
	if in.Width() < FrameWidth {
		return rep, fmt.Errorf("%w: raw dataset has %d columns, need at least %d", ErrMalformedFrame, in.Width(), FrameWidth)
	}
	if out.Width() != p.Width() {
		return rep, fmt.Errorf("%w: output has %d columns, layout %s needs %d", dataset.ErrColumnMismatch, out.Width(), p.opts.Layout, p.Width())
	}

	before := p.bounds
	p.bounds = DistanceBounds{}
	zero := make([]float64, p.Width())
	for i, row := range in.Rows {
		rep.Rows++
		frame := row
		if len(frame) > FrameWidth {
			frame = frame[:FrameWidth]
		}
		features, err := p.Frame(frame)
		if err != nil {
			if p.opts.Malformed == ZeroFillMalformed {
				features = zero
				rep.ZeroFilled++
			} else {
				rep.Skipped++
				rep.SkippedRows = append(rep.SkippedRows, i)
				continue
			}
		}
		if err := out.Append(features); err != nil {
			return rep, err
		}
		rep.Emitted++
	}
	rep.Distance = p.bounds
	p.bounds = before
	p.bounds.merge(rep.Distance)

	if rep.Skipped > 0 || rep.ZeroFilled > 0 {
		monitoring.Logf("[offset] %d/%d malformed rows (skipped=%d zero_filled=%d)",
			rep.Skipped+rep.ZeroFilled, rep.Rows, rep.Skipped, rep.ZeroFilled)
	}
	return rep, nil
}

// RunFiles reads each raw-angle CSV in order and appends its features to a
// single dataset. SkippedRows indices are global across all files.
func (p *Pipeline) RunFiles(paths []string) (*dataset.Dataset, Report, error) {
	out := dataset.New(p.Columns())
	var total Report
	for _, path := range paths {
		in, err := dataset.ReadFile(path)
		if err != nil {
			return nil, total, err
		}
		rep, err := p.RunInto(in, out)
		if err != nil {
			return nil, total, fmt.Errorf("%s: %w", path, err)
		}
		total.merge(rep, total.Rows)
		monitoring.Debugf("[offset] %s: rows=%d emitted=%d", path, rep.Rows, rep.Emitted)
	}
	if p.opts.TrackDistance && total.Distance.Valid() {
		monitoring.Logf("[offset] min distance is: %g max distance is: %g", total.Distance.Min, total.Distance.Max)
	}
	return out, total, nil
}
