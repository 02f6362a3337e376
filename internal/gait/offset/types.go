package offset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidAxis is returned when an axis index is outside {Roll, Pitch, Course}.
	ErrInvalidAxis = errors.New("invalid axis")
	// ErrMalformedFrame is returned when a raw frame has the wrong width or
	// carries non-finite angles.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Axis selects one of the three orientation angles of a sensor reading.
type Axis int

const (
	Roll Axis = iota
	Pitch
	Course
)

func (a Axis) String() string {
	switch a {
	case Roll:
		return "roll"
	case Pitch:
		return "pitch"
	case Course:
		return "course"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Valid reports whether a is one of the three known axes.
func (a Axis) Valid() bool {
	return a >= Roll && a <= Course
}

// ParseAxis maps "roll", "pitch" or "course" (case-insensitive) to an Axis.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "roll":
		return Roll, nil
	case "pitch":
		return Pitch, nil
	case "course":
		return Course, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAxis, s)
}

// ReverseAxis returns the axis used as the orthogonal term of the
// horizontal projection. Pitch maps to Roll; Roll and Course both map to
// Pitch.
func ReverseAxis(a Axis) Axis {
	if a == Pitch {
		return Roll
	}
	return Pitch
}

// AxisSample holds the three orientation angles of one reading, in degrees.
type AxisSample struct {
	Roll   float64
	Pitch  float64
	Course float64
}

// At returns the angle for axis a. ok is false for an invalid axis.
func (s AxisSample) At(a Axis) (v float64, ok bool) {
	switch a {
	case Roll:
		return s.Roll, true
	case Pitch:
		return s.Pitch, true
	case Course:
		return s.Course, true
	}
	return 0, false
}

// Mirrored returns s with roll and course negated, which maps a right-side
// reading into the left-side frame of reference.
func (s AxisSample) Mirrored() AxisSample {
	return AxisSample{Roll: -s.Roll, Pitch: s.Pitch, Course: -s.Course}
}

// Segment identifies one instrumented body point.
type Segment int

const (
	Chest Segment = iota
	LeftShank
	LeftThigh
	RightShank
	RightThigh
)

func (s Segment) String() string {
	switch s {
	case Chest:
		return "chest"
	case LeftShank:
		return "l_shank"
	case LeftThigh:
		return "l_thigh"
	case RightShank:
		return "r_shank"
	case RightThigh:
		return "r_thigh"
	default:
		return fmt.Sprintf("segment(%d)", int(s))
	}
}

// Raw frame layout: three angles per body point in roll, pitch, course order.
const (
	channelLeftShank  = 0
	channelRightShank = 3
	channelLeftThigh  = 6
	channelRightThigh = 9
	channelChest      = 12

	// FrameWidth is the number of raw angle values in one frame.
	FrameWidth = 15
)

// BodyLengths carries the segment lengths used to scale projections.
type BodyLengths struct {
	Chest float64
	Shank float64
	Thigh float64
}

// DefaultBodyLengths returns unit lengths for every segment.
func DefaultBodyLengths() BodyLengths {
	return BodyLengths{Chest: 1, Shank: 1, Thigh: 1}
}

// BodySegmentSpec describes how one segment is read out of a raw frame.
type BodySegmentSpec struct {
	Segment Segment
	Channel int     // first raw column of the roll/pitch/course triple
	Length  float64 // segment length
	Mirror  bool    // negate roll and course before projecting
}

// Sample extracts the segment's angles from a raw frame, applying mirroring.
// The caller guarantees len(frame) >= FrameWidth.
func (b BodySegmentSpec) Sample(frame []float64) AxisSample {
	s := AxisSample{
		Roll:   frame[b.Channel],
		Pitch:  frame[b.Channel+1],
		Course: frame[b.Channel+2],
	}
	if b.Mirror {
		return s.Mirrored()
	}
	return s
}

// BodySegments returns the five segment specs in output order: chest, left
// shank, left thigh, right shank, right thigh.
func BodySegments(l BodyLengths) [5]BodySegmentSpec {
	return [5]BodySegmentSpec{
		{Segment: Chest, Channel: channelChest, Length: l.Chest},
		{Segment: LeftShank, Channel: channelLeftShank, Length: l.Shank},
		{Segment: LeftThigh, Channel: channelLeftThigh, Length: l.Thigh},
		{Segment: RightShank, Channel: channelRightShank, Length: l.Shank, Mirror: true},
		{Segment: RightThigh, Channel: channelRightThigh, Length: l.Thigh, Mirror: true},
	}
}

// AxisSelection picks the projection axis for the chest (Primary) and for
// the leg segments (Secondary).
type AxisSelection struct {
	Primary   Axis
	Secondary Axis
}

// DefaultAxisSelection projects the chest on roll and the legs on pitch.
func DefaultAxisSelection() AxisSelection {
	return AxisSelection{Primary: Roll, Secondary: Pitch}
}

// Validate checks both axes.
func (a AxisSelection) Validate() error {
	if !a.Primary.Valid() {
		return fmt.Errorf("primary: %w: %d", ErrInvalidAxis, int(a.Primary))
	}
	if !a.Secondary.Valid() {
		return fmt.Errorf("secondary: %w: %d", ErrInvalidAxis, int(a.Secondary))
	}
	return nil
}

func (a AxisSelection) axisFor(s Segment) Axis {
	if s == Chest {
		return a.Primary
	}
	return a.Secondary
}

// Layout selects the feature vector produced per frame.
type Layout int

const (
	// Aggregated emits one vertical and one horizontal value per limb group
	// (chest, left leg, right leg).
	Aggregated Layout = iota
	// JointWise emits one vertical and one horizontal value per segment.
	JointWise
)

var (
	aggregatedColumns = []string{
		"vertical_c", "vertical_l", "vertical_r",
		"horizontal_c", "horizontal_l", "horizontal_r",
	}
	jointColumns = []string{
		"vertical_c", "vertical_l_shank", "vertical_l_thigh", "vertical_r_shank", "vertical_r_thigh",
		"horizontal_c", "horizontal_l_shank", "horizontal_l_thigh", "horizontal_r_shank", "horizontal_r_thigh",
	}
)

func (l Layout) String() string {
	switch l {
	case Aggregated:
		return "aggregated"
	case JointWise:
		return "joint"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// ParseLayout accepts "aggregated" or "joint" ("joint-wise" and "jointwise"
// are aliases).
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aggregated", "":
		return Aggregated, nil
	case "joint", "joint-wise", "jointwise":
		return JointWise, nil
	}
	return 0, fmt.Errorf("unknown layout %q: expected aggregated or joint", s)
}

// Columns returns a copy of the column names for the layout.
func (l Layout) Columns() []string {
	var src []string
	if l == JointWise {
		src = jointColumns
	} else {
		src = aggregatedColumns
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Width returns the number of features per frame for the layout.
func (l Layout) Width() int {
	if l == JointWise {
		return len(jointColumns)
	}
	return len(aggregatedColumns)
}
