// Package offset turns raw body-worn orientation readings into gait
// displacement features.
//
// Each frame carries roll/pitch/course angles (degrees) for five body
// points: chest, left/right shank and left/right thigh. Every segment is
// projected onto a vertical and a horizontal displacement using its length
// and the configured axis selection, then emitted either per limb group
// (Aggregated, 6 columns) or per joint (JointWise, 10 columns).
//
// Key types: AxisSample, BodySegmentSpec, Pipeline.
//
// No file or database code lives here; dataset I/O belongs to
// internal/dataset.
package offset
