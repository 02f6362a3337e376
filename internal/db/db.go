// Package db stores training runs, validation results and live detections
// in SQLite.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Validation kinds.
const (
	KindInDistribution = "in_distribution"
	KindKnownAnomalies = "known_anomalies"
	KindExport         = "export"
)

type DB struct {
	*sql.DB
}

// OpenDB opens the database without touching the schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and
	// serialises writers.
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	return &DB{sqlDB}, nil
}

// NewDB opens the database at path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9)).UTC()
}

// TrainingRun describes one call to train.
type TrainingRun struct {
	RunID          string
	CreatedAt      time.Time
	Layout         string
	FeatureCount   int
	Rows           int
	Kernel         string
	Nu             float64
	Gamma          float64
	Folds          int
	Accuracy       float64
	SupportVectors int
	Rho            float64
	ModelPath      string
	ScalerPath     string
}

// RecordTrainingRun inserts r, assigning RunID and CreatedAt when unset.
func (db *DB) RecordTrainingRun(r *TrainingRun) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO training_runs (
			run_id, created_at, layout, feature_count, rows, kernel, nu, gamma,
			folds, accuracy, support_vectors, rho, model_path, scaler_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, unixSeconds(r.CreatedAt), r.Layout, r.FeatureCount, r.Rows, r.Kernel, r.Nu, r.Gamma,
		r.Folds, r.Accuracy, r.SupportVectors, r.Rho, r.ModelPath, r.ScalerPath,
	)
	if err != nil {
		return fmt.Errorf("failed to insert training run: %w", err)
	}
	return nil
}

const trainingRunColumns = `run_id, created_at, layout, feature_count, rows, kernel, nu, gamma,
	folds, accuracy, support_vectors, rho, COALESCE(model_path, ''), COALESCE(scaler_path, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrainingRun(s scanner) (TrainingRun, error) {
	var r TrainingRun
	var created float64
	err := s.Scan(&r.RunID, &created, &r.Layout, &r.FeatureCount, &r.Rows, &r.Kernel, &r.Nu, &r.Gamma,
		&r.Folds, &r.Accuracy, &r.SupportVectors, &r.Rho, &r.ModelPath, &r.ScalerPath)
	r.CreatedAt = fromUnixSeconds(created)
	return r, err
}

// TrainingRuns returns every training run, newest first.
func (db *DB) TrainingRuns() ([]TrainingRun, error) {
	rows, err := db.Query(`SELECT ` + trainingRunColumns + ` FROM training_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		r, err := scanTrainingRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// TrainingRun looks up one run by id.
func (db *DB) TrainingRun(runID string) (*TrainingRun, error) {
	r, err := scanTrainingRun(db.QueryRow(`SELECT `+trainingRunColumns+` FROM training_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("training run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestTrainingRun returns the most recent run.
func (db *DB) LatestTrainingRun() (*TrainingRun, error) {
	r, err := scanTrainingRun(db.QueryRow(`SELECT ` + trainingRunColumns + ` FROM training_runs ORDER BY created_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("training run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ValidationRun is one accuracy measurement against a dataset.
type ValidationRun struct {
	ValidationID string
	RunID        string // optional
	CreatedAt    time.Time
	Dataset      string
	Kind         string
	Rows         int
	Accuracy     float64
}

// RecordValidationRun inserts v, assigning ValidationID and CreatedAt when
// unset.
func (db *DB) RecordValidationRun(v *ValidationRun) error {
	switch v.Kind {
	case KindInDistribution, KindKnownAnomalies, KindExport:
	default:
		return fmt.Errorf("unknown validation kind %q", v.Kind)
	}
	if v.ValidationID == "" {
		v.ValidationID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	var runID sql.NullString
	if v.RunID != "" {
		runID = sql.NullString{String: v.RunID, Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO validation_runs (validation_id, run_id, created_at, dataset, kind, rows, accuracy)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ValidationID, runID, unixSeconds(v.CreatedAt), v.Dataset, v.Kind, v.Rows, v.Accuracy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert validation run: %w", err)
	}
	return nil
}

// ValidationRuns returns the validations recorded for runID, oldest first.
// An empty runID returns validations not tied to a training run.
func (db *DB) ValidationRuns(runID string) ([]ValidationRun, error) {
	rows, err := db.Query(`
		SELECT validation_id, COALESCE(run_id, ''), created_at, dataset, kind, rows, accuracy
		FROM validation_runs
		WHERE COALESCE(run_id, '') = ?
		ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValidationRun
	for rows.Next() {
		var v ValidationRun
		var created float64
		if err := rows.Scan(&v.ValidationID, &v.RunID, &created, &v.Dataset, &v.Kind, &v.Rows, &v.Accuracy); err != nil {
			return nil, err
		}
		v.CreatedAt = fromUnixSeconds(created)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Detection is one live classification.
type Detection struct {
	ID            int64
	SessionID     string
	RecordedAt    time.Time
	Label         float64
	DecisionValue float64
	Features      []float64
}

// RecordDetection inserts d and sets its ID.
func (db *DB) RecordDetection(d *Detection) error {
	if d.RecordedAt.IsZero() {
		d.RecordedAt = time.Now().UTC()
	}
	features, err := json.Marshal(d.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	res, err := db.Exec(`
		INSERT INTO live_detections (session_id, recorded_at, label, decision_value, features_json)
		VALUES (?, ?, ?, ?, ?)`,
		d.SessionID, unixSeconds(d.RecordedAt), d.Label, d.DecisionValue, string(features),
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

// RecentDetections returns up to limit detections for sessionID, newest
// first.
func (db *DB) RecentDetections(sessionID string, limit int) ([]Detection, error) {
	rows, err := db.Query(`
		SELECT detection_id, session_id, recorded_at, label, decision_value, features_json
		FROM live_detections
		WHERE session_id = ?
		ORDER BY recorded_at DESC, detection_id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Detection
	for rows.Next() {
		var d Detection
		var recorded float64
		var features string
		if err := rows.Scan(&d.ID, &d.SessionID, &recorded, &d.Label, &d.DecisionValue, &features); err != nil {
			return nil, err
		}
		d.RecordedAt = fromUnixSeconds(recorded)
		if err := json.Unmarshal([]byte(features), &d.Features); err != nil {
			return nil, fmt.Errorf("detection %d: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DetectionSummary counts normal and anomalous detections for a session.
type DetectionSummary struct {
	SessionID string `json:"session_id"`
	Normal    int    `json:"normal"`
	Anomalous int    `json:"anomalous"`
}

// SummarizeDetections counts the labels recorded for sessionID.
func (db *DB) SummarizeDetections(sessionID string) (DetectionSummary, error) {
	s := DetectionSummary{SessionID: sessionID}
	err := db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN label > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN label <= 0 THEN 1 ELSE 0 END), 0)
		FROM live_detections WHERE session_id = ?`, sessionID).Scan(&s.Normal, &s.Anomalous)
	return s, err
}
