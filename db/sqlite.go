package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cardioserve/ml"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a prediction id does not exist.
var ErrNotFound = errors.New("prediction not found")

// PredictionRecord is one served prediction: the request attributes plus the
// outcome. Rows are written once and never updated.
type PredictionRecord struct {
	ID        int64  `json:"id"`
	RequestID string `json:"request_id"`
	ml.PatientRecord
	Prediction  string    `json:"prediction"`
	ClassIndex  int       `json:"class_index"`
	Probability float64   `json:"probability"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists prediction history in a local SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	// sqlite serializes writers anyway
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS heart_predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        request_id TEXT NOT NULL,
        age INTEGER NOT NULL,
        sex TEXT NOT NULL,
        chest_pain_type TEXT NOT NULL,
        resting_bp INTEGER NOT NULL,
        cholesterol INTEGER NOT NULL,
        fasting_bs INTEGER NOT NULL,
        resting_ecg TEXT NOT NULL,
        max_hr INTEGER NOT NULL,
        exercise_angina TEXT NOT NULL,
        oldpeak REAL NOT NULL,
        st_slope TEXT NOT NULL,
        prediction TEXT NOT NULL,
        class_index INTEGER NOT NULL,
        probability REAL NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_heart_predictions_created ON heart_predictions(created_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{db: database}, nil
}

// SavePrediction inserts rec and sets its ID. A zero CreatedAt is set to now.
func (s *Store) SavePrediction(ctx context.Context, rec *PredictionRecord) error {
	if rec == nil {
		return errors.New("nil prediction record")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
        INSERT INTO heart_predictions (
            request_id, age, sex, chest_pain_type, resting_bp, cholesterol,
            fasting_bs, resting_ecg, max_hr, exercise_angina, oldpeak, st_slope,
            prediction, class_index, probability, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Age, rec.Sex, rec.ChestPainType, rec.RestingBP, rec.Cholesterol,
		rec.FastingBS, rec.RestingECG, rec.MaxHR, rec.ExerciseAngina, rec.Oldpeak, rec.ST_Slope,
		rec.Prediction, rec.ClassIndex, rec.Probability, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	rec.ID = id
	return nil
}

const selectPrediction = `
        SELECT id, request_id, age, sex, chest_pain_type, resting_bp, cholesterol,
               fasting_bs, resting_ecg, max_hr, exercise_angina, oldpeak, st_slope,
               prediction, class_index, probability, created_at
        FROM heart_predictions`

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row scanner) (PredictionRecord, error) {
	var rec PredictionRecord
	err := row.Scan(&rec.ID, &rec.RequestID, &rec.Age, &rec.Sex, &rec.ChestPainType,
		&rec.RestingBP, &rec.Cholesterol, &rec.FastingBS, &rec.RestingECG, &rec.MaxHR,
		&rec.ExerciseAngina, &rec.Oldpeak, &rec.ST_Slope,
		&rec.Prediction, &rec.ClassIndex, &rec.Probability, &rec.CreatedAt)
	return rec, err
}

// ListPredictions returns up to limit records, most recent first.
func (s *Store) ListPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectPrediction+`
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetPrediction returns the record with the given id, or ErrNotFound.
func (s *Store) GetPrediction(ctx context.Context, id int64) (*PredictionRecord, error) {
	rec, err := scanPrediction(s.db.QueryRowContext(ctx, selectPrediction+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountPredictions returns the number of stored predictions.
func (s *Store) CountPredictions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM heart_predictions").Scan(&count)
	return count, err
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
