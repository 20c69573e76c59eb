package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(64) NOT NULL,
        algorithm VARCHAR(64) NOT NULL,
        samples INTEGER,
        feature_dim INTEGER,
        classes INTEGER,
        duration_ms INTEGER,
        artifact_path TEXT,
        trained_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS model_records (
        name VARCHAR(64) NOT NULL UNIQUE,
        algorithm VARCHAR(64) NOT NULL,
        artifact_path TEXT,
        updated_at DATETIME NOT NULL
    );
    `

	_, err = database.Exec(query)
	return err
}

// CloseDB closes the database handle.
func CloseDB() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// Ready reports whether InitDB has been called.
func Ready() bool {
	return database != nil
}

type TrainingRun struct {
	ID           int64     `json:"id"`
	ModelName    string    `json:"model_name"`
	Algorithm    string    `json:"algorithm"`
	Samples      int       `json:"samples"`
	FeatureDim   int       `json:"feature_dim"`
	Classes      int       `json:"classes"`
	DurationMS   int64     `json:"duration_ms"`
	ArtifactPath string    `json:"artifact_path"`
	TrainedAt    time.Time `json:"trained_at"`
}

// SaveTrainingRun records one training run and fills in the row id.
func SaveTrainingRun(run *TrainingRun) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if run.ModelName == "" {
		return errors.New("model name required")
	}
	if run.TrainedAt.IsZero() {
		run.TrainedAt = time.Now().UTC()
	}
	res, err := database.Exec(`
        INSERT INTO training_runs (
            model_name, algorithm, samples, feature_dim, classes,
            duration_ms, artifact_path, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `,
		run.ModelName,
		run.Algorithm,
		run.Samples,
		run.FeatureDim,
		run.Classes,
		run.DurationMS,
		run.ArtifactPath,
		run.TrainedAt,
	)
	if err != nil {
		return err
	}
	run.ID, err = res.LastInsertId()
	return err
}

// ListTrainingRuns returns recent runs, newest first, optionally filtered
// by model name.
func ListTrainingRuns(modelName string, limit int) ([]TrainingRun, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	if modelName == "" {
		rows, err = database.Query(`
            SELECT id, model_name, algorithm, samples, feature_dim, classes,
                   duration_ms, artifact_path, trained_at
            FROM training_runs
            ORDER BY trained_at DESC, id DESC
            LIMIT ?`, limit)
	} else {
		rows, err = database.Query(`
            SELECT id, model_name, algorithm, samples, feature_dim, classes,
                   duration_ms, artifact_path, trained_at
            FROM training_runs
            WHERE model_name = ?
            ORDER BY trained_at DESC, id DESC
            LIMIT ?`, modelName, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		if err := rows.Scan(&run.ID, &run.ModelName, &run.Algorithm, &run.Samples, &run.FeatureDim,
			&run.Classes, &run.DurationMS, &run.ArtifactPath, &run.TrainedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

type ModelRecord struct {
	Name         string    `json:"name"`
	Algorithm    string    `json:"algorithm"`
	ArtifactPath string    `json:"artifact_path"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpsertModelRecord inserts or refreshes the record of a served model.
func UpsertModelRecord(rec *ModelRecord) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if rec.Name == "" {
		return errors.New("model name required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := database.Exec(`
        INSERT OR REPLACE INTO model_records (name, algorithm, artifact_path, updated_at)
        VALUES (?, ?, ?, ?)
    `, rec.Name, rec.Algorithm, rec.ArtifactPath, rec.UpdatedAt)
	return err
}

// GetModelRecord returns the record for one model, or nil when absent.
func GetModelRecord(name string) (*ModelRecord, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	var rec ModelRecord
	err := database.QueryRow(`
        SELECT name, algorithm, artifact_path, updated_at
        FROM model_records
        WHERE name = ?`, name).Scan(&rec.Name, &rec.Algorithm, &rec.ArtifactPath, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListModelRecords returns every served model record.
func ListModelRecords() ([]ModelRecord, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := database.Query(`
        SELECT name, algorithm, artifact_path, updated_at
        FROM model_records
        ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]ModelRecord, 0)
	for rows.Next() {
		var rec ModelRecord
		if err := rows.Scan(&rec.Name, &rec.Algorithm, &rec.ArtifactPath, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
