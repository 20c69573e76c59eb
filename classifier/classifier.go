// Package classifier wraps the ml models behind a uniform train, infer
// and persist contract. Adapters are built from a Config, restore their
// artifact at construction when a load path is set, and otherwise start
// from default hyperparameters.
package classifier

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"textclf/logger"
	"textclf/ml"
)

// Classifier is the uniform surface over every adapted model. Adapters
// carry no internal locking; callers serialize Fit/Load against Predict.
type Classifier interface {
	// Fit trains on a stacked batch. sampleWeight is accepted for
	// call-site compatibility and not forwarded; training is unweighted.
	Fit(batch Batch, y []int, sampleWeight []float64) error
	Predict(batch Batch) ([]int, error)
	// Save writes the model artifact to path, or to the configured
	// save path when path is empty.
	Save(path string) error
	// Load restores the model from the configured load path, falling
	// back to a fresh default model when none is available.
	Load() error
	Model() ml.Model
	Config() Config
}

// estimator carries the fit, predict and persistence plumbing shared by
// the adapters. fresh builds the default model used when no artifact is
// available and as the decode target when one is.
type estimator struct {
	cfg   Config
	name  string
	fresh func() ml.Model
	model ml.Model
}

func (e *estimator) Fit(batch Batch, y []int, sampleWeight []float64) error {
	if e.model == nil {
		return fmt.Errorf("%s fit: %w", e.name, ErrNoModel)
	}
	x, err := Stack(batch)
	if err != nil {
		return fmt.Errorf("%s fit: %w", e.name, err)
	}
	if len(y) != len(batch) {
		return fmt.Errorf("%s fit: %d samples but %d labels", e.name, len(batch), len(y))
	}
	_ = sampleWeight
	if err := e.model.Fit(x, y); err != nil {
		return fmt.Errorf("%s fit: %w", e.name, err)
	}
	return nil
}

func (e *estimator) Predict(batch Batch) ([]int, error) {
	if e.model == nil {
		return nil, fmt.Errorf("%s predict: %w", e.name, ErrNoModel)
	}
	x, err := Stack(batch)
	if err != nil {
		return nil, fmt.Errorf("%s predict: %w", e.name, err)
	}
	labels, err := e.model.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("%s predict: %w", e.name, err)
	}
	return labels, nil
}

func (e *estimator) Save(path string) error {
	if e.model == nil {
		return fmt.Errorf("%s save: %w", e.name, ErrNoModel)
	}
	if path == "" {
		path = e.cfg.SavePath
	}
	if path == "" {
		return fmt.Errorf("%s save: %w: no save path configured", e.name, ErrBadSavePath)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%s save: %w: %v", e.name, ErrBadSavePath, err)
	}
	if info, err := os.Stat(filepath.Dir(abs)); err != nil || !info.IsDir() {
		return fmt.Errorf("%s save: %w: parent of %s is not a directory", e.name, ErrBadSavePath, abs)
	}

	data, err := e.model.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%s save: %w", e.name, err)
	}
	logger.With("classifier").Infof("saving %s model to %s", e.name, abs)
	if err := os.WriteFile(abs, data, 0o600); err != nil {
		return fmt.Errorf("%s save: %w", e.name, err)
	}
	return nil
}

func (e *estimator) Load() error {
	if e.cfg.LoadPath == "" {
		logger.With("classifier").Warnf("no load path provided for %s, initializing from scratch", e.name)
		e.model = e.fresh()
		return nil
	}
	data, err := os.ReadFile(e.cfg.LoadPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.With("classifier").Warnf("no artifact at %s, initializing %s from scratch", e.cfg.LoadPath, e.name)
		e.model = e.fresh()
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s load: %w", e.name, err)
	}

	model := e.fresh()
	if err := model.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("%s load %s: %w", e.name, e.cfg.LoadPath, err)
	}
	logger.With("classifier").Infof("loading %s model from %s", e.name, e.cfg.LoadPath)
	e.model = model
	return nil
}

func (e *estimator) Model() ml.Model { return e.model }

func (e *estimator) Config() Config { return e.cfg }
