package http

import (
	"errors"
	"sync"

	"textclf/classifier"
	"textclf/logger"
)

// ServedModel 对外服务的分类器实例
// Adapters carry no locking of their own, so the served wrapper owns a
// RWMutex: predictions share it, refits and reloads take it exclusively.
type ServedModel struct {
	Name      string
	Algorithm string

	mu      sync.RWMutex
	clf     classifier.Classifier
	watcher *classifier.Watcher
}

func NewServedModel(name, algorithm string, clf classifier.Classifier) *ServedModel {
	return &ServedModel{Name: name, Algorithm: algorithm, clf: clf}
}

func (m *ServedModel) Predict(batch classifier.Batch) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clf.Predict(batch)
}

// Train refits the classifier and optionally persists it, atomically with
// respect to concurrent predictions. The prediction cache is invalidated.
func (m *ServedModel) Train(batch classifier.Batch, labels []int, weights []float64, save bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.clf.Fit(batch, labels, weights); err != nil {
		return err
	}
	predictCache.Purge()
	if save {
		if err := m.clf.Save(""); err != nil {
			return err
		}
	}
	return nil
}

// Reload restores the classifier from its configured artifact.
func (m *ServedModel) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.clf.Load(); err != nil {
		return err
	}
	predictCache.Purge()
	return nil
}

func (m *ServedModel) Trainable() bool {
	return m.clf.Config().Trainable()
}

// ArtifactPath returns where the served model persists itself.
func (m *ServedModel) ArtifactPath() string {
	cfg := m.clf.Config()
	if cfg.SavePath != "" {
		return cfg.SavePath
	}
	return cfg.LoadPath
}

// WatchArtifact hot-reloads the model whenever its load path artifact
// changes on disk.
func (m *ServedModel) WatchArtifact() error {
	path := m.clf.Config().LoadPath
	if path == "" {
		return errors.New("no load path to watch")
	}
	w, err := classifier.Watch(path, func() {
		if err := m.Reload(); err != nil {
			logger.With("serving").Errorw("reload failed", "model", m.Name, "error", err)
			return
		}
		logger.With("serving").Infow("model reloaded", "model", m.Name, "artifact", path)
		PublishEvent(Event{Type: EventReloaded, Model: m.Name, Detail: path})
	})
	if err != nil {
		return err
	}
	m.watcher = w
	return nil
}

// Close stops the artifact watcher if one is running.
func (m *ServedModel) Close() {
	if m.watcher != nil {
		m.watcher.Close()
		m.watcher = nil
	}
}

var (
	servingMu sync.RWMutex
	serving   = map[string]*ServedModel{}
)

// AddServedModel exposes a model on the API, replacing any model of the
// same name.
func AddServedModel(m *ServedModel) {
	servingMu.Lock()
	defer servingMu.Unlock()
	serving[m.Name] = m
}

// GetServedModel looks up a served model by name.
func GetServedModel(name string) (*ServedModel, bool) {
	servingMu.RLock()
	defer servingMu.RUnlock()
	m, ok := serving[name]
	return m, ok
}

// ListServedModels returns the current serving set.
func ListServedModels() []*ServedModel {
	servingMu.RLock()
	defer servingMu.RUnlock()
	models := make([]*ServedModel, 0, len(serving))
	for _, m := range serving {
		models = append(models, m)
	}
	return models
}

// ResetServing clears the serving set and prediction cache. Used by
// shutdown and tests.
func ResetServing() {
	servingMu.Lock()
	defer servingMu.Unlock()
	for _, m := range serving {
		m.Close()
	}
	serving = map[string]*ServedModel{}
	predictCache.Purge()
}
