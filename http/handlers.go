// Package http 提供API处理器
package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"textclf/classifier"
	"textclf/db"
	"textclf/logger"
	"textclf/ml"
)

// predictCache 预测结果缓存，按模型名和请求体哈希索引
// Invalidated whenever any model is refitted or reloaded.
var predictCache, _ = lru.New[string, []int](512)

// RegisterHandlers 注册所有API处理器
func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)

	// 模型API
	mux.HandleFunc("GET /api/models", handleModels)
	mux.HandleFunc("POST /api/predict/{model}", handlePredict)
	mux.HandleFunc("POST /api/train/{model}", handleTrain)
	mux.HandleFunc("GET /api/runs/{model}", handleRuns)

	// 事件流API
	mux.HandleFunc("GET /api/ws/events", handleEvents)
}

// SamplePayload 特征样本载荷
type SamplePayload struct {
	Samples [][]float64 `json:"samples"`
	Sparse  bool        `json:"sparse,omitempty"`
}

// batch 将载荷转换为特征批次
func (p SamplePayload) batch() (classifier.Batch, error) {
	if len(p.Samples) == 0 {
		return nil, classifier.ErrEmptyBatch
	}
	batch := make(classifier.Batch, 0, len(p.Samples))
	for i, row := range p.Samples {
		if len(row) == 0 {
			return nil, fmt.Errorf("sample %d has no features", i)
		}
		if p.Sparse {
			var ind []int
			var data []float64
			for j, v := range row {
				if v != 0 {
					ind = append(ind, j)
					data = append(data, v)
				}
			}
			batch = append(batch, sparse.NewVector(len(row), ind, data))
		} else {
			batch = append(batch, mat.NewVecDense(len(row), append([]float64(nil), row...)))
		}
	}
	return batch, nil
}

// TrainPayload 训练请求载荷
type TrainPayload struct {
	SamplePayload
	Labels  []int     `json:"labels"`
	Weights []float64 `json:"weights,omitempty"`
	Save    bool      `json:"save,omitempty"`
}

// ModelInfo 服务中的模型信息
type ModelInfo struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
	Trainable bool   `json:"trainable"`
	Artifact  string `json:"artifact,omitempty"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	served := ListServedModels()
	infos := make([]ModelInfo, 0, len(served))
	for _, m := range served {
		infos = append(infos, ModelInfo{
			Name:      m.Name,
			Algorithm: m.Algorithm,
			Trainable: m.Trainable(),
			Artifact:  m.ArtifactPath(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	respondJSON(w, map[string]interface{}{
		"models": infos,
		"count":  len(infos),
	})
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("model")
	model, ok := GetServedModel(name)
	if !ok {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read request body"}`, http.StatusBadRequest)
		return
	}

	sum := sha256.Sum256(body)
	cacheKey := name + ":" + hex.EncodeToString(sum[:])
	if labels, ok := predictCache.Get(cacheKey); ok {
		respondJSON(w, map[string]interface{}{
			"model":  name,
			"labels": labels,
			"cached": true,
		})
		return
	}

	var payload SamplePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	batch, err := payload.batch()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	labels, err := model.Predict(batch)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, statusForError(err))
		return
	}

	predictCache.Add(cacheKey, labels)
	respondJSON(w, map[string]interface{}{
		"model":  name,
		"labels": labels,
		"cached": false,
	})
}

func handleTrain(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("model")
	model, ok := GetServedModel(name)
	if !ok {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		return
	}
	if !model.Trainable() {
		http.Error(w, `{"error":"model is configured for inference only"}`, http.StatusConflict)
		return
	}

	var payload TrainPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	batch, err := payload.batch()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	if len(payload.Labels) != len(batch) {
		http.Error(w, `{"error":"labels must match samples"}`, http.StatusBadRequest)
		return
	}

	start := time.Now()
	if err := model.Train(batch, payload.Labels, payload.Weights, payload.Save); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, statusForError(err))
		return
	}
	duration := time.Since(start)

	recordTrainingRun(model, batch, payload.Labels, duration)
	PublishEvent(Event{
		Type:   EventTrained,
		Model:  name,
		Detail: fmt.Sprintf("%d samples", len(batch)),
	})

	respondJSON(w, map[string]interface{}{
		"model":       name,
		"status":      "trained",
		"samples":     len(batch),
		"duration_ms": duration.Milliseconds(),
	})
}

// recordTrainingRun 记录训练历史，数据库未打开时跳过
func recordTrainingRun(model *ServedModel, batch classifier.Batch, labels []int, duration time.Duration) {
	if !db.Ready() {
		return
	}

	classes := make(map[int]struct{})
	for _, y := range labels {
		classes[y] = struct{}{}
	}

	run := &db.TrainingRun{
		ModelName:    model.Name,
		Algorithm:    model.Algorithm,
		Samples:      len(batch),
		FeatureDim:   batch[0].Len(),
		Classes:      len(classes),
		DurationMS:   duration.Milliseconds(),
		ArtifactPath: model.ArtifactPath(),
	}
	if err := db.SaveTrainingRun(run); err != nil {
		logger.With("http").Warnf("recording training run: %v", err)
	}
}

func handleRuns(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("model")

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}

	runs, err := db.ListTrainingRuns(name, limit)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"model": name,
		"runs":  runs,
		"count": len(runs),
	})
}

func handleEvents(w http.ResponseWriter, r *http.Request) {
	startEventHub()
	hub.serveWS(w, r)
}

// statusForError 将分类器错误映射为HTTP状态码
func statusForError(err error) int {
	switch {
	case errors.Is(err, classifier.ErrEmptyBatch),
		errors.Is(err, classifier.ErrUnsupportedVector):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrNotFitted):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.With("http").Warnf("encoding response: %v", err)
	}
}
