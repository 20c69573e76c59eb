package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/james-bowman/sparse"

	"textclf/classifier"
	"textclf/db"
	"textclf/ml"
)

func TestMain(m *testing.M) {
	// Setup
	dbPath := "./test.db"
	if err := db.InitDB(dbPath); err != nil {
		panic(err)
	}

	code := m.Run()

	// Teardown
	db.CloseDB()
	os.Remove(dbPath)
	os.Exit(code)
}

type fakeClassifier struct {
	cfg          classifier.Config
	labels       []int
	fitCalls     int
	predictCalls int
	saveCalls    int
	loadCalls    int
	lastBatch    classifier.Batch
	lastWeights  []float64
	fitErr       error
	predictErr   error
}

func (f *fakeClassifier) Fit(batch classifier.Batch, y []int, sampleWeight []float64) error {
	f.fitCalls++
	f.lastBatch = batch
	f.lastWeights = sampleWeight
	return f.fitErr
}

func (f *fakeClassifier) Predict(batch classifier.Batch) ([]int, error) {
	f.predictCalls++
	f.lastBatch = batch
	if f.predictErr != nil {
		return nil, f.predictErr
	}
	if f.labels != nil {
		return f.labels, nil
	}
	return make([]int, len(batch)), nil
}

func (f *fakeClassifier) Save(path string) error { f.saveCalls++; return nil }

func (f *fakeClassifier) Load() error { f.loadCalls++; return nil }

func (f *fakeClassifier) Model() ml.Model { return nil }

func (f *fakeClassifier) Config() classifier.Config { return f.cfg }

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	ResetServing()
	t.Cleanup(ResetServing)

	mux := http.NewServeMux()
	RegisterHandlers(mux)
	return mux
}

func doJSON(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(handleHealth).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status: %q", payload["status"])
	}
}

func TestPredictHandler(t *testing.T) {
	mux := newTestMux(t)
	fake := &fakeClassifier{labels: []int{1, 0}}
	AddServedModel(NewServedModel("clf", "logistic_regression", fake))

	w := doJSON(mux, http.MethodPost, "/api/predict/clf", `{"samples":[[0.1,0.2],[0.9,0.8]]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Model  string `json:"model"`
		Labels []int  `json:"labels"`
		Cached bool   `json:"cached"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Model != "clf" || resp.Cached {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Labels) != 2 || resp.Labels[0] != 1 || resp.Labels[1] != 0 {
		t.Fatalf("unexpected labels: %v", resp.Labels)
	}
	if fake.predictCalls != 1 {
		t.Fatalf("expected 1 predict call, got %d", fake.predictCalls)
	}
}

func TestPredictHandlerUnknownModel(t *testing.T) {
	mux := newTestMux(t)

	w := doJSON(mux, http.MethodPost, "/api/predict/nope", `{"samples":[[1,2]]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPredictHandlerEmptyBatch(t *testing.T) {
	mux := newTestMux(t)
	AddServedModel(NewServedModel("clf", "logistic_regression", &fakeClassifier{}))

	w := doJSON(mux, http.MethodPost, "/api/predict/clf", `{"samples":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPredictHandlerNotFitted(t *testing.T) {
	mux := newTestMux(t)
	fake := &fakeClassifier{predictErr: ml.ErrNotFitted}
	AddServedModel(NewServedModel("clf", "logistic_regression", fake))

	w := doJSON(mux, http.MethodPost, "/api/predict/clf", `{"samples":[[1,2]]}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPredictHandlerSparsePayload(t *testing.T) {
	mux := newTestMux(t)
	fake := &fakeClassifier{}
	AddServedModel(NewServedModel("clf", "support_vector_classifier", fake))

	w := doJSON(mux, http.MethodPost, "/api/predict/clf", `{"samples":[[0,0.5,0,1]],"sparse":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(fake.lastBatch) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(fake.lastBatch))
	}
	vec, ok := fake.lastBatch[0].(*sparse.Vector)
	if !ok {
		t.Fatalf("expected sparse vector, got %T", fake.lastBatch[0])
	}
	if vec.Len() != 4 || vec.NNZ() != 2 {
		t.Fatalf("unexpected vector: len=%d nnz=%d", vec.Len(), vec.NNZ())
	}
}

func TestPredictHandlerCaching(t *testing.T) {
	mux := newTestMux(t)
	fake := &fakeClassifier{labels: []int{1}}
	AddServedModel(NewServedModel("clf", "random_forest", fake))

	body := `{"samples":[[0.3,0.7]]}`
	first := doJSON(mux, http.MethodPost, "/api/predict/clf", body)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}
	second := doJSON(mux, http.MethodPost, "/api/predict/clf", body)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", second.Code)
	}

	var resp struct {
		Labels []int `json:"labels"`
		Cached bool  `json:"cached"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Cached {
		t.Fatal("expected cached response")
	}
	if len(resp.Labels) != 1 || resp.Labels[0] != 1 {
		t.Fatalf("unexpected labels: %v", resp.Labels)
	}
	if fake.predictCalls != 1 {
		t.Fatalf("expected 1 predict call, got %d", fake.predictCalls)
	}
}

func TestTrainHandler(t *testing.T) {
	mux := newTestMux(t)
	fake := &fakeClassifier{}
	AddServedModel(NewServedModel("clf", "logistic_regression", fake))

	body := `{"samples":[[0.1,0.2],[0.9,0.8],[0.2,0.1],[0.8,0.9]],"labels":[0,1,0,1],"weights":[1,1,1,1],"save":true}`
	w := doJSON(mux, http.MethodPost, "/api/train/clf", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status  string `json:"status"`
		Samples int    `json:"samples"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Status != "trained" || resp.Samples != 4 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if fake.fitCalls != 1 {
		t.Fatalf("expected 1 fit call, got %d", fake.fitCalls)
	}
	if fake.saveCalls != 1 {
		t.Fatalf("expected 1 save call, got %d", fake.saveCalls)
	}
	if len(fake.lastWeights) != 4 {
		t.Fatalf("weights not forwarded: %v", fake.lastWeights)
	}
}

func TestTrainHandlerInferOnly(t *testing.T) {
	mux := newTestMux(t)
	fake := &fakeClassifier{cfg: classifier.Config{Mode: classifier.ModeInfer}}
	AddServedModel(NewServedModel("clf", "logistic_regression", fake))

	w := doJSON(mux, http.MethodPost, "/api/train/clf", `{"samples":[[1,2]],"labels":[0]}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if fake.fitCalls != 0 {
		t.Fatalf("expected no fit calls, got %d", fake.fitCalls)
	}
}

func TestTrainHandlerLabelMismatch(t *testing.T) {
	mux := newTestMux(t)
	AddServedModel(NewServedModel("clf", "logistic_regression", &fakeClassifier{}))

	w := doJSON(mux, http.MethodPost, "/api/train/clf", `{"samples":[[1,2],[3,4]],"labels":[0]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTrainHandlerInvalidatesCache(t *testing.T) {
	mux := newTestMux(t)
	fake := &fakeClassifier{labels: []int{0}}
	AddServedModel(NewServedModel("clf", "random_forest", fake))

	body := `{"samples":[[0.4,0.6]]}`
	doJSON(mux, http.MethodPost, "/api/predict/clf", body)

	train := doJSON(mux, http.MethodPost, "/api/train/clf", `{"samples":[[0.4,0.6]],"labels":[0]}`)
	if train.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", train.Code, train.Body.String())
	}

	w := doJSON(mux, http.MethodPost, "/api/predict/clf", body)
	var resp struct {
		Cached bool `json:"cached"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Cached {
		t.Fatal("cache not invalidated by training")
	}
	if fake.predictCalls != 2 {
		t.Fatalf("expected 2 predict calls, got %d", fake.predictCalls)
	}
}

func TestModelsHandler(t *testing.T) {
	mux := newTestMux(t)
	AddServedModel(NewServedModel("spam", "logistic_regression", &fakeClassifier{}))
	AddServedModel(NewServedModel("intent", "random_forest", &fakeClassifier{
		cfg: classifier.Config{Mode: classifier.ModeInfer, LoadPath: "/models/intent.bin"},
	}))

	w := doJSON(mux, http.MethodGet, "/api/models", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Models []ModelInfo `json:"models"`
		Count  int         `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Count != 2 || len(resp.Models) != 2 {
		t.Fatalf("unexpected count: %+v", resp)
	}
	if resp.Models[0].Name != "intent" || resp.Models[1].Name != "spam" {
		t.Fatalf("models not sorted by name: %+v", resp.Models)
	}
	if resp.Models[0].Trainable {
		t.Fatal("infer-only model reported trainable")
	}
	if resp.Models[0].Artifact != "/models/intent.bin" {
		t.Fatalf("unexpected artifact: %q", resp.Models[0].Artifact)
	}
}

func TestRunsHandler(t *testing.T) {
	mux := newTestMux(t)
	AddServedModel(NewServedModel("runs-clf", "random_forest", &fakeClassifier{}))

	train := doJSON(mux, http.MethodPost, "/api/train/runs-clf",
		`{"samples":[[0.1,0.2],[0.9,0.8],[0.2,0.1],[0.8,0.9]],"labels":[0,1,0,1]}`)
	if train.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", train.Code, train.Body.String())
	}

	w := doJSON(mux, http.MethodGet, "/api/runs/runs-clf", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Model string           `json:"model"`
		Runs  []db.TrainingRun `json:"runs"`
		Count int              `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Count != 1 || len(resp.Runs) != 1 {
		t.Fatalf("expected 1 run, got %+v", resp)
	}
	run := resp.Runs[0]
	if run.ModelName != "runs-clf" || run.Algorithm != "random_forest" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Samples != 4 || run.FeatureDim != 2 || run.Classes != 2 {
		t.Fatalf("unexpected run stats: %+v", run)
	}
}

func TestEventStream(t *testing.T) {
	mux := newTestMux(t)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the hub a moment to register the client.
	time.Sleep(100 * time.Millisecond)
	PublishEvent(Event{Type: EventTrained, Model: "ws-clf", Detail: "4 samples"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if ev.Type != EventTrained || ev.Model != "ws-clf" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("event timestamp not set")
	}
}

func TestSamplePayloadBatch(t *testing.T) {
	dense := SamplePayload{Samples: [][]float64{{1, 0, 2}, {0, 3, 0}}}
	batch, err := dense.batch()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 2 || batch[0].Len() != 3 {
		t.Fatalf("unexpected batch shape: %d x %d", len(batch), batch[0].Len())
	}

	sp := SamplePayload{Samples: [][]float64{{1, 0, 2}}, Sparse: true}
	batch, err = sp.batch()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vec, ok := batch[0].(*sparse.Vector)
	if !ok {
		t.Fatalf("expected sparse vector, got %T", batch[0])
	}
	if vec.NNZ() != 2 || vec.AtVec(2) != 2 {
		t.Fatalf("unexpected sparse vector: nnz=%d", vec.NNZ())
	}

	if _, err := (SamplePayload{}).batch(); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := (SamplePayload{Samples: [][]float64{{}}}).batch(); err == nil {
		t.Fatal("expected error for empty sample")
	}
}
