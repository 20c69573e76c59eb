package dataset

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"textclf/classifier"
)

func TestFiniteValuesRule(t *testing.T) {
	rule := NewFiniteValuesRule()

	tests := []struct {
		name    string
		values  []float64
		wantErr bool
	}{
		{name: "valid sample", values: []float64{0.1, 0.2, 0.3}, wantErr: false},
		{name: "nan feature", values: []float64{0.1, math.NaN(), 0.3}, wantErr: true},
		{name: "positive infinity", values: []float64{math.Inf(1), 0.2, 0.3}, wantErr: true},
		{name: "negative infinity", values: []float64{0.1, 0.2, math.Inf(-1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rule.Apply(mat.NewVecDense(len(tt.values), tt.values), 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("FiniteValuesRule.Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValueRangeRule(t *testing.T) {
	rule := NewValueRangeRule()

	tests := []struct {
		name    string
		values  []float64
		wantErr bool
	}{
		{name: "valid sample", values: []float64{1e3, -1e6, 0}, wantErr: false},
		{name: "huge positive", values: []float64{1e13, 0}, wantErr: true},
		{name: "huge negative", values: []float64{0, -1e13}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rule.Apply(mat.NewVecDense(len(tt.values), tt.values), 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValueRangeRule.Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDuplicateDetectionRule(t *testing.T) {
	rule := NewDuplicateDetectionRule()
	sample := mat.NewVecDense(2, []float64{0.5, 0.25})

	t.Run("first sample", func(t *testing.T) {
		if err := rule.Apply(sample, 1); err != nil {
			t.Errorf("first sample should pass, got error: %v", err)
		}
	})

	t.Run("duplicate sample", func(t *testing.T) {
		if err := rule.Apply(mat.NewVecDense(2, []float64{0.5, 0.25}), 1); err == nil {
			t.Error("duplicate sample should return error")
		}
	})

	t.Run("same features different label", func(t *testing.T) {
		if err := rule.Apply(mat.NewVecDense(2, []float64{0.5, 0.25}), 2); err != nil {
			t.Errorf("different label should pass, got error: %v", err)
		}
	})
}

func TestCleanerClean(t *testing.T) {
	cleaner := NewCleaner()

	batch := classifier.Batch{
		mat.NewVecDense(2, []float64{0.1, 0.2}),
		mat.NewVecDense(2, []float64{math.NaN(), 0.5}),
		mat.NewVecDense(2, []float64{0.3, 0.4}),
	}
	labels := []int{0, 1, 1}

	cleaned, kept, issues := cleaner.Clean(batch, labels)

	if len(cleaned) != 2 || len(kept) != 2 {
		t.Fatalf("expected 2 surviving samples, got %d", len(cleaned))
	}
	if kept[0] != 0 || kept[1] != 1 {
		t.Fatalf("labels not kept parallel: %v", kept)
	}
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues))
	}
	if issues[0].Rule != "finite_values" || issues[0].Sample != 1 {
		t.Fatalf("unexpected issue: %+v", issues[0])
	}

	stats := cleaner.Stats()
	if stats.TotalProcessed != 3 || stats.Passed != 2 || stats.Rejected != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Issues["finite_values"] != 1 {
		t.Fatalf("issue counter not recorded: %+v", stats.Issues)
	}
	if stats.LastClean.IsZero() {
		t.Fatal("LastClean not set")
	}
}

func TestCleanerCustomRule(t *testing.T) {
	cleaner := NewCleaner()
	cleaner.AddRule(NewDuplicateDetectionRule())

	batch := classifier.Batch{
		mat.NewVecDense(2, []float64{1, 2}),
		mat.NewVecDense(2, []float64{1, 2}),
	}
	cleaned, _, issues := cleaner.Clean(batch, []int{0, 0})

	if len(cleaned) != 1 {
		t.Fatalf("expected 1 surviving sample, got %d", len(cleaned))
	}
	if len(issues) != 1 || issues[0].Rule != "duplicate_detection" {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}
