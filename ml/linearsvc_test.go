package ml

import (
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestLinearSVCFitPredict(t *testing.T) {
	x, y := toyBinary()
	model := NewLinearSVC()
	if err := model.Fit(x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := model.Predict(x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkLabels(t, got, y)

	probe := mat.NewDense(2, 2, []float64{0.0, 0.05, 1.0, 0.95})
	got, err = model.Predict(probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkLabels(t, got, []int{0, 2})
}

func TestLinearSVCSparseMatchesDense(t *testing.T) {
	x, y := toyBinary()
	dense := NewLinearSVC()
	if err := dense.Fit(x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sparseModel := NewLinearSVC()
	if err := sparseModel.Fit(csrFrom(x), y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(dense.Coef, sparseModel.Coef) {
		t.Fatalf("sparse and dense training diverged")
	}
}

func TestLinearSVCRoundTrip(t *testing.T) {
	x, y := toyBinary()
	model := NewLinearSVC()
	if err := model.Fit(x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := model.MarshalBinary()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored := NewLinearSVC()
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(model, restored) {
		t.Fatalf("restored model differs from original")
	}
}
