package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"textclf/classifier"
)

// LoadCSV reads a dense CSV of numeric features with an integer label
// column. labelCol is zero-based; pass -1 for the last column. With
// header set the first record is skipped.
func LoadCSV(path string, labelCol int, header bool) (classifier.Batch, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if header && len(records) > 0 {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: no samples", path)
	}

	cols := len(records[0])
	if cols < 2 {
		return nil, nil, fmt.Errorf("%s: need a label column and at least one feature column", path)
	}
	col := labelCol
	if col < 0 {
		col = cols - 1
	}
	if col >= cols {
		return nil, nil, fmt.Errorf("%s: label column %d out of range", path, labelCol)
	}

	width := cols - 1
	batch := make(classifier.Batch, 0, len(records))
	labels := make([]int, 0, len(records))
	for i, record := range records {
		values := make([]float64, 0, width)
		for j, cell := range record {
			cell = strings.TrimSpace(cell)
			if j == col {
				label, err := strconv.Atoi(cell)
				if err != nil {
					return nil, nil, fmt.Errorf("%s: row %d: bad label %q", path, i+1, cell)
				}
				labels = append(labels, label)
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: row %d: bad value %q", path, i+1, cell)
			}
			values = append(values, v)
		}
		batch = append(batch, mat.NewVecDense(width, values))
	}
	return batch, labels, nil
}
