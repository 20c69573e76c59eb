// Package dataset loads vectorized training data from files and prepares
// it for the classifiers.
package dataset

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/james-bowman/sparse"

	"textclf/classifier"
)

// LoadLibSVM reads a libsvm-format file: one sample per line as
// `label index:value ...` with ascending 1-based indices. Blank lines and
// lines starting with # are skipped. The feature dimension is the highest
// index seen unless dim forces a wider one.
func LoadLibSVM(path string, dim int) (classifier.Batch, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	type sample struct {
		label int
		ind   []int
		val   []float64
	}
	var samples []sample
	maxIdx := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		label, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, nil, fmt.Errorf("%s:%d: bad label %q", path, lineNo, fields[0])
		}
		s := sample{label: label}
		for _, entry := range fields[1:] {
			sep := strings.IndexByte(entry, ':')
			if sep < 0 {
				return nil, nil, fmt.Errorf("%s:%d: bad entry %q", path, lineNo, entry)
			}
			idx, err := strconv.Atoi(entry[:sep])
			if err != nil || idx < 1 {
				return nil, nil, fmt.Errorf("%s:%d: bad feature index %q", path, lineNo, entry[:sep])
			}
			v, err := strconv.ParseFloat(entry[sep+1:], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s:%d: bad feature value %q", path, lineNo, entry[sep+1:])
			}
			s.ind = append(s.ind, idx-1)
			s.val = append(s.val, v)
			if idx > maxIdx {
				maxIdx = idx
			}
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("%s: no samples", path)
	}
	if dim <= 0 {
		dim = maxIdx
	} else if maxIdx > dim {
		return nil, nil, fmt.Errorf("%s: feature index %d exceeds dimension %d", path, maxIdx, dim)
	}
	if dim == 0 {
		return nil, nil, fmt.Errorf("%s: no features", path)
	}

	batch := make(classifier.Batch, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		sort.Sort(indexValues{s.ind, s.val})
		for j := 1; j < len(s.ind); j++ {
			if s.ind[j] == s.ind[j-1] {
				return nil, nil, fmt.Errorf("%s: sample %d: duplicate feature index %d", path, i+1, s.ind[j]+1)
			}
		}
		batch[i] = sparse.NewVector(dim, s.ind, s.val)
		labels[i] = s.label
	}
	return batch, labels, nil
}

// indexValues sorts a sparse row by feature index, carrying values along.
type indexValues struct {
	ind []int
	val []float64
}

func (p indexValues) Len() int           { return len(p.ind) }
func (p indexValues) Less(a, b int) bool { return p.ind[a] < p.ind[b] }
func (p indexValues) Swap(a, b int) {
	p.ind[a], p.ind[b] = p.ind[b], p.ind[a]
	p.val[a], p.val[b] = p.val[b], p.val[a]
}
