package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"textclf/classifier"
)

// CleaningRule rejects samples that should not reach training.
type CleaningRule interface {
	Apply(sample mat.Vector, label int) error
	Name() string
}

// QualityIssue records why a sample was dropped.
type QualityIssue struct {
	Rule    string `json:"rule"`
	Sample  int    `json:"sample"`
	Message string `json:"message"`
}

// CleaningStats summarizes a cleaning pass.
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// Cleaner runs every rule over every sample and drops the violators.
type Cleaner struct {
	rules []CleaningRule
	stats CleaningStats
}

// NewCleaner builds a cleaner with the default rule set.
func NewCleaner() *Cleaner {
	cleaner := &Cleaner{
		stats: CleaningStats{Issues: make(map[string]int64)},
	}
	cleaner.AddRule(NewFiniteValuesRule())
	cleaner.AddRule(NewValueRangeRule())
	return cleaner
}

// AddRule appends a rule to the chain.
func (c *Cleaner) AddRule(rule CleaningRule) {
	c.rules = append(c.rules, rule)
}

// Clean drops samples violating any rule. batch and labels must be
// parallel slices; the returned slices stay parallel.
func (c *Cleaner) Clean(batch classifier.Batch, labels []int) (classifier.Batch, []int, []QualityIssue) {
	var cleaned classifier.Batch
	var kept []int
	var issues []QualityIssue

	for i, sample := range batch {
		c.stats.TotalProcessed++

		rejected := false
		for _, rule := range c.rules {
			if err := rule.Apply(sample, labels[i]); err != nil {
				issues = append(issues, QualityIssue{
					Rule:    rule.Name(),
					Sample:  i,
					Message: err.Error(),
				})
				c.stats.Issues[rule.Name()]++
				rejected = true
			}
		}

		if rejected {
			c.stats.Rejected++
			continue
		}
		c.stats.Passed++
		cleaned = append(cleaned, sample)
		kept = append(kept, labels[i])
	}

	c.stats.LastClean = time.Now()
	return cleaned, kept, issues
}

// Stats returns the counters accumulated so far.
func (c *Cleaner) Stats() CleaningStats {
	return c.stats
}

// FiniteValuesRule rejects samples carrying NaN or infinite features.
type FiniteValuesRule struct{}

func NewFiniteValuesRule() *FiniteValuesRule {
	return &FiniteValuesRule{}
}

func (r *FiniteValuesRule) Name() string {
	return "finite_values"
}

func (r *FiniteValuesRule) Apply(sample mat.Vector, label int) error {
	for j := 0; j < sample.Len(); j++ {
		v := sample.AtVec(j)
		if math.IsNaN(v) {
			return fmt.Errorf("feature %d is NaN", j)
		}
		if math.IsInf(v, 0) {
			return fmt.Errorf("feature %d is infinite", j)
		}
	}
	return nil
}

// ValueRangeRule rejects samples with absurd feature magnitudes, which
// usually indicate a unit mix-up upstream.
type ValueRangeRule struct {
	MaxAbs float64
}

func NewValueRangeRule() *ValueRangeRule {
	return &ValueRangeRule{MaxAbs: 1e12}
}

func (r *ValueRangeRule) Name() string {
	return "value_range"
}

func (r *ValueRangeRule) Apply(sample mat.Vector, label int) error {
	for j := 0; j < sample.Len(); j++ {
		if v := sample.AtVec(j); math.Abs(v) > r.MaxAbs {
			return fmt.Errorf("feature %d magnitude %g exceeds %g", j, v, r.MaxAbs)
		}
	}
	return nil
}

// DuplicateDetectionRule rejects exact repeats of an earlier sample and
// label. Not in the default chain; duplicates are legitimate in some
// corpora.
type DuplicateDetectionRule struct {
	seen map[string]struct{}
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{seen: make(map[string]struct{})}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateDetectionRule) Apply(sample mat.Vector, label int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", label)
	for j := 0; j < sample.Len(); j++ {
		fmt.Fprintf(&b, "|%g", sample.AtVec(j))
	}

	key := b.String()
	if _, exists := r.seen[key]; exists {
		return fmt.Errorf("duplicate of an earlier sample")
	}
	r.seen[key] = struct{}{}
	return nil
}
