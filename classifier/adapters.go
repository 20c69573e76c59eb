package classifier

import "textclf/ml"

// LogReg adapts the logistic regression model.
type LogReg struct {
	estimator
}

func NewLogReg(cfg Config) (*LogReg, error) {
	c := &LogReg{estimator{
		cfg:   cfg,
		name:  "LogReg",
		fresh: func() ml.Model { return ml.NewLogisticRegression() },
	}}
	if err := c.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

// SVC adapts the linear support vector classifier.
type SVC struct {
	estimator
}

func NewSVC(cfg Config) (*SVC, error) {
	c := &SVC{estimator{
		cfg:   cfg,
		name:  "SVC",
		fresh: func() ml.Model { return ml.NewLinearSVC() },
	}}
	if err := c.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

// RandomForest adapts the random forest model.
type RandomForest struct {
	estimator
}

func NewRandomForest(cfg Config) (*RandomForest, error) {
	c := &RandomForest{estimator{
		cfg:   cfg,
		name:  "RandomForest",
		fresh: func() ml.Model { return ml.NewRandomForest() },
	}}
	if err := c.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

var (
	_ Classifier = (*LogReg)(nil)
	_ Classifier = (*SVC)(nil)
	_ Classifier = (*RandomForest)(nil)
)
