package classifier

import (
	"fmt"
	"sort"
)

// Builder constructs a classifier from its config.
type Builder func(cfg Config) (Classifier, error)

var builders = map[string]Builder{}

// Register binds a name to a builder. Call during startup, before any
// New; later registrations replace earlier ones.
func Register(name string, build Builder) {
	builders[name] = build
}

// New builds the classifier registered under name.
func New(name string, cfg Config) (Classifier, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return build(cfg)
}

// Names lists the registered classifiers in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterBuiltins populates the registry with the built-in classifiers.
func RegisterBuiltins() {
	Register("logistic_regression", func(cfg Config) (Classifier, error) { return NewLogReg(cfg) })
	Register("support_vector_classifier", func(cfg Config) (Classifier, error) { return NewSVC(cfg) })
	Register("random_forest", func(cfg Config) (Classifier, error) { return NewRandomForest(cfg) })
}
