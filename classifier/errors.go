package classifier

import "errors"

var (
	// ErrEmptyBatch rejects training or inference on a batch with no samples.
	ErrEmptyBatch = errors.New("empty feature batch")

	// ErrUnsupportedVector rejects feature vectors that are neither sparse
	// nor dense.
	ErrUnsupportedVector = errors.New("unsupported vector type")

	// ErrBadSavePath marks a save destination whose parent directory does
	// not exist or is not a directory.
	ErrBadSavePath = errors.New("bad save path")

	// ErrNotRegistered marks a lookup of an unknown classifier name.
	ErrNotRegistered = errors.New("classifier not registered")

	// ErrNoModel marks use of an adapter that was not built through a
	// constructor and so holds no model.
	ErrNoModel = errors.New("no model attached")
)
