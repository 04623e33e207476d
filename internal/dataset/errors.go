package dataset

import "errors"

// Dataset errors
var (
	ErrMissingColumn   = errors.New("required column missing")
	ErrBadTimestamp    = errors.New("unparseable timestamp")
	ErrBadValue        = errors.New("unparseable value")
	ErrEmpty           = errors.New("file has no data rows")
	ErrPredictionCount = errors.New("prediction count does not match decision rows")
)
