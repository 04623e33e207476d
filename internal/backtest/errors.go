package backtest

import "errors"

// ErrPredictionCount is returned when predictions and decision rows differ in length.
var ErrPredictionCount = errors.New("prediction count does not match decision rows")
