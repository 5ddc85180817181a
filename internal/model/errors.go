package model

import (
	"errors"
	"fmt"
)

var ErrInputSize = errors.New("input tensor has the wrong number of values")

// ModelUnavailableError means the model artifact could not be fetched or
// opened. It fails the request, never the process.
type ModelUnavailableError struct {
	Source string
	Err    error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable: %v", e.Source, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}
