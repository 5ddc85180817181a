package preprocess

import (
	"errors"
	"fmt"
)

var ErrEmptyImage = errors.New("image is empty")

// DecodeError reports input that could not be turned into pixels: an
// unreadable path, a zero-byte upload or corrupt bytes.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("failed to decode image: %v", e.Err)
	}
	return fmt.Sprintf("failed to decode image %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
