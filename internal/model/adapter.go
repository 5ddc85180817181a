package model

import (
	"context"
	"fmt"

	"github.com/Brownie44l1/smartseva-api/internal/preprocess"
)

// Adapter is the inference entry point: one tensor in, both heads out.
type Adapter struct {
	loader    *Loader
	inputSize int
}

func NewAdapter(loader *Loader, metadata Metadata) *Adapter {
	return &Adapter{
		loader:    loader,
		inputSize: metadata.InputSize(),
	}
}

func (a *Adapter) Classify(ctx context.Context, tensor *preprocess.Tensor) (*Scores, error) {
	if len(tensor.Data) != a.inputSize {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrInputSize, len(tensor.Data), a.inputSize)
	}

	session, err := a.loader.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return session.Run(tensor.Data)
}

func (a *Adapter) Loaded() bool {
	return a.loader.Loaded()
}
