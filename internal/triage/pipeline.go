package triage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/Brownie44l1/smartseva-api/internal/model"
	"github.com/Brownie44l1/smartseva-api/internal/preprocess"
)

type Normalizer interface {
	Normalize(data []byte) (*preprocess.Tensor, error)
}

type Classifier interface {
	Classify(ctx context.Context, tensor *preprocess.Tensor) (*model.Scores, error)
}

// Pipeline chains normalizer, classifier, resolver and policy for one image.
type Pipeline struct {
	normalizer Normalizer
	classifier Classifier
	resolver   *Resolver
	timeout    time.Duration
	logger     *slog.Logger
}

// NewPipeline creates a pipeline. A positive timeout bounds each
// classifier call.
func NewPipeline(normalizer Normalizer, classifier Classifier, resolver *Resolver, timeout time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		classifier: classifier,
		resolver:   resolver,
		timeout:    timeout,
		logger:     logger,
	}
}

func (p *Pipeline) ClassifyImage(ctx context.Context, data []byte) (*Result, error) {
	tensor, err := p.normalizer.Normalize(data)
	if err != nil {
		return nil, err
	}
	return p.ClassifyTensor(ctx, tensor)
}

func (p *Pipeline) ClassifyTensor(ctx context.Context, tensor *preprocess.Tensor) (*Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	scores, err := p.classifier.Classify(ctx, tensor)
	if err != nil {
		return nil, err
	}

	res, err := p.resolver.Resolve(scores.Main, scores.Severity)
	if err != nil {
		return nil, err
	}
	if res.Mismatch {
		p.logger.Warn("main and severity heads disagree",
			"main", res.Main.String(),
			"severity", res.Severity.String(),
		)
	}

	result := Triage(res.Severity, res.Confidence, res.Main)
	result.Mismatch = res.Mismatch

	p.logger.Debug("image classified",
		"main", res.Main.String(),
		"severity", res.Severity.String(),
		"confidence", res.Confidence,
		"elapsed", time.Since(start),
	)
	return &result, nil
}

// ClassifyFile reads and classifies the image at path. Read and decode
// failures carry the path.
func (p *Pipeline) ClassifyFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &preprocess.DecodeError{Source: path, Err: err}
	}

	result, err := p.ClassifyImage(ctx, data)
	var decodeErr *preprocess.DecodeError
	if errors.As(err, &decodeErr) && decodeErr.Source == "" {
		decodeErr.Source = path
	}
	return result, err
}
