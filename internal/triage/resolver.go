package triage

import (
	"fmt"
	"strings"
)

// Mode decides how the two heads are combined.
type Mode string

const (
	// ModeSeverity trusts the severity head alone.
	ModeSeverity Mode = "severity"
	// ModeFlag trusts the severity head and reports disagreement with the main head.
	ModeFlag Mode = "flag"
	// ModeHierarchical picks the severity only among the main category's classes.
	ModeHierarchical Mode = "hierarchical"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSeverity:
		return ModeSeverity, nil
	case ModeFlag:
		return ModeFlag, nil
	case ModeHierarchical:
		return ModeHierarchical, nil
	}
	return "", fmt.Errorf("unknown consistency mode %q", s)
}

// ScoreShapeError reports a score vector whose length does not match its head.
type ScoreShapeError struct {
	Head string
	Got  int
	Want int
}

func (e *ScoreShapeError) Error() string {
	return fmt.Sprintf("%s scores have %d entries, expected %d", e.Head, e.Got, e.Want)
}

type Resolution struct {
	Main     MainCategory
	Severity SeverityClass
	// Confidence is the highest single score across both heads, times 100.
	// It is not a joint probability.
	Confidence float64
	Mismatch   bool
}

type Resolver struct {
	labels Labels
	mode   Mode
}

func NewResolver(labels Labels, mode Mode) *Resolver {
	return &Resolver{labels: labels, mode: mode}
}

func (r *Resolver) Mode() Mode {
	return r.mode
}

func (r *Resolver) Resolve(main, severity []float32) (Resolution, error) {
	if len(main) != len(r.labels.Main) {
		return Resolution{}, &ScoreShapeError{Head: "main", Got: len(main), Want: len(r.labels.Main)}
	}
	if len(severity) != len(r.labels.Severity) {
		return Resolution{}, &ScoreShapeError{Head: "severity", Got: len(severity), Want: len(r.labels.Severity)}
	}

	mainLabel := r.labels.Main[argmax(main, nil)]

	var keep func(int) bool
	if r.mode == ModeHierarchical {
		keep = func(i int) bool { return r.labels.Severity[i].Category() == mainLabel }
	}
	severityLabel := r.labels.Severity[argmax(severity, keep)]

	top := main[argmax(main, nil)]
	if s := severity[argmax(severity, nil)]; s > top {
		top = s
	}

	res := Resolution{
		Main:       mainLabel,
		Severity:   severityLabel,
		Confidence: float64(top) * 100,
	}
	if r.mode == ModeFlag {
		res.Mismatch = severityLabel.Category() != mainLabel
	}
	return res, nil
}

// argmax returns the first index holding the largest value among the
// indexes accepted by keep (all of them when keep is nil).
func argmax(v []float32, keep func(int) bool) int {
	best := -1
	for i, x := range v {
		if keep != nil && !keep(i) {
			continue
		}
		if best < 0 || x > v[best] {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
