package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Brownie44l1/smartseva-api/internal/preprocess"
)

// DefaultMetadata describes the hierarchical EfficientNet export: one
// NHWC input and two softmax heads of 3 and 6 classes.
func DefaultMetadata() Metadata {
	m := Metadata{
		InputName:       "input",
		MainOutput:      "main_output",
		SeverityOutput:  "severity_output",
		MainClasses:     []string{"garbage", "road", "child"},
		SeverityClasses: []string{"low_garbage", "heavy_garbage", "low_damage_roads", "high_damage_roads", "normal_child", "child_labour"},
		ImageSize:       224,
		Layout:          string(preprocess.LayoutNHWC),
		ChannelOrder:    string(preprocess.OrderRGB),
	}
	m.InputShape = preprocess.DefaultParams().Shape()
	return m
}

// LoadMetadata reads the JSON sidecar shipped next to the model. An empty
// path yields DefaultMetadata.
func LoadMetadata(path string) (Metadata, error) {
	if path == "" {
		return DefaultMetadata(), nil
	}

	metaFile, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	metadata.applyDefaults()
	if err := metadata.Validate(); err != nil {
		return Metadata{}, fmt.Errorf("invalid metadata %s: %w", path, err)
	}
	return metadata, nil
}

func (m *Metadata) applyDefaults() {
	def := DefaultMetadata()
	if m.InputName == "" {
		m.InputName = def.InputName
	}
	if m.MainOutput == "" {
		m.MainOutput = def.MainOutput
	}
	if m.SeverityOutput == "" {
		m.SeverityOutput = def.SeverityOutput
	}
	if len(m.MainClasses) == 0 {
		m.MainClasses = def.MainClasses
	}
	if len(m.SeverityClasses) == 0 {
		m.SeverityClasses = def.SeverityClasses
	}
	if m.ImageSize == 0 {
		m.ImageSize = def.ImageSize
	}
	if len(m.InputShape) == 0 {
		if params, err := m.Params(); err == nil {
			m.InputShape = params.Shape()
		}
	}
}

// Params converts the preprocessing fields into normalizer parameters.
func (m Metadata) Params() (preprocess.Params, error) {
	params := preprocess.DefaultParams()
	params.Size = m.ImageSize

	layout, err := preprocess.ParseLayout(m.Layout)
	if err != nil {
		return params, err
	}
	params.Layout = layout

	order, err := preprocess.ParseChannelOrder(m.ChannelOrder)
	if err != nil {
		return params, err
	}
	params.ChannelOrder = order

	if len(m.Mean) > 0 {
		if len(m.Mean) != 3 {
			return params, fmt.Errorf("mean needs 3 values, got %d", len(m.Mean))
		}
		copy(params.Mean[:], m.Mean)
	}
	if len(m.Std) > 0 {
		if len(m.Std) != 3 {
			return params, fmt.Errorf("std needs 3 values, got %d", len(m.Std))
		}
		copy(params.Std[:], m.Std)
	}

	return params, params.Validate()
}

func (m Metadata) Validate() error {
	params, err := m.Params()
	if err != nil {
		return err
	}
	if got := m.InputSize(); got != params.Len() {
		return fmt.Errorf("input shape %v holds %d values, image size %d needs %d", m.InputShape, got, m.ImageSize, params.Len())
	}
	if len(m.MainClasses) == 0 || len(m.SeverityClasses) == 0 {
		return fmt.Errorf("both heads need class names")
	}
	return nil
}

// InputSize is the number of values in the input tensor.
func (m Metadata) InputSize() int {
	if len(m.InputShape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range m.InputShape {
		size *= int(dim)
	}
	return size
}
