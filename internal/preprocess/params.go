package preprocess

import (
	"fmt"
	"strings"
)

type Layout string

const (
	LayoutNHWC Layout = "NHWC"
	LayoutNCHW Layout = "NCHW"
)

type ChannelOrder string

const (
	OrderRGB ChannelOrder = "RGB"
	OrderBGR ChannelOrder = "BGR"
)

// Params describes the input convention a model was trained with. Pixels
// enter as 0..255 values in RGB order and leave as (v - Mean[c]) / Std[c].
type Params struct {
	Size         int
	Layout       Layout
	ChannelOrder ChannelOrder
	Mean         [3]float32
	Std          [3]float32
}

// DefaultParams matches Keras EfficientNet: 224x224 NHWC RGB, raw 0..255 values.
func DefaultParams() Params {
	return Params{
		Size:         224,
		Layout:       LayoutNHWC,
		ChannelOrder: OrderRGB,
		Mean:         [3]float32{0, 0, 0},
		Std:          [3]float32{1, 1, 1},
	}
}

func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToUpper(strings.TrimSpace(s))) {
	case "", LayoutNHWC:
		return LayoutNHWC, nil
	case LayoutNCHW:
		return LayoutNCHW, nil
	}
	return "", fmt.Errorf("unknown tensor layout %q", s)
}

func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch ChannelOrder(strings.ToUpper(strings.TrimSpace(s))) {
	case "", OrderRGB:
		return OrderRGB, nil
	case OrderBGR:
		return OrderBGR, nil
	}
	return "", fmt.Errorf("unknown channel order %q", s)
}

func (p Params) Validate() error {
	if p.Size <= 0 {
		return fmt.Errorf("image size must be positive, got %d", p.Size)
	}
	if p.Layout != LayoutNHWC && p.Layout != LayoutNCHW {
		return fmt.Errorf("unknown tensor layout %q", p.Layout)
	}
	if p.ChannelOrder != OrderRGB && p.ChannelOrder != OrderBGR {
		return fmt.Errorf("unknown channel order %q", p.ChannelOrder)
	}
	for c, s := range p.Std {
		if s == 0 {
			return fmt.Errorf("std for channel %d must not be zero", c)
		}
	}
	return nil
}

// Shape returns the batch-of-one tensor shape.
func (p Params) Shape() []int64 {
	s := int64(p.Size)
	if p.Layout == LayoutNCHW {
		return []int64{1, 3, s, s}
	}
	return []int64{1, s, s, 3}
}

// Len is the number of float32 values in one input tensor.
func (p Params) Len() int {
	return 3 * p.Size * p.Size
}

// Set writes the RGB pixel at (x, y) into data, honouring layout,
// channel order and scaling.
func (p Params) Set(data []float32, x, y int, r, g, b uint8) {
	px := [3]uint8{r, g, b}
	if p.ChannelOrder == OrderBGR {
		px[0], px[2] = px[2], px[0]
	}
	for c := 0; c < 3; c++ {
		data[p.index(x, y, c)] = (float32(px[c]) - p.Mean[c]) / p.Std[c]
	}
}

func (p Params) index(x, y, c int) int {
	if p.Layout == LayoutNCHW {
		return c*p.Size*p.Size + y*p.Size + x
	}
	return (y*p.Size+x)*3 + c
}

// Tensor is one preprocessed model input.
type Tensor struct {
	Data  []float32
	Shape []int64
}

func NewTensor(p Params) *Tensor {
	return &Tensor{
		Data:  make([]float32, p.Len()),
		Shape: p.Shape(),
	}
}
