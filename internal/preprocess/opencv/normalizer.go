//go:build opencv

// Package opencv normalizes images the way the training notebook did:
// OpenCV decode (BGR), explicit BGR->RGB conversion, linear resize.
package opencv

import (
	"fmt"
	"image"
	"os"

	"github.com/Brownie44l1/smartseva-api/internal/preprocess"
	"gocv.io/x/gocv"
)

type Normalizer struct {
	params preprocess.Params
}

func NewNormalizer(params preprocess.Params) *Normalizer {
	return &Normalizer{params: params}
}

func (n *Normalizer) Params() preprocess.Params {
	return n.params
}

func (n *Normalizer) Normalize(data []byte) (*preprocess.Tensor, error) {
	return n.normalize("", data)
}

func (n *Normalizer) NormalizeFile(path string) (*preprocess.Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &preprocess.DecodeError{Source: path, Err: err}
	}
	return n.normalize(path, data)
}

func (n *Normalizer) normalize(source string, data []byte) (*preprocess.Tensor, error) {
	if len(data) == 0 {
		return nil, &preprocess.DecodeError{Source: source, Err: preprocess.ErrEmptyImage}
	}

	// IMReadColor always yields 3 channels, grayscale included.
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, &preprocess.DecodeError{Source: source, Err: err}
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, &preprocess.DecodeError{Source: source, Err: preprocess.ErrEmptyImage}
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGB)

	size := n.params.Size
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)

	pix := resized.ToBytes()
	if len(pix) != size*size*3 {
		return nil, &preprocess.DecodeError{
			Source: source,
			Err:    fmt.Errorf("unexpected pixel buffer of %d bytes", len(pix)),
		}
	}

	tensor := preprocess.NewTensor(n.params)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := (y*size + x) * 3
			n.params.Set(tensor.Data, x, y, pix[i], pix[i+1], pix[i+2])
		}
	}
	return tensor, nil
}
