package preprocess

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
)

// Normalizer decodes JPEG/PNG with the standard library decoders and
// resizes with nfnt/resize. The decoders already yield RGB, so the channel
// flip OpenCV needs happens implicitly here.
type Normalizer struct {
	params Params
	interp resize.InterpolationFunction
}

func NewNormalizer(params Params) *Normalizer {
	return &Normalizer{
		params: params,
		interp: resize.Bilinear,
	}
}

func (n *Normalizer) Params() Params {
	return n.params
}

func (n *Normalizer) Normalize(data []byte) (*Tensor, error) {
	return n.normalize("", data)
}

func (n *Normalizer) NormalizeFile(path string) (*Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	return n.normalize(path, data)
}

func (n *Normalizer) normalize(source string, data []byte) (*Tensor, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Source: source, Err: ErrEmptyImage}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &DecodeError{Source: source, Err: ErrEmptyImage}
	}

	return n.FromImage(img), nil
}

// FromImage converts an already decoded image. Grayscale and paletted
// images are expanded to three equal channels.
func (n *Normalizer) FromImage(img image.Image) *Tensor {
	size := n.params.Size
	resized := resize.Resize(uint(size), uint(size), img, n.interp)
	origin := resized.Bounds().Min

	tensor := NewTensor(n.params)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(origin.X+x, origin.Y+y).RGBA()
			n.params.Set(tensor.Data, x, y, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return tensor
}
