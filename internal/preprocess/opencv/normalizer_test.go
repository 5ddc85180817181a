//go:build opencv

package opencv

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/smartseva-api/internal/preprocess"
)

func solidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeMatchesStdBackend(t *testing.T) {
	params := preprocess.DefaultParams()
	params.Size = 4
	data := solidPNG(t, color.RGBA{R: 200, G: 40, B: 10, A: 255})

	got, err := NewNormalizer(params).Normalize(data)
	require.NoError(t, err)
	want, err := preprocess.NewNormalizer(params).Normalize(data)
	require.NoError(t, err)

	assert.Equal(t, want.Shape, got.Shape)
	require.Len(t, got.Data, len(want.Data))
	for i := range want.Data {
		assert.InDelta(t, want.Data[i], got.Data[i], 1)
	}
	assert.InDelta(t, 200, got.Data[0], 1)
	assert.InDelta(t, 10, got.Data[2], 1)
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	n := NewNormalizer(preprocess.DefaultParams())

	_, err := n.Normalize(nil)
	assert.ErrorIs(t, err, preprocess.ErrEmptyImage)

	_, err = n.Normalize([]byte("not an image"))
	var decodeErr *preprocess.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}
