package model

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// Preprocess turns any decoded image into a (1, size, size, 3) tensor with
// channel values in [0,1].
func Preprocess(img image.Image, size int) Tensor {
	rgb := toRGB(img)
	resized := resize.Resize(uint(size), uint(size), rgb, resize.Bicubic)

	bounds := resized.Bounds()
	data := make([]float32, size*size*3)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := (y*size + x) * 3
			data[i] = float32(r>>8) / 255.0
			data[i+1] = float32(g>>8) / 255.0
			data[i+2] = float32(b>>8) / 255.0
		}
	}

	return Tensor{
		Shape: []int64{1, int64(size), int64(size), 3},
		Data:  data,
	}
}

// toRGB drops the alpha channel, keeping straight (non-premultiplied) color
// values, and returns an opaque image anchored at the origin.
func toRGB(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			dst.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, c)
		}
	}

	return dst
}
