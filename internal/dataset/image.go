package dataset

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/born-ml/born/tensor"
)

// DefaultImageSize is the side length images are resized to before entering
// the caption network.
const DefaultImageSize = 299

// LoadImage decodes and resizes an image into CHW float32 pixel data.
//
// The image is read in color, resized to size x size, converted from OpenCV's
// BGR order to RGB, and normalized to [0, 1]. The returned slice has length
// 3*size*size laid out channel-major.
func LoadImage(path string, size int) ([]float32, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("failed to decode image %s", path)
	}
	defer img.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)

	data := make([]float32, 3*size*size)
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			px := resized.GetVecbAt(y, x) // BGR
			data[0*plane+y*size+x] = float32(px[2]) / 255.0
			data[1*plane+y*size+x] = float32(px[1]) / 255.0
			data[2*plane+y*size+x] = float32(px[0]) / 255.0
		}
	}

	return data, nil
}

// imageCache memoizes decoded images within a batch: prefix expansion reuses
// the same image for every prefix of every caption.
type imageCache struct {
	size   int
	loaded map[string][]float32
}

func newImageCache(size int) *imageCache {
	return &imageCache{size: size, loaded: make(map[string][]float32)}
}

func (c *imageCache) get(path string) ([]float32, error) {
	if data, ok := c.loaded[path]; ok {
		return data, nil
	}
	data, err := LoadImage(path, c.size)
	if err != nil {
		return nil, err
	}
	c.loaded[path] = data
	return data, nil
}

// ImageShape returns the tensor shape of a loaded image batch.
func ImageShape(batch, size int) tensor.Shape {
	return tensor.Shape{batch, 3, size, size}
}
