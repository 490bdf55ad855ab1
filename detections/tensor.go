package detections

import (
	"bytes"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Tensor is a dense float32 array in NCHW order.
type Tensor struct {
	Shape [4]int // batch, channel, height, width
	Data  []float32
}

func NewTensor(batch, channels, height, width int) *Tensor {
	return &Tensor{
		Shape: [4]int{batch, channels, height, width},
		Data:  make([]float32, batch*channels*height*width),
	}
}

func (t *Tensor) Index(n, c, y, x int) int {
	return ((n*t.Shape[1]+c)*t.Shape[2]+y)*t.Shape[3] + x
}

func (t *Tensor) At(n, c, y, x int) float32 {
	return t.Data[t.Index(n, c, y, x)]
}

// Width and Height are the spatial dimensions
func (t *Tensor) Width() int  { return t.Shape[3] }
func (t *Tensor) Height() int { return t.Shape[2] }

// DecodeImage decodes JPEG, PNG, GIF, BMP, TIFF or WebP bytes.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	return img, nil
}

// ResizeImage resamples img to exactly width x height with a fixed linear filter.
// An image that already has the target size is copied unchanged.
func ResizeImage(img image.Image, width, height int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, width, height, imaging.Linear)
}

// FillTensor writes the RGB planes of img into a [1,3,H,W] tensor, normalized to [0,1].
func FillTensor(img *image.NRGBA) *Tensor {
	width := img.Rect.Dx()
	height := img.Rect.Dy()
	t := NewTensor(1, NumChannels, height, width)
	channelSize := width * height

	numWorkers := min(runtime.GOMAXPROCS(0), height)
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for startRow := 0; startRow < height; startRow += rowsPerWorker {
		endRow := min(startRow+rowsPerWorker, height)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				src := img.Pix[y*img.Stride:]
				offset := y * width
				for x := 0; x < width; x++ {
					i := offset + x
					p := src[x*4 : x*4+3]
					t.Data[i] = float32(p[0]) / 255.0
					t.Data[channelSize+i] = float32(p[1]) / 255.0
					t.Data[channelSize*2+i] = float32(p[2]) / 255.0
				}
			}
		}(startRow, endRow)
	}
	wg.Wait()

	return t
}

// BuildTensor decodes data and produces a [1,3,height,width] input tensor.
func BuildTensor(data []byte, width, height int) (*Tensor, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return FillTensor(ResizeImage(img, width, height)), nil
}
