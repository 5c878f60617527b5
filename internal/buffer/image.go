package buffer

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/vkngwrapper/vklab/internal/gfxerr"
)

// Pixels is a tightly packed RGBA8 image.
type Pixels struct {
	Width  int
	Height int
	Data   []byte
}

func LoadImage(path string) (*Pixels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, gfxerr.Wrapf(err, gfxerr.ErrTextureDecode, "open texture %s", path)
	}
	defer f.Close()

	return DecodeImage(f)
}

// DecodeImage decodes a PNG, JPEG or BMP stream into RGBA8.
func DecodeImage(r io.Reader) (*Pixels, error) {
	decoded, format, err := image.Decode(r)
	if err != nil {
		return nil, gfxerr.Wrap(err, gfxerr.ErrTextureDecode, "decode texture")
	}

	bounds := decoded.Bounds()
	if bounds.Empty() {
		return nil, gfxerr.New(gfxerr.ErrTextureDecode, "decode texture: empty %s image", format)
	}

	rgba, ok := decoded.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), decoded, bounds.Min, draw.Src)
	}

	return &Pixels{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Data:   rgba.Pix,
	}, nil
}
