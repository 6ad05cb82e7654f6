// Package screen holds the screenshot value the locator works on and the capture
// collaborator contract.
package screen

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"sync"

	_ "image/jpeg"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/adverant/nexus/ui-locator/internal/element"
)

// Screenshot is an immutable captured image. Its PNG encoding and pixel hash are
// computed on first use and reused.
type Screenshot struct {
	img image.Image

	pngOnce sync.Once
	png     []byte
	pngErr  error

	hashOnce sync.Once
	hash     string
}

func New(img image.Image) *Screenshot {
	return &Screenshot{img: img}
}

// Load reads a PNG, JPEG, BMP, TIFF or WebP file.
func Load(path string) (*Screenshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open screenshot: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

func Decode(r io.Reader) (*Screenshot, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("screenshot (%s) has no pixels", format)
	}
	return New(img), nil
}

func (s *Screenshot) Image() image.Image {
	return s.img
}

func (s *Screenshot) Size() element.Size {
	b := s.img.Bounds()
	return element.Size{Width: b.Dx(), Height: b.Dy()}
}

// PNG returns the PNG encoding sent to the vision model.
func (s *Screenshot) PNG() ([]byte, error) {
	s.pngOnce.Do(func() {
		var buf bytes.Buffer
		if err := png.Encode(&buf, s.img); err != nil {
			s.pngErr = fmt.Errorf("failed to encode screenshot: %w", err)
			return
		}
		s.png = buf.Bytes()
	})
	return s.png, s.pngErr
}

// PixelHash is a SHA-256 over the dimensions and RGBA pixels. Two screenshots with
// the same pixels hash equal whatever their source format.
func (s *Screenshot) PixelHash() string {
	s.hashOnce.Do(func() {
		rgba := toRGBA(s.img)
		h := sha256.New()

		var dims [8]byte
		binary.BigEndian.PutUint32(dims[:4], uint32(rgba.Rect.Dx()))
		binary.BigEndian.PutUint32(dims[4:], uint32(rgba.Rect.Dy()))
		h.Write(dims[:])
		h.Write(rgba.Pix)

		s.hash = hex.EncodeToString(h.Sum(nil))
	})
	return s.hash
}

// Crop copies the region b (in screenshot pixel coordinates) into a new image whose
// origin is (0,0).
func (s *Screenshot) Crop(b element.BBox) image.Image {
	origin := s.img.Bounds().Min
	src := image.Rect(b.X1, b.Y1, b.X2, b.Y2).Add(origin).Intersect(s.img.Bounds())

	dst := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Draw(dst, dst.Bounds(), s.img, src.Min, draw.Src)
	return dst
}

// toRGBA returns img as a tightly packed RGBA buffer with a (0,0) origin.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
