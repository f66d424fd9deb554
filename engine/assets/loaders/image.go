package loaders

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

// ImageData holds tightly packed RGBA8 texels, row by row from the top.
type ImageData struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// Size in bytes of the texel data.
func (d *ImageData) Size() uint64 {
	return uint64(d.Width) * uint64(d.Height) * 4
}

// DecodeImage decodes png, jpeg, gif, bmp, tiff or webp files to RGBA8.
func DecodeImage(path string) (*ImageData, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, core.AsFatal(errors.Wrapf(err, "opening image %s", path), core.ErrTextureDecode)
	}
	defer f.Close()

	data, err := DecodeImageReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return data, nil
}

func DecodeImageReader(r io.Reader) (*ImageData, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, core.AsFatal(err, core.ErrTextureDecode)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, core.Fatalf(core.ErrTextureDecode, "image has zero dimensions %dx%d", b.Dx(), b.Dy())
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
	}
	return &ImageData{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: rgba.Pix,
	}, nil
}

// IsImagePath reports whether the extension belongs to a decodable format.
func IsImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}

type ImageLoader struct{}

func (il *ImageLoader) Load(path string) (*Resource, error) {
	data, err := DecodeImage(path)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FullPath: path,
		Type:     ResourceTypeImage,
		DataSize: data.Size(),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(res *Resource) error {
	res.Data = nil
	return nil
}
