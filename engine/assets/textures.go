package assets

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

// PlaceholderTexture is the 1x1 white texture bound wherever a real one is
// missing or failed to load.
func PlaceholderTexture() *metadata.TextureData {
	return &metadata.TextureData{
		Name:   metadata.DEFAULT_TEXTURE_NAME,
		Width:  1,
		Height: 1,
		Pixels: []uint8{255, 255, 255, 255},
	}
}

// LoadTexture decodes an image file into RGBA8 pixels. Images larger than
// maxSize on either side are scaled down keeping their aspect ratio; a zero
// maxSize disables the limit.
func LoadTexture(path string, maxSize uint32) (*metadata.TextureData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.NewError(core.ErrorKindTextureLoadFailed, "assets.LoadTexture", err)
	}
	defer f.Close()

	tex, err := DecodeTexture(f, maxSize)
	if err != nil {
		return nil, core.NewError(core.ErrorKindTextureLoadFailed, "assets.LoadTexture", fmt.Errorf("%s: %w", path, err))
	}
	tex.Name = path
	return tex, nil
}

func DecodeTexture(r io.Reader, maxSize uint32) (*metadata.TextureData, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty %s image", format)
	}

	w, h := fitExtent(uint32(b.Dx()), uint32(b.Dy()), maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	if w == uint32(b.Dx()) && h == uint32(b.Dy()) {
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	} else {
		core.LogDebug("scaling %s texture from %dx%d to %dx%d", format, b.Dx(), b.Dy(), w, h)
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	}

	return &metadata.TextureData{
		Width:  w,
		Height: h,
		Pixels: dst.Pix,
	}, nil
}

// LoadTextureOrPlaceholder never fails: decode errors are logged and the
// placeholder is returned together with the error so callers can report it.
func LoadTextureOrPlaceholder(path string, maxSize uint32) (*metadata.TextureData, error) {
	tex, err := LoadTexture(path, maxSize)
	if err != nil {
		core.LogError("%s, using placeholder texture", err)
		return PlaceholderTexture(), err
	}
	return tex, nil
}

func fitExtent(w, h, maxSize uint32) (uint32, uint32) {
	if maxSize == 0 || (w <= maxSize && h <= maxSize) {
		return w, h
	}
	if w >= h {
		return maxSize, max(1, uint32(uint64(h)*uint64(maxSize)/uint64(w)))
	}
	return max(1, uint32(uint64(w)*uint64(maxSize)/uint64(h))), maxSize
}
