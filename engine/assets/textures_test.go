package assets

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/umbra/engine/core"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeTexture(t *testing.T) {
	data := encodePNG(t, 4, 2, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	tex, err := DecodeTexture(bytes.NewReader(data), 0)
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width != 4 || tex.Height != 2 {
		t.Fatalf("extent = %dx%d", tex.Width, tex.Height)
	}
	if len(tex.Pixels) != 4*2*4 {
		t.Fatalf("pixel bytes = %d", len(tex.Pixels))
	}
	if !bytes.Equal(tex.Pixels[:4], []byte{255, 0, 0, 255}) {
		t.Fatalf("first pixel = %v", tex.Pixels[:4])
	}
}

func TestDecodeTextureScalesDown(t *testing.T) {
	data := encodePNG(t, 64, 16, color.White)
	tex, err := DecodeTexture(bytes.NewReader(data), 32)
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width != 32 || tex.Height != 8 {
		t.Fatalf("extent = %dx%d, want 32x8", tex.Width, tex.Height)
	}
	if uint64(len(tex.Pixels)) != tex.Size() || tex.Size() != 32*8*4 {
		t.Fatalf("size = %d", tex.Size())
	}
}

func TestFitExtent(t *testing.T) {
	cases := []struct {
		w, h, max    uint32
		wantW, wantH uint32
	}{
		{100, 50, 0, 100, 50},
		{100, 50, 200, 100, 50},
		{400, 100, 200, 200, 50},
		{100, 400, 200, 50, 200},
		{4096, 1, 1024, 1024, 1},
	}
	for _, c := range cases {
		w, h := fitExtent(c.w, c.h, c.max)
		if w != c.wantW || h != c.wantH {
			t.Errorf("fitExtent(%d, %d, %d) = %dx%d, want %dx%d", c.w, c.h, c.max, w, h, c.wantW, c.wantH)
		}
	}
}

func TestLoadTextureFallsBackToPlaceholder(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(broken, []byte("definitely not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{broken, filepath.Join(dir, "missing.png")} {
		tex, err := LoadTextureOrPlaceholder(path, 0)
		if !errors.Is(err, core.ErrTextureLoadFailed) {
			t.Fatalf("%s: err = %v, want ErrTextureLoadFailed", path, err)
		}
		if !core.IsRecoverable(err) {
			t.Fatalf("%s: texture failures must be recoverable", path)
		}
		if tex.Width != 1 || tex.Height != 1 || !bytes.Equal(tex.Pixels, []byte{255, 255, 255, 255}) {
			t.Fatalf("%s: fallback is not the white placeholder: %+v", path, tex)
		}
	}
}

func TestLoadTextureNamesBySource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "albedo.png")
	if err := os.WriteFile(path, encodePNG(t, 2, 2, color.Black), 0o644); err != nil {
		t.Fatal(err)
	}
	tex, err := LoadTextureOrPlaceholder(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(tex.Name, "albedo.png") {
		t.Fatalf("name = %q", tex.Name)
	}
}
