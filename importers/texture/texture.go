// Package texture imports PNG and JPEG files into Texture assets.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	_ "image/jpeg"
	_ "image/png"

	"github.com/veldt-engine/asset-runtime/asset"
)

// Texture is a decoded image held in CPU memory as tightly packed RGBA.
type Texture struct {
	asset.Base
	Width  int
	Height int
	Pixels []uint8
}

// OnDispose releases the pixel buffer. Only local state is touched, so
// the hook is safe under both disposal reasons.
func (t *Texture) OnDispose(asset.DisposeReason) {
	t.Pixels = nil
}

// Importer decodes image files into Texture main resources.
type Importer struct{}

// New creates a texture importer. Register it for ".png", ".jpg" and
// ".jpeg".
func New() *Importer { return &Importer{} }

func (i *Importer) Import(ctx *asset.ImportContext) error {
	data, err := ctx.ReadSource()
	if err != nil {
		return err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() {
		converted := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(converted, converted.Bounds(), img, b.Min, draw.Src)
		rgba = converted
	}

	tex := &Texture{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pixels: rgba.Pix,
	}
	return ctx.SetMain(tex)
}
