package stamper

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/wudi/boletopdf/ir/raw"
)

// ImageOptions tunes how a raster is embedded.
type ImageOptions struct {
	// Exact disables resampling, for symbols whose module widths matter.
	Exact bool
	// Interpolate asks viewers to smooth the image when scaling.
	Interpolate bool
}

// imageXObject converts src into an image XObject, with a soft mask when
// any pixel is translucent. Images above maxPixels are downsampled unless
// opts.Exact is set.
func imageXObject(doc *raw.Document, src image.Image, maxPixels int, opts ImageOptions) raw.RefObj {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if !opts.Exact && maxPixels > 0 && w*h > maxPixels {
		src = downsample(src, maxPixels)
		b = src.Bounds()
		w, h = b.Dx(), b.Dy()
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)

	gray := true
	hasAlpha := false
	for i := 0; i < w*h; i++ {
		p := nrgba.Pix[i*4 : i*4+4]
		if p[0] != p[1] || p[1] != p[2] {
			gray = false
		}
		if p[3] < 255 {
			hasAlpha = true
		}
	}

	channels := 3
	colorSpace := "DeviceRGB"
	if gray {
		channels, colorSpace = 1, "DeviceGray"
	}
	pixels := make([]byte, 0, w*h*channels)
	var alpha []byte
	if hasAlpha {
		alpha = make([]byte, 0, w*h)
	}
	for i := 0; i < w*h; i++ {
		p := nrgba.Pix[i*4 : i*4+4]
		if gray {
			pixels = append(pixels, p[0])
		} else {
			pixels = append(pixels, p[0], p[1], p[2])
		}
		if hasAlpha {
			alpha = append(alpha, p[3])
		}
	}

	dict := imageDict(w, h, colorSpace)
	if opts.Interpolate {
		dict.Set("Interpolate", raw.Bool(true))
	}
	if hasAlpha {
		dict.Set("SMask", doc.Add(raw.NewStream(imageDict(w, h, "DeviceGray"), alpha)))
	}
	return doc.Add(raw.NewStream(dict, pixels))
}

func imageDict(w, h int, colorSpace string) *raw.DictObj {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("XObject"))
	d.Set("Subtype", raw.NameLiteral("Image"))
	d.Set("Width", raw.NumberInt(int64(w)))
	d.Set("Height", raw.NumberInt(int64(h)))
	d.Set("ColorSpace", raw.NameLiteral(colorSpace))
	d.Set("BitsPerComponent", raw.NumberInt(8))
	return d
}

// downsample scales src so that it holds at most maxPixels, keeping the
// aspect ratio.
func downsample(src image.Image, maxPixels int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := math.Sqrt(float64(maxPixels) / (float64(w) * float64(h)))
	nw, nh := max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
