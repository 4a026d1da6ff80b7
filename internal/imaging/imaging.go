// Package imaging validates and normalises uploaded profile images.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxUploadBytes is the largest accepted upload.
	MaxUploadBytes = 5 << 20
	// MaxDimension bounds the longer side of the stored image.
	MaxDimension = 512
	// MaxPixels bounds the declared size an upload may decode to.
	MaxPixels = 40_000_000
)

var (
	ErrTooLarge        = errors.New("file size exceeds 5MB limit")
	ErrUnsupportedType = errors.New("invalid file type, only JPEG, PNG and WebP are allowed")
	ErrCorrupt         = errors.New("image could not be decoded")
	ErrDimensions      = errors.New("image dimensions are too large")
)

var allowed = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Result is the re-encoded image ready for storage.
type Result struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// Detect sniffs the content type from the bytes, ignoring any client claim.
func Detect(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !allowed[mt.String()] {
		return mt.String(), ErrUnsupportedType
	}
	return mt.String(), nil
}

// Process checks size, type and declared dimensions, decodes, downscales to MaxDimension and
// re-encodes. PNG stays PNG to keep transparency; JPEG and WebP become JPEG.
// Re-encoding strips metadata such as EXIF location.
func Process(data []byte) (Result, error) {
	if len(data) > MaxUploadBytes {
		return Result{}, ErrTooLarge
	}
	ct, err := Detect(data)
	if err != nil {
		return Result{}, err
	}
	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 || int64(hdr.Width)*int64(hdr.Height) > MaxPixels {
		return Result{}, ErrDimensions
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	img := fit(src, MaxDimension)

	var buf bytes.Buffer
	res := Result{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	if ct == "image/png" {
		err = png.Encode(&buf, img)
		res.ContentType, res.Ext = "image/png", "png"
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
		res.ContentType, res.Ext = "image/jpeg", "jpg"
	}
	if err != nil {
		return Result{}, fmt.Errorf("encode image: %w", err)
	}
	res.Data = buf.Bytes()
	return res, nil
}

func fit(src image.Image, max int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return src
	}
	if w >= h {
		h = h * max / w
		w = max
	} else {
		w = w * max / h
		h = max
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
