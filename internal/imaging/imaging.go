// Package imaging normalizes uploaded book cover images.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

const (
	// MaxUploadSize is the largest accepted upload in bytes.
	MaxUploadSize = 5 << 20

	// MaxHeight bounds the stored cover height; width follows the aspect ratio.
	MaxHeight = 1024

	// MaxWidth bounds very wide covers such as box sets.
	MaxWidth = 1024

	// JPEGQuality is the compression quality for stored covers.
	JPEGQuality = 85
)

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Cover is a processed cover image ready for storage.
type Cover struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Process checks that r holds a JPEG or PNG (by content, not by the client's
// header), shrinks it to fit MaxWidth x MaxHeight and re-encodes it as JPEG.
func Process(r io.Reader) (*Cover, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxUploadSize)
	}

	if mime := http.DetectContentType(data); !accepted[mime] {
		return nil, fmt.Errorf("unsupported image format: %s (only JPEG and PNG accepted)", mime)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = fit(img, MaxWidth, MaxHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Cover{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// fit scales img down so it fits in maxW x maxH, keeping the aspect ratio.
// Smaller images are returned unchanged.
func fit(img image.Image, maxW, maxH int) image.Image {
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	newW, newH := maxW, maxH
	if w*maxH > h*maxW {
		newH = max(1, h*maxW/w)
	} else {
		newW = max(1, w*maxH/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}
