package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rwcarlsen/goexif/exif"
)

// ThumbMaxDim is the max dimension of gallery preview thumbnails.
const ThumbMaxDim = 500

// CaptureMetadata is what the daemon learns about an incoming image before
// storing it: display dimensions after orientation correction, the EXIF
// orientation itself, and the capture time when the camera recorded one.
type CaptureMetadata struct {
	Width       int
	Height      int
	Orientation int
	Taken       time.Time // zero when the image carries no EXIF timestamp
}

// ImageService decodes incoming captures and produces preview thumbnails.
// Stateless; safe for concurrent use.
type ImageService struct{}

// NewImageService creates a new ImageService
func NewImageService() *ImageService {
	return &ImageService{}
}

// Inspect decodes the image and extracts capture metadata. Dimensions are
// reported post-orientation so portrait shots from rotated sensors come out
// portrait. Missing EXIF is not an error.
func (s *ImageService) Inspect(data []byte) (*CaptureMetadata, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	meta := &CaptureMetadata{Orientation: 1}

	if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
		if tag, err := x.Get(exif.Orientation); err == nil {
			if val, err := tag.Int(0); err == nil && val >= 1 && val <= 8 {
				meta.Orientation = val
			}
		}
		if taken, err := x.DateTime(); err == nil {
			meta.Taken = taken
		}
	}

	oriented := applyOrientation(img, meta.Orientation)
	bounds := oriented.Bounds()
	meta.Width = bounds.Dx()
	meta.Height = bounds.Dy()

	return meta, nil
}

// Thumbnail produces an in-memory JPEG preview capped at maxDim on the
// longer side, orientation-corrected.
func (s *ImageService) Thumbnail(data []byte, maxDim int) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	orientation := 1
	if x, exifErr := exif.Decode(bytes.NewReader(data)); exifErr == nil {
		if tag, tagErr := x.Get(exif.Orientation); tagErr == nil {
			if val, valErr := tag.Int(0); valErr == nil && val >= 1 && val <= 8 {
				orientation = val
			}
		}
	}
	img = applyOrientation(img, orientation)

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := fitWithin(width, height, maxDim)

	resized := imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeImage handles the registered formats first, then falls back to HEIC
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}

	heicImg, heicErr := goheif.Decode(bytes.NewReader(data))
	if heicErr != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return heicImg, nil
}

// fitWithin scales (width, height) to fit maxDim, preserving aspect ratio.
// Images already within bounds are not upscaled.
func fitWithin(width, height, maxDim int) (int, int) {
	if width <= maxDim && height <= maxDim {
		return width, height
	}
	if width > height {
		return maxDim, height * maxDim / width
	}
	return width * maxDim / height, maxDim
}

// applyOrientation corrects image orientation based on the EXIF value
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func init() {
	exif.RegisterParsers()
}
