package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// maxFaceSize bounds the longer side of an uploaded face crop.
const maxFaceSize = 640

// ErrEmptyRegion is returned when a face box does not overlap the frame.
var ErrEmptyRegion = errors.New("face region is outside the frame")

// DecodeFrame decodes a JPEG, PNG or BMP frame.
func DecodeFrame(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// RegionOfInterest clamps a detected face box to the frame bounds.
func RegionOfInterest(box, bounds image.Rectangle) (image.Rectangle, error) {
	roi := box.Canon().Intersect(bounds)
	if roi.Empty() {
		return image.Rectangle{}, ErrEmptyRegion
	}
	return roi, nil
}

// EncodeRegion crops the face region out of frame and encodes it as JPEG.
// Crops larger than maxFaceSize are scaled down keeping aspect ratio.
func EncodeRegion(frame image.Image, box image.Rectangle, quality int) ([]byte, error) {
	roi, err := RegionOfInterest(box, frame.Bounds())
	if err != nil {
		return nil, err
	}

	width, height := roi.Dx(), roi.Dy()
	newWidth, newHeight := width, height
	if width > maxFaceSize || height > maxFaceSize {
		if width > height {
			newWidth = maxFaceSize
			newHeight = max(1, int(float64(height)*float64(maxFaceSize)/float64(width)))
		} else {
			newHeight = maxFaceSize
			newWidth = max(1, int(float64(width)*float64(maxFaceSize)/float64(height)))
		}
	}

	crop := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	if newWidth == width && newHeight == height {
		draw.Copy(crop, image.Point{}, frame, roi, draw.Src, nil)
	} else {
		draw.CatmullRom.Scale(crop, crop.Bounds(), frame, roi, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode face region: %w", err)
	}
	return buf.Bytes(), nil
}
