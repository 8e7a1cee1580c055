package kitti

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/sugarme/gotch/ts"
)

// Per-channel statistics of KITTI training images.
var (
	imageMean = [3]float32{0.35675976, 0.37380189, 0.3764753}
	imageStd  = [3]float32{0.32064945, 0.32098866, 0.32325324}
)

// ReadImage reads image from file.
func ReadImage(filename string) (image.Image, error) {
	ext := filepath.Ext(filename)
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ".png", ".PNG":
		return png.Decode(f)
	case ".jpg", ".jpeg", ".JPG", ".JPEG":
		return jpeg.Decode(f)
	case ".tiff", ".tif", ".TIFF", ".TIF":
		return tiff.Decode(f)
	default:
		err = fmt.Errorf("Unsupported image format: %v", ext)
		return nil, err
	}
}

func isImageFile(name string) bool {
	switch filepath.Ext(name) {
	case ".png", ".PNG", ".jpg", ".jpeg", ".JPG", ".JPEG", ".tiff", ".tif", ".TIFF", ".TIF":
		return true
	}
	return false
}

// resizeImage resizes an RGB image to width x height.
func resizeImage(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.Linear)
}

// resizeMask resizes a label image with nearest neighbour so that no new
// label values are interpolated.
func resizeMask(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, resize.NearestNeighbor)
}

// imageToTensor converts image to a normalized float tensor [3 H W].
func imageToTensor(img *image.NRGBA) *ts.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			for c := 0; c < 3; c++ {
				v := float32(img.Pix[off+c]) / 255
				data[c*plane+i] = (v - imageMean[c]) / imageStd[c]
			}
		}
	}

	return ts.MustOfSlice(data).MustView([]int64{3, int64(h), int64(w)}, true)
}

// maskToTensor converts a label image to an int64 tensor [H W] of encoded
// class indices.
func maskToTensor(img image.Image) *ts.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]int64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			data[y*w+x] = encodeLabel(g.Y)
		}
	}

	return ts.MustOfSlice(data).MustView([]int64{int64(h), int64(w)}, true)
}

// LoadImage reads an image file, resizes it to width x height and returns
// both the normalized tensor [3 H W] and the resized image.
func LoadImage(filename string, width, height int) (*ts.Tensor, *image.NRGBA, error) {
	img, err := ReadImage(filename)
	if err != nil {
		return nil, nil, err
	}
	resized := resizeImage(img, width, height)

	return imageToTensor(resized), resized, nil
}

// LoadMask reads a label image, resizes it to width x height and returns the
// encoded class indices [H W].
func LoadMask(filename string, width, height int) (*ts.Tensor, error) {
	img, err := ReadImage(filename)
	if err != nil {
		return nil, err
	}

	return maskToTensor(resizeMask(img, width, height)), nil
}
