package kitti

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// Palette holds display colours of the 19 classes (Cityscapes colour scheme).
var Palette = []color.NRGBA{
	{128, 64, 128, 255},  // road
	{244, 35, 232, 255},  // sidewalk
	{70, 70, 70, 255},    // building
	{102, 102, 156, 255}, // wall
	{190, 153, 153, 255}, // fence
	{153, 153, 153, 255}, // pole
	{250, 170, 30, 255},  // traffic light
	{220, 220, 0, 255},   // traffic sign
	{107, 142, 35, 255},  // vegetation
	{152, 251, 152, 255}, // terrain
	{70, 130, 180, 255},  // sky
	{220, 20, 60, 255},   // person
	{255, 0, 0, 255},     // rider
	{0, 0, 142, 255},     // car
	{0, 0, 70, 255},      // truck
	{0, 60, 100, 255},    // bus
	{0, 80, 100, 255},    // train
	{0, 0, 230, 255},     // motorcycle
	{119, 11, 32, 255},   // bicycle
}

// Colorize paints class indices (row major, width x height) with Palette.
// Ignored or unknown classes are transparent.
func Colorize(classes []int64, width, height int) (*image.NRGBA, error) {
	if len(classes) != width*height {
		return nil, fmt.Errorf("expected %v class indices, got %v", width*height, len(classes))
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, c := range classes {
		if c < 0 || c >= int64(len(Palette)) {
			continue
		}
		img.SetNRGBA(i%width, i/width, Palette[c])
	}

	return img, nil
}

// Overlay draws mask over img with given opacity (0-255).
func Overlay(img, mask image.Image, opacity uint8) *image.RGBA {
	rec := img.Bounds()
	dst := image.NewRGBA(rec)
	draw.Draw(dst, rec, img, rec.Min, draw.Src)

	alpha := image.NewUniform(color.Alpha{opacity})
	draw.DrawMask(dst, rec, mask, mask.Bounds().Min, alpha, image.Point{}, draw.Over)

	return dst
}

// SavePNG encodes img to a PNG file.
func SavePNG(img image.Image, filename string) error {
	out, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
