// Package resize implements the aspect-aware geometric transforms used
// both to prepare query images and to materialize selected results. Every
// transform is pure: decoded image in, decoded image out.
package resize

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Mode selects how a source image maps onto the target box.
type Mode string

const (
	// ModeStretch resizes to the exact target, ignoring aspect ratio.
	ModeStretch Mode = "stretch"
	// ModeFit shrinks to fit inside the target box, preserving aspect
	// ratio; it never upscales, so output may be smaller than the box.
	ModeFit Mode = "fit"

	ModeCropCenter Mode = "crop_center"
	ModeCropTop    Mode = "crop_top"
	ModeCropBottom Mode = "crop_bottom"
	ModeCropLeft   Mode = "crop_left"
	ModeCropRight  Mode = "crop_right"

	ModePadBlack       Mode = "pad_black"
	ModePadWhite       Mode = "pad_white"
	ModePadTransparent Mode = "pad_transparent"
)

// Filter selects the resampling kernel.
type Filter string

const (
	FilterLanczos  Filter = "lanczos"
	FilterBicubic  Filter = "bicubic"
	FilterBilinear Filter = "bilinear"
	FilterNearest  Filter = "nearest"
)

func (f Filter) resample() imaging.ResampleFilter {
	switch f {
	case FilterBicubic:
		return imaging.CatmullRom
	case FilterBilinear:
		return imaging.Linear
	case FilterNearest:
		return imaging.NearestNeighbor
	default:
		return imaging.Lanczos
	}
}

// Apply transforms img to the target box according to mode. Output is
// exactly width×height for every mode except ModeFit. Unrecognized modes
// behave as ModeStretch.
func Apply(img image.Image, width, height int, mode Mode, filter Filter) *image.NRGBA {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	resample := filter.resample()

	switch {
	case mode == ModeFit:
		return imaging.Fit(img, width, height, resample)
	case mode.isCrop():
		return cropResize(img, width, height, mode, resample)
	case mode.isPad():
		return padResize(img, width, height, mode, resample)
	default:
		return imaging.Resize(img, width, height, resample)
	}
}

func (m Mode) isCrop() bool {
	switch m {
	case ModeCropCenter, ModeCropTop, ModeCropBottom, ModeCropLeft, ModeCropRight:
		return true
	}
	return false
}

func (m Mode) isPad() bool {
	switch m {
	case ModePadBlack, ModePadWhite, ModePadTransparent:
		return true
	}
	return false
}

// cropResize scales to cover the target box, truncating the scaled
// dimension, then crops at the mode's anchor. Equal source and target
// aspect ratios make every anchor offset zero.
func cropResize(img image.Image, width, height int, mode Mode, resample imaging.ResampleFilter) *image.NRGBA {
	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()
	srcRatio := float64(srcW) / float64(srcH)
	dstRatio := float64(width) / float64(height)

	var newW, newH int
	if srcRatio > dstRatio {
		newH = height
		newW = int(float64(height) * srcRatio)
	} else {
		newW = width
		newH = int(float64(width) / srcRatio)
	}

	resized := imaging.Resize(img, newW, newH, resample)

	anchor := imaging.Center
	switch mode {
	case ModeCropTop:
		anchor = imaging.Top
	case ModeCropBottom:
		anchor = imaging.Bottom
	case ModeCropLeft:
		anchor = imaging.Left
	case ModeCropRight:
		anchor = imaging.Right
	}
	return imaging.CropAnchor(resized, width, height, anchor)
}

// padResize scales to fit inside the target box, truncating the scaled
// dimension, then pastes centered on a solid canvas. Only the transparent
// variant leaves alpha below 255.
func padResize(img image.Image, width, height int, mode Mode, resample imaging.ResampleFilter) *image.NRGBA {
	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()
	srcRatio := float64(srcW) / float64(srcH)
	dstRatio := float64(width) / float64(height)

	var newW, newH int
	if srcRatio > dstRatio {
		newW = width
		newH = int(float64(width) / srcRatio)
	} else {
		newH = height
		newW = int(float64(height) * srcRatio)
	}

	resized := imaging.Resize(img, newW, newH, resample)

	background := color.NRGBA{A: 255}
	switch mode {
	case ModePadWhite:
		background = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	case ModePadTransparent:
		background = color.NRGBA{}
	}

	canvas := imaging.New(width, height, background)
	return imaging.Paste(canvas, resized, image.Pt((width-newW)/2, (height-newH)/2))
}
